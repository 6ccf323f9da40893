package logger

import (
	"context"
	"log/slog"
	"strconv"
)

type ctxKey int

const (
	keySession ctxKey = iota
	keyEpoch
	keyTool
	keyInvocation
)

// contextFields maps context keys to record attribute names, in output
// order.
var contextFields = [...]struct {
	key  ctxKey
	name string
}{
	{keySession, "session_id"},
	{keyEpoch, "epoch"},
	{keyTool, "tool"},
	{keyInvocation, "invocation_id"},
}

// WithSession tags records logged with ctx by voice session and epoch.
func WithSession(ctx context.Context, id string, epoch uint64) context.Context {
	ctx = context.WithValue(ctx, keySession, id)
	return context.WithValue(ctx, keyEpoch, strconv.FormatUint(epoch, 10))
}

// WithInvocation tags records logged with ctx by the tool call in progress.
func WithInvocation(ctx context.Context, tool, id string) context.Context {
	ctx = context.WithValue(ctx, keyTool, tool)
	return context.WithValue(ctx, keyInvocation, id)
}

// ContextFields returns the tags carried by ctx. Empty values are skipped.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	for _, f := range contextFields {
		if s, ok := ctx.Value(f.key).(string); ok && s != "" {
			attrs = append(attrs, slog.String(f.name, s))
		}
	}
	return attrs
}
