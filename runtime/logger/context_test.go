package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextFields(t *testing.T) {
	ctx := WithInvocation(WithSession(context.Background(), "sess-9", 3), "generateImage", "call-1")

	got := ContextFields(ctx)
	want := []slog.Attr{
		slog.String("session_id", "sess-9"),
		slog.String("epoch", "3"),
		slog.String("tool", "generateImage"),
		slog.String("invocation_id", "call-1"),
	}
	if len(got) != len(want) {
		t.Fatalf("ContextFields = %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("field %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestContextFields_Empty(t *testing.T) {
	if got := ContextFields(context.Background()); got != nil {
		t.Errorf("expected no fields, got %v", got)
	}
	//nolint:staticcheck // nil context is tolerated by the handler
	if got := ContextFields(nil); got != nil {
		t.Errorf("expected no fields for nil context, got %v", got)
	}
	if got := ContextFields(WithInvocation(context.Background(), "", "")); got != nil {
		t.Errorf("empty values should be skipped, got %v", got)
	}
}

func textLogger(buf *bytes.Buffer, common ...slog.Attr) *slog.Logger {
	return slog.New(NewContextHandler(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}), common...))
}

func TestContextHandler_AddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithInvocation(WithSession(context.Background(), "sess-123", 2), "generateContent", "call-7")
	textLogger(&buf).InfoContext(ctx, "tool started", "attempt", 1)

	out := buf.String()
	for _, want := range []string{"session_id=sess-123", "epoch=2", "tool=generateContent", "invocation_id=call-7", "attempt=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %q", want, out)
		}
	}
}

func TestContextHandler_FieldOrder(t *testing.T) {
	var buf bytes.Buffer
	textLogger(&buf, slog.String("kiosk", "lobby")).
		InfoContext(WithSession(context.Background(), "s", 1), "ordered", "k", "v")

	out := buf.String()
	common := strings.Index(out, "kiosk=lobby")
	session := strings.Index(out, "session_id=s")
	own := strings.Index(out, "k=v")
	if common < 0 || session < 0 || own < 0 || common >= session || session >= own {
		t.Errorf("expected common, context, record order in %q", out)
	}
}

func TestContextHandler_NoContextFields(t *testing.T) {
	var buf bytes.Buffer
	textLogger(&buf).Info("bare")

	if strings.Contains(buf.String(), "session_id=") || strings.Contains(buf.String(), "epoch=") {
		t.Errorf("unexpected context fields in %q", buf.String())
	}
}

func TestContextHandler_Enabled(t *testing.T) {
	h := NewContextHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	if h.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug enabled under a warn handler")
	}
	if !h.Enabled(ctx, slog.LevelWarn) || !h.Enabled(ctx, slog.LevelError) {
		t.Error("warn and error should be enabled")
	}
}

func TestContextHandler_Unwrap(t *testing.T) {
	inner := slog.NewTextHandler(&bytes.Buffer{}, nil)
	if NewContextHandler(inner).Unwrap() != inner {
		t.Error("Unwrap should return the inner handler")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"trace":   LevelTrace,
		"TRACE":   LevelTrace,
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
