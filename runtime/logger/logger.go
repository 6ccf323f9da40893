// Package logger is RoboShen's structured logging on log/slog.
//
// Records go through a ContextHandler that adds configured common fields,
// the emitting module and its fields, and the session and invocation tags
// carried by the context. Levels can be set per module; see Configure.
// Secret-looking attributes and API keys in request logs are masked.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// LevelTrace is below debug; used for per-frame audio diagnostics.
const LevelTrace = slog.LevelDebug - 4

var (
	// DefaultLogger is the logger every package-level function writes to.
	DefaultLogger *slog.Logger

	logOutput io.Writer = os.Stderr

	// customHandler is set by SetLogger; Configure leaves it in place.
	customHandler slog.Handler

	// Last configured format and common fields, kept across SetLevel and
	// SetOutput.
	format       = FormatText
	commonFields []slog.Attr
)

func init() {
	level := slog.LevelInfo
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = ParseLevel(env)
	}
	globalModuleConfig.SetDefaultLevel(level)
	DefaultLogger = slog.New(NewContextHandler(newBaseHandler(level)))
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the default level, keeping module settings and the
// configured format.
func SetLevel(level slog.Level) {
	if customHandler != nil {
		return
	}
	globalModuleConfig.SetDefaultLevel(level)
	installHandler(newBaseHandler(globalModuleConfig.MinLevel()), globalModuleConfig, commonFields)
}

// SetOutput redirects log output. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	if logFile != nil && w != io.Writer(logFile) {
		_ = logFile.Close()
		logFile = nil
	}
	logOutput = w
	SetLevel(globalModuleConfig.LevelFor(""))
}

// SetLogger installs a caller-provided handler. A nil handler restores
// the default text handler.
func SetLogger(h slog.Handler) {
	customHandler = h
	if h == nil {
		SetLevel(slog.LevelInfo)
		return
	}
	DefaultLogger = slog.New(NewContextHandler(h))
}

// SetVerbose switches between debug and info for the --verbose flag.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
		return
	}
	SetLevel(slog.LevelInfo)
}

// callerSkip skips runtime.Callers, output and the exported wrapper.
const callerSkip = 3

// output records the caller of the exported wrapper as the source, so
// module levels apply to the code that logged. Exported functions must
// call it directly.
func output(ctx context.Context, level slog.Level, msg string, args ...any) {
	l := DefaultLogger
	if !l.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(callerSkip, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.Handler().Handle(ctx, r)
}

// Trace logs per-frame detail.
func Trace(msg string, args ...any) { output(context.Background(), LevelTrace, msg, args...) }

// Debug logs at debug level.
func Debug(msg string, args ...any) { output(context.Background(), slog.LevelDebug, msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { output(context.Background(), slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { output(context.Background(), slog.LevelWarn, msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { output(context.Background(), slog.LevelError, msg, args...) }

// DebugContext logs at debug level with the tags carried by ctx.
func DebugContext(ctx context.Context, msg string, args ...any) {
	output(ctx, slog.LevelDebug, msg, args...)
}

// InfoContext logs at info level with the tags carried by ctx.
func InfoContext(ctx context.Context, msg string, args ...any) {
	output(ctx, slog.LevelInfo, msg, args...)
}

// WarnContext logs at warn level with the tags carried by ctx.
func WarnContext(ctx context.Context, msg string, args ...any) {
	output(ctx, slog.LevelWarn, msg, args...)
}

// ErrorContext logs at error level with the tags carried by ctx.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	output(ctx, slog.LevelError, msg, args...)
}

// SessionTransition logs a session state change.
func SessionTransition(ctx context.Context, from, to string, args ...any) {
	output(ctx, slog.LevelInfo, "Session state changed", append([]any{"from", from, "to", to}, args...)...)
}

// ToolCall logs the start of a model-requested capability invocation.
func ToolCall(ctx context.Context, tool, invocationID string, args ...any) {
	output(ctx, slog.LevelInfo, "Tool invocation started",
		append([]any{"tool", tool, "invocation_id", invocationID}, args...)...)
}

// ToolResult logs how an invocation ended. Failures are warnings: a
// failed tool never fails the session.
func ToolResult(ctx context.Context, tool, invocationID string, elapsed time.Duration, err error, args ...any) {
	attrs := append([]any{"tool", tool, "invocation_id", invocationID, "duration", elapsed}, args...)
	if err != nil {
		output(ctx, slog.LevelWarn, "Tool invocation failed", append(attrs, "error", err)...)
		return
	}
	output(ctx, slog.LevelInfo, "Tool invocation completed", attrs...)
}
