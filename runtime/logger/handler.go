package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
)

// moduleRoot is stripped from function names to form module names.
const moduleRoot = "github.com/AltairaLabs/roboshen/"

// redacted replaces the value of attributes whose key names a secret.
const redacted = "[REDACTED]"

// secretKeys are attribute key fragments whose values are never written.
var secretKeys = []string{"api_key", "apikey", "authorization", "password", "secret", "token"}

// ContextHandler enriches records before passing them to an inner handler:
// common fields first, then the calling module and its fields, then the
// session, epoch and invocation fields carried by the context, then the
// record's own attributes. Attributes named like secrets are redacted.
//
// With a ModuleConfig the handler also filters by the calling module's
// level; NewModuleHandler builds one.
type ContextHandler struct {
	inner        slog.Handler
	commonFields []slog.Attr
	modules      *ModuleConfig
}

// NewContextHandler creates a handler with no module filtering. The
// commonFields are added to every record.
func NewContextHandler(inner slog.Handler, commonFields ...slog.Attr) *ContextHandler {
	return &ContextHandler{inner: inner, commonFields: commonFields}
}

// NewModuleHandler creates a handler that applies per-module levels and
// fields and records the module under the "logger" key.
func NewModuleHandler(inner slog.Handler, modules *ModuleConfig, commonFields ...slog.Attr) *ContextHandler {
	return &ContextHandler{inner: inner, commonFields: commonFields, modules: modules}
}

// Enabled reports whether any module could log at level. The exact
// per-module check happens in Handle, where the caller is known.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.modules != nil && level < h.modules.MinLevel() {
		return false
	}
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler interface contract
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(h.commonFields...)

	if h.modules != nil {
		module := moduleForPC(r.PC)
		if r.Level < h.modules.LevelFor(module) {
			return nil
		}
		if module != "" {
			out.AddAttrs(slog.String("logger", module))
		}
		out.AddAttrs(h.modules.FieldsFor(module)...)
	}

	out.AddAttrs(ContextFields(ctx)...)

	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// redact masks secret-looking string attributes, including inside groups.
func redact(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = redact(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindString:
		if isSecretKey(a.Key) {
			return slog.String(a.Key, redacted)
		}
	default:
	}
	return a
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = redact(a)
	}
	return &ContextHandler{inner: h.inner.WithAttrs(masked), commonFields: h.commonFields, modules: h.modules}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name), commonFields: h.commonFields, modules: h.modules}
}

// Unwrap returns the inner handler.
func (h *ContextHandler) Unwrap() slog.Handler {
	return h.inner
}

var _ slog.Handler = (*ContextHandler)(nil)

// pcModules caches the module name per program counter; the audio loops
// log at trace level from a handful of call sites.
var pcModules sync.Map // uintptr → string

func moduleForPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	if m, ok := pcModules.Load(pc); ok {
		return m.(string)
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	module := extractModuleFromFunction(frame.Function)
	pcModules.Store(pc, module)
	return module
}

// extractModuleFromFunction turns a fully qualified function name into a
// dotted module name:
// "github.com/AltairaLabs/roboshen/runtime/session.(*Controller).loop"
// becomes "runtime.session". Functions outside this module yield "".
func extractModuleFromFunction(fn string) string {
	idx := strings.Index(fn, moduleRoot)
	if fn == "" || idx == -1 {
		return ""
	}
	path := fn[idx+len(moduleRoot):]

	// The package path ends at the first dot after the last slash.
	dir, pkg := "", path
	if slash := strings.LastIndexByte(path, '/'); slash >= 0 {
		dir, pkg = path[:slash+1], path[slash+1:]
	}
	if dot := strings.IndexByte(pkg, '.'); dot >= 0 {
		pkg = pkg[:dot]
	}
	return strings.ReplaceAll(dir+pkg, "/", ".")
}
