package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ModuleConfig holds per-module levels and fields. Module names are dotted
// package paths relative to the module root ("runtime.live.gemini"); a
// setting applies to the named module and everything below it.
type ModuleConfig struct {
	mu           sync.RWMutex
	defaultLevel slog.Level
	levels       map[string]slog.Level
	fields       map[string][]slog.Attr

	// resolved caches LevelFor results; cleared on every change.
	resolved map[string]slog.Level
}

// NewModuleConfig creates a new ModuleConfig with the given default level.
func NewModuleConfig(defaultLevel slog.Level) *ModuleConfig {
	return &ModuleConfig{
		defaultLevel: defaultLevel,
		levels:       make(map[string]slog.Level),
		fields:       make(map[string][]slog.Attr),
		resolved:     make(map[string]slog.Level),
	}
}

// SetModuleLevel sets the level for module and its descendants.
func (m *ModuleConfig) SetModuleLevel(module string, level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[module] = level
	clear(m.resolved)
}

// SetModuleFields attaches fields to every record logged from module or its
// descendants.
func (m *ModuleConfig) SetModuleFields(module string, fields map[string]string) {
	attrs := make([]slog.Attr, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.String(k, v))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields[module] = attrs
}

// SetDefaultLevel sets the default log level.
func (m *ModuleConfig) SetDefaultLevel(level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultLevel = level
	clear(m.resolved)
}

// LevelFor returns the level for module: the closest configured ancestor
// ("runtime.live.gemini", then "runtime.live", then "runtime"), or the
// default.
func (m *ModuleConfig) LevelFor(module string) slog.Level {
	m.mu.RLock()
	level, ok := m.resolved[module]
	m.mu.RUnlock()
	if ok {
		return level
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	level = m.defaultLevel
	for name := module; name != ""; name = parentModule(name) {
		if l, found := m.levels[name]; found {
			level = l
			break
		}
	}
	m.resolved[module] = level
	return level
}

// MinLevel is the lowest level any module logs at.
func (m *ModuleConfig) MinLevel() slog.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lowest := m.defaultLevel
	for _, l := range m.levels {
		lowest = min(lowest, l)
	}
	return lowest
}

// FieldsFor returns the fields of module and its ancestors, outermost
// first.
func (m *ModuleConfig) FieldsFor(module string) []slog.Attr {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.fields) == 0 {
		return nil
	}
	var chain [][]slog.Attr
	for name := module; name != ""; name = parentModule(name) {
		if f, ok := m.fields[name]; ok {
			chain = append(chain, f)
		}
	}
	var out []slog.Attr
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i]...)
	}
	return out
}

func parentModule(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// globalModuleConfig is the global module configuration.
var globalModuleConfig = NewModuleConfig(slog.LevelInfo)

// LoggingConfigSpec defines the logging configuration for the Configure function.
// This mirrors the config.LoggingConfigSpec to avoid import cycles.
type LoggingConfigSpec struct {
	DefaultLevel string
	Format       string // "json" or "text"
	// File appends logs to a file instead of stderr. The terminal UI owns
	// the screen, so interactive runs log here.
	File         string
	CommonFields map[string]string
	Modules      []ModuleLoggingSpec
}

// ModuleLoggingSpec configures logging for a specific module.
type ModuleLoggingSpec struct {
	Name   string
	Level  string
	Fields map[string]string
}

// Log format constants
const (
	FormatJSON = "json"
	FormatText = "text"
)

const (
	logDirPermissions  = 0o750
	logFilePermissions = 0o600
)

// logFile is the file opened by the last Configure, if any.
var logFile *os.File

// Configure applies a LoggingConfigSpec to the global logger.
// A handler installed with SetLogger is left in place.
func Configure(cfg *LoggingConfigSpec) error {
	if cfg == nil || customHandler != nil {
		return nil
	}

	if cfg.File != "" {
		if err := openLogFile(cfg.File); err != nil {
			return err
		}
	}

	defaultLevel := slog.LevelInfo
	if cfg.DefaultLevel != "" {
		defaultLevel = ParseLevel(cfg.DefaultLevel)
	}

	commonFields = make([]slog.Attr, 0, len(cfg.CommonFields))
	for k, v := range cfg.CommonFields {
		commonFields = append(commonFields, slog.String(k, v))
	}

	moduleConfig := NewModuleConfig(defaultLevel)
	for _, mod := range cfg.Modules {
		if mod.Level != "" {
			moduleConfig.SetModuleLevel(mod.Name, ParseLevel(mod.Level))
		}
		if len(mod.Fields) > 0 {
			moduleConfig.SetModuleFields(mod.Name, mod.Fields)
		}
	}
	globalModuleConfig = moduleConfig
	format = cfg.Format

	installHandler(newBaseHandler(moduleConfig.MinLevel()), moduleConfig, commonFields)
	return nil
}

// openLogFile redirects output to path, closing any file opened before.
func openLogFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), logDirPermissions); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePermissions) //nolint:gosec // operator-provided path
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	logOutput = f
	return nil
}

// newBaseHandler builds the text or JSON handler for the current format.
func newBaseHandler(level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.NewJSONHandler(logOutput, opts)
	}
	return slog.NewTextHandler(logOutput, opts)
}

// installHandler wraps base with module filtering when modules configure
// anything beyond the default, and makes it the default logger.
func installHandler(base slog.Handler, modules *ModuleConfig, common []slog.Attr) {
	var handler slog.Handler
	if modules.configured() {
		handler = NewModuleHandler(base, modules, common...)
	} else {
		handler = NewContextHandler(base, common...)
	}
	DefaultLogger = slog.New(handler)
	slog.SetDefault(DefaultLogger)
}

func (m *ModuleConfig) configured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.levels) > 0 || len(m.fields) > 0
}

// GetModuleConfig returns the global module configuration.
// This is primarily for testing.
func GetModuleConfig() *ModuleConfig {
	return globalModuleConfig
}
