// Package logger provides leveled structured logging for ragd.
// Info, Warn and Error are always written. Debug is written only when
// verbose mode is enabled via the --verbose flag.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Formats accepted by SetFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	mu      sync.RWMutex
	verbose bool
	format            = FormatText
	output  io.Writer = os.Stderr
	level             = new(slog.LevelVar)
	base              = build()
)

// build creates the root logger from the current settings. Callers hold mu.
func build() *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(output, opts))
	}
	return slog.New(slog.NewTextHandler(output, opts))
}

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = build()
}

// SetFormat switches between the text and JSON handlers.
func SetFormat(f string) error {
	f = strings.ToLower(strings.TrimSpace(f))
	if f == "" {
		f = FormatText
	}
	if f != FormatText && f != FormatJSON {
		return fmt.Errorf("unknown log format %q (want text or json)", f)
	}

	mu.Lock()
	defer mu.Unlock()
	format = f
	base = build()
	return nil
}

// With returns a logger carrying the given attributes, e.g.
// logger.With("component", "dispatcher"). Loggers created before a later
// SetOutput or SetFormat keep writing to the old handler.
func With(args ...any) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With(args...)
}

// Default returns the root logger.
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug logs at debug level. Dropped unless verbose.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// Section logs a section marker if verbose mode is enabled.
func Section(name string) {
	Default().Debug("=== " + name + " ===")
}
