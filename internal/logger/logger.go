// Package logger provides the process-wide log sink for the ragchat CLI.
// Warnings and errors are always written; debug and info messages, plus
// section headers, only appear when verbose mode is enabled via --verbose.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/phuslu/log"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	base              = newLogger(os.Stderr, log.WarnLevel)
)

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return &log.Logger{
		Level: level,
		Writer: &log.ConsoleWriter{
			Writer:    w,
			Formatter: formatEntry,
		},
	}
}

// formatEntry renders entries as "[LEVEL] message key=value".
func formatEntry(w io.Writer, a *log.FormatterArgs) (int, error) {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.ToUpper(a.Level))
	b.WriteString("] ")
	b.WriteString(a.Message)
	for _, kv := range a.KeyValues {
		b.WriteString(" ")
		b.WriteString(kv.Key)
		b.WriteString("=")
		b.WriteString(kv.Value)
	}
	b.WriteString("\n")
	return io.WriteString(w, b.String())
}

func rebuild() {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	base = newLogger(output, level)
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
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
	rebuild()
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Debug().Msgf(format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Info().Msgf(format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Warn().Msgf(format, args...)
}

// Error prints an error message together with the error chain.
func Error(err error, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Error().Err(err).Msgf(format, args...)
}
