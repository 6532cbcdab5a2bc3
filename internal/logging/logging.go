// Package logging builds the structured logger shared by sshctl components.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Prefix is prepended to every log line.
const Prefix = "sshctl"

// New returns a key/value logger writing to w at the given level.
// An unrecognised level falls back to info.
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          Prefix,
		ReportTimestamp: true,
	})
	logger.SetLevel(ParseLevel(level))
	return logger
}

// ParseLevel converts a level name such as "debug" or "WARN" to a log.Level.
func ParseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Discard returns a logger that drops everything. Used by tests and by
// commands whose output must stay machine-readable.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDefault returns l, or the package-level default logger when l is nil.
func OrDefault(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}
