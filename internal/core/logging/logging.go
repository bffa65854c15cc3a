// Package logging configures the charmbracelet logger shared by the
// pipeline, CLI and server.
package logging

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger wraps a charmbracelet logger. Components log with key/value pairs
// and derive sub-loggers with For.
type Logger struct {
	*log.Logger
	buf *bytes.Buffer
}

var (
	std  *Logger
	once sync.Once
)

// New builds a logger writing to w. Debug mode adds caller, timestamps and
// debug-level output.
func New(w io.Writer, debug bool) *Logger {
	if debug {
		l := log.NewWithOptions(w, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			Prefix:          "streamscribe",
			Level:           log.DebugLevel,
		})
		return &Logger{Logger: l}
	}
	l := log.New(w)
	l.SetLevel(log.InfoLevel)
	return &Logger{Logger: l}
}

// Default returns the process-wide logger on stderr. DEBUG=1 enables debug mode.
func Default() *Logger {
	once.Do(func() {
		std = New(os.Stderr, os.Getenv("DEBUG") == "1")
	})
	return std
}

// For returns a child logger tagged with a component prefix.
func (l *Logger) For(component string) *Logger {
	return &Logger{Logger: l.Logger.WithPrefix(component), buf: l.buf}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	l := log.New(io.Discard)
	l.SetLevel(log.FatalLevel + 1)
	return &Logger{Logger: l}
}

// NewTest returns a debug-level logger capturing output in memory.
func NewTest() *Logger {
	buf := &bytes.Buffer{}
	l := log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})
	return &Logger{Logger: l, buf: buf}
}

// Output returns what a NewTest logger has captured.
func (l *Logger) Output() string {
	if l.buf == nil {
		return ""
	}
	return l.buf.String()
}
