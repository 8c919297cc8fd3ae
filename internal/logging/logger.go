package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Logger provides leveled logging to stderr with redaction support
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	debug   bool
	noColor bool
}

// New creates a new logger instance writing to stderr
func New(debug, noColor bool) *Logger {
	return NewWithWriter(os.Stderr, debug, noColor)
}

// NewWithWriter creates a logger that writes to w
func NewWithWriter(w io.Writer, debug, noColor bool) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{
		out:     w,
		debug:   debug,
		noColor: noColor,
	}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewWithWriter(io.Discard, false, true)
}

// DebugEnabled reports whether Debug messages are emitted
func (l *Logger) DebugEnabled() bool {
	return l.debug
}

type level int

const (
	levelInfo level = iota
	levelWarn
	levelError
	levelDebug
)

// marks holds the plain prefix and its ANSI color code per level.
var marks = [...]struct{ plain, color string }{
	levelInfo:  {"✓", "32"},
	levelWarn:  {"⚠", "33"},
	levelError: {"✗", "31"},
	levelDebug: {"[DEBUG]", "36"},
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) { l.emit(levelInfo, format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.emit(levelWarn, format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.emit(levelError, format, args...) }

// Debug is dropped unless the logger was built with debug on.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l == nil || !l.debug {
		return
	}
	l.emit(levelDebug, format, args...)
}

func (l *Logger) emit(lv level, format string, args ...interface{}) {
	if l == nil {
		return
	}
	m := marks[lv]
	prefix := m.plain
	if !l.noColor {
		prefix = "\033[" + m.color + "m" + m.plain + "\033[0m"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}

// Secret represents a value that should be redacted in logs
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string { return redacted }

// GoString covers %#v.
func (s Secret) GoString() string { return redacted }

// Redact masks every occurrence of the given secrets in s. Secrets of three
// bytes or fewer are left alone.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if len(secret) <= 3 {
			continue
		}
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}
