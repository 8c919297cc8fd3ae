package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/opsession/internal/logging"
)

// TestLogger captures the output of a real logging.Logger so tests can
// check what reached the user, in particular that secrets were redacted.
//
//	tl := NewTestLogger(t, true)
//	mgr := session.New(session.Options{Logger: tl.Logger, ...})
//	...
//	tl.AssertNotContains(t, token)
type TestLogger struct {
	*logging.Logger
	buf *syncBuffer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewTestLogger creates a colorless logger writing to memory.
func NewTestLogger(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	buf := &syncBuffer{}
	return &TestLogger{
		Logger: logging.NewWithWriter(buf, debug, true),
		buf:    buf,
	}
}

// Output returns everything logged so far.
func (l *TestLogger) Output() string {
	return l.buf.String()
}

// Lines returns the logged lines.
func (l *TestLogger) Lines() []string {
	out := strings.TrimRight(l.Output(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// AssertContains checks that substr was logged.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.Output(), substr)
}

// AssertNotContains checks that substr was never logged.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.Output(), substr)
}
