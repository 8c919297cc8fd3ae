package logging_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/opsession/internal/logging"
)

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "session token", input: "Jc7Vt4mMb2wq6u4Xz3yAfOTqS1p1HfTxlqkvh8QF0eE"},
		{name: "empty secret", input: ""},
		{name: "master password with spaces", input: "correct horse battery staple"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := logging.Secret(tt.input)
			assert.Equal(t, "[REDACTED]", s.String())
			assert.Equal(t, "[REDACTED]", s.GoString())
			assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
			assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
		})
	}
}

func TestLoggerNeverPrintsSecretValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, true, true)

	token := "sess-token-0123456789"
	logger.Info("stored session %s for %s", logging.Secret(token), "acme")
	logger.Debug("token=%s", logging.Secret(token))

	out := buf.String()
	assert.NotContains(t, out, token)
	assert.Contains(t, out, "stored session [REDACTED] for acme")
	assert.Contains(t, out, "[DEBUG] token=[REDACTED]")
}

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		debug   bool
		noColor bool
		log     func(l *logging.Logger)
		want    string
		absent  bool
	}{
		{name: "info plain", noColor: true, log: func(l *logging.Logger) { l.Info("hello") }, want: "✓ hello\n"},
		{name: "warn plain", noColor: true, log: func(l *logging.Logger) { l.Warn("careful") }, want: "⚠ careful\n"},
		{name: "error plain", noColor: true, log: func(l *logging.Logger) { l.Error("broken") }, want: "✗ broken\n"},
		{name: "error colored", log: func(l *logging.Logger) { l.Error("broken") }, want: "\033[31m✗\033[0m broken\n"},
		{name: "debug suppressed", noColor: true, log: func(l *logging.Logger) { l.Debug("hidden") }, absent: true},
		{name: "debug enabled", debug: true, noColor: true, log: func(l *logging.Logger) { l.Debug("shown") }, want: "[DEBUG] shown\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := logging.NewWithWriter(&buf, tt.debug, tt.noColor)
			tt.log(logger)

			if tt.absent {
				assert.Empty(t, buf.String())
				return
			}
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		secrets []string
		want    string
	}{
		{
			name:    "replaces every occurrence",
			input:   "token abc123 rejected, abc123 expired",
			secrets: []string{"abc123"},
			want:    "token [REDACTED] rejected, [REDACTED] expired",
		},
		{
			name:    "ignores trivial secrets",
			input:   "value a b c",
			secrets: []string{"a", "", "b c"},
			want:    "value a b c",
		},
		{
			name:    "multiple secrets",
			input:   "pw=hunter22 key=A3-XYZ123",
			secrets: []string{"hunter22", "A3-XYZ123"},
			want:    "pw=[REDACTED] key=[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, logging.Redact(tt.input, tt.secrets...))
		})
	}
}

func TestDiscardLogger(t *testing.T) {
	t.Parallel()

	logger := logging.Discard()
	assert.False(t, logger.DebugEnabled())
	assert.NotPanics(t, func() {
		logger.Info("nothing")
		logger.Error("nothing")
	})
}
