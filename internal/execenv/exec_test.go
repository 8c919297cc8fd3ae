package execenv

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/opsession/internal/errors"
	"github.com/systmms/opsession/internal/logging"
)

func TestMaskValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", "(empty)"},
		{"single_char", "a", "*"},
		{"three_chars", "abc", "***"},
		{"four_chars", "abcd", "a**d"},
		{"eight_chars", "abcdefgh", "a******h"},
		{"nine_chars", "abcdefghi", "abc********hi"},
		{"session_token", "Xk9bN2pQ7rT4vW8yZ1aC3dE5fG6hJ0kL", "Xk9********kL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, MaskValue(tt.input))
		})
	}
}

func TestBuildEnvironment(t *testing.T) {
	t.Parallel()

	base := []string{"PATH=/bin", "OP_SESSION_acme=stale", "MALFORMED"}
	vars := map[string]string{"OP_SESSION_acme": "fresh", "OP_DEVICE": "dev"}

	assert.Equal(t,
		[]string{"OP_DEVICE=dev", "OP_SESSION_acme=fresh", "PATH=/bin"},
		BuildEnvironment(base, vars, false))

	assert.Equal(t,
		[]string{"OP_DEVICE=dev", "OP_SESSION_acme=stale", "PATH=/bin"},
		BuildEnvironment(base, vars, true))
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	err := ValidateCommand(nil)
	var ue dserrors.UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Suggestion, "opsession run --")

	err = ValidateCommand([]string{"definitely-not-a-real-binary-xyz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitely-not-a-real-binary-xyz")
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRun_PassesEnvironment(t *testing.T) {
	t.Parallel()
	requireShell(t)

	var stdout, stderr bytes.Buffer
	err := New(logging.Discard()).Run(context.Background(), Options{
		Command:     []string{"sh", "-c", `printf %s "$OP_SESSION_acme"`},
		Environment: map[string]string{"OP_SESSION_acme": "tok123"},
		PrintVars:   true,
		Stdout:      &stdout,
		Stderr:      &stderr,
	})
	require.NoError(t, err)

	assert.Equal(t, "tok123", stdout.String())
	assert.Contains(t, stderr.String(), "OP_SESSION_acme=t****3")
	assert.NotContains(t, stderr.String(), "tok123")
}

func TestRun_ExitCode(t *testing.T) {
	t.Parallel()
	requireShell(t)

	err := New(nil).Run(context.Background(), Options{
		Command: []string{"sh", "-c", "exit 3"},
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "sh", exitErr.Command)
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()
	requireShell(t)

	start := time.Now()
	err := New(nil).Run(context.Background(), Options{
		Command: []string{"sh", "-c", "sleep 5"},
		Timeout: 100 * time.Millisecond,
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}
