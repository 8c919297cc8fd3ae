// Package exec runs non-interactive vault CLI commands.
// The CommandExecutor interface lets callers substitute canned output in tests.
package exec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// CommandExecutor runs a command and returns its captured output.
type CommandExecutor interface {
	// Execute runs name with args. A non-zero exit is reported through err,
	// with stdout and stderr still populated.
	Execute(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// RealCommandExecutor executes commands with os/exec.
type RealCommandExecutor struct {
	// Env is appended to the current process environment.
	Env []string
}

// Execute runs an actual command.
func (r *RealCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), r.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DefaultExecutor returns the production executor.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}

// ExitCode extracts the exit status from an Execute error, or -1 when the
// command never ran.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// IsNotFound reports whether err means the binary is not installed.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
