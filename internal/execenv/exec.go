// Package execenv runs a child command with session variables added to its
// environment.
package execenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	dserrors "github.com/systmms/opsession/internal/errors"
	"github.com/systmms/opsession/internal/logging"
)

// ExitError carries the exit status of a child that ran and failed.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
}

// Runner runs commands with extra environment variables.
type Runner struct {
	logger *logging.Logger
}

// New creates a Runner.
func New(logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{logger: logger}
}

// Options configures Run.
type Options struct {
	Command     []string
	Environment map[string]string
	// KeepExisting leaves variables already set in the parent untouched.
	KeepExisting bool
	// PrintVars lists the added variable names with masked values on Stderr.
	PrintVars  bool
	WorkingDir string
	Timeout    time.Duration

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run starts the command and waits for it. A non-zero exit is returned as
// *ExitError.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	if err := ValidateCommand(opts.Command); err != nil {
		return err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	stdin, stdout, stderr := opts.Stdin, opts.Stdout, opts.Stderr
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	if opts.PrintVars {
		printEnvironment(stderr, opts.Environment)
	}

	name := opts.Command[0]
	cmd := exec.CommandContext(ctx, name, opts.Command[1:]...)
	cmd.Env = BuildEnvironment(os.Environ(), opts.Environment, opts.KeepExisting)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Dir = opts.WorkingDir

	r.logger.Debug("Executing command: %s", strings.Join(opts.Command, " "))
	r.logger.Debug("Environment variables added: %d", len(opts.Environment))

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			code = 1
		}
		return &ExitError{Command: name, Code: code}
	}
	return dserrors.CommandError{
		Command:    strings.Join(opts.Command, " "),
		Message:    err.Error(),
		Suggestion: "Check the command output above for details",
		Err:        err,
	}
}

// BuildEnvironment merges vars into base (KEY=VALUE entries). Later entries
// of base win over earlier ones; vars win over base unless keepExisting.
// The result is sorted.
func BuildEnvironment(base []string, vars map[string]string, keepExisting bool) []string {
	env := make(map[string]string, len(base)+len(vars))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range vars {
		if _, exists := env[k]; exists && keepExisting {
			continue
		}
		env[k] = v
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// ValidateCommand checks that command is non-empty and on PATH.
func ValidateCommand(command []string) error {
	if len(command) == 0 {
		return dserrors.UserError{
			Message:    "No command specified",
			Suggestion: "Provide a command after -- (e.g., opsession run -- terraform plan)",
		}
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return dserrors.WrapCommandNotFound(command[0], err)
	}
	return nil
}

func printEnvironment(w io.Writer, vars map[string]string) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "Adding %d environment variables:\n", len(keys))
	for _, k := range keys {
		fmt.Fprintf(w, "  %s=%s\n", k, MaskValue(vars[k]))
	}
}

// MaskValue hides all but a few characters of value.
func MaskValue(value string) string {
	switch n := len(value); {
	case n == 0:
		return "(empty)"
	case n <= 3:
		return strings.Repeat("*", n)
	case n <= 8:
		return value[:1] + strings.Repeat("*", n-2) + value[n-1:]
	default:
		return value[:3] + strings.Repeat("*", 8) + value[n-2:]
	}
}
