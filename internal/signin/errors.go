package signin

import (
	"errors"
	"fmt"
	"os/exec"
)

var (
	// ErrEmptyCommand is returned when Request.Command is empty.
	ErrEmptyCommand = errors.New("sign-in command is empty")

	// ErrTimeout is returned when a wait point elapses without a match.
	ErrTimeout = errors.New("timed out waiting for the vault CLI")

	// ErrProcessExited is returned when the child ends before the handshake completes.
	ErrProcessExited = errors.New("vault CLI exited before completing sign-in")

	// ErrSecretKeyRequired is returned when the child prompts for a Secret Key
	// that the request does not carry.
	ErrSecretKeyRequired = errors.New("vault CLI asked for a Secret Key but none was provided")

	// ErrInvalidCode is returned for authentication codes that are not six digits.
	ErrInvalidCode = errors.New("authentication code must be six digits")

	// ErrUnexpectedPasswordPrompt is returned when an SSO sign-in asks for a password.
	ErrUnexpectedPasswordPrompt = errors.New("vault CLI asked for a password during SSO sign-in")
)

// SpawnError means the child could not be created, died, timed out or
// refused input before sign-in completed. The driver respawns once on
// retryable spawn errors before surfacing them.
type SpawnError struct {
	Op  string
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("sign-in %s: %v", e.Op, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

func (e *SpawnError) retryable() bool {
	switch {
	case errors.Is(e.Err, ErrEmptyCommand),
		errors.Is(e.Err, ErrSecretKeyRequired),
		errors.Is(e.Err, exec.ErrNotFound):
		return false
	}
	return true
}

// ParseError means the output did not contain exactly one token line. It
// signals that the vault CLI output format changed and is never retried.
type ParseError struct {
	Reason string
	// Lines is the number of candidate token lines found.
	Lines int
}

func (e *ParseError) Error() string {
	return "unexpected sign-in output: " + e.Reason
}

// CLIError carries an error the vault CLI printed that is not a credential
// rejection, e.g. an unknown account or a network failure.
type CLIError struct {
	Output string
}

func (e *CLIError) Error() string {
	return "vault CLI error: " + firstLine(e.Output)
}
