package errors

import (
	"errors"
	"fmt"
	"strings"
)

const hintMarker = "💡 "

// writeHint appends an indented suggestion line when s is non-empty.
func writeHint(b *strings.Builder, prefix, s string) {
	if s == "" {
		return
	}
	b.WriteString("\n  ")
	b.WriteString(hintMarker)
	b.WriteString(prefix)
	b.WriteString(s)
}

// UserError is a failure worth showing to a person at the terminal, with an
// optional detail line and next step.
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var b strings.Builder
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	}
	if e.Details != "" {
		b.WriteString("\n  Details: ")
		b.WriteString(e.Details)
	}
	writeHint(&b, "Try: ", e.Suggestion)
	return b.String()
}

func (e UserError) Unwrap() error { return e.Err }

// ConfigError reports a rejected config file or environment value.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("Configuration error")
	if e.Field != "" {
		fmt.Fprintf(&b, " in field '%s'", e.Field)
	}
	if e.Value != nil {
		fmt.Fprintf(&b, " (value: %v)", e.Value)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	writeHint(&b, "", e.Suggestion)
	return b.String()
}

// CommandError represents a failed vault CLI invocation
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
	Err        error
}

func (e CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	writeHint(&b, "", e.Suggestion)
	return b.String()
}

func (e CommandError) Unwrap() error { return e.Err }

const installHint = "Install 1Password CLI: https://developer.1password.com/docs/cli/get-started/"

// hints is checked in order; the first entry with a matching needle wins.
var hints = []struct {
	needles []string
	hint    string
}{
	{[]string{"not currently signed in", "not signed in"}, "Run 'opsession signin' to authenticate with 1Password"},
	{[]string{"session expired", "invalid session token"}, "Your 1Password session has expired. Run 'opsession signin' again"},
	{[]string{"401", "unauthorized"}, "Check your master password, or run 'opsession signin' again"},
	{[]string{"isn't an item", "not found"}, "Verify the item exists. Use 'opsession item list --vault <vault>' to see available items"},
	{[]string{"account key length", "secret key"}, "Check the Secret Key in your 1Password Emergency Kit"},
	{[]string{"command not found", "executable file not found"}, installHint},
	{[]string{"timeout", "timed out"}, "The op call ran out of time. Check connectivity to your sign-in address and retry"},
	{[]string{"connection refused", "no such host"}, "Unable to connect. Check your network and account domain"},
}

// SuggestionFor maps known vault CLI failure text to a next step for the user.
// It returns an empty string when nothing useful can be said.
func SuggestionFor(output string) string {
	out := strings.ToLower(output)
	for _, h := range hints {
		for _, n := range h.needles {
			if strings.Contains(out, n) {
				return h.hint
			}
		}
	}
	return ""
}

// WrapCommandNotFound turns a failed executable lookup into a CommandError
// that says how to get the binary.
func WrapCommandNotFound(command string, err error) error {
	hint := installHint
	if command != "op" {
		hint = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}
	return CommandError{Command: command, Message: "command not found", Suggestion: hint, Err: err}
}

// rootCause follows the Unwrap chain to the innermost error.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// SimplifyError rewrites low-level failures into UserError or ConfigError.
// Errors that already carry one of this package's types pass through.
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var (
		userErr UserError
		cfgErr  ConfigError
		cmdErr  CommandError
	)
	if errors.As(err, &userErr) || errors.As(err, &cfgErr) || errors.As(err, &cmdErr) {
		return err
	}

	msg := rootCause(err).Error()
	switch {
	case strings.Contains(msg, "yaml:"):
		return ConfigError{
			Message:    "Invalid YAML format in config file",
			Suggestion: "Look for bad indentation or an unquoted value containing ':'",
		}
	case strings.Contains(msg, "permission denied"):
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions on your shell profile and config",
			Err:        err,
		}
	case strings.Contains(msg, "no such file or directory"):
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Check that the profile or config path exists",
			Err:        err,
		}
	}
	return err
}
