// Package prompt asks the user for sign-in details on the terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/systmms/opsession/internal/signin"
)

// ErrNonInteractive is returned when input is needed but prompting is disabled.
var ErrNonInteractive = errors.New("input required but running non-interactively")

// Terminal prompts on a reader/writer pair, masking secrets when the reader
// is a terminal.
type Terminal struct {
	in             io.Reader
	out            io.Writer
	reader         *bufio.Reader
	nonInteractive bool

	// ttyFd reports the descriptor behind in when it is a terminal.
	ttyFd        func(io.Reader) (int, bool)
	readPassword func(fd int) ([]byte, error)
}

var _ signin.CodeReader = (*Terminal)(nil)

// New returns a Terminal over in and out.
func New(in io.Reader, out io.Writer, nonInteractive bool) *Terminal {
	return &Terminal{
		in:             in,
		out:            out,
		reader:         bufio.NewReader(in),
		nonInteractive: nonInteractive,
		ttyFd:          terminalFd,
		readPassword:   term.ReadPassword,
	}
}

func terminalFd(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	return int(f.Fd()), true
}

// Stdio returns a Terminal over stdin, writing prompts to stderr so stdout
// stays clean for eval.
func Stdio(nonInteractive bool) *Terminal {
	return New(os.Stdin, os.Stderr, nonInteractive)
}

// Line asks for a line of text. An empty answer yields def.
func (t *Terminal) Line(ctx context.Context, label, def string) (string, error) {
	if err := t.ready(ctx); err != nil {
		return "", err
	}
	if def != "" {
		fmt.Fprintf(t.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(t.out, "%s: ", label)
	}

	line, err := t.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

// Confirm asks a y/n question.
func (t *Terminal) Confirm(ctx context.Context, label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		if err := t.ready(ctx); err != nil {
			return false, err
		}
		fmt.Fprintf(t.out, "%s (%s): ", label, hint)

		line, err := t.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(t.out, "Please answer y or n.")
	}
}

// Secret asks for a value without echoing it. Input already read ahead
// into the line buffer, such as a pasted answer, is consumed first.
func (t *Terminal) Secret(ctx context.Context, label string) ([]byte, error) {
	if err := t.ready(ctx); err != nil {
		return nil, err
	}
	fmt.Fprintf(t.out, "%s: ", label)

	if fd, ok := t.ttyFd(t.in); ok && t.reader.Buffered() == 0 {
		b, err := t.readPassword(fd)
		fmt.Fprintln(t.out)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		return b, nil
	}

	line, err := t.readLine()
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

// ReadCode asks for a six-digit authentication code, re-asking until the
// answer has the right shape.
func (t *Terminal) ReadCode(ctx context.Context) (string, error) {
	for {
		code, err := t.Line(ctx, "Enter your six-digit authentication code", "")
		if err != nil {
			return "", err
		}
		if signin.ValidCode(code) {
			return code, nil
		}
		fmt.Fprintln(t.out, "The code must be six digits.")
	}
}

// Notify prints a message for the user.
func (t *Terminal) Notify(format string, args ...interface{}) {
	fmt.Fprintf(t.out, format+"\n", args...)
}

func (t *Terminal) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.nonInteractive {
		return ErrNonInteractive
	}
	return nil
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
