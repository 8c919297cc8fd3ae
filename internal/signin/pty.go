package signin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// PTYSpawner starts sign-in commands attached to a pseudo-terminal, which the
// vault CLI requires before it will prompt for a password.
type PTYSpawner struct{}

// Spawn implements Spawner.
func (PTYSpawner) Spawn(ctx context.Context, argv []string, env []string) (Process, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 200})
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}
	return &ptyProcess{cmd: cmd, tty: f}, nil
}

type ptyProcess struct {
	cmd  *exec.Cmd
	tty  *os.File
	once sync.Once
	err  error
}

func (p *ptyProcess) Read(b []byte) (int, error)  { return p.tty.Read(b) }
func (p *ptyProcess) Write(b []byte) (int, error) { return p.tty.Write(b) }

// Close releases the terminal and reaps the child, killing it if it is
// still running.
func (p *ptyProcess) Close() error {
	p.once.Do(func() {
		closeErr := p.tty.Close()
		if p.cmd.ProcessState == nil && p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		waitErr := p.cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			waitErr = nil
		}
		p.err = errors.Join(closeErr, waitErr)
	})
	return p.err
}
