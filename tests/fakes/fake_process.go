package fakes

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/systmms/opsession/internal/signin"
)

// Step is one exchange of a scripted sign-in child.
type Step struct {
	// Output is printed by the child when the step starts.
	Output string
	// AwaitInput makes the child wait for one write before the next step.
	AwaitInput bool
}

// FakeProcess is a scripted signin.Process. It prints each step's output in
// order and ends its output after the last step unless Hang is set.
type FakeProcess struct {
	Steps []Step
	// Hang keeps the output open after the last step, for timeout tests.
	Hang bool
	// WriteErr is returned by every Write when set.
	WriteErr error

	mu      sync.Mutex
	written []string
	input   chan struct{}
	done    chan struct{}
	pr      *io.PipeReader
	closed  bool
	once    sync.Once
}

// NewFakeProcess creates a process that plays steps.
func NewFakeProcess(steps ...Step) *FakeProcess {
	return &FakeProcess{Steps: steps}
}

func (p *FakeProcess) start() {
	p.once.Do(func() {
		p.input = make(chan struct{}, 16)
		p.done = make(chan struct{})
		pr, pw := io.Pipe()
		p.pr = pr

		go func() {
			for _, s := range p.Steps {
				if s.Output != "" {
					if _, err := pw.Write([]byte(s.Output)); err != nil {
						return
					}
				}
				if s.AwaitInput {
					select {
					case <-p.input:
					case <-p.done:
						_ = pw.Close()
						return
					}
				}
			}
			if p.Hang {
				<-p.done
			}
			_ = pw.Close()
		}()
	})
}

// Read returns the scripted output.
func (p *FakeProcess) Read(b []byte) (int, error) {
	p.start()
	return p.pr.Read(b)
}

// Write records a line sent to the child and releases a waiting step.
func (p *FakeProcess) Write(b []byte) (int, error) {
	p.start()
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.written = append(p.written, string(b))
	select {
	case p.input <- struct{}{}:
	default:
	}
	return len(b), nil
}

// Close stops the script.
func (p *FakeProcess) Close() error {
	p.start()
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.done)
		_ = p.pr.Close()
	}
	return nil
}

// Written returns every write in order.
func (p *FakeProcess) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

// Closed reports whether Close was called.
func (p *FakeProcess) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// SpawnCall records one Spawn invocation.
type SpawnCall struct {
	Argv []string
	Env  []string
}

// FakeSpawner hands out scripted processes in order. An entry in Errors at
// the same position as a spawn makes that spawn fail.
type FakeSpawner struct {
	Processes []*FakeProcess
	Errors    []error

	mu    sync.Mutex
	calls []SpawnCall
}

// NewFakeSpawner creates a spawner returning procs in order.
func NewFakeSpawner(procs ...*FakeProcess) *FakeSpawner {
	return &FakeSpawner{Processes: procs}
}

// Spawn implements signin.Spawner.
func (s *FakeSpawner) Spawn(_ context.Context, argv []string, env []string) (signin.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.calls)
	s.calls = append(s.calls, SpawnCall{Argv: argv, Env: env})

	if n < len(s.Errors) && s.Errors[n] != nil {
		return nil, s.Errors[n]
	}
	if n >= len(s.Processes) {
		return nil, errors.New("fake spawner: no process scripted")
	}
	return s.Processes[n], nil
}

// Calls returns every Spawn invocation.
func (s *FakeSpawner) Calls() []SpawnCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SpawnCall(nil), s.calls...)
}

// CodeReader returns fixed authentication codes.
type CodeReader struct {
	Codes []string
	Err   error

	mu    sync.Mutex
	calls int
}

// ReadCode implements signin.CodeReader.
func (c *CodeReader) ReadCode(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	if c.calls >= len(c.Codes) {
		return "", errors.New("fake code reader: no code scripted")
	}
	code := c.Codes[c.calls]
	c.calls++
	return code, nil
}

// Calls returns how many codes were read.
func (c *CodeReader) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
