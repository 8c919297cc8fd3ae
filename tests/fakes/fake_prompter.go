package fakes

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoAnswer is returned by FakePrompter when its script runs out.
var ErrNoAnswer = errors.New("fake prompter: no answer scripted")

// FakePrompter answers prompts from scripted queues and records what was
// asked.
type FakePrompter struct {
	Lines    []string
	Confirms []bool
	Secrets  []string

	mu      sync.Mutex
	asked   []string
	notices []string
}

// Line returns the next scripted line, or def when the answer is empty.
func (p *FakePrompter) Line(_ context.Context, label, def string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, label)
	if len(p.Lines) == 0 {
		return "", ErrNoAnswer
	}
	v := p.Lines[0]
	p.Lines = p.Lines[1:]
	if v == "" {
		return def, nil
	}
	return v, nil
}

// Confirm returns the next scripted answer.
func (p *FakePrompter) Confirm(_ context.Context, label string, _ bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, label)
	if len(p.Confirms) == 0 {
		return false, ErrNoAnswer
	}
	v := p.Confirms[0]
	p.Confirms = p.Confirms[1:]
	return v, nil
}

// Secret returns the next scripted secret.
func (p *FakePrompter) Secret(_ context.Context, label string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, label)
	if len(p.Secrets) == 0 {
		return nil, ErrNoAnswer
	}
	v := p.Secrets[0]
	p.Secrets = p.Secrets[1:]
	return []byte(v), nil
}

// Notify records a message.
func (p *FakePrompter) Notify(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, fmt.Sprintf(format, args...))
}

// Asked returns every prompt label in order.
func (p *FakePrompter) Asked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.asked...)
}

// Notices returns every Notify message in order.
func (p *FakePrompter) Notices() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.notices...)
}

// FakeEnv is an in-memory process environment.
type FakeEnv struct {
	mu   sync.Mutex
	vars map[string]string
}

// NewFakeEnv creates an environment holding kv pairs.
func NewFakeEnv(kv map[string]string) *FakeEnv {
	vars := make(map[string]string, len(kv))
	for k, v := range kv {
		vars[k] = v
	}
	return &FakeEnv{vars: vars}
}

// LookupEnv returns the value of key.
func (e *FakeEnv) LookupEnv(key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.vars[key]
	return v, ok
}

// Setenv sets key.
func (e *FakeEnv) Setenv(key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[key] = value
	return nil
}

// Unsetenv removes key.
func (e *FakeEnv) Unsetenv(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.vars, key)
	return nil
}
