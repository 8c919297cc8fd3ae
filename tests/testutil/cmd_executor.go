// Package testutil provides testing utilities for opsession.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/systmms/opsession/pkg/exec"
)

// MockCommandExecutor provides a configurable exec.CommandExecutor for
// tests that drive the vault CLI non-interactively.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps command patterns to their mock responses.
	// Key format: "command arg1 arg2" (space-separated command and args)
	Responses map[string]MockResponse

	// DefaultResponse is used when no matching pattern is found.
	DefaultResponse *MockResponse

	// RecordedCalls stores all calls made to Execute for verification.
	RecordedCalls []RecordedCall

	// StrictMode causes Execute to fail if no matching response is found.
	StrictMode bool
}

var _ exec.CommandExecutor = (*MockCommandExecutor)(nil)

// MockResponse defines the expected output for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command string
	Args    []string
}

// Line returns the call as a single space-separated string.
func (c RecordedCall) Line() string {
	return buildKey(c.Command, c.Args)
}

// NewMockCommandExecutor creates a new mock executor with empty responses.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses: make(map[string]MockResponse),
	}
}

// Execute returns the mocked response for the given command.
func (m *MockCommandExecutor) Execute(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordedCalls = append(m.RecordedCalls, RecordedCall{
		Command: name,
		Args:    append([]string(nil), args...),
	})

	key := buildKey(name, args)

	if resp, ok := m.Responses[key]; ok {
		return resp.Stdout, resp.Stderr, resp.Err
	}

	// Longest prefix wins so specific patterns beat general ones.
	patterns := make([]string, 0, len(m.Responses))
	for p := range m.Responses {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool { return len(patterns[i]) > len(patterns[j]) })
	for _, p := range patterns {
		if matchesPattern(key, p) {
			resp := m.Responses[p]
			return resp.Stdout, resp.Stderr, resp.Err
		}
	}

	if m.DefaultResponse != nil {
		return m.DefaultResponse.Stdout, m.DefaultResponse.Stderr, m.DefaultResponse.Err
	}

	if m.StrictMode {
		return nil, nil, fmt.Errorf("mock: no response configured for command: %s", key)
	}

	return []byte{}, []byte{}, nil
}

func buildKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// matchesPattern reports whether key starts with pattern. A "*" in the
// pattern ends the literal prefix.
func matchesPattern(key, pattern string) bool {
	if i := strings.Index(pattern, "*"); i >= 0 {
		pattern = pattern[:i]
	}
	return strings.HasPrefix(key, pattern)
}

// AddResponse registers a mock response for a specific command pattern.
func (m *MockCommandExecutor) AddResponse(commandPattern string, response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandPattern] = response
}

// AddJSONResponse is a convenience method to add a JSON response.
func (m *MockCommandExecutor) AddJSONResponse(commandPattern string, jsonData string) {
	m.AddResponse(commandPattern, MockResponse{Stdout: []byte(jsonData)})
}

// AddErrorResponse adds an error response for a command pattern.
func (m *MockCommandExecutor) AddErrorResponse(commandPattern string, errMsg string, exitCode int) {
	m.AddResponse(commandPattern, MockResponse{
		Stderr: []byte(errMsg),
		Err:    fmt.Errorf("exit status %d: %s", exitCode, errMsg),
	})
}

// Calls returns all recorded calls.
func (m *MockCommandExecutor) Calls() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedCall(nil), m.RecordedCalls...)
}

// CallCount returns the number of times Execute was called.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// AssertCalledWith verifies that a call starting with prefix was made.
func (m *MockCommandExecutor) AssertCalledWith(t interface{ Error(args ...interface{}) }, prefix string) bool {
	for _, c := range m.Calls() {
		if strings.HasPrefix(c.Line(), prefix) {
			return true
		}
	}
	t.Error("expected a call starting with", prefix)
	return false
}

// AssertNotCalled verifies that Execute was never called.
func (m *MockCommandExecutor) AssertNotCalled(t interface{ Error(args ...interface{}) }) bool {
	if n := m.CallCount(); n > 0 {
		t.Error("expected no commands, but", n, "were run")
		return false
	}
	return true
}

// OnePasswordMockResponses provides pre-configured responses for the 1Password CLI.
type OnePasswordMockResponses struct{}

// VaultList returns a mock op vault list response.
func (OnePasswordMockResponses) VaultList() MockResponse {
	return MockResponse{Stdout: []byte(`[
		{"id": "vlt1", "name": "Private"},
		{"id": "vlt2", "name": "Shared"}
	]`)}
}

// ItemList returns a mock op item list response.
func (OnePasswordMockResponses) ItemList() MockResponse {
	return MockResponse{Stdout: []byte(`[
		{"id": "itm1", "title": "Email", "category": "LOGIN", "vault": {"id": "vlt1", "name": "Private"}},
		{"id": "doc1", "title": "config.json", "category": "DOCUMENT", "vault": {"id": "vlt1", "name": "Private"}}
	]`)}
}

// ItemGet returns a mock op item get response.
func (OnePasswordMockResponses) ItemGet(id, title, username, password string) MockResponse {
	return MockResponse{Stdout: []byte(fmt.Sprintf(`{
		"id": "%s",
		"title": "%s",
		"category": "LOGIN",
		"vault": {"id": "vlt1", "name": "Private"},
		"fields": [
			{"id": "username", "type": "STRING", "purpose": "USERNAME", "label": "username", "value": "%s"},
			{"id": "password", "type": "CONCEALED", "purpose": "PASSWORD", "label": "password", "value": "%s"}
		]
	}`, id, title, username, password))}
}

// NotSignedIn returns the error op prints for a missing or expired session.
func (OnePasswordMockResponses) NotSignedIn() MockResponse {
	msg := "[ERROR] 2024/01/15 10:30:00 You are not currently signed in. Please run `op signin --help` for instructions"
	return MockResponse{Stderr: []byte(msg), Err: fmt.Errorf("exit status 1")}
}

// ItemNotFound returns the error op prints for an unknown item.
func (OnePasswordMockResponses) ItemNotFound(title string) MockResponse {
	msg := fmt.Sprintf("[ERROR] 2024/01/15 10:30:00 %q isn't an item. Specify the item with its UUID, name, or domain.", title)
	return MockResponse{Stderr: []byte(msg), Err: fmt.Errorf("exit status 1")}
}
