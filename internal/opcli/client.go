// Package opcli runs item, document and vault commands of the 1Password
// CLI on behalf of a session that it makes sure exists first.
package opcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/opsession/internal/errors"
	"github.com/systmms/opsession/internal/logging"
	"github.com/systmms/opsession/internal/session"
	"github.com/systmms/opsession/pkg/exec"
)

// DefaultVault is used when no vault is given.
const DefaultVault = "Private"

var (
	// ErrAuthRequired is returned when the vault CLI rejected the session
	// token. The caller decides whether to sign in again.
	ErrAuthRequired = errors.New("1Password session is not valid, sign in again")

	// ErrNotFound is returned for unknown items, documents and fields.
	ErrNotFound = errors.New("not found")
)

// Sessions provides the session commands run under.
type Sessions interface {
	EnsureSession(ctx context.Context, acct session.Account, secret []byte) (*session.Session, error)
	SignOut(ctx context.Context, account string) error
}

// Options configures a Client.
type Options struct {
	Sessions Sessions
	Executor exec.CommandExecutor
	Account  session.Account
	Binary   string
	// DefaultVault replaces an empty vault argument; default "Private".
	DefaultVault string
	Logger       *logging.Logger
}

// Client is the VaultClient.
type Client struct {
	sessions     Sessions
	exec         exec.CommandExecutor
	account      session.Account
	binary       string
	defaultVault string
	logger       *logging.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		sessions:     opts.Sessions,
		exec:         opts.Executor,
		account:      opts.Account,
		binary:       opts.Binary,
		defaultVault: opts.DefaultVault,
		logger:       opts.Logger,
	}
	if c.exec == nil {
		c.exec = exec.DefaultExecutor()
	}
	if c.binary == "" {
		c.binary = "op"
	}
	if c.defaultVault == "" {
		c.defaultVault = DefaultVault
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	return c
}

// run ensures a session and runs the vault CLI with args under it.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	s, err := c.sessions.EnsureSession(ctx, c.account, nil)
	if err != nil {
		return nil, err
	}

	full := append([]string{}, args...)
	if s.Account != "" {
		full = append(full, "--account", s.Account)
	}
	full = append(full, "--session", s.Token)

	c.logger.Debug("Running %s %s", c.binary, strings.Join(args, " "))
	stdout, stderr, err := c.exec.Execute(ctx, c.binary, full...)
	if err == nil {
		return stdout, nil
	}
	if exec.IsNotFound(err) {
		return nil, dserrors.WrapCommandNotFound(c.binary, err)
	}

	msg := logging.Redact(strings.TrimSpace(string(stderr)), s.Token)
	cmdErr := dserrors.CommandError{
		Command:    c.binary + " " + strings.Join(args, " "),
		ExitCode:   exec.ExitCode(err),
		Message:    msg,
		Suggestion: dserrors.SuggestionFor(msg),
		Err:        err,
	}

	switch {
	case authRequired(msg):
		return nil, fmt.Errorf("%w: %w", ErrAuthRequired, cmdErr)
	case notFound(msg):
		return nil, fmt.Errorf("%w: %w", ErrNotFound, cmdErr)
	}
	return nil, cmdErr
}

func authRequired(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "not currently signed in") ||
		strings.Contains(m, "session expired") ||
		strings.Contains(m, "invalid session") ||
		strings.Contains(m, "authentication required") ||
		strings.Contains(m, "401")
}

func notFound(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "isn't an item") ||
		strings.Contains(m, "isn't a document") ||
		strings.Contains(m, "isn't a vault") ||
		strings.Contains(m, "not found")
}

func (c *Client) vault(v string) string {
	if v == "" {
		return c.defaultVault
	}
	return v
}

func decode(out []byte, v any, what string) error {
	if err := json.Unmarshal(out, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", what, err)
	}
	return nil
}

// ListVaults returns every vault the session can see.
func (c *Client) ListVaults(ctx context.Context) ([]Vault, error) {
	out, err := c.run(ctx, "vault", "list", "--format", "json")
	if err != nil {
		return nil, err
	}
	var vaults []Vault
	if err := decode(out, &vaults, "vault list"); err != nil {
		return nil, err
	}
	return vaults, nil
}

// ListItems returns the items of vault.
func (c *Client) ListItems(ctx context.Context, vault string) ([]ItemSummary, error) {
	out, err := c.run(ctx, "item", "list", "--vault", c.vault(vault), "--format", "json")
	if err != nil {
		return nil, err
	}
	var items []ItemSummary
	if err := decode(out, &items, "item list"); err != nil {
		return nil, err
	}
	return items, nil
}

// GetUUID returns the id of the item titled title in vault.
func (c *Client) GetUUID(ctx context.Context, title, vault string) (string, error) {
	items, err := c.ListItems(ctx, vault)
	if err != nil {
		return "", err
	}
	for _, it := range items {
		if it.Title == title {
			return it.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q in vault %q", ErrNotFound, title, c.vault(vault))
}

// GetItem returns the full item with the given id.
func (c *Client) GetItem(ctx context.Context, id string) (*Item, error) {
	out, err := c.run(ctx, "item", "get", id, "--format", "json")
	if err != nil {
		return nil, err
	}
	var item Item
	if err := decode(out, &item, "item"); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetFields returns the named fields of the item with the given id, keyed
// by label.
func (c *Client) GetFields(ctx context.Context, id string, labels ...string) (map[string]string, error) {
	if len(labels) == 0 {
		return nil, errors.New("no fields requested")
	}
	out, err := c.run(ctx, "item", "get", id, "--fields", "label="+strings.Join(labels, ",label="))
	if err != nil {
		return nil, err
	}

	text := strings.TrimRight(string(out), "\r\n")
	values := []string{text}
	if len(labels) > 1 {
		values = strings.SplitN(text, ",", len(labels))
	}
	if len(values) != len(labels) {
		return nil, fmt.Errorf("expected %d field values, got %d", len(labels), len(values))
	}

	fields := make(map[string]string, len(labels))
	for i, l := range labels {
		fields[l] = values[i]
	}
	return fields, nil
}

// GetDocument returns the structured content of the document titled title.
// JSON documents are tried first, then YAML.
func (c *Client) GetDocument(ctx context.Context, title, vault string) (map[string]any, error) {
	id, err := c.GetUUID(ctx, title, vault)
	if err != nil {
		return nil, err
	}
	out, err := c.run(ctx, "document", "get", id, "--vault", c.vault(vault))
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err == nil && doc != nil {
		return doc, nil
	}
	doc = nil
	if err := yaml.Unmarshal(out, &doc); err == nil && doc != nil {
		return doc, nil
	}
	return nil, fmt.Errorf("%w: %q in vault %q is not a JSON or YAML document", ErrNotFound, title, c.vault(vault))
}

// PutDocument uploads the local file as a document titled title.
func (c *Client) PutDocument(ctx context.Context, file, title, vault string) error {
	if _, err := os.Stat(file); err != nil {
		return dserrors.SimplifyError(err)
	}
	_, err := c.run(ctx, "document", "create", file, "--title", title, "--vault", c.vault(vault))
	return err
}

// DeleteDocument removes the document titled title.
func (c *Client) DeleteDocument(ctx context.Context, title, vault string) error {
	id, err := c.GetUUID(ctx, title, vault)
	if err != nil {
		return err
	}
	_, err = c.run(ctx, "document", "delete", id, "--vault", c.vault(vault))
	return err
}

// UpdateDocument replaces the document titled title with the local file,
// then removes the local file.
func (c *Client) UpdateDocument(ctx context.Context, file, title, vault string) error {
	if _, err := os.Stat(file); err != nil {
		return dserrors.SimplifyError(err)
	}
	if err := c.DeleteDocument(ctx, title, vault); err != nil {
		return err
	}
	if err := c.PutDocument(ctx, file, title, vault); err != nil {
		return err
	}
	if err := os.Remove(file); err != nil {
		return fmt.Errorf("document updated but failed to remove %s: %w", file, err)
	}
	return nil
}

// Signout ends the session of the configured account.
func (c *Client) Signout(ctx context.Context) error {
	return c.sessions.SignOut(ctx, c.account.Shorthand)
}
