package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dserrors "github.com/systmms/opsession/internal/errors"
	"github.com/systmms/opsession/internal/logging"
	"github.com/systmms/opsession/internal/profile"
	"github.com/systmms/opsession/pkg/exec"
)

// SignOut ends the vault CLI session for account and forgets it locally:
// the profile entry, the exported variable and the cached password are
// removed. Local state is cleared even when the vault CLI reports an error.
func (m *Manager) SignOut(ctx context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if account == "" && m.current != nil {
		account = m.current.Account
	}
	if account == "" {
		account = m.discoverAccount(profile.SessionKeyPrefix)
	}
	if account == "" {
		return ErrNoAccount
	}

	key := profile.Key(profile.SessionKeyPrefix, account)
	args := []string{"signout", "--account", account}
	token, _ := m.env.LookupEnv(key)
	if token != "" {
		args = append(args, "--session", token)
	}

	_, stderr, runErr := m.executor.Execute(ctx, m.binary, args...)
	if runErr != nil && notSignedIn(stderr) {
		m.logger.Debug("Account %s was not signed in", account)
		runErr = nil
	}

	var errs []error
	if runErr != nil {
		if exec.IsNotFound(runErr) {
			errs = append(errs, dserrors.WrapCommandNotFound(m.binary, runErr))
		} else {
			msg := logging.Redact(strings.TrimSpace(string(stderr)), token, m.tokenFor(account))
			errs = append(errs, dserrors.CommandError{
				Command:    m.binary + " signout",
				ExitCode:   exec.ExitCode(runErr),
				Message:    msg,
				Suggestion: dserrors.SuggestionFor(msg),
				Err:        runErr,
			})
		}
	}

	err := m.profile.Remove(ctx, key)
	m.metrics.RecordProfileWrite("remove", err)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to remove %s from profile: %w", key, err))
	}
	if err := m.env.Unsetenv(key); err != nil {
		errs = append(errs, err)
	}
	if m.current != nil && m.current.Account == account {
		m.forget()
	}

	return errors.Join(errs...)
}

func (m *Manager) tokenFor(account string) string {
	if m.current != nil && m.current.Account == account {
		return m.current.Token
	}
	return ""
}

func notSignedIn(stderr []byte) bool {
	s := strings.ToLower(string(stderr))
	return strings.Contains(s, "not currently signed in") || strings.Contains(s, "no active session")
}
