package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/opsession/internal/logging"
	"github.com/systmms/opsession/internal/metrics"
	"github.com/systmms/opsession/internal/profile"
	"github.com/systmms/opsession/internal/secure"
	"github.com/systmms/opsession/internal/signin"
)

// Sign-in flows, used as metric labels.
const (
	flowFull  = "full"
	flowShort = "short"
	flowSSO   = "sso"
)

// EnsureSession returns a usable session for acct, signing in only when no
// token is available. A token already exported as OP_SESSION_<account> or
// saved in the profile is reused without contacting the vault CLI.
//
// secret, when non-nil, is used as the password instead of prompting.
func (m *Manager) EnsureSession(ctx context.Context, acct Account, secret []byte) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.current; s != nil && (acct.Shorthand == "" || acct.Shorthand == s.Account) {
		return s, nil
	}

	if acct.Shorthand == "" {
		acct.Shorthand = m.discoverAccount(profile.SessionKeyPrefix)
	}
	if acct.Shorthand != "" {
		if s := m.reuse(acct.Shorthand); s != nil {
			return s, nil
		}
	}

	return m.signin(ctx, acct, secret)
}

// SignIn signs in even when a reusable token exists, e.g. after the vault
// CLI rejected the current one. When secret is nil and this process signed
// in before, the cached password is used instead of prompting.
func (m *Manager) SignIn(ctx context.Context, acct Account, secret []byte) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if acct.Shorthand == "" && m.current != nil {
		acct.Shorthand = m.current.Account
	}
	if acct.Shorthand == "" {
		acct.Shorthand = m.discoverAccount(profile.SessionKeyPrefix)
	}
	return m.signin(ctx, acct, secret)
}

// reuse returns a session from the environment or the profile.
func (m *Manager) reuse(account string) *Session {
	key := profile.Key(profile.SessionKeyPrefix, account)

	if token, ok := m.env.LookupEnv(key); ok {
		m.logger.Debug("Reusing session for %s from environment", account)
		m.metrics.RecordReuse(SourceEnv)
		return m.activate(&Session{Account: account, Token: token, Created: m.now(), Source: SourceEnv})
	}

	token, err := m.profile.Get(key)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			m.logger.Warn("Failed to read %s from profile: %v", key, err)
		}
		return nil
	}
	if token == "" {
		return nil
	}

	m.logger.Debug("Reusing session for %s from profile", account)
	m.metrics.RecordReuse(SourceProfile)
	if err := m.env.Setenv(key, token); err != nil {
		m.logger.Warn("Failed to export %s: %v", key, err)
	}
	return m.activate(&Session{Account: account, Token: token, Created: m.now(), Source: SourceProfile})
}

func (m *Manager) activate(s *Session) *Session {
	m.current = s
	return s
}

// discoverAccount returns the account of the first prefix_<account> entry
// in the profile, or "".
func (m *Manager) discoverAccount(prefix string) string {
	entries, err := m.profile.Lookup(prefix+"_", true)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if account, ok := strings.CutPrefix(e.Key, prefix+"_"); ok && account != "" {
			return account
		}
	}
	return ""
}

// firstUse reports whether the vault CLI has never been signed into from
// this profile.
func (m *Manager) firstUse() bool {
	entries, err := m.profile.Lookup(profile.SessionKeyPrefix, true)
	return err != nil || len(entries) == 0
}

// signin runs the sign-in state machine: up to MaxAttempts driver runs, each
// either producing a token or a rejection.
func (m *Manager) signin(ctx context.Context, acct Account, secret []byte) (*Session, error) {
	device, err := m.ensureDevice(ctx)
	if err != nil {
		return nil, err
	}

	flow := flowShort
	if acct.Email != "" || m.firstUse() {
		flow = flowFull
		if acct, err = m.interview(ctx, acct); err != nil {
			return nil, err
		}
	}
	if acct.Shorthand == "" {
		if acct.Shorthand, err = m.askAccount(ctx, ""); err != nil {
			return nil, err
		}
	}

	req := signin.Request{Env: []string{profile.DeviceKey + "=" + device}}
	if flow == flowFull {
		req.Command = signin.FullCommand(m.binary, acct.Domain, acct.Email, acct.Shorthand)
		req.SecretKey = acct.SecretKey
	} else {
		req.Command = signin.ShortCommand(m.binary, acct.Shorthand)
	}

	explicit := secret != nil
	if explicit {
		secret = bytes.Clone(secret)
	} else {
		secret = m.recoverSecret()
	}
	defer func() { clear(secret) }()

	for attempt := 1; ; attempt++ {
		if secret == nil {
			if secret, err = m.prompter.Secret(ctx, passwordLabel(acct)); err != nil {
				return nil, fmt.Errorf("read password: %w", err)
			}
		}
		req.Secret = secret

		start := m.now()
		res, err := m.auth.SignIn(ctx, req)
		elapsed := m.now().Sub(start)
		if err != nil {
			m.metrics.RecordSignIn(flow, metrics.OutcomeError, elapsed)
			return nil, err
		}

		if !res.Rejected && !signin.IsAuthFailure(res.Token) {
			m.metrics.RecordSignIn(flow, metrics.OutcomeSuccess, elapsed)
			return m.established(ctx, acct, res, secret)
		}

		m.metrics.RecordSignIn(flow, metrics.OutcomeRejected, elapsed)
		m.logger.Debug("Sign-in attempt %d of %d rejected", attempt, MaxAttempts)

		if attempt >= MaxAttempts {
			m.metrics.RecordForgotten()
			return nil, &ForgottenPasswordError{Attempts: attempt, GuidanceURL: ForgottenPasswordURL}
		}
		if explicit {
			// A caller-supplied secret is resubmitted as is until the bound.
			continue
		}

		m.prompter.Notify("That's not the right password, try again.")
		clear(secret)
		secret = nil
	}
}

// established persists a successful sign-in.
func (m *Manager) established(ctx context.Context, acct Account, res signin.Result, secret []byte) (*Session, error) {
	s := &Session{
		Account: acct.Shorthand,
		Token:   strings.TrimSpace(res.Token),
		Created: m.now(),
		Source:  SourceSignIn,
		MFA:     res.MFA,
	}

	m.cacheSecret(secret, s.Token)

	key := profile.Key(profile.SessionKeyPrefix, s.Account)
	if err := m.env.Setenv(key, s.Token); err != nil {
		m.logger.Warn("Failed to export %s: %v", key, err)
	}
	err := m.profile.Update(ctx, key, s.Token)
	m.metrics.RecordProfileWrite("update", err)
	if err != nil {
		m.activate(s)
		return s, fmt.Errorf("signed in but failed to save session to profile: %w", err)
	}

	m.logger.Debug("Signed in to %s (token %s)", s.Account, logging.Secret(s.Token))
	return m.activate(s), nil
}

// cacheSecret replaces the cached password with one keyed on token.
func (m *Manager) cacheSecret(secret []byte, token string) {
	if m.cached != nil {
		m.cached.ciphertext.Destroy()
		m.cached = nil
	}

	ct, err := secure.Encode(secret, token)
	if err != nil {
		m.logger.Debug("Not caching password: %v", err)
		return
	}
	buf, err := secure.NewSecureString(ct)
	if err != nil {
		m.logger.Debug("Not caching password: %v", err)
		return
	}
	m.cached = &cachedSecret{ciphertext: buf, token: token}
}

// recoverSecret decrypts the cached password with the token it was cached
// under, or returns nil.
func (m *Manager) recoverSecret() []byte {
	if m.cached == nil {
		return nil
	}
	ct, err := m.cached.ciphertext.Reveal()
	if err != nil {
		m.logger.Debug("Cached password unavailable: %v", err)
		return nil
	}
	secret, err := secure.Decode(ct, m.cached.token)
	if err != nil {
		m.logger.Warn("Cached password could not be decrypted, asking again")
		return nil
	}
	m.logger.Debug("Reusing cached password from previous session")
	return secret
}

// ensureDevice makes OP_DEVICE available in the environment and profile.
func (m *Manager) ensureDevice(ctx context.Context) (string, error) {
	if id, ok := m.env.LookupEnv(profile.DeviceKey); ok && id != "" {
		return id, nil
	}
	id, err := m.profile.EnsureDeviceID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to set up device id: %w", err)
	}
	if err := m.env.Setenv(profile.DeviceKey, id); err != nil {
		m.logger.Warn("Failed to export %s: %v", profile.DeviceKey, err)
	}
	return id, nil
}

// interview completes acct for a first-time sign-in.
func (m *Manager) interview(ctx context.Context, acct Account) (Account, error) {
	var err error
	if acct.Email == "" {
		if acct.Email, err = m.prompter.Line(ctx, "Please input your email address used for 1Password account", ""); err != nil {
			return acct, fmt.Errorf("read email: %w", err)
		}
	}

	if acct.Shorthand == "" {
		acct.Shorthand = AccountFromEmail(acct.Email)
	}

	if acct.Domain == "" {
		domain := DefaultDomain(acct.Shorthand)
		ok, err := m.prompter.Confirm(ctx, fmt.Sprintf("Is your 1Password domain: %s", domain), true)
		if err != nil {
			return acct, err
		}
		if !ok {
			if domain, err = m.prompter.Line(ctx, "Please input your 1Password domain in the format <something>.1password.com", ""); err != nil {
				return acct, fmt.Errorf("read domain: %w", err)
			}
		}
		acct.Domain = domain

		ok, err = m.prompter.Confirm(ctx, fmt.Sprintf("Is your 1Password account name: %s", acct.Shorthand), true)
		if err != nil {
			return acct, err
		}
		if !ok {
			if acct.Shorthand, err = m.askAccount(ctx, ""); err != nil {
				return acct, err
			}
		}
	}

	if acct.SecretKey == "" {
		if acct.SecretKey, err = m.secretKey(ctx, acct.Shorthand); err != nil {
			return acct, err
		}
	}
	return acct, nil
}

func (m *Manager) secretKey(ctx context.Context, account string) (string, error) {
	if m.secretKeys != nil {
		if key, err := m.secretKeys.SecretKey(account); err == nil && key != "" {
			m.logger.Debug("Using Secret Key for %s from keychain", account)
			return key, nil
		}
	}

	b, err := m.prompter.Secret(ctx, "Please input your 1Password secret key")
	if err != nil {
		return "", fmt.Errorf("read secret key: %w", err)
	}
	key := strings.TrimSpace(string(b))
	clear(b)

	if m.secretKeys != nil {
		if err := m.secretKeys.SaveSecretKey(account, key); err != nil {
			m.logger.Debug("Secret Key not saved to keychain: %v", err)
		}
	}
	return key, nil
}

func (m *Manager) askAccount(ctx context.Context, def string) (string, error) {
	account, err := m.prompter.Line(ctx, "Please input your 1Password account name e.g. acme from acme.1password.com", def)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoAccount, err)
	}
	if account = strings.TrimSpace(account); account == "" {
		return "", ErrNoAccount
	}
	return account, nil
}

func passwordLabel(acct Account) string {
	if acct.Email != "" {
		return fmt.Sprintf("Please input your 1Password master password for %s", acct.Email)
	}
	return "Please input your 1Password master password"
}

// AccountFromEmail returns the first label of the email's domain, e.g. acme
// for jo@acme.com.
func AccountFromEmail(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	label, _, _ := strings.Cut(domain, ".")
	return label
}

// DefaultDomain returns the sign-in address for an account shorthand.
func DefaultDomain(account string) string {
	return account + ".1password.com"
}
