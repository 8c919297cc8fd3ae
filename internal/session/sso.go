package session

import (
	"context"
	"fmt"

	"github.com/systmms/opsession/internal/metrics"
	"github.com/systmms/opsession/internal/profile"
	"github.com/systmms/opsession/internal/signin"
)

// SignInSSO signs in through the browser and records OP_SSO_<account>="true"
// in the profile. No token is returned by the vault CLI for this flow; it
// keeps the session itself.
func (m *Manager) SignInSSO(ctx context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if account == "" {
		account = m.discoverAccount(profile.SSOKeyPrefix)
	}
	if account == "" {
		if account, err = m.askAccount(ctx, ""); err != nil {
			return err
		}
	}

	device, err := m.ensureDevice(ctx)
	if err != nil {
		return err
	}
	req := signin.Request{
		Command: signin.SSOCommand(m.binary, account),
		Env:     []string{profile.DeviceKey + "=" + device},
	}

	start := m.now()
	res, err := m.auth.SignInSSO(ctx, req)
	elapsed := m.now().Sub(start)
	if err != nil {
		m.metrics.RecordSignIn(flowSSO, metrics.OutcomeError, elapsed)
		return fmt.Errorf("unable to sign in to 1Password using SSO, ensure SSO has been set up (see %s): %w", SSOSetupURL, err)
	}
	if res.Rejected {
		m.metrics.RecordSignIn(flowSSO, metrics.OutcomeRejected, elapsed)
		return ErrAuthenticationFailed
	}
	m.metrics.RecordSignIn(flowSSO, metrics.OutcomeSuccess, elapsed)

	key := profile.Key(profile.SSOKeyPrefix, account)
	if err := m.env.Setenv(key, "true"); err != nil {
		m.logger.Warn("Failed to export %s: %v", key, err)
	}
	err = m.profile.Update(ctx, key, "true")
	m.metrics.RecordProfileWrite("update", err)
	if err != nil {
		return fmt.Errorf("signed in but failed to record SSO in profile: %w", err)
	}
	return nil
}
