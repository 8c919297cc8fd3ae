// Package session decides whether an existing vault session can be reused
// and otherwise signs in, persisting the new token to the shell profile.
//
// A Manager owns the in-memory state of one process: the active Session and
// the cached, token-encrypted copy of the password that lets a later
// re-authentication in the same process proceed without prompting.
package session

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/systmms/opsession/internal/logging"
	"github.com/systmms/opsession/internal/metrics"
	"github.com/systmms/opsession/internal/profile"
	"github.com/systmms/opsession/internal/secure"
	"github.com/systmms/opsession/internal/signin"
	"github.com/systmms/opsession/pkg/exec"
)

// Token sources.
const (
	SourceEnv     = "env"
	SourceProfile = "profile"
	SourceSignIn  = "signin"
	SourceSSO     = "sso"
)

// Account identifies what to sign into. Empty fields are discovered from
// the profile or asked for.
type Account struct {
	// Shorthand is the account name, e.g. acme for acme.1password.com.
	Shorthand string
	Domain    string
	Email     string
	SecretKey string
}

// Session is an authenticated vault session.
type Session struct {
	Account string
	Token   string
	Created time.Time
	Source  string
	// MFA is set when the sign-in asked for an authentication code.
	MFA bool
}

// Profile is the persisted key/value store sessions are saved in.
type Profile interface {
	Lookup(key string, fuzzy bool) ([]profile.Entry, error)
	Get(key string) (string, error)
	Update(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	EnsureDeviceID(ctx context.Context) (string, error)
}

// Prompter asks the user for sign-in details.
type Prompter interface {
	Line(ctx context.Context, label, def string) (string, error)
	Confirm(ctx context.Context, label string, def bool) (bool, error)
	Secret(ctx context.Context, label string) ([]byte, error)
	Notify(format string, args ...interface{})
}

// SecretKeys stores account Secret Keys between first-time sign-ins.
type SecretKeys interface {
	SecretKey(account string) (string, error)
	SaveSecretKey(account, secretKey string) error
	DeleteSecretKey(account string) error
}

// Environment is the process environment.
type Environment interface {
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
	Unsetenv(key string) error
}

// OSEnv is the real process environment.
type OSEnv struct{}

func (OSEnv) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
func (OSEnv) Setenv(key, value string) error      { return os.Setenv(key, value) }
func (OSEnv) Unsetenv(key string) error           { return os.Unsetenv(key) }

// Options configures a Manager. Authenticator, Profile and Prompter are
// required.
type Options struct {
	Authenticator signin.Authenticator
	Profile       Profile
	Prompter      Prompter
	// SecretKeys is optional.
	SecretKeys SecretKeys
	// Executor runs non-interactive vault CLI commands such as sign-out.
	Executor exec.CommandExecutor
	Env      Environment
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
	// Binary is the vault CLI executable, default "op".
	Binary string
	Now    func() time.Time
}

// cachedSecret is the password encrypted under the token it unlocked.
type cachedSecret struct {
	ciphertext *secure.SecureBuffer
	token      string
}

// Manager is the SessionManager.
type Manager struct {
	auth       signin.Authenticator
	profile    Profile
	prompter   Prompter
	secretKeys SecretKeys
	executor   exec.CommandExecutor
	env        Environment
	metrics    *metrics.Metrics
	logger     *logging.Logger
	binary     string
	now        func() time.Time

	mu      sync.Mutex
	current *Session
	cached  *cachedSecret
}

// New creates a Manager.
func New(opts Options) *Manager {
	m := &Manager{
		auth:       opts.Authenticator,
		profile:    opts.Profile,
		prompter:   opts.Prompter,
		secretKeys: opts.SecretKeys,
		executor:   opts.Executor,
		env:        opts.Env,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		binary:     opts.Binary,
		now:        opts.Now,
	}
	if m.executor == nil {
		m.executor = exec.DefaultExecutor()
	}
	if m.env == nil {
		m.env = OSEnv{}
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}
	if m.binary == "" {
		m.binary = "op"
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Current returns the active session of this process, if any.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// HasPriorSession reports whether this process signed in before and still
// holds the cached password from that sign-in.
func (m *Manager) HasPriorSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cached != nil
}

// Close destroys the cached password and forgets the active session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forget()
}

func (m *Manager) forget() {
	if m.cached != nil {
		m.cached.ciphertext.Destroy()
		m.cached = nil
	}
	m.current = nil
}
