package commands

import (
	"github.com/systmms/opsession/internal/config"
	"github.com/systmms/opsession/internal/keystore"
	"github.com/systmms/opsession/internal/logging"
	"github.com/systmms/opsession/internal/metrics"
	"github.com/systmms/opsession/internal/opcli"
	"github.com/systmms/opsession/internal/profile"
	"github.com/systmms/opsession/internal/prompt"
	"github.com/systmms/opsession/internal/session"
	"github.com/systmms/opsession/internal/signin"
	"github.com/systmms/opsession/pkg/exec"
)

// App holds the global flags and builds the collaborators commands share.
// The override fields are nil in production and set by tests.
type App struct {
	ConfigPath     string
	Debug          bool
	NoColor        bool
	NonInteractive bool

	Logger *logging.Logger
	Config *config.Config

	// Overrides.
	Executor      exec.CommandExecutor
	Authenticator signin.Authenticator
	Prompter      session.Prompter
	Env           session.Environment
	Keychain      keystore.Client
	Home          string

	metrics *metrics.Metrics
	manager *session.Manager
	profile *profile.Store
}

// Init sets up logging and loads the configuration. It runs before every
// command.
func (a *App) Init() error {
	if a.Logger == nil {
		a.Logger = logging.New(a.Debug, a.NoColor)
	}
	if a.Config == nil {
		cfg, err := config.Load(a.ConfigPath)
		if err != nil {
			return err
		}
		a.Config = cfg
	}
	if a.Config.Path != "" {
		a.Logger.Debug("Loaded configuration from %s", a.Config.Path)
	}
	return nil
}

// Metrics returns the process metrics, created on first use.
func (a *App) Metrics() *metrics.Metrics {
	if a.metrics == nil {
		a.metrics = metrics.New()
	}
	return a.metrics
}

// Profile opens the shell profile selected by the configuration.
func (a *App) Profile() (*profile.Store, error) {
	if a.profile != nil {
		return a.profile, nil
	}
	s, err := profile.Open(profile.Options{
		Path:        a.Config.Profile,
		Home:        a.Home,
		LockTimeout: a.Config.Timeout(),
		Logger:      a.Logger,
	})
	if err != nil {
		return nil, err
	}
	a.profile = s
	return s, nil
}

// Keystore returns the Secret Key store.
func (a *App) Keystore() *keystore.Store {
	return keystore.New(a.Keychain)
}

// Account is the account configured by file or environment.
func (a *App) Account() session.Account {
	return session.Account{
		Shorthand: a.Config.Account,
		Domain:    a.Config.Domain,
		Email:     a.Config.Email,
	}
}

// Manager returns the SessionManager, wiring the terminal sign-in driver
// unless an Authenticator override is set.
func (a *App) Manager() (*session.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}
	store, err := a.Profile()
	if err != nil {
		return nil, err
	}

	prompter := a.Prompter
	if prompter == nil {
		prompter = prompt.Stdio(a.NonInteractive)
	}
	var codes signin.CodeReader
	if cr, ok := prompter.(signin.CodeReader); ok {
		codes = cr
	}

	auth := a.Authenticator
	if auth == nil {
		m := a.Metrics()
		auth = signin.New(signin.Config{
			Codes:   codes,
			Logger:  a.Logger,
			Timeout: a.Config.Timeout(),
			OnTransition: func(from, to signin.State) {
				a.Logger.Debug("Sign-in %s -> %s", from, to)
				m.RecordTransition(to.String())
			},
		})
	}

	var secretKeys session.SecretKeys
	if a.Config.Keychain {
		if ks := a.Keystore(); ks.Usable() {
			secretKeys = ks
		} else {
			a.Logger.Debug("Keychain configured but not usable here, Secret Key will be prompted for")
		}
	}

	a.manager = session.New(session.Options{
		Authenticator: auth,
		Profile:       store,
		Prompter:      prompter,
		SecretKeys:    secretKeys,
		Executor:      a.Executor,
		Env:           a.Env,
		Metrics:       a.Metrics(),
		Logger:        a.Logger,
		Binary:        a.Config.Binary,
	})
	return a.manager, nil
}

// Vault returns a VaultClient bound to the configured account.
func (a *App) Vault() (*opcli.Client, error) {
	m, err := a.Manager()
	if err != nil {
		return nil, err
	}
	return opcli.New(opcli.Options{
		Sessions:     m,
		Executor:     a.Executor,
		Account:      a.Account(),
		Binary:       a.Config.Binary,
		DefaultVault: a.Config.DefaultVault,
		Logger:       a.Logger,
	}), nil
}

// Close destroys cached secrets and writes the metrics textfile when one is
// configured.
func (a *App) Close() {
	if a.manager != nil {
		a.manager.Close()
	}
	if a.Config == nil || a.Config.MetricsFile == "" || a.metrics == nil {
		return
	}
	if err := a.metrics.WriteTextfile(a.Config.MetricsFile); err != nil && a.Logger != nil {
		a.Logger.Warn("Failed to write metrics to %s: %v", a.Config.MetricsFile, err)
	}
}
