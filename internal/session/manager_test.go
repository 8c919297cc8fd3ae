package session_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/systmms/opsession/internal/keystore"
	"github.com/systmms/opsession/internal/metrics"
	"github.com/systmms/opsession/internal/mock"
	"github.com/systmms/opsession/internal/profile"
	"github.com/systmms/opsession/internal/session"
	"github.com/systmms/opsession/internal/signin"
	"github.com/systmms/opsession/tests/fakes"
	"github.com/systmms/opsession/tests/testutil"
)

type harness struct {
	auth     *mock.MockAuthenticator
	prompter *fakes.FakePrompter
	env      *fakes.FakeEnv
	exec     *testutil.MockCommandExecutor
	keychain *fakes.FakeKeychainClient
	logger   *testutil.TestLogger
	path     string
	mgr      *session.Manager
}

func newHarness(t *testing.T, profileContent string, env map[string]string) *harness {
	t.Helper()

	ctrl := gomock.NewController(t)
	store, path := testutil.TempProfile(t, profileContent)

	h := &harness{
		auth:     mock.NewMockAuthenticator(ctrl),
		prompter: &fakes.FakePrompter{},
		env:      fakes.NewFakeEnv(env),
		exec:     testutil.NewMockCommandExecutor(),
		keychain: fakes.NewFakeKeychainClient(),
		logger:   testutil.NewTestLogger(t, true),
		path:     path,
	}
	h.mgr = session.New(session.Options{
		Authenticator: h.auth,
		Profile:       store,
		Prompter:      h.prompter,
		SecretKeys:    keystore.New(h.keychain),
		Executor:      h.exec,
		Env:           h.env,
		Metrics:       metrics.New(),
		Logger:        h.logger.Logger,
	})
	t.Cleanup(h.mgr.Close)
	return h
}

func (h *harness) profileText(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.path)
	require.NoError(t, err)
	return string(data)
}

func tokenResult(token string) signin.Result {
	return signin.Result{Token: token, Output: "\r\n" + token + "\r\n"}
}

var rejected = signin.Result{Rejected: true, Output: "[ERROR] 2024/01/02 401: Unauthorized"}

func TestEnsureSession_ReusesEnvironmentToken(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "", map[string]string{"OP_SESSION_acme": "envtoken123"})
	// no EXPECT: any call to the authenticator fails the test

	s, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "acme", s.Account)
	assert.Equal(t, "envtoken123", s.Token)
	assert.Equal(t, session.SourceEnv, s.Source)
	assert.Empty(t, h.prompter.Asked())
	assert.False(t, h.mgr.HasPriorSession())
}

func TestEnsureSession_ReusesProfileToken(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export PATH=\"/bin\"\nexport OP_SESSION_acme=\"proftoken123\"\n", nil)

	s, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "proftoken123", s.Token)
	assert.Equal(t, session.SourceProfile, s.Source)

	v, ok := h.env.LookupEnv("OP_SESSION_acme")
	assert.True(t, ok)
	assert.Equal(t, "proftoken123", v)
}

func TestEnsureSession_DiscoversAccountFromProfile(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_acme=\"proftoken123\"\n", nil)

	s, err := h.mgr.EnsureSession(context.Background(), session.Account{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "acme", s.Account)
	assert.Equal(t, "proftoken123", s.Token)
}

func TestEnsureSession_ReturnsActiveSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "", map[string]string{"OP_SESSION_acme": "envtoken123"})
	ctx := context.Background()

	first, err := h.mgr.EnsureSession(ctx, session.Account{Shorthand: "acme"}, nil)
	require.NoError(t, err)
	require.NoError(t, h.env.Unsetenv("OP_SESSION_acme"))

	second, err := h.mgr.EnsureSession(ctx, session.Account{}, nil)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEnsureSession_ShortSignIn(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_other=\"old\"\n", nil)
	h.prompter.Secrets = []string{"hunter22"}

	var got signin.Request
	h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req signin.Request) (signin.Result, error) {
			got = req
			got.Secret = []byte(string(req.Secret))
			return tokenResult("newtoken12345"), nil
		}).Times(1)

	s, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "newtoken12345", s.Token)
	assert.Equal(t, session.SourceSignIn, s.Source)
	assert.Equal(t, signin.ShortCommand("op", "acme"), got.Command)
	assert.Equal(t, "hunter22", string(got.Secret))
	assert.Empty(t, got.SecretKey)

	device, ok := h.env.LookupEnv(profile.DeviceKey)
	require.True(t, ok)
	assert.Len(t, device, 26)
	assert.Contains(t, got.Env, profile.DeviceKey+"="+device)

	text := h.profileText(t)
	assert.Contains(t, text, `export OP_SESSION_acme="newtoken12345"`)
	assert.Contains(t, text, `export OP_DEVICE="`+device+`"`)
	assert.Contains(t, text, `export OP_SESSION_other="old"`)

	v, _ := h.env.LookupEnv("OP_SESSION_acme")
	assert.Equal(t, "newtoken12345", v)
	assert.True(t, h.mgr.HasPriorSession())

	h.logger.AssertNotContains(t, "newtoken12345")
	h.logger.AssertNotContains(t, "hunter22")
}

func TestEnsureSession_KeepsExistingDevice(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_other=\"old\"\n", map[string]string{profile.DeviceKey: "existingdevice"})
	h.prompter.Secrets = []string{"hunter22"}

	h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req signin.Request) (signin.Result, error) {
			assert.Contains(t, req.Env, "OP_DEVICE=existingdevice")
			return tokenResult("newtoken12345"), nil
		})

	_, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, h.profileText(t), "OP_DEVICE")
}

func TestEnsureSession_RetryBound(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_other=\"old\"\n", nil)
	h.prompter.Secrets = []string{"wrong1", "wrong2", "wrong3", "never-asked"}

	var secrets []string
	h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req signin.Request) (signin.Result, error) {
			secrets = append(secrets, string(req.Secret))
			return rejected, nil
		}).Times(session.MaxAttempts)

	_, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, nil)

	var fpe *session.ForgottenPasswordError
	require.ErrorAs(t, err, &fpe)
	assert.Equal(t, 3, fpe.Attempts)
	assert.Equal(t, session.ForgottenPasswordURL, fpe.GuidanceURL)
	assert.ErrorIs(t, err, session.ErrAuthenticationFailed)
	assert.Contains(t, err.Error(), "forgot-master-password")

	assert.Equal(t, []string{"wrong1", "wrong2", "wrong3"}, secrets)
	assert.Len(t, h.prompter.Notices(), 2)
	assert.NotContains(t, h.profileText(t), "OP_SESSION_acme")
	assert.Nil(t, h.mgr.Current())
}

func TestEnsureSession_SucceedsBeforeBound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		failures int
	}{
		{"first try", 0},
		{"second try", 1},
		{"third try", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, "export OP_SESSION_other=\"old\"\n", nil)
			h.prompter.Secrets = []string{"a-secret", "b-secret", "c-secret"}

			calls := 0
			h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).DoAndReturn(
				func(context.Context, signin.Request) (signin.Result, error) {
					calls++
					if calls <= tt.failures {
						return rejected, nil
					}
					return tokenResult("goodtoken123"), nil
				}).Times(tt.failures + 1)

			s, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, nil)
			require.NoError(t, err)
			assert.Equal(t, "goodtoken123", s.Token)
			assert.Len(t, h.prompter.Notices(), tt.failures)
		})
	}
}

func TestEnsureSession_FailureTextInsteadOfToken(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_other=\"old\"\n", nil)
	h.prompter.Secrets = []string{"x-secret", "y-secret", "z-secret"}

	h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).
		Return(signin.Result{Token: "(ERROR)  401: Unauthorized"}, nil).
		Times(3)

	_, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, nil)
	var fpe *session.ForgottenPasswordError
	assert.ErrorAs(t, err, &fpe)
}

func TestEnsureSession_ExplicitSecretRetriedToBound(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_other=\"old\"\n", nil)

	var submitted []string
	h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req signin.Request) (signin.Result, error) {
			submitted = append(submitted, string(req.Secret))
			return rejected, nil
		}).Times(session.MaxAttempts)

	secret := []byte("given-secret")
	_, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, secret)

	var fpe *session.ForgottenPasswordError
	require.ErrorAs(t, err, &fpe)
	assert.Equal(t, session.MaxAttempts, fpe.Attempts)
	assert.Equal(t, session.ForgottenPasswordURL, fpe.GuidanceURL)
	assert.ErrorIs(t, err, session.ErrAuthenticationFailed)

	assert.Equal(t, []string{"given-secret", "given-secret", "given-secret"}, submitted)
	assert.Empty(t, h.prompter.Asked())
	assert.Empty(t, h.prompter.Notices())
	assert.Equal(t, "given-secret", string(secret), "caller's slice is left intact")
	assert.Nil(t, h.mgr.Current())
}

func TestEnsureSession_ExplicitSecretAcceptedOnRetry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_other=\"old\"\n", nil)
	gomock.InOrder(
		h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).Return(rejected, nil),
		h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).Return(tokenResult("tok-second-99"), nil),
	)

	s, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, []byte("given-secret"))
	require.NoError(t, err)
	assert.Equal(t, "tok-second-99", s.Token)
	assert.Empty(t, h.prompter.Notices())
}

func TestEnsureSession_DriverErrorsSurface(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"spawn", &signin.SpawnError{Op: "spawn", Err: signin.ErrProcessExited}},
		{"parse", &signin.ParseError{Reason: "expected exactly one token line, found 2", Lines: 2}},
		{"cli", &signin.CLIError{Output: "[ERROR] no account found"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, "export OP_SESSION_other=\"old\"\n", nil)
			h.prompter.Secrets = []string{"hunter22"}
			h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).Return(signin.Result{}, tt.err).Times(1)

			_, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, nil)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, h.mgr.Current())
		})
	}
}

func TestSignIn_RecoversCachedSecret(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_other=\"old\"\n", nil)
	h.prompter.Secrets = []string{"hunter22"}
	ctx := context.Background()

	var second string
	gomock.InOrder(
		h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).Return(tokenResult("firsttoken123"), nil),
		h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req signin.Request) (signin.Result, error) {
				second = string(req.Secret)
				return tokenResult("secondtoken123"), nil
			}),
	)

	_, err := h.mgr.EnsureSession(ctx, session.Account{Shorthand: "acme"}, nil)
	require.NoError(t, err)
	require.True(t, h.mgr.HasPriorSession())

	s, err := h.mgr.SignIn(ctx, session.Account{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "secondtoken123", s.Token)
	assert.Equal(t, "hunter22", second)
	assert.Len(t, h.prompter.Asked(), 1, "password asked only once")

	assert.Equal(t, 1, strings.Count(h.profileText(t), "OP_SESSION_acme="))
	assert.Contains(t, h.profileText(t), `export OP_SESSION_acme="secondtoken123"`)
}

func TestSignIn_CachedSecretRejectedFallsBackToPrompt(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_other=\"old\"\n", nil)
	h.prompter.Secrets = []string{"oldpass1", "newpass1"}
	ctx := context.Background()

	var secrets []string
	h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req signin.Request) (signin.Result, error) {
			secrets = append(secrets, string(req.Secret))
			switch len(secrets) {
			case 1:
				return tokenResult("firsttoken123"), nil
			case 2:
				return rejected, nil
			}
			return tokenResult("thirdtoken123"), nil
		}).Times(3)

	_, err := h.mgr.EnsureSession(ctx, session.Account{Shorthand: "acme"}, nil)
	require.NoError(t, err)

	s, err := h.mgr.SignIn(ctx, session.Account{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "thirdtoken123", s.Token)
	assert.Equal(t, []string{"oldpass1", "oldpass1", "newpass1"}, secrets)
}

func TestEnsureSession_FirstUse(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "# fresh profile\n", nil)
	h.prompter.Lines = []string{"jo@acme.com"}
	h.prompter.Confirms = []bool{true, true}
	h.prompter.Secrets = []string{"A3-SECRET-KEY", "hunter22"}

	var got signin.Request
	h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req signin.Request) (signin.Result, error) {
			got = req
			return tokenResult("firsttoken123"), nil
		})

	s, err := h.mgr.EnsureSession(context.Background(), session.Account{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "acme", s.Account)
	assert.Equal(t, signin.FullCommand("op", "acme.1password.com", "jo@acme.com", "acme"), got.Command)
	assert.Equal(t, "A3-SECRET-KEY", got.SecretKey)
	assert.Contains(t, h.profileText(t), `export OP_SESSION_acme="firsttoken123"`)

	saved, err := keystore.New(h.keychain).SecretKey("acme")
	require.NoError(t, err)
	assert.Equal(t, "A3-SECRET-KEY", saved)
}

func TestEnsureSession_FirstUseCorrections(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "", nil)
	h.prompter.Lines = []string{"jo@mail.example.com", "corp.1password.eu", "corp"}
	h.prompter.Confirms = []bool{false, false}
	h.prompter.Secrets = []string{"hunter22"}
	h.keychain.Secrets[keystore.Service] = map[string]string{"secret-key:corp": "A3-STORED"}

	h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req signin.Request) (signin.Result, error) {
			assert.Equal(t, signin.FullCommand("op", "corp.1password.eu", "jo@mail.example.com", "corp"), req.Command)
			assert.Equal(t, "A3-STORED", req.SecretKey)
			return tokenResult("firsttoken123"), nil
		})

	s, err := h.mgr.EnsureSession(context.Background(), session.Account{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "corp", s.Account)
}

func TestEnsureSession_ProfileWriteFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_other=\"old\"\n", map[string]string{profile.DeviceKey: "dev"})
	h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).Return(tokenResult("bad\"token123"), nil)

	s, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, []byte("hunter22"))
	require.Error(t, err)
	require.NotNil(t, s, "the session is usable even though it was not saved")
	assert.Equal(t, "bad\"token123", s.Token)
}

func TestAccountFromEmail(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"jo@acme.com":         "acme",
		"jo@mail.example.com": "mail",
		"jo@localhost":        "localhost",
		"not-an-email":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, session.AccountFromEmail(in), in)
	}
	assert.Equal(t, "acme.1password.com", session.DefaultDomain("acme"))
}
