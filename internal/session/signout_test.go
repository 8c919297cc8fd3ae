package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	dserrors "github.com/systmms/opsession/internal/errors"
	"github.com/systmms/opsession/internal/metrics"
	"github.com/systmms/opsession/internal/mock"
	"github.com/systmms/opsession/internal/session"
	"github.com/systmms/opsession/internal/signin"
	"github.com/systmms/opsession/tests/fakes"
	"github.com/systmms/opsession/tests/testutil"
)

func TestSignOut(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export KEEP=\"1\"\nexport OP_SESSION_acme=\"tok12345678\"\n",
		map[string]string{"OP_SESSION_acme": "tok12345678"})

	_, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, nil)
	require.NoError(t, err)

	require.NoError(t, h.mgr.SignOut(context.Background(), ""))

	calls := h.exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "op signout --account acme --session tok12345678", calls[0].Line())

	testutil.AssertFileLines(t, h.path, `export KEEP="1"`)
	_, ok := h.env.LookupEnv("OP_SESSION_acme")
	assert.False(t, ok)
	assert.Nil(t, h.mgr.Current())
}

func TestSignOut_DestroysCachedSecret(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_other=\"old\"\n", nil)
	h.prompter.Secrets = []string{"hunter22"}
	h.auth.EXPECT().SignIn(gomock.Any(), gomock.Any()).Return(tokenResult("firsttoken123"), nil)

	_, err := h.mgr.EnsureSession(context.Background(), session.Account{Shorthand: "acme"}, nil)
	require.NoError(t, err)
	require.True(t, h.mgr.HasPriorSession())

	require.NoError(t, h.mgr.SignOut(context.Background(), "acme"))
	assert.False(t, h.mgr.HasPriorSession())
	assert.NotContains(t, h.profileText(t), "OP_SESSION_acme")
	assert.Contains(t, h.profileText(t), "OP_SESSION_other")
}

func TestSignOut_NotSignedInIsFine(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_acme=\"stale\"\n", nil)
	h.exec.AddResponse("op signout", testutil.OnePasswordMockResponses{}.NotSignedIn())

	require.NoError(t, h.mgr.SignOut(context.Background(), "acme"))
	assert.NotContains(t, h.profileText(t), "OP_SESSION_acme")
}

func TestSignOut_CommandFailureStillClearsLocalState(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "export OP_SESSION_acme=\"tok12345678\"\n", map[string]string{"OP_SESSION_acme": "tok12345678"})
	h.exec.AddResponse("op signout", testutil.MockResponse{
		Stderr: []byte("[ERROR] connection refused while using tok12345678"),
		Err:    errors.New("exit status 1"),
	})

	err := h.mgr.SignOut(context.Background(), "acme")
	var cmdErr dserrors.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "op signout", cmdErr.Command)
	assert.NotContains(t, err.Error(), "tok12345678")
	assert.NotEmpty(t, cmdErr.Suggestion)

	assert.NotContains(t, h.profileText(t), "OP_SESSION_acme")
	_, ok := h.env.LookupEnv("OP_SESSION_acme")
	assert.False(t, ok)
}

func TestSignOut_NoAccount(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "", nil)
	assert.ErrorIs(t, h.mgr.SignOut(context.Background(), ""), session.ErrNoAccount)
	h.exec.AssertNotCalled(t)
}

func TestSignInSSO(t *testing.T) {
	t.Parallel()

	t.Run("records flag", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "", nil)
		h.auth.EXPECT().SignInSSO(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req signin.Request) (signin.Result, error) {
				assert.Equal(t, signin.SSOCommand("op", "acme"), req.Command)
				assert.Empty(t, req.Secret)
				return signin.Result{}, nil
			})

		require.NoError(t, h.mgr.SignInSSO(context.Background(), "acme"))
		assert.Contains(t, h.profileText(t), `export OP_SSO_acme="true"`)
		v, _ := h.env.LookupEnv("OP_SSO_acme")
		assert.Equal(t, "true", v)
	})

	t.Run("passes device id and reads the injected clock", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		auth := mock.NewMockAuthenticator(ctrl)
		store, _ := testutil.TempProfile(t, "")
		env := fakes.NewFakeEnv(map[string]string{"OP_DEVICE": "dev0123456789abcdefghijkl"})

		ticks := 0
		base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		mgr := session.New(session.Options{
			Authenticator: auth,
			Profile:       store,
			Prompter:      &fakes.FakePrompter{},
			Env:           env,
			Metrics:       metrics.New(),
			Now: func() time.Time {
				ticks++
				return base.Add(time.Duration(ticks) * time.Second)
			},
		})
		t.Cleanup(mgr.Close)

		auth.EXPECT().SignInSSO(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req signin.Request) (signin.Result, error) {
				assert.Equal(t, []string{"OP_DEVICE=dev0123456789abcdefghijkl"}, req.Env)
				return signin.Result{}, nil
			})

		require.NoError(t, mgr.SignInSSO(context.Background(), "acme"))
		assert.Equal(t, 2, ticks)
	})

	t.Run("discovers account", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "export OP_SSO_corp=\"true\"\n", nil)
		h.auth.EXPECT().SignInSSO(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req signin.Request) (signin.Result, error) {
				assert.Equal(t, signin.SSOCommand("op", "corp"), req.Command)
				return signin.Result{}, nil
			})

		require.NoError(t, h.mgr.SignInSSO(context.Background(), ""))
		assert.Equal(t, 1, testutil.CountLines(t, h.path, "OP_SSO_corp"))
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "", nil)
		h.auth.EXPECT().SignInSSO(gomock.Any(), gomock.Any()).Return(signin.Result{Rejected: true}, nil)

		assert.ErrorIs(t, h.mgr.SignInSSO(context.Background(), "acme"), session.ErrAuthenticationFailed)
		assert.NotContains(t, h.profileText(t), "OP_SSO_acme")
	})

	t.Run("driver error carries guidance", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "", nil)
		h.auth.EXPECT().SignInSSO(gomock.Any(), gomock.Any()).
			Return(signin.Result{}, &signin.SpawnError{Op: "spawn", Err: errors.New("no such file")})

		err := h.mgr.SignInSSO(context.Background(), "acme")
		var se *signin.SpawnError
		assert.ErrorAs(t, err, &se)
		assert.Contains(t, err.Error(), session.SSOSetupURL)
	})
}
