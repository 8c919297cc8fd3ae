package signin

import (
	"context"
	"io"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/signin_mock.go -package=mock

// Authenticator drives one sign-in attempt against the vault CLI.
type Authenticator interface {
	// SignIn runs a password sign-in and returns the raw session token, or a
	// Result with Rejected set when the vault CLI refused the credentials.
	SignIn(ctx context.Context, req Request) (Result, error)

	// SignInSSO runs a sign-in that completes in the browser; no secret is sent.
	SignInSSO(ctx context.Context, req Request) (Result, error)
}

// CodeReader supplies the six-digit authentication code when the vault CLI
// asks for one.
type CodeReader interface {
	ReadCode(ctx context.Context) (string, error)
}

// Process is a running child attached to a terminal.
type Process interface {
	io.ReadWriteCloser
}

// Spawner starts sign-in commands.
type Spawner interface {
	Spawn(ctx context.Context, argv []string, env []string) (Process, error)
}
