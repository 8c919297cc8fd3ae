package session

import (
	"errors"
	"fmt"
)

// MaxAttempts is the number of consecutive wrong passwords tolerated before
// a sign-in is abandoned.
const MaxAttempts = 3

// Recovery guidance shown to users.
const (
	ForgottenPasswordURL = "https://support.1password.com/forgot-master-password/"
	SSOSetupURL          = "https://developer.1password.com/docs/cli/sign-in-sso"
)

var (
	// ErrAuthenticationFailed is returned when the vault CLI rejected the
	// password and no further attempt is possible.
	ErrAuthenticationFailed = errors.New("authentication failed: wrong password")

	// ErrNoAccount is returned when no account is given, none can be found in
	// the profile and none can be asked for.
	ErrNoAccount = errors.New("no account specified")
)

// ForgottenPasswordError is returned after MaxAttempts consecutive wrong
// passwords.
type ForgottenPasswordError struct {
	Attempts    int
	GuidanceURL string
}

func (e *ForgottenPasswordError) Error() string {
	return fmt.Sprintf("sign-in failed %d times, you appear to have forgotten your password, visit: %s",
		e.Attempts, e.GuidanceURL)
}

// Is makes every ForgottenPasswordError match ErrAuthenticationFailed.
func (e *ForgottenPasswordError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}
