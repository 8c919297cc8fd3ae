package signin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/systmms/opsession/internal/logging"
)

// DefaultTimeout bounds each wait point of a sign-in attempt.
const DefaultTimeout = 30 * time.Second

// State is a step of the sign-in state machine.
type State int

const (
	// StateAwaitingPrompt waits for the password prompt, answering a Secret
	// Key prompt on the way when one appears.
	StateAwaitingPrompt State = iota
	// StateAwaitingMFA waits, after the password was sent, for either an
	// authentication code prompt or end of output.
	StateAwaitingMFA
	// StateDone means a token was parsed.
	StateDone
	// StateFailed means the attempt ended without a token.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingPrompt:
		return "awaiting-prompt"
	case StateAwaitingMFA:
		return "awaiting-mfa"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Request is one sign-in attempt.
type Request struct {
	// Command is the argv of the sign-in command.
	Command []string
	// Env is appended to the current environment of the child.
	Env []string
	// Secret is the master password. It is not retained by the driver.
	Secret []byte
	// SecretKey answers the Secret Key prompt of a first-time sign-in.
	SecretKey string
}

// Result is the outcome of a sign-in attempt that ran to completion.
type Result struct {
	// Token is the raw session token. Empty when Rejected, and for SSO.
	Token string
	// Rejected is set when the vault CLI refused the credentials.
	Rejected bool
	// MFA is set when an authentication code was requested and sent.
	MFA bool
	// Output is what the child printed after the password was sent.
	Output string
}

// Config holds Driver dependencies.
type Config struct {
	Spawner Spawner
	Codes   CodeReader
	Logger  *logging.Logger
	// Timeout bounds each wait point; zero means DefaultTimeout.
	Timeout time.Duration
	// RespawnDelay is the pause before the single respawn.
	RespawnDelay time.Duration
	// OnTransition, when set, is called on every state change.
	OnTransition func(from, to State)
}

// Driver runs sign-in commands under a terminal and drives their prompts.
type Driver struct {
	spawner      Spawner
	codes        CodeReader
	logger       *logging.Logger
	timeout      time.Duration
	respawnDelay time.Duration
	onTransition func(from, to State)
}

var _ Authenticator = (*Driver)(nil)

// New creates a Driver. A nil Spawner means PTYSpawner.
func New(cfg Config) *Driver {
	d := &Driver{
		spawner:      cfg.Spawner,
		codes:        cfg.Codes,
		logger:       cfg.Logger,
		timeout:      cfg.Timeout,
		respawnDelay: cfg.RespawnDelay,
		onTransition: cfg.OnTransition,
	}
	if d.spawner == nil {
		d.spawner = PTYSpawner{}
	}
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.respawnDelay <= 0 {
		d.respawnDelay = 250 * time.Millisecond
	}
	return d
}

// attempt is the live state of one sign-in.
type attempt struct {
	d     *Driver
	state State
	proc  Process
	exp   *expecter
}

func (a *attempt) to(s State) {
	if a.state == s {
		return
	}
	a.d.logger.Debug("sign-in %s -> %s", a.state, s)
	if a.d.onTransition != nil {
		a.d.onTransition(a.state, s)
	}
	a.state = s
}

func (a *attempt) close() {
	if a.exp != nil {
		a.exp.close()
	}
	if a.proc != nil {
		_ = a.proc.Close()
	}
}

// SignIn implements Authenticator. The spawn through password write steps
// are retried once on a fresh child when the child dies, times out or
// refuses input; later steps are not.
func (d *Driver) SignIn(ctx context.Context, req Request) (Result, error) {
	if len(req.Command) == 0 || req.Command[0] == "" {
		return Result{}, &SpawnError{Op: "spawn", Err: ErrEmptyCommand}
	}

	var a *attempt
	backoff := retry.WithMaxRetries(1, retry.NewConstant(d.respawnDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if a != nil {
			d.logger.Warn("Sign-in process failed, respawning")
			a.close()
		}
		a = &attempt{d: d, state: StateAwaitingPrompt}

		err := a.handshake(ctx, req)
		var se *SpawnError
		if errors.As(err, &se) && se.retryable() {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if a != nil {
			a.to(StateFailed)
			a.close()
		}
		return Result{}, err
	}
	defer a.close()

	return a.finish(ctx)
}

// handshake spawns the child and sends the password.
func (a *attempt) handshake(ctx context.Context, req Request) error {
	proc, err := a.d.spawner.Spawn(ctx, req.Command, req.Env)
	if err != nil {
		return &SpawnError{Op: "spawn", Err: err}
	}
	a.proc = proc
	a.exp = newExpecter(proc)

	sentKey := false
	for {
		i, out, err := a.exp.expect(ctx, a.d.timeout, passwordPrompt, secretKeyPrompt)
		if err != nil {
			return waitError("await password prompt", err)
		}

		switch i {
		case 0:
			if err := a.send(req.Secret); err != nil {
				return &SpawnError{Op: "write secret", Err: err}
			}
			return nil
		case 1:
			if req.SecretKey == "" || sentKey {
				return &SpawnError{Op: "await password prompt", Err: ErrSecretKeyRequired}
			}
			if err := a.send([]byte(req.SecretKey)); err != nil {
				return &SpawnError{Op: "write secret key", Err: err}
			}
			sentKey = true
		default:
			if errorMarker.MatchString(out) {
				return &CLIError{Output: out}
			}
			return &SpawnError{Op: "await password prompt", Err: ErrProcessExited}
		}
	}
}

// finish waits for the code prompt or end of output and parses the token.
func (a *attempt) finish(ctx context.Context) (Result, error) {
	a.to(StateAwaitingMFA)

	var res Result
	i, out, err := a.exp.expect(ctx, a.d.timeout, mfaPrompt, passwordPrompt)
	if err != nil {
		a.to(StateFailed)
		return Result{}, waitError("await token", err)
	}

	switch i {
	case 0:
		if IsAuthFailure(out) {
			return a.reject(out)
		}
		if err := a.sendCode(ctx); err != nil {
			a.to(StateFailed)
			return Result{}, err
		}
		res.MFA = true
		if i, out, err = a.exp.expect(ctx, a.d.timeout, passwordPrompt); err != nil {
			a.to(StateFailed)
			return Result{}, waitError("await token", err)
		}
		if i == 0 {
			return a.reject(out)
		}
	case 1:
		// Asked again: the password was wrong.
		return a.reject(out)
	}

	res.Output = out
	if IsAuthFailure(out) {
		return a.reject(out)
	}
	if errorMarker.MatchString(out) {
		a.to(StateFailed)
		return Result{}, &CLIError{Output: out}
	}

	token, err := ParseToken(out)
	if err != nil {
		a.to(StateFailed)
		return Result{}, err
	}

	res.Token = token
	a.to(StateDone)
	return res, nil
}

func (a *attempt) reject(out string) (Result, error) {
	a.to(StateFailed)
	return Result{Rejected: true, Output: out}, nil
}

func (a *attempt) sendCode(ctx context.Context) error {
	if a.d.codes == nil {
		return errors.New("vault CLI asked for an authentication code but no code reader is configured")
	}
	code, err := a.d.codes.ReadCode(ctx)
	if err != nil {
		return fmt.Errorf("read authentication code: %w", err)
	}
	code = strings.TrimSpace(code)
	if !ValidCode(code) {
		return ErrInvalidCode
	}
	if err := a.send([]byte(code)); err != nil {
		return &SpawnError{Op: "write code", Err: err}
	}
	return nil
}

func (a *attempt) send(b []byte) error {
	line := make([]byte, 0, len(b)+1)
	line = append(append(line, b...), '\n')
	_, err := a.proc.Write(line)
	clear(line)
	return err
}

// SignInSSO implements Authenticator. The child completes sign-in in the
// browser; only its exit and output are observed.
func (d *Driver) SignInSSO(ctx context.Context, req Request) (Result, error) {
	if len(req.Command) == 0 || req.Command[0] == "" {
		return Result{}, &SpawnError{Op: "spawn", Err: ErrEmptyCommand}
	}

	a := &attempt{d: d, state: StateAwaitingPrompt}
	defer a.close()

	proc, err := d.spawner.Spawn(ctx, req.Command, req.Env)
	if err != nil {
		a.to(StateFailed)
		return Result{}, &SpawnError{Op: "spawn", Err: err}
	}
	a.proc = proc
	a.exp = newExpecter(proc)

	i, out, err := a.exp.expect(ctx, d.timeout, passwordPrompt)
	if err != nil {
		a.to(StateFailed)
		return Result{}, waitError("await sso", err)
	}
	if i == 0 {
		a.to(StateFailed)
		return Result{}, ErrUnexpectedPasswordPrompt
	}
	if IsAuthFailure(out) {
		return a.reject(out)
	}
	if errorMarker.MatchString(out) {
		a.to(StateFailed)
		return Result{}, &CLIError{Output: out}
	}

	a.to(StateDone)
	return Result{Output: out}, nil
}

func waitError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &SpawnError{Op: op, Err: err}
}
