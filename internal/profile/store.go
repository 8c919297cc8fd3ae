// Package profile persists session state as export lines in the user's shell
// profile.
//
// Managed lines have the form
//
//	export KEY="VALUE"
//
// and every other line of the file is preserved verbatim. The profile is
// shared with other processes: every Update is a full read-modify-write,
// serialized between cooperating processes by an advisory lock file next to
// the profile. Writers that do not take the lock (editors, other tools) can
// still race with an update.
package profile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	dserrors "github.com/systmms/opsession/internal/errors"
	"github.com/systmms/opsession/internal/logging"
)

// Well-known keys and key prefixes.
const (
	SessionKeyPrefix = "OP_SESSION"
	SSOKeyPrefix     = "OP_SSO"
	DeviceKey        = "OP_DEVICE"

	dockerFlagMarker = `DOCKER_FLAG="t`
	mirrorFile       = ".profile"

	// DefaultLockTimeout bounds how long Update waits for another writer.
	DefaultLockTimeout = 10 * time.Second
	lockRetryDelay     = 50 * time.Millisecond
)

var (
	// ErrNotFound is returned by Lookup when no line matches the key.
	ErrNotFound = errors.New("profile entry not found")

	// ErrLocked is returned when the profile lock cannot be taken in time.
	ErrLocked = errors.New("profile is locked by another process")

	// ErrNoProfile is returned by Discover when no candidate file exists.
	ErrNoProfile = errors.New("no shell rc or profile file exists")
)

// candidates are searched in order inside the home directory.
var candidates = []string{".bashrc", ".bash_profile", ".zshrc", ".zprofile"}

// Entry is one parsed export line.
type Entry struct {
	Key   string
	Value string
	Path  string
}

// Key returns the account-scoped key for prefix, e.g. OP_SESSION_acme.
// Characters a shell identifier cannot hold are folded to '_', so the
// account my-co maps to OP_SESSION_my_co.
func Key(prefix, account string) string {
	return prefix + "_" + strings.Map(func(r rune) rune {
		if r == '_' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			return r
		}
		return '_'
	}, account)
}

// Options configures Open.
type Options struct {
	// Path selects the profile explicitly. When empty the first existing
	// candidate under Home is used.
	Path string
	// Home defaults to the user's home directory.
	Home        string
	LockTimeout time.Duration
	Logger      *logging.Logger
}

// Store is the ProfileStore over one primary profile and an optional mirror.
type Store struct {
	paths       []string
	lockPath    string
	lockTimeout time.Duration
	logger      *logging.Logger
}

// Discover returns the first existing candidate profile in home.
func Discover(home string) (string, error) {
	for _, name := range candidates {
		p := filepath.Join(home, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", ErrNoProfile
}

// Open resolves the profile files and returns a Store.
func Open(opts Options) (*Store, error) {
	home := opts.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		home = h
	}

	primary := opts.Path
	if primary == "" {
		p, err := Discover(home)
		if err != nil {
			return nil, dserrors.UserError{
				Message:    "No shell profile found",
				Details:    fmt.Sprintf("looked for %s in %s", strings.Join(candidates, ", "), home),
				Suggestion: "Create ~/.bashrc or set 'profile' in the opsession config",
				Err:        err,
			}
		}
		primary = p
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	s := &Store{
		paths:       []string{primary},
		lockPath:    primary + ".lock",
		lockTimeout: timeout,
		logger:      logger,
	}

	data, err := os.ReadFile(primary)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read profile %s: %w", primary, err)
	}
	if bytes.Contains(data, []byte(dockerFlagMarker)) {
		mirror := filepath.Join(home, mirrorFile)
		if mirror != primary {
			if _, err := os.Stat(mirror); err == nil {
				s.paths = append(s.paths, mirror)
				logger.Debug("Docker profile flag set, mirroring entries to %s", mirror)
			} else {
				logger.Warn("Docker profile flag set but %s does not exist", mirror)
			}
		}
	}

	return s, nil
}

// Paths lists the managed files, primary first.
func (s *Store) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Lookup finds export lines for key across all managed files.
//
// An exact lookup matches lines containing ` KEY=`; a fuzzy lookup matches
// any line containing key as a substring. Comment lines and lines that are
// not assignments are ignored. ErrNotFound is returned when nothing matches.
func (s *Store) Lookup(key string, fuzzy bool) ([]Entry, error) {
	needle := " " + key + "="
	var entries []Entry

	for _, p := range s.paths {
		lines, err := readLines(p)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			if fuzzy {
				if !strings.Contains(line, key) {
					continue
				}
			} else if !strings.Contains(line, needle) {
				continue
			}

			k, v, ok := parseExport(line)
			if !ok {
				continue
			}
			entries = append(entries, Entry{Key: k, Value: v, Path: p})
		}
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return entries, nil
}

// Get returns the value of the exact key. When several files carry the key
// the primary profile wins.
func (s *Store) Get(key string) (string, error) {
	entries, err := s.Lookup(key, false)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Key == key {
			return e.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Values is Lookup flattened to key -> value. Later files do not override
// the primary profile.
func (s *Store) Values(key string, fuzzy bool) (map[string]string, error) {
	entries, err := s.Lookup(key, fuzzy)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if _, seen := out[e.Key]; !seen {
			out[e.Key] = e.Value
		}
	}
	return out, nil
}

// Update replaces every existing line for key with a single
// `export KEY="VALUE"` line appended at the end, in every managed file.
// The whole file is rewritten atomically while the profile lock is held.
func (s *Store) Update(ctx context.Context, key, value string) error {
	if err := validateEntry(key, value); err != nil {
		return err
	}
	line := fmt.Sprintf("export %s=\"%s\"", key, value)

	return s.rewrite(ctx, func(lines []string) []string {
		return append(withoutKey(lines, key), line)
	})
}

// Remove deletes every line for key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.rewrite(ctx, func(lines []string) []string {
		return withoutKey(lines, key)
	})
}

func (s *Store) rewrite(ctx context.Context, edit func([]string) []string) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	for _, p := range s.paths {
		lines, err := readLines(p)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		for _, l := range edit(lines) {
			buf.WriteString(l)
			buf.WriteByte('\n')
		}

		target := p
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			target = resolved
		}
		if err := atomic.WriteFile(target, &buf); err != nil {
			return fmt.Errorf("failed to write profile %s: %w", p, err)
		}
		s.logger.Debug("Rewrote profile %s", p)
	}

	return nil
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	fl := flock.New(s.lockPath)
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, s.lockPath)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("Failed to release profile lock %s: %v", s.lockPath, err)
		}
	}, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return lines, nil
}

// withoutKey drops the assignment lines whose key is exactly key, so that
// updating OP_SESSION_a leaves OP_SESSION_ab alone.
func withoutKey(lines []string, key string) []string {
	out := make([]string, 0, len(lines)+1)
	for _, l := range lines {
		if k, _, ok := parseExport(l); ok && k == key {
			continue
		}
		out = append(out, l)
	}
	return out
}

// parseExport splits `export KEY="VALUE"` (export and quotes optional).
func parseExport(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	trimmed = strings.TrimPrefix(trimmed, "export ")

	k, v, found := strings.Cut(trimmed, "=")
	if !found {
		return "", "", false
	}
	k = strings.TrimSpace(k)
	if k == "" || strings.ContainsAny(k, " \t") {
		return "", "", false
	}

	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		v = v[1 : len(v)-1]
	}
	return k, v, true
}

// shellIdent matches names a POSIX shell accepts after export.
var shellIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateKey(key string) error {
	if !shellIdent.MatchString(key) {
		return fmt.Errorf("invalid profile key %q: not a shell identifier", key)
	}
	return nil
}

func validateEntry(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if strings.ContainsAny(value, "\r\n\"\\$`") {
		return fmt.Errorf("profile value for %s contains characters that cannot be exported safely", key)
	}
	return nil
}
