// Package keystore keeps account Secret Keys in the operating system
// keychain so first-time sign-in does not have to ask for them again.
package keystore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// Service is the keychain service name entries are stored under.
const Service = "opsession"

var (
	// ErrNotFound is returned when no Secret Key is stored for an account.
	ErrNotFound = errors.New("secret key not found in keychain")

	// ErrAccessDenied is returned when the user or OS refused keychain access.
	ErrAccessDenied = errors.New("keychain access denied")

	// ErrUnavailable is returned when no keychain backend can be reached.
	ErrUnavailable = errors.New("keychain is not available")
)

// Client is the keychain backend.
type Client interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
	Delete(service, account string) error
	// IsAvailable reports whether a keychain backend is usable here.
	IsAvailable() bool
	// IsHeadless reports whether no user is present to unlock the keychain.
	IsHeadless() bool
}

// Keyring is the go-keyring Client.
type Keyring struct{}

var _ Client = Keyring{}

// Get implements Client.
func (Keyring) Get(service, account string) (string, error) {
	v, err := keyring.Get(service, account)
	return v, translate(err)
}

// Set implements Client.
func (Keyring) Set(service, account, value string) error {
	return translate(keyring.Set(service, account, value))
}

// Delete implements Client.
func (Keyring) Delete(service, account string) error {
	return translate(keyring.Delete(service, account))
}

// IsAvailable implements Client.
func (Keyring) IsAvailable() bool {
	return platformAvailable()
}

// IsHeadless implements Client.
func (Keyring) IsHeadless() bool {
	return platformHeadless()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, keyring.ErrUnsupportedPlatform):
		return ErrUnavailable
	case isAccessDenied(err):
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	return err
}

func isAccessDenied(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "access denied") ||
		strings.Contains(s, "user denied") ||
		strings.Contains(s, "canceled")
}

// Store reads and writes Secret Keys by account shorthand.
type Store struct {
	client Client
}

// New returns a Store over client; nil means Keyring.
func New(client Client) *Store {
	if client == nil {
		client = Keyring{}
	}
	return &Store{client: client}
}

// Usable reports whether the keychain can be used without blocking on a
// user who is not there.
func (s *Store) Usable() bool {
	return s.client.IsAvailable() && !s.client.IsHeadless()
}

// SecretKey returns the stored Secret Key for account.
func (s *Store) SecretKey(account string) (string, error) {
	if !s.client.IsAvailable() {
		return "", ErrUnavailable
	}
	return s.client.Get(Service, entryName(account))
}

// SaveSecretKey stores the Secret Key for account.
func (s *Store) SaveSecretKey(account, secretKey string) error {
	if !s.client.IsAvailable() {
		return ErrUnavailable
	}
	return s.client.Set(Service, entryName(account), secretKey)
}

// DeleteSecretKey removes the Secret Key for account. A missing entry is
// not an error.
func (s *Store) DeleteSecretKey(account string) error {
	if !s.client.IsAvailable() {
		return ErrUnavailable
	}
	err := s.client.Delete(Service, entryName(account))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func entryName(account string) string {
	return "secret-key:" + account
}
