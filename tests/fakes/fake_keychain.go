package fakes

import (
	"sync"

	"github.com/systmms/opsession/internal/keystore"
)

// FakeKeychainClient is a test double for keystore.Client
type FakeKeychainClient struct {
	// Secrets is a map of service -> account -> value
	Secrets map[string]map[string]string

	// Available controls whether the keychain reports as available
	Available bool

	// Headless controls whether the environment is reported as headless
	Headless bool

	// Err is returned by every operation if set
	Err error

	mu sync.Mutex
}

// NewFakeKeychainClient creates a new fake keychain client with defaults
func NewFakeKeychainClient() *FakeKeychainClient {
	return &FakeKeychainClient{
		Secrets:   make(map[string]map[string]string),
		Available: true,
	}
}

// Get retrieves a secret from the fake keychain
func (f *FakeKeychainClient) Get(service, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	if v, ok := f.Secrets[service][account]; ok {
		return v, nil
	}
	return "", keystore.ErrNotFound
}

// Set stores a secret in the fake keychain
func (f *FakeKeychainClient) Set(service, account, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if f.Secrets == nil {
		f.Secrets = make(map[string]map[string]string)
	}
	if f.Secrets[service] == nil {
		f.Secrets[service] = make(map[string]string)
	}
	f.Secrets[service][account] = value
	return nil
}

// Delete removes a secret from the fake keychain
func (f *FakeKeychainClient) Delete(service, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if _, ok := f.Secrets[service][account]; !ok {
		return keystore.ErrNotFound
	}
	delete(f.Secrets[service], account)
	return nil
}

// IsAvailable returns whether keychain is available
func (f *FakeKeychainClient) IsAvailable() bool {
	return f.Available
}

// IsHeadless returns whether running in headless environment
func (f *FakeKeychainClient) IsHeadless() bool {
	return f.Headless
}

var _ keystore.Client = (*FakeKeychainClient)(nil)
