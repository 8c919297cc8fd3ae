package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a SecureBuffer is read after Destroy.
var ErrDestroyed = errors.New("secure buffer destroyed")

// SecureBuffer keeps a value encrypted at rest in process memory.
// It wraps a memguard.Enclave; plaintext only exists inside the
// LockedBuffer returned by Open, which the caller must Destroy.
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	size      int
	destroyed bool
}

// NewSecureBuffer moves data into a protected enclave.
// memguard wipes data after copying it, so callers must not reuse the slice.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	size := len(data)
	// memguard returns a nil enclave for empty input
	enclave := memguard.NewEnclave(data)

	return &SecureBuffer{
		enclave: enclave,
		size:    size,
	}, nil
}

// NewSecureString is NewSecureBuffer for string values.
func NewSecureString(s string) (*SecureBuffer, error) {
	return NewSecureBuffer([]byte(s))
}

// Open decrypts the enclave into a locked buffer.
//
//	locked, err := buf.Open()
//	if err != nil {
//	    return err
//	}
//	defer locked.Destroy()
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.enclave == nil {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}

	return s.enclave.Open()
}

// Reveal returns a heap copy of the protected value. Prefer Open when the
// value can be consumed from the locked buffer directly.
func (s *SecureBuffer) Reveal() (string, error) {
	locked, err := s.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()

	return string(locked.Bytes()), nil
}

// Size is the length of the protected value in bytes.
func (s *SecureBuffer) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Destroyed reports whether Destroy has been called.
func (s *SecureBuffer) Destroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// Destroy drops the enclave. It is idempotent. Full wiping of memguard
// state happens through memguard.Purge at process exit.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	s.enclave = nil
	s.size = 0
	s.destroyed = true
}
