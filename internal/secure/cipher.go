package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinKeyLength is the shortest session token accepted as cipher key material.
const MinKeyLength = 8

const (
	keySize  = 32 // AES-256
	hkdfInfo = "opsession cached secret v1"
)

var (
	// ErrKeyTooShort is returned when the key material is shorter than MinKeyLength.
	ErrKeyTooShort = fmt.Errorf("cipher key must be at least %d bytes", MinKeyLength)

	// ErrEmptySecret is returned when asked to encode an empty secret.
	ErrEmptySecret = errors.New("secret is empty")

	// ErrDecrypt is returned when ciphertext cannot be opened with the given key.
	// Decoding under a key other than the one used at encode time always ends here.
	ErrDecrypt = errors.New("cached secret cannot be decrypted with this key")
)

// Encode encrypts secret under a key derived from the session token.
//
// The token is stretched to a fixed 32-byte AES-256 key with HKDF-SHA256, so
// tokens of any length above MinKeyLength work without truncation or padding.
// The result is base64(nonce || AES-GCM ciphertext); the nonce is random, so
// two encodings of the same secret differ.
func Encode(secret []byte, token string) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}

	aead, err := newAEAD(token)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, secret, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decode reverses Encode. It fails with ErrDecrypt, never panics, when the
// token differs from the one used at encode time or the ciphertext was altered.
func Decode(encoded string, token string) ([]byte, error) {
	aead, err := newAEAD(token)
	if err != nil {
		return nil, err
	}

	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	nonceSize := aead.NonceSize()
	if len(blob) < nonceSize+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}

	return plain, nil
}

func newAEAD(token string) (cipher.AEAD, error) {
	if len(token) < MinKeyLength {
		return nil, ErrKeyTooShort
	}

	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(token), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
