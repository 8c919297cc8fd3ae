package secure

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecureBufferCopiesInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "master password", data: []byte("correct horse battery staple")},
		{name: "empty", data: []byte{}},
		{name: "gcm nonce and tag", data: []byte{0x00, 0xFF, 0x10, 0x20, 0x9a, 0x4c}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			want := append([]byte(nil), tt.data...)
			sealed, err := NewSecureBuffer(tt.data)
			require.NoError(t, err)
			t.Cleanup(sealed.Destroy)

			assert.Equal(t, len(want), sealed.Size())

			opened, err := sealed.Open()
			require.NoError(t, err)
			defer opened.Destroy()
			assert.True(t, bytes.Equal(want, opened.Bytes()))
		})
	}
}

func TestRevealIsRepeatable(t *testing.T) {
	t.Parallel()

	const blob = "q1ZKzUvOT0lVslIqLk4tykvMTVWqBQA="
	sealed, err := NewSecureString(blob)
	require.NoError(t, err)
	t.Cleanup(sealed.Destroy)

	for attempt := 1; attempt <= 3; attempt++ {
		got, err := sealed.Reveal()
		require.NoError(t, err, "attempt %d", attempt)
		assert.Equal(t, blob, got)
	}
}

func TestDestroyedBufferRefusesAccess(t *testing.T) {
	t.Parallel()

	sealed, err := NewSecureString("session-ciphertext")
	require.NoError(t, err)
	require.False(t, sealed.Destroyed())

	// Close on the session manager may race a deferred destroy.
	sealed.Destroy()
	sealed.Destroy()

	assert.True(t, sealed.Destroyed())
	assert.Zero(t, sealed.Size())

	_, err = sealed.Open()
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = sealed.Reveal()
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestConcurrentReveal(t *testing.T) {
	t.Parallel()

	const blob = "sealed-session-for-acme"
	sealed, err := NewSecureString(blob)
	require.NoError(t, err)
	t.Cleanup(sealed.Destroy)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = sealed.Reveal()
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, blob, got)
	}
}
