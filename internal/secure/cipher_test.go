package secure

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	tokens := []string{
		"12345678",
		"Jc7Vt4mMb2wq6u4Xz3yAfOTqS1p1HfTxlqkvh8QF0eE",
		strings.Repeat("t", 200),
	}
	secrets := []string{
		"a",
		"hunter2",
		"correct horse battery staple",
		"   leading and trailing spaces   ",
		strings.Repeat("long-password-", 20),
		"ünïcødé-пароль-🔑",
	}

	for _, token := range tokens {
		for _, secret := range secrets {
			encoded, err := Encode([]byte(secret), token)
			require.NoError(t, err)
			assert.NotContains(t, encoded, secret)

			decoded, err := Decode(encoded, token)
			require.NoError(t, err)
			assert.Equal(t, secret, string(decoded))
		}
	}
}

func TestEncode_NonDeterministic(t *testing.T) {
	t.Parallel()

	token := "session-token-abcdef"
	a, err := Encode([]byte("same"), token)
	require.NoError(t, err)
	b, err := Encode([]byte("same"), token)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecode_WrongKeyFailsCleanly(t *testing.T) {
	t.Parallel()

	encoded, err := Encode([]byte("master-password"), "first-session-token")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		_, err = Decode(encoded, "second-session-token")
	})
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecode_TamperedCiphertext(t *testing.T) {
	t.Parallel()

	token := "session-token-abcdef"
	encoded, err := Encode([]byte("master-password"), token)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF

	_, err = Decode(base64.StdEncoding.EncodeToString(raw), token)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecode_MalformedInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "not base64", encoded: "%%%not-base64%%%"},
		{name: "too short", encoded: base64.StdEncoding.EncodeToString([]byte("short"))},
		{name: "empty", encoded: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode(tt.encoded, "session-token-abcdef")
			assert.ErrorIs(t, err, ErrDecrypt)
		})
	}
}

func TestKeyAndSecretValidation(t *testing.T) {
	t.Parallel()

	_, err := Encode([]byte("secret"), "short")
	assert.ErrorIs(t, err, ErrKeyTooShort)

	_, err = Decode("anything", "")
	assert.ErrorIs(t, err, ErrKeyTooShort)

	_, err = Encode(nil, "session-token-abcdef")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
