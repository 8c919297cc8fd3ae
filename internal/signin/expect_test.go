package signin

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpecterEarliestMatchWins(t *testing.T) {
	t.Parallel()

	e := newExpecter(strings.NewReader("banner\r\nEnter the password for a@acme.com at acme.1password.com: "))
	defer e.close()

	i, before, err := e.expect(context.Background(), time.Second, mfaPrompt, passwordPrompt)
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.Equal(t, "banner\r\n", before)

	i, rest, err := e.expect(context.Background(), time.Second, mfaPrompt)
	require.NoError(t, err)
	assert.Equal(t, noMatch, i)
	assert.Empty(t, rest)
}

func TestExpecterAcrossChunks(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	e := newExpecter(pr)
	defer e.close()

	go func() {
		_, _ = pw.Write([]byte("Enter the pass"))
		_, _ = pw.Write([]byte("word for a@acme.com: "))
		_, _ = pw.Write([]byte("\r\ntoken\r\n"))
		_ = pw.Close()
	}()

	i, _, err := e.expect(context.Background(), time.Second, passwordPrompt)
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	i, out, err := e.expect(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, noMatch, i)
	assert.Equal(t, "\r\ntoken\r\n", out)
}

func TestExpecterTimeout(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()
	e := newExpecter(pr)
	defer e.close()

	_, _, err := e.expect(context.Background(), 20*time.Millisecond, regexp.MustCompile("never"))
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestExpecterContextCanceled(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()
	e := newExpecter(pr)
	defer e.close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := e.expect(ctx, time.Second, passwordPrompt)
	assert.ErrorIs(t, err, context.Canceled)
}
