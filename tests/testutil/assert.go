package testutil

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertNoSecretLeak fails when any of secrets appears in output.
func AssertNoSecretLeak(t *testing.T, output string, secrets ...string) {
	t.Helper()

	for _, s := range secrets {
		if s == "" {
			continue
		}
		assert.NotContains(t, output, s, "secret leaked into output")
	}
}

// AssertFileLines checks that the file at path has exactly the given lines.
func AssertFileLines(t *testing.T, path string, expected ...string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read %s", path)

	got := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(expected) == 0 {
		expected = []string{""}
	}
	assert.Equal(t, expected, got, "unexpected contents of %s", path)
}

// CountLines returns how many lines of the file at path contain substr.
func CountLines(t *testing.T, path, substr string) int {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read %s", path)

	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}
