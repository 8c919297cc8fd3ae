package testutil

import (
	"os"
	"testing"
)

// SetupTestEnv sets environment variables for the duration of a test and
// restores the previous values when it completes. Tests using it must not
// call t.Parallel.
//
//	SetupTestEnv(t, map[string]string{
//	    "OPSESSION_ACCOUNT": "acme",
//	})
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	for key, value := range vars {
		t.Setenv(key, value)
	}
}

// UnsetTestEnv removes variables for the duration of a test.
func UnsetTestEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		orig, ok := os.LookupEnv(key)
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("Failed to unset environment variable %s: %v", key, err)
		}
		if ok {
			t.Cleanup(func() { _ = os.Setenv(key, orig) })
		}
	}
}
