package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/systmms/opsession/internal/profile"
)

// TempProfile writes content to <tmp home>/.bashrc and opens a Store on it.
// It returns the store and the profile path.
func TempProfile(t *testing.T, content string) (*profile.Store, string) {
	t.Helper()

	home := t.TempDir()
	path := filepath.Join(home, ".bashrc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store, err := profile.Open(profile.Options{Home: home, LockTimeout: 2 * time.Second})
	require.NoError(t, err)
	return store, path
}
