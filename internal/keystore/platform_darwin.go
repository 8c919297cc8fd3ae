//go:build darwin

package keystore

import "os"

func platformAvailable() bool {
	return true
}

func platformHeadless() bool {
	return os.Getenv("SSH_TTY") != "" || os.Getenv("CI") != ""
}
