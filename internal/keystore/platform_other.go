//go:build !darwin && !linux

package keystore

import "os"

func platformAvailable() bool {
	return true
}

func platformHeadless() bool {
	return os.Getenv("CI") != ""
}
