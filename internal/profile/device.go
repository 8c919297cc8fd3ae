package profile

import (
	"context"
	"encoding/base32"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var deviceEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewDeviceID returns a fresh 26-character lowercase base32 device id.
func NewDeviceID() string {
	id := uuid.New()
	return strings.ToLower(deviceEncoding.EncodeToString(id[:]))
}

// EnsureDeviceID returns the device id stored in the profile, creating and
// persisting one when none exists.
func (s *Store) EnsureDeviceID(ctx context.Context) (string, error) {
	id, err := s.Get(DeviceKey)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}

	id = NewDeviceID()
	if err := s.Update(ctx, DeviceKey, id); err != nil {
		return "", err
	}
	return id, nil
}
