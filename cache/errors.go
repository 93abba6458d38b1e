package cache

import (
	"fmt"

	"github.com/agentuity/go-cachew/keychain"
	"github.com/cockroachdb/errors"
)

var (
	// ErrEncodeFailed is returned when a value cannot be serialized.
	ErrEncodeFailed = errors.New("cache: encode failed")
	// ErrDecodeFailed is returned when stored bytes cannot be deserialized.
	// Corrupt data is never reported as a miss.
	ErrDecodeFailed = errors.New("cache: decode failed")
	// ErrDirectoryUnavailable is returned when a Silo cannot enumerate its directory.
	ErrDirectoryUnavailable = errors.New("cache: directory unavailable")
	// ErrClosed is returned by operations on a closed Hydra.
	ErrClosed = errors.New("cache: closed")
)

// StatusError reports a keychain status a Vault does not handle.
type StatusError struct {
	Op     string
	Status keychain.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cache: vault %s: unhandled keychain status: %s", e.Op, e.Status)
}

// withCause returns an error whose chain holds sentinel, keeping cause as a
// secondary error so its details survive in %+v output.
func withCause(sentinel, cause error, format string, args ...interface{}) error {
	return errors.WithSecondaryError(errors.Wrapf(sentinel, format, args...), cause)
}

func encodeError(err error) error {
	return withCause(ErrEncodeFailed, err, "%s", err)
}

func decodeError(err error) error {
	return withCause(ErrDecodeFailed, err, "%s", err)
}
