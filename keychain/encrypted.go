package keychain

import (
	"context"

	"github.com/agentuity/go-cachew/crypto"
)

type encryptedKeychain struct {
	inner  Keychain
	sealer *crypto.Sealer
}

var _ Keychain = (*encryptedKeychain)(nil)

// NewEncrypted wraps inner so payloads are sealed with AES-256-GCM before
// they reach the backend. Record identifiers stay in the clear because the
// backend must be able to look them up. A payload that fails to open (wrong
// key, tampering, or a record moved to another account) reports
// StatusAuthFailed.
func NewEncrypted(inner Keychain, sealer *crypto.Sealer) Keychain {
	return &encryptedKeychain{inner: inner, sealer: sealer}
}

func associatedData(q Query) []byte {
	return []byte(q.Service + "\x00" + q.Account)
}

func (e *encryptedKeychain) Add(ctx context.Context, q Query) Status {
	if !q.valid() {
		return StatusInvalidQuery
	}
	sealed, err := e.sealer.Seal(q.Data, associatedData(q))
	if err != nil {
		return StatusUnavailable
	}
	q.Data = sealed
	return e.inner.Add(ctx, q)
}

func (e *encryptedKeychain) Find(ctx context.Context, q Query) ([]byte, Status) {
	sealed, status := e.inner.Find(ctx, q)
	if status != StatusSuccess {
		return nil, status
	}
	data, err := e.sealer.Open(sealed, associatedData(q))
	if err != nil {
		return nil, StatusAuthFailed
	}
	return data, StatusSuccess
}

func (e *encryptedKeychain) Delete(ctx context.Context, q Query) Status {
	return e.inner.Delete(ctx, q)
}
