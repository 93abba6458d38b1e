package cache

import (
	"context"

	"github.com/agentuity/go-cachew/keychain"
	"go.opentelemetry.io/otel/attribute"
)

// Vault is a secure tier that stores each value as a keychain record. Keys
// are rendered to account names (strings as-is, fmt.Stringer, otherwise
// fmt.Sprint) and must be unique within the service namespace. A key that
// renders to the empty string cannot be stored: Set reports
// StatusInvalidQuery, Get misses and Remove succeeds. Results are never
// cached.
type Vault[K comparable, V any] struct {
	keychain keychain.Keychain
	codec    Codec[V]
	service  string
}

// NewVault returns a Vault over kc. A nil codec selects msgpack.
func NewVault[K comparable, V any](kc keychain.Keychain, codec Codec[V], opts ...Option) *Vault[K, V] {
	cfg := applyOptions(opts)
	if codec == nil {
		codec = MsgpackCodec[V]{}
	}
	return &Vault[K, V]{keychain: kc, codec: codec, service: cfg.service}
}

// Service returns the keychain service namespace.
func (v *Vault[K, V]) Service() string {
	return v.service
}

func (v *Vault[K, V]) query(key K) keychain.Query {
	return keychain.Query{Service: v.service, Account: keyString(key)}
}

func (v *Vault[K, V]) attrs() attribute.KeyValue {
	return attribute.String("cachew.vault", v.service)
}

// Set deletes any record for key and adds the encoded value.
func (v *Vault[K, V]) Set(ctx context.Context, key K, value V) (err error) {
	ctx, span := startSpan(ctx, "vault.Set", v.attrs())
	defer func() { endSpan(span, err) }()

	data, err := v.codec.Encode(value)
	if err != nil {
		return encodeError(err)
	}
	q := v.query(key)
	if q.Account == "" {
		return &StatusError{Op: "set", Status: keychain.StatusInvalidQuery}
	}
	v.keychain.Delete(ctx, q)
	q.Data = data
	if status := v.keychain.Add(ctx, q); status != keychain.StatusSuccess {
		return &StatusError{Op: "set", Status: status}
	}
	return nil
}

// Get returns the value stored for key. StatusItemNotFound is a miss.
func (v *Vault[K, V]) Get(ctx context.Context, key K) (_ V, _ bool, err error) {
	ctx, span := startSpan(ctx, "vault.Get", v.attrs())
	defer func() { endSpan(span, err) }()

	var zero V
	q := v.query(key)
	if q.Account == "" {
		return zero, false, nil
	}
	data, status := v.keychain.Find(ctx, q)
	switch status {
	case keychain.StatusSuccess:
	case keychain.StatusItemNotFound:
		return zero, false, nil
	default:
		return zero, false, &StatusError{Op: "get", Status: status}
	}
	val, err := v.codec.Decode(data)
	if err != nil {
		return zero, false, decodeError(err)
	}
	return val, true, nil
}

// Remove deletes the record for key. A missing record is not an error.
func (v *Vault[K, V]) Remove(ctx context.Context, key K) (err error) {
	ctx, span := startSpan(ctx, "vault.Remove", v.attrs())
	defer func() { endSpan(span, err) }()

	q := v.query(key)
	if q.Account == "" {
		return nil
	}
	switch status := v.keychain.Delete(ctx, q); status {
	case keychain.StatusSuccess, keychain.StatusItemNotFound:
		return nil
	default:
		return &StatusError{Op: "remove", Status: status}
	}
}
