// Package crypto provides the symmetric sealing used to protect secrets at
// rest in the keychain backends.
//
// Records are sealed with AES-256-GCM. The output layout is
//
//	┌────────────┬──────────────┬─────────────────────────────┐
//	│ 1B version │ 12B nonce    │ ciphertext ∥ 16B GCM tag    │
//	└────────────┴──────────────┴─────────────────────────────┘
//
// The caller supplies associated data (for the keychain this is the record's
// service and account) so a sealed blob cannot be replayed under another
// record. Only standard library crypto packages are used.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	sealVersion byte = 1
	nonceSize        = 12
	gcmTag           = 16
)

var (
	ErrInvalidKey           = errors.New("crypto: key must be 32 bytes")
	ErrCiphertextShort      = errors.New("crypto: ciphertext too short")
	ErrUnknownVersion       = errors.New("crypto: unknown seal version")
	ErrAuthenticationFailed = errors.New("crypto: message authentication failed")
)

// GenerateKey returns a fresh random AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// EncodeKey renders a key as lowercase hex, the format ParseKey accepts first.
func EncodeKey(key []byte) string {
	return hex.EncodeToString(key)
}

// ParseKey decodes a key given as hex or standard base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if key, err := hex.DecodeString(s); err == nil {
		if len(key) != KeySize {
			return nil, ErrInvalidKey
		}
		return key, nil
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key is neither hex nor base64: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// Sealer encrypts and authenticates small payloads with a fixed key.
// It is safe for concurrent use.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer returns a Sealer for the given 32 byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: gcm}, nil
}

// Seal encrypts plaintext, binding it to associated.
func (s *Sealer) Seal(plaintext, associated []byte) ([]byte, error) {
	out := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+gcmTag)
	out[0] = sealVersion
	nonce := out[1 : 1+nonceSize]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(out, nonce, plaintext, associated), nil
}

// Open reverses Seal. Any tampering with the blob or a mismatched
// associated value yields ErrAuthenticationFailed.
func (s *Sealer) Open(sealed, associated []byte) ([]byte, error) {
	if len(sealed) < 1+nonceSize+gcmTag {
		return nil, ErrCiphertextShort
	}
	if sealed[0] != sealVersion {
		return nil, ErrUnknownVersion
	}
	nonce := sealed[1 : 1+nonceSize]
	plaintext, err := s.aead.Open(nil, nonce, sealed[1+nonceSize:], associated)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}
