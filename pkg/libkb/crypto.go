package libkb

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size in bytes of every article key.
	KeySize = 32
	// KeyIDSize is the length of a shared key identifier.
	KeyIDSize = 16
)

// GenerateRandomBytes returns securely generated random bytes.
// It will return an error if the system's secure random
// number generator fails to function correctly, in which
// case the caller should not continue.
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	// err == nil only if len(b) == n
	if err != nil {
		return nil, err
	}

	return b, nil
}

// GenerateKey returns a random 256-bit key.
func GenerateKey() ([]byte, error) {
	key, err := GenerateRandomBytes(KeySize)
	if err != nil {
		return nil, errors.Wrap(ErrKeyGenerationFailed, err.Error())
	}
	return key, nil
}

// hkdf32 expands ikm into a 256-bit key bound to salt and info.
func hkdf32(ikm, salt []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, []byte(info))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncodeKey returns the standard base64 representation of a key.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKey parses a standard base64 key and checks its size.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode key")
	}
	if len(key) != KeySize {
		return nil, errors.Errorf("invalid key size: %d", len(key))
	}
	return key, nil
}

// EncodeURLKey returns the URL-safe unpadded representation of a key, as used by `?k=`.
func EncodeURLKey(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

// DecodeURLKey parses a key produced by EncodeURLKey.
// Padded input is tolerated.
func DecodeURLKey(s string) ([]byte, error) {
	key, err := base64.RawURLEncoding.DecodeString(trimPadding(s))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode url key")
	}
	if len(key) != KeySize {
		return nil, errors.Errorf("invalid key size: %d", len(key))
	}
	return key, nil
}
