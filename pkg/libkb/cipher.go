package libkb

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the size in bytes of an article nonce.
const NonceSize = chacha20poly1305.NonceSize

// Encrypt seals plaintext with ChaCha20-Poly1305 under a fresh random key and nonce.
// The key must never be reused for another encryption.
func Encrypt(plaintext []byte) (ciphertext, nonce, key []byte, err error) {
	key, err = GenerateKey()
	if err != nil {
		return nil, nil, nil, err
	}

	ciphertext, nonce, err = EncryptWithKey(plaintext, key)
	return ciphertext, nonce, key, err
}

// EncryptWithKey seals plaintext under the given key with a fresh random nonce.
func EncryptWithKey(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, errors.Wrap(ErrEncryptionFailed, err.Error())
	}

	nonce, err = GenerateRandomBytes(NonceSize)
	if err != nil {
		return nil, nil, errors.Wrap(ErrNonceGenerationFailed, err.Error())
	}

	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens ciphertext with the given nonce and key.
// It returns ErrDecryptionFailed without plaintext when the tag does not verify.
func Decrypt(ciphertext, nonce, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(ErrDecryptionFailed, err.Error())
	}
	if len(nonce) != NonceSize {
		return nil, errors.Wrapf(ErrDecryptionFailed, "invalid nonce size: %d", len(nonce))
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(ErrDecryptionFailed, err.Error())
	}
	return plaintext, nil
}

// Seal encrypts plaintext under key and returns nonce‖ciphertext.
func Seal(plaintext, key []byte) ([]byte, error) {
	ciphertext, nonce, err := EncryptWithKey(plaintext, key)
	if err != nil {
		return nil, err
	}
	return append(nonce, ciphertext...), nil
}

// Open reverses Seal.
func Open(framed, key []byte) ([]byte, error) {
	if len(framed) < NonceSize {
		return nil, errors.Wrap(ErrDecryptionFailed, "framed payload too short")
	}
	return Decrypt(framed[NonceSize:], framed[:NonceSize], key)
}
