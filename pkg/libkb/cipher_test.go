package libkb_test

import (
	"errors"
	"testing"

	"github.com/kasblog/kasblog/pkg/libkb"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestEncryptDecrypt(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		plaintext := rapid.SliceOfN(rapid.Byte(), 0, libkb.MaxContentSize).Draw(t, "plaintext")

		ciphertext, nonce, key, err := libkb.Encrypt(plaintext)
		if err != nil {
			t.Fatal(err)
		}
		if len(nonce) != libkb.NonceSize || len(key) != libkb.KeySize {
			t.Fatalf("unexpected sizes: nonce %d key %d", len(nonce), len(key))
		}

		decrypted, err := libkb.Decrypt(ciphertext, nonce, key)
		if err != nil {
			t.Fatal(err)
		}
		if string(decrypted) != string(plaintext) {
			t.Fatal("round trip mismatch")
		}
	})
}

func TestDecrypt_Tampered(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		plaintext := rapid.SliceOfN(rapid.Byte(), 0, 512).Draw(t, "plaintext")

		ciphertext, nonce, key, err := libkb.Encrypt(plaintext)
		if err != nil {
			t.Fatal(err)
		}

		total := len(ciphertext) + len(nonce)
		bit := rapid.IntRange(0, total*8-1).Draw(t, "bit")
		i := bit / 8
		mask := byte(1 << (bit % 8))
		if i < len(ciphertext) {
			ciphertext[i] ^= mask
		} else {
			nonce[i-len(ciphertext)] ^= mask
		}

		decrypted, err := libkb.Decrypt(ciphertext, nonce, key)
		if !errors.Is(err, libkb.ErrDecryptionFailed) {
			t.Fatalf("expected decryption failure, got %v", err)
		}
		if decrypted != nil {
			t.Fatal("plaintext returned on failure")
		}
	})
}

func TestDecrypt_WrongKey(t *testing.T) {
	ciphertext, nonce, _, err := libkb.Encrypt([]byte("secret article"))
	assert.NoError(t, err)

	other, err := libkb.GenerateKey()
	assert.NoError(t, err)

	plaintext, err := libkb.Decrypt(ciphertext, nonce, other)
	assert.ErrorIs(t, err, libkb.ErrDecryptionFailed)
	assert.Nil(t, plaintext)

	_, err = libkb.Decrypt(ciphertext, nonce[:8], other)
	assert.ErrorIs(t, err, libkb.ErrDecryptionFailed)

	_, err = libkb.Decrypt(ciphertext, nonce, other[:16])
	assert.ErrorIs(t, err, libkb.ErrDecryptionFailed)
}

func TestSealOpen(t *testing.T) {
	key, err := libkb.GenerateKey()
	assert.NoError(t, err)

	framed, err := libkb.Seal([]byte("framed"), key)
	assert.NoError(t, err)
	assert.Greater(t, len(framed), libkb.NonceSize)

	plaintext, err := libkb.Open(framed, key)
	assert.NoError(t, err)
	assert.Equal(t, "framed", string(plaintext))

	_, err = libkb.Open(framed[:4], key)
	assert.ErrorIs(t, err, libkb.ErrDecryptionFailed)

	framed[0] ^= 1
	_, err = libkb.Open(framed, key)
	assert.ErrorIs(t, err, libkb.ErrDecryptionFailed)
}
