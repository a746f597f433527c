package client

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/kasblog/kasblog/pkg/libkb"
	sargon2 "github.com/mdouchement/simple-argon2"
	"github.com/pkg/errors"
)

// A KeyWallet is a libkb.Wallet backed by an ed25519 key.
// Ed25519 signatures are deterministic so the article keys can be derived again from the same seed.
type KeyWallet struct {
	mu       sync.Mutex
	key      ed25519.PrivateKey
	address  string
	sequence int
}

// GenerateSeed returns a new encoded wallet seed.
func GenerateSeed() (string, error) {
	seed, err := sargon2.GenerateRandomBytes(ed25519.SeedSize)
	if err != nil {
		return "", errors.Wrap(err, "could not generate wallet seed")
	}
	return base64.StdEncoding.EncodeToString(seed), nil
}

// NewKeyWallet returns the wallet of the given encoded seed.
func NewKeyWallet(seed string) (*KeyWallet, error) {
	raw, err := base64.StdEncoding.DecodeString(seed)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode wallet seed")
	}
	if len(raw) != ed25519.SeedSize {
		return nil, errors.Errorf("invalid wallet seed size %d", len(raw))
	}

	key := ed25519.NewKeyFromSeed(raw)
	return &KeyWallet{
		key:     key,
		address: Address(key.Public().(ed25519.PublicKey)),
	}, nil
}

// Address returns the account address of the public key.
func Address(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return "kaspa:" + hex.EncodeToString(sum[:20])
}

// Address returns the account address of the wallet.
func (w *KeyWallet) Address() string {
	return w.address
}

// Verify reports whether sig is a valid signature of msg by the wallet.
func (w *KeyWallet) Verify(msg, sig string) bool {
	raw, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return ed25519.Verify(w.key.Public().(ed25519.PublicKey), []byte(msg), raw)
}

// IsAvailable implements libkb.Wallet.
func (w *KeyWallet) IsAvailable() bool {
	return true
}

// ListAccounts implements libkb.Wallet.
func (w *KeyWallet) ListAccounts(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []string{w.address}, nil
}

// SignMessage implements libkb.Wallet.
func (w *KeyWallet) SignMessage(ctx context.Context, msg string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return hex.EncodeToString(ed25519.Sign(w.key, []byte(msg))), nil
}

// SendValue implements libkb.Wallet.
// Nothing is broadcast, the returned id is the hash of the signed transfer.
func (w *KeyWallet) SendValue(ctx context.Context, to string, amount int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", errors.Errorf("invalid amount %d", amount)
	}

	w.mu.Lock()
	w.sequence++
	tx := fmt.Sprintf("%s>%s:%d#%d", w.address, to, amount, w.sequence)
	w.mu.Unlock()

	sum := sha256.Sum256(ed25519.Sign(w.key, []byte(tx)))
	return hex.EncodeToString(sum[:]), nil
}

var _ libkb.Wallet = (*KeyWallet)(nil)
