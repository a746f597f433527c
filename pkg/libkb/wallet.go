package libkb

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
)

// A Wallet is the capability provider used to sign derivation messages and publish payloads.
// Calls may block until the user approves them; there is no way to cancel an in-flight signature.
type Wallet interface {
	// IsAvailable reports whether a wallet is installed.
	IsAvailable() bool
	// ListAccounts returns the connected addresses, the first one being the active account.
	ListAccounts(ctx context.Context) ([]string, error)
	// SignMessage signs msg with the active account.
	// Key derivation requires signatures to be deterministic.
	SignMessage(ctx context.Context, msg string) (string, error)
	// SendValue transfers amount (smallest unit) to the given address and returns the transaction id.
	SendValue(ctx context.Context, to string, amount int64) (string, error)
}

// A MemoryWallet is an in-process Wallet producing HMAC-SHA256 signatures.
// It can be disconnected and reconnected to simulate the wallet extension lifecycle.
type MemoryWallet struct {
	mu        sync.Mutex
	address   string
	secret    []byte
	connected bool
	installed bool
	sequence  int
}

// NewMemoryWallet returns a connected MemoryWallet.
func NewMemoryWallet(address string, secret []byte) *MemoryWallet {
	return &MemoryWallet{
		address:   address,
		secret:    secret,
		connected: true,
		installed: true,
	}
}

// Connect reconnects the account.
func (w *MemoryWallet) Connect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.installed = true
	w.connected = true
}

// Disconnect removes the account from ListAccounts.
func (w *MemoryWallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
}

// Uninstall makes IsAvailable return false.
func (w *MemoryWallet) Uninstall() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.installed = false
}

// IsAvailable implements Wallet.
func (w *MemoryWallet) IsAvailable() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.installed
}

// ListAccounts implements Wallet.
func (w *MemoryWallet) ListAccounts(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.installed {
		return nil, ErrWalletNotInstalled
	}
	if !w.connected {
		return nil, nil
	}
	return []string{w.address}, ctx.Err()
}

// SignMessage implements Wallet.
func (w *MemoryWallet) SignMessage(ctx context.Context, msg string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.installed {
		return "", ErrWalletNotInstalled
	}
	if !w.connected {
		return "", ErrNoAccountConnected
	}

	mac := hmac.New(sha256.New, w.secret)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil)), ctx.Err()
}

// SendValue implements Wallet.
func (w *MemoryWallet) SendValue(ctx context.Context, to string, amount int64) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.installed {
		return "", ErrWalletNotInstalled
	}
	if !w.connected {
		return "", ErrNoAccountConnected
	}

	w.sequence++
	h := sha256.New()
	h.Write([]byte(w.address))
	h.Write([]byte(to))
	h.Write([]byte(strconv.FormatInt(amount, 10)))
	h.Write([]byte(strconv.Itoa(w.sequence)))
	return hex.EncodeToString(h.Sum(nil)), ctx.Err()
}
