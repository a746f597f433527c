package libkb

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

const (
	articleKeySalt   = "kasblog-article-key-v1"
	articleKeyInfo   = "article:"
	shortURLKeySalt  = "kasblog-short-url-v1"
	shortURLKeyInfo  = "short-url:"
	derivationHeader = "kasblog key derivation"
)

type (
	// An ArticleKey is a wallet-derived key of a private article.
	// It is never persisted, only its Epoch is.
	ArticleKey struct {
		Key     []byte
		Epoch   int64
		Address string
	}

	// A SharedKey is the random key of a public article.
	SharedKey struct {
		KeyID     string `json:"keyId"`
		ArticleID string `json:"articleId"`
		Key       string `json:"key"`
		CreatedAt int64  `json:"createdAt"`
	}

	// A KeyDeriver derives private article keys from wallet signatures.
	KeyDeriver struct {
		wallet Wallet
		now    func() time.Time
	}
)

// NewKeyDeriver returns a new KeyDeriver backed by the given wallet.
func NewKeyDeriver(w Wallet) *KeyDeriver {
	return &KeyDeriver{wallet: w, now: time.Now}
}

// Account returns the active wallet address.
func (d *KeyDeriver) Account(ctx context.Context) (string, error) {
	return activeAccount(ctx, d.wallet)
}

// DeriveArticleKey derives a new key for articleID using the current minute as epoch.
func (d *KeyDeriver) DeriveArticleKey(ctx context.Context, articleID string) (*ArticleKey, error) {
	return d.DeriveArticleKeyAt(ctx, articleID, MinuteEpoch(d.now()))
}

// DeriveArticleKeyAt derives the key of articleID for the given epoch.
// The same wallet and epoch always give the same key.
func (d *KeyDeriver) DeriveArticleKeyAt(ctx context.Context, articleID string, epoch int64) (*ArticleKey, error) {
	address, err := d.Account(ctx)
	if err != nil {
		return nil, err
	}

	signature, err := d.wallet.SignMessage(ctx, DerivationMessage(address, epoch))
	if err != nil {
		if errors.Is(err, ErrWalletNotInstalled) || errors.Is(err, ErrNoAccountConnected) {
			return nil, err
		}
		return nil, errors.Wrap(ErrKeyDerivationFailed, err.Error())
	}

	key, err := DeriveKeyFromSignature(signature, articleID)
	if err != nil {
		return nil, err
	}

	return &ArticleKey{
		Key:     key,
		Epoch:   epoch,
		Address: address,
	}, nil
}

// DerivationMessage returns the message signed by the wallet for the given address and epoch.
// The article id is never part of it.
func DerivationMessage(address string, epoch int64) string {
	return fmt.Sprintf("%s\naddress: %s\nepoch: %d", derivationHeader, address, epoch)
}

// DeriveKeyFromSignature expands a wallet signature into the 256-bit key of articleID.
func DeriveKeyFromSignature(signature, articleID string) ([]byte, error) {
	if signature == "" {
		return nil, errors.Wrap(ErrKeyDerivationFailed, "empty signature")
	}

	key, err := hkdf32([]byte(signature), []byte(articleKeySalt), articleKeyInfo+articleID)
	if err != nil {
		return nil, errors.Wrap(ErrKeyDerivationFailed, err.Error())
	}
	return key, nil
}

// DeriveShortURLKey derives the secondary key encrypting a short-URL payload from the article shared key.
func DeriveShortURLKey(sharedKey []byte, articleID string) ([]byte, error) {
	key, err := hkdf32(sharedKey, []byte(shortURLKeySalt), shortURLKeyInfo+articleID)
	if err != nil {
		return nil, errors.Wrap(ErrKeyDerivationFailed, err.Error())
	}
	return key, nil
}

// GenerateSharedKey returns a random key for a public article.
func GenerateSharedKey(articleID string) (*SharedKey, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	id, err := GenerateRandomBytes(KeyIDSize)
	if err != nil {
		return nil, errors.Wrap(ErrKeyGenerationFailed, err.Error())
	}

	return &SharedKey{
		KeyID:     base64.RawURLEncoding.EncodeToString(id)[:KeyIDSize],
		ArticleID: articleID,
		Key:       EncodeKey(key),
		CreatedAt: UnixMillisecond(time.Now()),
	}, nil
}

// Bytes returns the decoded key.
func (k *SharedKey) Bytes() ([]byte, error) {
	return DecodeKey(k.Key)
}

func activeAccount(ctx context.Context, w Wallet) (string, error) {
	if w == nil || !w.IsAvailable() {
		return "", ErrWalletNotInstalled
	}

	accounts, err := w.ListAccounts(ctx)
	if err != nil {
		if errors.Is(err, ErrWalletNotInstalled) {
			return "", err
		}
		return "", errors.Wrap(ErrNoAccountConnected, err.Error())
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return "", ErrNoAccountConnected
	}
	return accounts[0], nil
}
