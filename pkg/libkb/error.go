package libkb

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// Cryptographic errors.
var (
	// ErrKeyGenerationFailed is returned when the random source cannot produce key material.
	ErrKeyGenerationFailed = errors.New("key generation failed")
	// ErrNonceGenerationFailed is returned when the random source cannot produce a nonce.
	ErrNonceGenerationFailed = errors.New("nonce generation failed")
	// ErrEncryptionFailed is returned when a plaintext could not be sealed.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrDecryptionFailed is returned on authentication failure or malformed input.
	// No plaintext is ever returned along with it.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Packaging errors.
var (
	// ErrContentTooLarge is matched by *ContentTooLargeError.
	ErrContentTooLarge = errors.New("content too large")
	// ErrPayloadTooLarge is matched by *PayloadTooLargeError.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrPriceRequired is returned when a private article has no positive price.
	ErrPriceRequired = errors.New("private article requires a price greater than zero")
	// ErrInvalidPayload is returned when a publish payload cannot be understood.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Wallet and key derivation errors.
var (
	// ErrWalletNotInstalled is returned when no wallet is available.
	ErrWalletNotInstalled = errors.New("wallet not installed")
	// ErrNoAccountConnected is returned when the wallet exposes no account.
	ErrNoAccountConnected = errors.New("no account connected")
	// ErrKeyDerivationFailed wraps any signing or HKDF failure.
	ErrKeyDerivationFailed = errors.New("key derivation failed")
	// ErrKeyNotFound is returned when a shared key is not in the local store.
	ErrKeyNotFound = errors.New("article key not found")
)

// Sharing errors.
var (
	// ErrPrivateArticleNotShareable is returned when a link is requested for a private article.
	ErrPrivateArticleNotShareable = errors.New("private article is not shareable")
	// ErrShortURLNotFound maps to HTTP 404 (unknown or expired short id).
	ErrShortURLNotFound = errors.New("short url not found")
	// ErrInvalidShortID maps to HTTP 400.
	ErrInvalidShortID = errors.New("invalid short id")
	// ErrLinkMismatch is returned when a decoded link does not describe the expected public article.
	ErrLinkMismatch = errors.New("link does not match the requested article")
	// ErrArticleNotFound is returned once every resolution strategy failed.
	ErrArticleNotFound = errors.New("article not found")
)

// A ContentTooLargeError reports the measured and allowed body sizes in bytes.
type ContentTooLargeError struct {
	Size  int
	Limit int
}

func (e *ContentTooLargeError) Error() string {
	return fmt.Sprintf("content too large: %d bytes (max %d)", e.Size, e.Limit)
}

// Is makes errors.Is(err, ErrContentTooLarge) true.
func (e *ContentTooLargeError) Is(target error) bool {
	return target == ErrContentTooLarge
}

// A PayloadTooLargeError reports the measured and allowed serialized payload sizes in bytes.
type PayloadTooLargeError struct {
	Size  int
	Limit int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload too large: %d bytes (max %d)", e.Size, e.Limit)
}

// Is makes errors.Is(err, ErrPayloadTooLarge) true.
func (e *PayloadTooLargeError) Is(target error) bool {
	return target == ErrPayloadTooLarge
}

// A StorageError wraps a local persistence failure.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying persistence error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// An APIError represents an HTTP error returned by the short-URL service.
type APIError struct {
	StatusCode int
	Err        struct {
		Tag     string `json:"tag"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseAPIError(r io.Reader, code int) error {
	apierr := &APIError{StatusCode: code}
	dec := json.NewDecoder(r)
	if err := dec.Decode(apierr); err != nil || apierr.Err.Message == "" {
		apierr.Err.Message = http.StatusText(code)
	}

	switch code {
	case http.StatusNotFound:
		return errors.Wrap(ErrShortURLNotFound, apierr.Error())
	case http.StatusBadRequest:
		if apierr.Err.Tag == "invalid-short-id" {
			return errors.Wrap(ErrInvalidShortID, apierr.Error())
		}
	}
	return apierr
}

func (e *APIError) Error() string {
	return e.Err.Message
}
