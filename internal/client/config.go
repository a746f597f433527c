package client

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chzyer/readline"
	sargon2 "github.com/mdouchement/simple-argon2"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	saltKeyLength = 16
	// Filename is the default location of the sealed configuration.
	Filename = ".kasblog"
)

// A Config holds client's configuration.
type Config struct {
	Endpoint  string `json:"endpoint"` // Short URL service, optional
	Origin    string `json:"origin"`   // Public origin used to build article links
	Seed      string `json:"seed"`     // Wallet seed
	Store     string `json:"store"`
	Timeout   string `json:"timeout,omitempty"`
	StoreKeys bool   `json:"store_keys,omitempty"`
	LogFile   string `json:"log_file,omitempty"`
}

// HTTPTimeout returns the configured timeout of the short URL client.
func (cfg Config) HTTPTimeout() time.Duration {
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

// Load gets the configuration from the given sealed file.
func Load(filename string) (Config, error) {
	ciphertext, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, errors.Wrap(err, "could not read config file")
	}

	passphrase, err := readline.Password("passphrase: ")
	if err != nil {
		return Config{}, errors.Wrap(err, "could not read passphrase from stdin")
	}

	return Unseal(ciphertext, passphrase)
}

// Save stores the configuration in the given file sealed by a prompted passphrase.
func Save(filename string, cfg Config) error {
	fmt.Println("Storing configuration as " + filename)
	passphrase, err := readline.Password("passphrase: ")
	if err != nil {
		return errors.Wrap(err, "could not read passphrase from stdin")
	}

	ciphertext, err := Seal(cfg, passphrase)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", filename)
	}
	defer f.Close()

	_, err = f.Write(ciphertext)
	if err != nil {
		return errors.Wrap(err, "could not store config")
	}

	return errors.Wrap(f.Sync(), "could not store config")
}

// Seal encrypts the configuration with the passphrase.
// The output is salt || nonce || ciphertext.
func Seal(cfg Config, passphrase []byte) ([]byte, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "could not serialize config")
	}

	//
	// Key derivation of passphrase

	salt, err := sargon2.GenerateRandomBytes(saltKeyLength)
	if err != nil {
		return nil, errors.Wrap(err, "could not generate salt for config")
	}
	hash := argon2.IDKey(passphrase, salt, 3, 64<<10, 2, 32)

	//
	// Seal config

	aead, err := chacha20poly1305.NewX(hash)
	if err != nil {
		return nil, errors.Wrap(err, "could not create AEAD")
	}
	nonce, err := sargon2.GenerateRandomBytes(uint32(aead.NonceSize()))
	if err != nil {
		return nil, errors.Wrap(err, "could not generate nonce for config")
	}

	ciphertext := aead.Seal(nil, nonce, payload, nil)
	ciphertext = append(nonce, ciphertext...)
	return append(salt, ciphertext...), nil
}

// Unseal decrypts a configuration sealed by Seal.
func Unseal(ciphertext, passphrase []byte) (Config, error) {
	var cfg Config

	if len(ciphertext) < saltKeyLength+chacha20poly1305.NonceSizeX {
		return cfg, errors.New("config file is truncated")
	}

	//
	// Key derivation of passphrase

	salt := ciphertext[:saltKeyLength]
	ciphertext = ciphertext[saltKeyLength:]
	hash := argon2.IDKey(passphrase, salt, 3, 64<<10, 2, 32)

	//
	// Open config

	aead, err := chacha20poly1305.NewX(hash)
	if err != nil {
		return cfg, errors.Wrap(err, "could not create AEAD")
	}

	nonce := ciphertext[:aead.NonceSize()]
	ciphertext = ciphertext[aead.NonceSize():]

	payload, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return cfg, errors.Wrap(err, "could not decrypt config file")
	}

	err = json.Unmarshal(payload, &cfg)
	return cfg, errors.Wrap(err, "could not parse config")
}
