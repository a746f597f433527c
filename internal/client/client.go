package client

import (
	"net/http"

	"github.com/kasblog/kasblog/pkg/libkb"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultStore is the local store path used when the configuration does not set one.
const DefaultStore = "kasblog.db"

// A Client is the article service of the configured wallet and local store.
type Client struct {
	*libkb.Service

	Wallet *KeyWallet
	store  *StormStore
	logger logrus.FieldLogger
}

// New returns a Client for the given configuration.
func New(cfg Config, logger logrus.FieldLogger) (*Client, error) {
	wallet, err := NewKeyWallet(cfg.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "could not load wallet")
	}

	path := cfg.Store
	if path == "" {
		path = DefaultStore
	}
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}

	var shorturl *libkb.ShortURLClient
	if cfg.Endpoint != "" {
		shorturl, err = libkb.NewShortURLClient(&http.Client{Timeout: cfg.HTTPTimeout()}, cfg.Endpoint, cfg.Origin, logger)
		if err != nil {
			store.Close()
			return nil, errors.Wrap(err, "could not reach short url endpoint")
		}
		shorturl.SendKey = cfg.StoreKeys
	}

	return &Client{
		Service: libkb.NewService(libkb.Config{
			Store:    store,
			Wallet:   wallet,
			ShortURL: shorturl,
			Origin:   cfg.Origin,
			Logger:   logger,
		}),
		Wallet: wallet,
		store:  store,
		logger: logger,
	}, nil
}

// Close releases the local store.
func (c *Client) Close() error {
	return c.store.Close()
}
