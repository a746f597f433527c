package client

import (
	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/kasblog/kasblog/pkg/libkb"
	"github.com/pkg/errors"
)

const bucket = "kasblog"

// A StormStore is a file-backed libkb.Store.
type StormStore struct {
	db *storm.DB
}

// OpenStore opens or creates the local store at the given path.
func OpenStore(path string) (*StormStore, error) {
	db, err := storm.Open(path, storm.Codec(msgpack.Codec))
	if err != nil {
		return nil, errors.Wrap(err, "could not open local store")
	}
	return &StormStore{db: db}, nil
}

// Get implements libkb.Store.
func (s *StormStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.Get(bucket, key, &value)
	if errors.Is(err, storm.ErrNotFound) {
		return nil, libkb.ErrNoSuchKey
	}
	return value, err
}

// Set implements libkb.Store.
func (s *StormStore) Set(key string, value []byte) error {
	return s.db.Set(bucket, key, value)
}

// Delete implements libkb.Store.
func (s *StormStore) Delete(key string) error {
	err := s.db.Delete(bucket, key)
	if errors.Is(err, storm.ErrNotFound) {
		return nil
	}
	return err
}

// Close closes the store.
func (s *StormStore) Close() error {
	return s.db.Close()
}
