package database

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/asdine/storm/v3/q"
	"github.com/kasblog/kasblog/internal/model"
	"github.com/pkg/errors"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	err = db.Init(&model.ShortURL{})
	return errors.Wrap(err, "could not init short url index")
}

// StormReIndex reindex Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	err = db.ReIndex(&model.ShortURL{})
	return errors.Wrap(err, "could not ReIndex short urls")
}

// StormOpen returns a new Storm database connection.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

// Save inserts or updates the entry in database with the given model.
func (c *strm) Save(m model.Model) error {
	if err := touch(m); err != nil {
		return err
	}
	return errors.Wrap(c.db.Save(m), "could not save the model")
}

// Delete deletes the entry in database with the given model.
func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// FindShortURL returns the short URL for the given short id, expired or not.
func (c *strm) FindShortURL(id string) (*model.ShortURL, error) {
	var s model.ShortURL
	if err := c.db.One("ID", id, &s); err != nil {
		return nil, errors.Wrap(err, "find short url by id")
	}
	return &s, nil
}

// FindActiveShortURLByArticleID returns the most recent short URL of the article still valid at now.
func (c *strm) FindActiveShortURLByArticleID(articleID string, now time.Time) (*model.ShortURL, error) {
	var s model.ShortURL
	err := c.db.Select(q.Eq("ArticleID", articleID), q.Gt("ExpiresAt", now.UTC())).OrderBy("CreatedAt").Reverse().First(&s)
	if err != nil {
		return nil, errors.Wrap(err, "find active short url by article id")
	}
	return &s, nil
}

// ShortURLExists returns true if the short id is already used.
func (c *strm) ShortURLExists(id string) (bool, error) {
	_, err := c.FindShortURL(id)
	if c.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// DeleteExpiredShortURLs removes the short URLs expired at now and returns how many were removed.
func (c *strm) DeleteExpiredShortURLs(now time.Time) (int, error) {
	expired := q.Lte("ExpiresAt", now.UTC())

	n, err := c.db.Select(expired).Count(&model.ShortURL{})
	if err != nil {
		return 0, errors.Wrap(err, "could not count expired short urls")
	}
	if n == 0 {
		return 0, nil
	}

	err = c.db.Select(expired).Delete(&model.ShortURL{})
	if err != nil && !c.IsNotFound(err) {
		return 0, errors.Wrap(err, "could not delete expired short urls")
	}
	return n, nil
}

// ShortURLStats returns statistics about stored short URLs.
func (c *strm) ShortURLStats(now time.Time) (*model.ShortURLStats, error) {
	var stats model.ShortURLStats
	var err error

	stats.Total, err = c.db.Count(&model.ShortURL{})
	if err != nil {
		return nil, errors.Wrap(err, "could not count short urls")
	}

	stats.Active, err = c.db.Select(q.Gt("ExpiresAt", now.UTC())).Count(&model.ShortURL{})
	if err != nil {
		return nil, errors.Wrap(err, "could not count active short urls")
	}

	if stats.Total == 0 {
		return &stats, nil
	}

	var oldest, newest model.ShortURL
	if err = c.db.Select().OrderBy("CreatedAt").First(&oldest); err != nil {
		return nil, errors.Wrap(err, "could not find oldest short url")
	}
	if err = c.db.Select().OrderBy("CreatedAt").Reverse().First(&newest); err != nil {
		return nil, errors.Wrap(err, "could not find newest short url")
	}
	stats.Oldest = oldest.CreatedAt
	stats.Newest = newest.CreatedAt

	return &stats, nil
}
