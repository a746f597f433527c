package database

import (
	"time"

	"github.com/kasblog/kasblog/internal/model"
	"github.com/pkg/errors"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverStorm  = "storm"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		ShortURLInteraction
	}

	// A ShortURLInteraction defines all the methods used to interact with a short URL record(s).
	ShortURLInteraction interface {
		// FindShortURL returns the short URL for the given short id, expired or not.
		FindShortURL(id string) (*model.ShortURL, error)
		// FindActiveShortURLByArticleID returns the most recent short URL of the article still valid at now.
		FindActiveShortURLByArticleID(articleID string, now time.Time) (*model.ShortURL, error)
		// ShortURLExists returns true if the short id is already used.
		ShortURLExists(id string) (bool, error)
		// DeleteExpiredShortURLs removes the short URLs expired at now and returns how many were removed.
		DeleteExpiredShortURLs(now time.Time) (int, error)
		// ShortURLStats returns statistics about stored short URLs.
		ShortURLStats(now time.Time) (*model.ShortURLStats, error)
	}
)

// Init creates the schema of the database.
func Init(driver, path string) error {
	switch driver {
	case DriverSQLite, "":
		return SQLiteInit(path)
	case DriverStorm:
		return StormInit(path)
	}
	return errors.Errorf("unsupported database driver: %s", driver)
}

// Open returns a new database connection for the given driver.
func Open(driver, path string) (Client, error) {
	switch driver {
	case DriverSQLite, "":
		return SQLiteOpen(path)
	case DriverStorm:
		return StormOpen(path)
	}
	return nil, errors.Errorf("unsupported database driver: %s", driver)
}

func touch(m model.Model) error {
	if m.GetID() == "" {
		return errors.New("model has no id")
	}

	t := time.Now().UTC()
	m.SetUpdatedAt(t)
	if m.GetCreatedAt() == nil {
		m.SetCreatedAt(t)
	}
	return nil
}
