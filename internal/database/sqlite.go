package database

import (
	"time"

	"github.com/glebarez/sqlite"
	"github.com/kasblog/kasblog/internal/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sqlt struct {
	db *gorm.DB
}

func sqliteConnect(database string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(database), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	// Requests are serialized through a single connection.
	sqldb, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "could not get database handle")
	}
	sqldb.SetMaxOpenConns(1)

	return db, nil
}

// SQLiteInit creates the SQLite schema.
func SQLiteInit(database string) error {
	db, err := sqliteConnect(database)
	if err != nil {
		return err
	}

	sqldb, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "could not get database handle")
	}
	defer sqldb.Close()

	return errors.Wrap(db.AutoMigrate(&model.ShortURL{}), "could not migrate short urls")
}

// SQLiteOpen returns a new SQLite database connection.
// The schema is migrated on open.
func SQLiteOpen(database string) (Client, error) {
	db, err := sqliteConnect(database)
	if err != nil {
		return nil, err
	}

	if err = db.AutoMigrate(&model.ShortURL{}); err != nil {
		return nil, errors.Wrap(err, "could not migrate short urls")
	}

	return &sqlt{
		db: db,
	}, nil
}

// Save inserts or updates the entry in database with the given model.
func (c *sqlt) Save(m model.Model) error {
	if err := touch(m); err != nil {
		return err
	}
	return errors.Wrap(c.db.Save(m).Error, "could not save the model")
}

// Delete deletes the entry in database with the given model.
func (c *sqlt) Delete(m model.Model) error {
	return errors.Wrap(c.db.Delete(m).Error, "could not delete the model")
}

// Close the database.
func (c *sqlt) Close() error {
	sqldb, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *sqlt) IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// FindShortURL returns the short URL for the given short id, expired or not.
func (c *sqlt) FindShortURL(id string) (*model.ShortURL, error) {
	var s model.ShortURL
	if err := c.db.Where("id = ?", id).First(&s).Error; err != nil {
		return nil, errors.Wrap(err, "find short url by id")
	}
	return &s, nil
}

// FindActiveShortURLByArticleID returns the most recent short URL of the article still valid at now.
func (c *sqlt) FindActiveShortURLByArticleID(articleID string, now time.Time) (*model.ShortURL, error) {
	var s model.ShortURL
	err := c.db.
		Where("article_id = ? AND expires_at > ?", articleID, now.UTC()).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, errors.Wrap(err, "find active short url by article id")
	}
	return &s, nil
}

// ShortURLExists returns true if the short id is already used.
func (c *sqlt) ShortURLExists(id string) (bool, error) {
	var n int64
	err := c.db.Model(&model.ShortURL{}).Where("id = ?", id).Count(&n).Error
	return n > 0, errors.Wrap(err, "could not check short url existence")
}

// DeleteExpiredShortURLs removes the short URLs expired at now and returns how many were removed.
func (c *sqlt) DeleteExpiredShortURLs(now time.Time) (int, error) {
	res := c.db.Where("expires_at <= ?", now.UTC()).Delete(&model.ShortURL{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "could not delete expired short urls")
	}
	return int(res.RowsAffected), nil
}

// ShortURLStats returns statistics about stored short URLs.
func (c *sqlt) ShortURLStats(now time.Time) (*model.ShortURLStats, error) {
	var total, active int64
	if err := c.db.Model(&model.ShortURL{}).Count(&total).Error; err != nil {
		return nil, errors.Wrap(err, "could not count short urls")
	}
	if err := c.db.Model(&model.ShortURL{}).Where("expires_at > ?", now.UTC()).Count(&active).Error; err != nil {
		return nil, errors.Wrap(err, "could not count active short urls")
	}

	stats := &model.ShortURLStats{
		Total:  int(total),
		Active: int(active),
	}
	if total == 0 {
		return stats, nil
	}

	var oldest, newest model.ShortURL
	if err := c.db.Order("created_at ASC").First(&oldest).Error; err != nil {
		return nil, errors.Wrap(err, "could not find oldest short url")
	}
	if err := c.db.Order("created_at DESC").First(&newest).Error; err != nil {
		return nil, errors.Wrap(err, "could not find newest short url")
	}
	stats.Oldest = oldest.CreatedAt
	stats.Newest = newest.CreatedAt

	return stats, nil
}
