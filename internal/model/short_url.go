package model

import (
	"time"
)

type (
	// A ShortURL represents a database record.
	// Its ID is the public short id.
	ShortURL struct {
		Base `msgpack:",inline" storm:"inline"`

		ArticleID        string    `msgpack:"article_id"         storm:"index" gorm:"index;not null"`
		Title            string    `msgpack:"title"`
		Author           string    `msgpack:"author"`
		ArticleCreatedAt int64     `msgpack:"article_created_at"`
		ContentHash      string    `msgpack:"content_hash"`
		EncryptedPayload []byte    `msgpack:"encrypted_payload"  gorm:"not null"`
		EncryptionKey    []byte    `msgpack:"encryption_key"` // Only stored with key escrow
		ExpiresAt        time.Time `msgpack:"expires_at"         storm:"index" gorm:"index;not null"`
	}

	// ShortURLStats gives an overview of the stored short URLs.
	ShortURLStats struct {
		Total  int
		Active int
		Oldest *time.Time
		Newest *time.Time
	}
)

// NewShortURL returns a new ShortURL with the given short id.
func NewShortURL(id string) *ShortURL {
	s := &ShortURL{}
	s.ID = id
	return s
}

// Expired returns true if the record is no longer served at now.
func (s *ShortURL) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
