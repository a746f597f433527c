package libkb

import (
	"encoding/base64"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

// MaxContentSize is the maximum UTF-8 size in bytes of an article body.
const MaxContentSize = 10 * 1024

type (
	// An Article is a decrypted blog article.
	Article struct {
		ID        string   `json:"id"`
		Title     string   `json:"title"`
		Content   string   `json:"content"`
		Image     string   `json:"image,omitempty"`
		Tags      []string `json:"tags,omitempty"`
		IsPublic  bool     `json:"isPublic"`
		Price     int64    `json:"price,omitempty"`
		Author    string   `json:"author"`
		CreatedAt int64    `json:"createdAt"`
		UpdatedAt int64    `json:"updatedAt"`
		TxID      string   `json:"txId,omitempty"`
	}

	// Metadata holds the non-secret fields of an article.
	Metadata struct {
		Title         string   `json:"title"`
		Tags          []string `json:"tags,omitempty"`
		Image         string   `json:"image,omitempty"`
		IsPublic      bool     `json:"isPublic"`
		Price         int64    `json:"price,omitempty"`
		Author        string   `json:"author"`
		CreatedAt     int64    `json:"createdAt"`
		UpdatedAt     int64    `json:"updatedAt"`
		TxID          string   `json:"txId,omitempty"`
		ContentLength int      `json:"contentLength"`
		KeyID         string   `json:"keyId,omitempty"`
		KeyEpoch      int64    `json:"keyEpoch,omitempty"`
	}

	// An EncryptedArticle is the persisted form of an Article.
	EncryptedArticle struct {
		ID         string   `json:"id"`
		Ciphertext string   `json:"encryptedContent"`
		Nonce      string   `json:"nonce"`
		Metadata   Metadata `json:"metadata"`
	}
)

// NewArticleID returns a new random article identifier.
func NewArticleID() string {
	return uuid.Must(uuid.NewV4()).String()
}

// CheckContentSize returns a *ContentTooLargeError when content exceeds MaxContentSize.
func CheckContentSize(content string) error {
	if n := len(content); n > MaxContentSize {
		return &ContentTooLargeError{Size: n, Limit: MaxContentSize}
	}
	return nil
}

// Validate checks the article invariants.
func (a *Article) Validate() error {
	if err := CheckContentSize(a.Content); err != nil {
		return err
	}
	if !a.IsPublic && a.Price <= 0 {
		return ErrPriceRequired
	}
	return nil
}

// Touch sets the creation and update times.
func (a *Article) Touch(now time.Time) {
	ms := UnixMillisecond(now)
	if a.CreatedAt == 0 {
		a.CreatedAt = ms
	}
	a.UpdatedAt = ms
}

// SealArticle encrypts the article body under key.
func SealArticle(a *Article, key []byte) (*EncryptedArticle, error) {
	if err := CheckContentSize(a.Content); err != nil {
		return nil, err
	}

	ciphertext, nonce, err := EncryptWithKey([]byte(a.Content), key)
	if err != nil {
		return nil, err
	}

	return &EncryptedArticle{
		ID:         a.ID,
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Metadata: Metadata{
			Title:         a.Title,
			Tags:          a.Tags,
			Image:         a.Image,
			IsPublic:      a.IsPublic,
			Price:         a.Price,
			Author:        a.Author,
			CreatedAt:     a.CreatedAt,
			UpdatedAt:     a.UpdatedAt,
			TxID:          a.TxID,
			ContentLength: len(a.Content),
		},
	}, nil
}

// OpenArticle decrypts the record with key and rebuilds the Article.
func OpenArticle(ea *EncryptedArticle, key []byte) (*Article, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ea.Ciphertext)
	if err != nil {
		return nil, errors.Wrap(ErrDecryptionFailed, "could not decode ciphertext")
	}

	nonce, err := base64.StdEncoding.DecodeString(ea.Nonce)
	if err != nil {
		return nil, errors.Wrap(ErrDecryptionFailed, "could not decode nonce")
	}

	content, err := Decrypt(ciphertext, nonce, key)
	if err != nil {
		return nil, err
	}
	if len(content) != ea.Metadata.ContentLength {
		return nil, errors.Wrapf(ErrDecryptionFailed, "content length mismatch: %d != %d", len(content), ea.Metadata.ContentLength)
	}

	m := ea.Metadata
	return &Article{
		ID:        ea.ID,
		Title:     m.Title,
		Content:   string(content),
		Image:     m.Image,
		Tags:      m.Tags,
		IsPublic:  m.IsPublic,
		Price:     m.Price,
		Author:    m.Author,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		TxID:      m.TxID,
	}, nil
}
