package service

import (
	"net/http"
	"sync"
	"time"

	"github.com/kasblog/kasblog/internal/database"
	"github.com/kasblog/kasblog/internal/kberror"
	"github.com/kasblog/kasblog/internal/model"
	"github.com/pkg/errors"
)

// DefaultTTL is the lifetime of a short URL.
const DefaultTTL = 30 * 24 * time.Hour

// maxAttempts bounds the short id generation when collisions occur.
const maxAttempts = 10

type (
	// A ShortURLService creates and resolves short URLs.
	// Creations are serialized so an article never gets two active short URLs.
	ShortURLService struct {
		mu        sync.Mutex
		db        database.Client
		ttl       time.Duration
		storeKeys bool
		now       func() time.Time
		shortID   func() string
	}

	// A ShortURLOption configures a ShortURLService.
	ShortURLOption func(*ShortURLService)
)

// WithTTL sets the lifetime of created short URLs.
func WithTTL(ttl time.Duration) ShortURLOption {
	return func(s *ShortURLService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithKeyEscrow persists the encryption keys sent by clients.
func WithKeyEscrow(enabled bool) ShortURLOption {
	return func(s *ShortURLService) {
		s.storeKeys = enabled
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ShortURLOption {
	return func(s *ShortURLService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithShortIDGenerator overrides the short id generator.
func WithShortIDGenerator(g func() string) ShortURLOption {
	return func(s *ShortURLService) {
		s.shortID = g
	}
}

// NewShortURLService returns a new ShortURLService.
func NewShortURLService(db database.Client, opts ...ShortURLOption) *ShortURLService {
	s := &ShortURLService{
		db:      db,
		ttl:     DefaultTTL,
		now:     time.Now,
		shortID: func() string { return ShortID(ShortIDLength) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks the required fields of params.
func (s *ShortURLService) Validate(params CreateParams) error {
	switch {
	case params.ArticleID == "":
		return kberror.MissingField("articleId")
	case params.Title == "":
		return kberror.MissingField("title")
	case params.Author == "":
		return kberror.MissingField("author")
	case params.CreatedAt == 0:
		return kberror.MissingField("createdAt")
	case params.ContentHash == "":
		return kberror.MissingField("contentHash")
	case len(params.EncryptedPayload) == 0:
		return kberror.MissingField("encryptedPayload")
	}
	return nil
}

// Create returns the active short URL of the article or mints a new one.
// The boolean is true when an existing record is returned.
func (s *ShortURLService) Create(params CreateParams) (*model.ShortURL, bool, error) {
	if err := s.Validate(params); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()

	existing, err := s.db.FindActiveShortURLByArticleID(params.ArticleID, now)
	if err == nil {
		return existing, true, nil
	}
	if !s.db.IsNotFound(err) {
		return nil, false, errors.Wrap(err, "could not look up article short url")
	}

	id, err := s.mint()
	if err != nil {
		return nil, false, err
	}

	record := model.NewShortURL(id)
	record.ArticleID = params.ArticleID
	record.Title = params.Title
	record.Author = params.Author
	record.ArticleCreatedAt = params.CreatedAt
	record.ContentHash = params.ContentHash
	record.EncryptedPayload = params.EncryptedPayload
	if s.storeKeys {
		record.EncryptionKey = params.EncryptionKey
	}
	record.SetCreatedAt(now)
	record.ExpiresAt = now.Add(s.ttl)

	if err = s.db.Save(record); err != nil {
		return nil, false, errors.Wrap(err, "could not save short url")
	}
	return record, false, nil
}

// Find returns the short URL if it exists and has not expired.
func (s *ShortURLService) Find(id string) (*model.ShortURL, error) {
	record, err := s.db.FindShortURL(id)
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, kberror.NotFound()
		}
		return nil, err
	}

	if record.Expired(s.now()) {
		return nil, kberror.NotFound()
	}
	return record, nil
}

// Stats returns statistics about stored short URLs.
func (s *ShortURLService) Stats() (*model.ShortURLStats, error) {
	return s.db.ShortURLStats(s.now())
}

func (s *ShortURLService) mint() (string, error) {
	for i := 0; i < maxAttempts; i++ {
		id := s.shortID()

		exists, err := s.db.ShortURLExists(id)
		if err != nil {
			return "", errors.Wrap(err, "could not check short id")
		}
		if !exists {
			return id, nil
		}
	}
	return "", kberror.NewWithTagCode(http.StatusInternalServerError, "", "could not generate a unique short id")
}
