package libkb

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// PublishMode selects the publish artifact requested from the wallet.
type PublishMode string

const (
	// PublishSign asks the wallet to sign the payload.
	PublishSign PublishMode = "sign"
	// PublishTransaction asks the wallet to send PublishAmount to itself.
	PublishTransaction PublishMode = "transaction"
)

// PublishAmount is the value (smallest unit) of a publish transaction.
const PublishAmount int64 = 100000

type (
	// Config holds the collaborators of a Service.
	Config struct {
		Store  Store
		Wallet Wallet
		// ShortURL is optional, without it Share only returns a full URL.
		ShortURL *ShortURLClient
		Origin   string
		Logger   logrus.FieldLogger
		Now      func() time.Time
	}

	// A Service publishes, stores, shares and opens articles.
	Service struct {
		store    *LocalStore
		wallet   Wallet
		deriver  *KeyDeriver
		shorturl *ShortURLClient
		origin   string
		logger   logrus.FieldLogger
		now      func() time.Time
	}

	// A PublishResult describes a published article.
	PublishResult struct {
		Article   *Article
		Encrypted *EncryptedArticle
		SharedKey *SharedKey
		Mode      PublishMode
		Artifact  string
		Payload   []byte
	}

	// A Summary is a listed article.
	Summary struct {
		ID string
		Metadata
	}
)

// NewService returns a new Service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	deriver := NewKeyDeriver(cfg.Wallet)
	deriver.now = cfg.Now

	return &Service{
		store:    NewLocalStore(cfg.Store),
		wallet:   cfg.Wallet,
		deriver:  deriver,
		shorturl: cfg.ShortURL,
		origin:   cfg.Origin,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// LocalStore returns the underlying typed store.
func (s *Service) LocalStore() *LocalStore {
	return s.store
}

// Publish encrypts and stores the article, then asks the wallet for a publish artifact.
// Failing to store the article is fatal, failing to store keys or records is only logged.
func (s *Service) Publish(ctx context.Context, a *Article, mode PublishMode) (*PublishResult, error) {
	author, err := s.deriver.Account(ctx)
	if err != nil {
		return nil, err
	}
	if err = a.Validate(); err != nil {
		return nil, err
	}

	if a.ID == "" {
		a.ID = NewArticleID()
	}
	a.Author = author
	a.Touch(s.now())
	logger := s.logger.WithField("article_id", a.ID)

	//
	// Keying

	var key []byte
	var shared *SharedKey
	var epoch int64
	if a.IsPublic {
		if shared, err = GenerateSharedKey(a.ID); err != nil {
			return nil, err
		}
		if key, err = shared.Bytes(); err != nil {
			return nil, errors.Wrap(ErrKeyGenerationFailed, err.Error())
		}
	} else {
		ak, err := s.deriver.DeriveArticleKey(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		key = ak.Key
		epoch = ak.Epoch
	}

	ea, err := SealArticle(a, key)
	if err != nil {
		return nil, err
	}
	ea.Metadata.KeyEpoch = epoch
	if shared != nil {
		ea.Metadata.KeyID = shared.KeyID
	}

	payload, err := BuildPayload(ea, shared, a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	//
	// Publishing

	var artifact string
	switch mode {
	case PublishTransaction:
		artifact, err = s.wallet.SendValue(ctx, author, PublishAmount)
	default:
		mode = PublishSign
		artifact, err = s.wallet.SignMessage(ctx, string(payload))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not publish (%s)", mode)
	}
	a.TxID = artifact
	ea.Metadata.TxID = artifact

	//
	// Persisting

	if err = s.store.SaveArticle(ea); err != nil {
		return nil, err
	}
	if shared != nil {
		if err := s.store.SaveSharedKey(shared); err != nil {
			logger.WithError(err).Warn("could not store article key")
		}
	}
	record := &PublishRecord{
		ArticleID: a.ID,
		Artifact:  artifact,
		Payload:   string(payload),
		Address:   author,
		Timestamp: UnixMillisecond(s.now()),
	}
	if err := s.store.SavePublishRecord(mode, record); err != nil {
		logger.WithError(err).Warn("could not store publish record")
	}

	logger.WithField("mode", mode).WithField("public", a.IsPublic).Info("article published")
	return &PublishResult{
		Article:   a,
		Encrypted: ea,
		SharedKey: shared,
		Mode:      mode,
		Artifact:  artifact,
		Payload:   payload,
	}, nil
}

// Read decrypts a locally stored article.
// Private articles need the publishing wallet to be connected.
func (s *Service) Read(ctx context.Context, id string) (*Article, error) {
	ea, err := s.store.Article(id)
	if err != nil {
		return nil, err
	}

	key, err := s.articleKey(ctx, ea)
	if err != nil {
		return nil, err
	}
	return OpenArticle(ea, key)
}

// List returns the summaries of the stored articles, newest first.
func (s *Service) List() ([]Summary, error) {
	articles, err := s.store.Articles()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(articles))
	for _, ea := range articles {
		summaries = append(summaries, Summary{ID: ea.ID, Metadata: ea.Metadata})
	}
	return summaries, nil
}

// Delete removes an article with its key and publish records.
func (s *Service) Delete(id string) error {
	if _, err := s.store.Article(id); err != nil {
		return err
	}
	if err := s.store.DeleteArticle(id); err != nil {
		return err
	}
	if err := s.store.DeleteSharedKey(id); err != nil {
		s.logger.WithError(err).WithField("article_id", id).Warn("could not delete article key")
	}
	if err := s.store.DeletePublishRecords(id); err != nil {
		s.logger.WithError(err).WithField("article_id", id).Warn("could not delete publish records")
	}
	return nil
}

// Share returns the distributable links of a public article.
// When the short URL cannot be created, the full link is returned along with the error.
func (s *Service) Share(ctx context.Context, id string) (*ShortURL, error) {
	a, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsPublic {
		return nil, ErrPrivateArticleNotShareable
	}

	full, err := FullURL(s.origin, a)
	if err != nil {
		return nil, err
	}
	if s.shorturl == nil {
		return &ShortURL{FullURL: full}, nil
	}

	var shared []byte
	if k, err := s.store.SharedKey(id); err == nil {
		shared, _ = k.Bytes()
	}
	links, err := s.shorturl.Create(ctx, a, shared)
	if err != nil {
		// The full link does not depend on the short URL service.
		return &ShortURL{FullURL: full}, errors.Wrap(err, "could not create short url")
	}
	return links, nil
}

// ShareLink returns `<origin>/articles/<id>?key=<keyId>`, readable by holders of the local key store.
func (s *Service) ShareLink(id string) (string, error) {
	ea, err := s.store.Article(id)
	if err != nil {
		return "", err
	}
	if !ea.Metadata.IsPublic {
		return "", ErrPrivateArticleNotShareable
	}

	k, err := s.sharedKey(id)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set(ParamKeyID, k.KeyID)
	return ArticleURL(s.origin, id, query), nil
}

// Open resolves an article URL.
// Strategies are tried in order: short link, compact link, plain link, local store, shared cache.
// Only crypto and wallet errors of the local store strategy are returned as is.
func (s *Service) Open(ctx context.Context, rawurl string) (*Article, error) {
	id, query, err := ParseArticleURL(rawurl)
	if err != nil {
		return nil, err
	}
	logger := s.logger.WithField("id", id)

	if k := query.Get(ParamShortKey); k != "" && s.shorturl != nil {
		key, err := DecodeURLKey(k)
		if err != nil {
			logger.WithError(err).Debug("invalid short url key")
		} else if a := s.shorturl.Resolve(ctx, id, key); a != nil {
			s.cache(a, id)
			return a, nil
		}
	}

	a, err := DecodeLink(query, id)
	if err == nil {
		s.cache(a)
		return a, nil
	}
	if query.Has(ParamCompact) || query.Has(ParamShared) {
		logger.WithError(err).Debug("could not decode link")
	}

	if keyID := query.Get(ParamKeyID); keyID != "" {
		if k, err := s.store.SharedKeyByID(keyID); err == nil && k.ArticleID == id {
			ea, err := s.store.Article(id)
			if err == nil {
				if key, err := k.Bytes(); err == nil {
					return OpenArticle(ea, key)
				}
			}
		}
	}

	a, err = s.Read(ctx, id)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrArticleNotFound) {
		return nil, err
	}

	a, err = s.store.CachedSharedArticle(id, s.now())
	if err == nil {
		return a, nil
	}
	return nil, ErrArticleNotFound
}

// RecoverKey re-extracts the shared key of a public article from its publish payload and stores it.
func (s *Service) RecoverKey(id string) (*SharedKey, error) {
	records, err := s.store.PublishRecords(id)
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		k, err := RecoverKey([]byte(r.Payload))
		if err != nil {
			s.logger.WithError(err).WithField("article_id", id).Debug("could not recover key from record")
			continue
		}
		if k.ArticleID == "" {
			k.ArticleID = id
		}
		if err = s.store.SaveSharedKey(k); err != nil {
			s.logger.WithError(err).WithField("article_id", id).Warn("could not store recovered key")
		}
		return k, nil
	}
	return nil, ErrKeyNotFound
}

// RevalidateAccess checks that the article can still be decrypted:
// by re-deriving its key for private articles, by finding its key for public ones.
func (s *Service) RevalidateAccess(ctx context.Context, id string) error {
	ea, err := s.store.Article(id)
	if err != nil {
		return err
	}

	key, err := s.articleKey(ctx, ea)
	if err != nil {
		return err
	}
	_, err = OpenArticle(ea, key)
	return err
}

// SaveDraft stores the article being written.
func (s *Service) SaveDraft(d *Draft) error {
	d.SavedAt = UnixMillisecond(s.now())
	return s.store.SaveDraft(d)
}

// LoadDraft returns the saved draft, nil if there is none.
func (s *Service) LoadDraft() (*Draft, error) {
	return s.store.Draft()
}

// ClearDraft removes the saved draft.
func (s *Service) ClearDraft() error {
	return s.store.ClearDraft()
}

// PurgeSharedCache removes the expired entries of the shared-article cache.
func (s *Service) PurgeSharedCache() (int, error) {
	return s.store.PurgeSharedArticles(s.now())
}

////
///
//

func (s *Service) articleKey(ctx context.Context, ea *EncryptedArticle) ([]byte, error) {
	if !ea.Metadata.IsPublic {
		ak, err := s.deriver.DeriveArticleKeyAt(ctx, ea.ID, ea.Metadata.KeyEpoch)
		if err != nil {
			return nil, err
		}
		return ak.Key, nil
	}

	k, err := s.sharedKey(ea.ID)
	if err != nil {
		return nil, err
	}
	return k.Bytes()
}

// sharedKey looks the key up in the key store then falls back on the publish payloads.
func (s *Service) sharedKey(id string) (*SharedKey, error) {
	k, err := s.store.SharedKey(id)
	if err == nil {
		return k, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		s.logger.WithError(err).WithField("article_id", id).Warn("could not read article key")
	}
	return s.RecoverKey(id)
}

func (s *Service) cache(a *Article, aliases ...string) {
	if err := s.store.CacheSharedArticle(a, s.now(), aliases...); err != nil {
		s.logger.WithError(err).WithField("article_id", a.ID).Warn("could not cache shared article")
	}
}
