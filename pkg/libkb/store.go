package libkb

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrNoSuchKey is returned by a Store when a key is absent.
var ErrNoSuchKey = errors.New("no such key")

// Local store keys.
const (
	KeyArticles            = "kasblog_articles"
	KeyArticleKeys         = "kasblog_article_keys"
	KeyPublishSignatures   = "kasblog_publish_signatures"
	KeyPublishTransactions = "kasblog_publish_transactions"
	KeySharedArticles      = "kasblog_shared_articles"
	KeyDraft               = "kasblog_draft"
)

// SharedArticleTTL is the lifetime of an entry of the shared-article cache.
const SharedArticleTTL = 7 * 24 * time.Hour

type (
	// A Store is a byte-level key/value store.
	Store interface {
		// Get returns ErrNoSuchKey when key is absent.
		Get(key string) ([]byte, error)
		Set(key string, value []byte) error
		Delete(key string) error
	}

	// MemoryStore is an in-memory Store.
	MemoryStore struct {
		mu   sync.RWMutex
		data map[string][]byte
	}

	// A PublishRecord keeps the publish artifact and the raw payload it covers.
	PublishRecord struct {
		ArticleID string `json:"articleId"`
		Artifact  string `json:"artifact"`
		Payload   string `json:"payload"`
		Address   string `json:"address"`
		Timestamp int64  `json:"timestamp"`
	}

	// A SharedArticle is a cached article opened from a link.
	SharedArticle struct {
		Article  Article `json:"article"`
		CachedAt int64   `json:"cachedAt"`
	}

	// A Draft is the article being written.
	Draft struct {
		Title    string   `json:"title"`
		Content  string   `json:"content"`
		Image    string   `json:"image,omitempty"`
		Tags     []string `json:"tags,omitempty"`
		IsPublic bool     `json:"isPublic"`
		Price    int64    `json:"price,omitempty"`
		SavedAt  int64    `json:"savedAt"`
	}

	// LocalStore gives typed access to the collections kept in a Store.
	// Collections are JSON-serialized; read-modify-write cycles are serialized by a mutex
	// which only protects writers sharing the same LocalStore.
	LocalStore struct {
		mu    sync.Mutex
		store Store
	}
)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, ErrNoSuchKey
	}
	return append([]byte(nil), v...), nil
}

// Set implements Store.
func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

////
///
//

// NewLocalStore returns a LocalStore over s.
func NewLocalStore(s Store) *LocalStore {
	return &LocalStore{store: s}
}

func (s *LocalStore) load(key string, v any) error {
	raw, err := s.store.Get(key)
	if errors.Is(err, ErrNoSuchKey) {
		return nil
	}
	if err != nil {
		return &StorageError{Op: "get", Key: key, Err: err}
	}
	if err = json.Unmarshal(raw, v); err != nil {
		return &StorageError{Op: "decode", Key: key, Err: err}
	}
	return nil
}

func (s *LocalStore) save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &StorageError{Op: "encode", Key: key, Err: err}
	}
	if err = s.store.Set(key, raw); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

///// Articles ////

// Articles returns the stored articles sorted by creation date, newest first.
func (s *LocalStore) Articles() ([]EncryptedArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var articles []EncryptedArticle
	if err := s.load(KeyArticles, &articles); err != nil {
		return nil, err
	}
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Metadata.CreatedAt > articles[j].Metadata.CreatedAt
	})
	return articles, nil
}

// Article returns the stored article or ErrArticleNotFound.
func (s *LocalStore) Article(id string) (*EncryptedArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var articles []EncryptedArticle
	if err := s.load(KeyArticles, &articles); err != nil {
		return nil, err
	}
	for i := range articles {
		if articles[i].ID == id {
			return &articles[i], nil
		}
	}
	return nil, ErrArticleNotFound
}

// SaveArticle inserts or replaces an article.
func (s *LocalStore) SaveArticle(ea *EncryptedArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var articles []EncryptedArticle
	if err := s.load(KeyArticles, &articles); err != nil {
		return err
	}

	replaced := false
	for i := range articles {
		if articles[i].ID == ea.ID {
			articles[i] = *ea
			replaced = true
		}
	}
	if !replaced {
		articles = append(articles, *ea)
	}
	return s.save(KeyArticles, articles)
}

// DeleteArticle removes an article.
func (s *LocalStore) DeleteArticle(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var articles []EncryptedArticle
	if err := s.load(KeyArticles, &articles); err != nil {
		return err
	}

	kept := articles[:0]
	for _, a := range articles {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	return s.save(KeyArticles, kept)
}

///// Keys ////

// SaveSharedKey stores the shared key of a public article.
func (s *LocalStore) SaveSharedKey(k *SharedKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := map[string]SharedKey{}
	if err := s.load(KeyArticleKeys, &keys); err != nil {
		return err
	}
	keys[k.ArticleID] = *k
	return s.save(KeyArticleKeys, keys)
}

// SharedKey returns the shared key of articleID or ErrKeyNotFound.
func (s *LocalStore) SharedKey(articleID string) (*SharedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := map[string]SharedKey{}
	if err := s.load(KeyArticleKeys, &keys); err != nil {
		return nil, err
	}
	k, ok := keys[articleID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return &k, nil
}

// SharedKeyByID returns the shared key identified by keyID or ErrKeyNotFound.
func (s *LocalStore) SharedKeyByID(keyID string) (*SharedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := map[string]SharedKey{}
	if err := s.load(KeyArticleKeys, &keys); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k.KeyID == keyID {
			return &k, nil
		}
	}
	return nil, ErrKeyNotFound
}

// DeleteSharedKey removes the shared key of articleID.
func (s *LocalStore) DeleteSharedKey(articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := map[string]SharedKey{}
	if err := s.load(KeyArticleKeys, &keys); err != nil {
		return err
	}
	delete(keys, articleID)
	return s.save(KeyArticleKeys, keys)
}

///// Publish records ////

// SavePublishRecord appends a record to the signatures or transactions collection.
func (s *LocalStore) SavePublishRecord(mode PublishMode, r *PublishRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := publishKey(mode)
	records := map[string]PublishRecord{}
	if err := s.load(key, &records); err != nil {
		return err
	}
	records[r.ArticleID] = *r
	return s.save(key, records)
}

// PublishRecords returns the records of articleID across both collections.
func (s *LocalStore) PublishRecords(articleID string) ([]PublishRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []PublishRecord
	for _, mode := range []PublishMode{PublishSign, PublishTransaction} {
		records := map[string]PublishRecord{}
		if err := s.load(publishKey(mode), &records); err != nil {
			return nil, err
		}
		if r, ok := records[articleID]; ok {
			found = append(found, r)
		}
	}
	return found, nil
}

// DeletePublishRecords removes the records of articleID.
func (s *LocalStore) DeletePublishRecords(articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mode := range []PublishMode{PublishSign, PublishTransaction} {
		records := map[string]PublishRecord{}
		if err := s.load(publishKey(mode), &records); err != nil {
			return err
		}
		delete(records, articleID)
		if err := s.save(publishKey(mode), records); err != nil {
			return err
		}
	}
	return nil
}

func publishKey(mode PublishMode) string {
	if mode == PublishTransaction {
		return KeyPublishTransactions
	}
	return KeyPublishSignatures
}

///// Shared cache ////

// CacheSharedArticle keeps an opened article for SharedArticleTTL.
// The entry is also reachable through aliases, such as the short id of the link it was opened from.
func (s *LocalStore) CacheSharedArticle(a *Article, now time.Time, aliases ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache := map[string]SharedArticle{}
	if err := s.load(KeySharedArticles, &cache); err != nil {
		return err
	}
	entry := SharedArticle{Article: *a, CachedAt: UnixMillisecond(now)}
	cache[a.ID] = entry
	for _, alias := range aliases {
		if alias != "" && alias != a.ID {
			cache[alias] = entry
		}
	}
	return s.save(KeySharedArticles, cache)
}

// CachedSharedArticle returns a non-expired cached article or ErrArticleNotFound.
func (s *LocalStore) CachedSharedArticle(id string, now time.Time) (*Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache := map[string]SharedArticle{}
	if err := s.load(KeySharedArticles, &cache); err != nil {
		return nil, err
	}
	entry, ok := cache[id]
	if !ok || sharedExpired(entry, now) {
		return nil, ErrArticleNotFound
	}
	return &entry.Article, nil
}

// PurgeSharedArticles removes expired cache entries and returns how many were removed.
func (s *LocalStore) PurgeSharedArticles(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache := map[string]SharedArticle{}
	if err := s.load(KeySharedArticles, &cache); err != nil {
		return 0, err
	}

	var n int
	for id, entry := range cache {
		if sharedExpired(entry, now) {
			delete(cache, id)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.save(KeySharedArticles, cache)
}

func sharedExpired(entry SharedArticle, now time.Time) bool {
	return now.Sub(FromUnixMillisecond(entry.CachedAt)) > SharedArticleTTL
}

///// Draft ////

// SaveDraft replaces the draft.
func (s *LocalStore) SaveDraft(d *Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(KeyDraft, d)
}

// Draft returns the draft or nil when there is none.
func (s *LocalStore) Draft() (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var d *Draft
	if err := s.load(KeyDraft, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// ClearDraft removes the draft.
func (s *LocalStore) ClearDraft() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(KeyDraft); err != nil {
		return &StorageError{Op: "delete", Key: KeyDraft, Err: err}
	}
	return nil
}
