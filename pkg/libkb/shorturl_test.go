package libkb_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kasblog/kasblog/pkg/libkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeShortener mimics the short-URL service.
type fakeShortener struct {
	mu      sync.Mutex
	records map[string]libkb.ShortURLRequest
	byID    map[string]string
	posts   int
}

func newFakeShortener() *fakeShortener {
	return &fakeShortener{
		records: map[string]libkb.ShortURLRequest{},
		byID:    map[string]string{},
	}
}

func (f *fakeShortener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/short":
		f.posts++
		var req libkb.ShortURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ArticleID == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"tag":"missing-field","message":"articleId is required"}}`))
			return
		}
		if id, ok := f.byID[req.ArticleID]; ok {
			json.NewEncoder(w).Encode(libkb.ShortURLResponse{ShortID: id, Existing: true})
			return
		}
		id := "Ab3dE6g" + string(rune('0'+len(f.records)))
		f.records[id] = req
		f.byID[req.ArticleID] = id
		json.NewEncoder(w).Encode(libkb.ShortURLResponse{ShortID: id})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/short/"):
		req, ok := f.records[strings.TrimPrefix(r.URL.Path, "/api/short/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"tag":"not-found","message":"Short URL not found or expired"}}`))
			return
		}
		json.NewEncoder(w).Encode(libkb.ShortURLRecord{
			ArticleID:        req.ArticleID,
			Title:            req.Title,
			Author:           req.Author,
			CreatedAt:        req.CreatedAt,
			ContentHash:      req.ContentHash,
			EncryptedPayload: req.EncryptedPayload,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func publicArticle() *libkb.Article {
	return &libkb.Article{
		ID:        libkb.NewArticleID(),
		Title:     "Hello",
		Content:   strings.Repeat("h", 50),
		IsPublic:  true,
		Author:    address,
		CreatedAt: 1700000000000,
		UpdatedAt: 1700000000000,
	}
}

func TestShortURLClient_CreateResolve(t *testing.T) {
	fake := newFakeShortener()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := libkb.NewShortURLClient(srv.Client(), srv.URL, "https://kasblog.lan", nil)
	require.NoError(t, err)

	ctx := context.Background()
	a := publicArticle()
	shared, err := libkb.GenerateKey()
	require.NoError(t, err)

	links, err := client.Create(ctx, a, shared)
	require.NoError(t, err)
	assert.Regexp(t, `^https://kasblog.lan/articles/[a-zA-Z0-9]{8}\?k=[A-Za-z0-9_-]+$`, links.ShortURL)
	assert.True(t, strings.HasPrefix(links.FullURL, "https://kasblog.lan/articles/"+a.ID+"?shared="))

	// The key is not escrowed by default.
	assert.Nil(t, fake.records[links.ShortID].EncryptionKey)

	again, err := client.Create(ctx, a, shared)
	require.NoError(t, err)
	assert.Equal(t, links.ShortID, again.ShortID)
	assert.Equal(t, links.ShortURL, again.ShortURL)
	assert.Equal(t, 2, fake.posts)

	id, query, err := libkb.ParseArticleURL(links.ShortURL)
	require.NoError(t, err)
	key, err := libkb.DecodeURLKey(query.Get(libkb.ParamShortKey))
	require.NoError(t, err)

	resolved := client.Resolve(ctx, id, key)
	require.NotNil(t, resolved)
	assert.Equal(t, a, resolved)

	other, err := libkb.GenerateKey()
	require.NoError(t, err)
	assert.Nil(t, client.Resolve(ctx, id, other))
	assert.Nil(t, client.Resolve(ctx, "Zz9zZz9z", key))
	assert.Nil(t, client.Resolve(ctx, "bad", key))
}

func TestShortURLClient_SendKey(t *testing.T) {
	fake := newFakeShortener()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := libkb.NewShortURLClient(srv.Client(), srv.URL, "https://kasblog.lan", nil)
	require.NoError(t, err)
	client.SendKey = true

	links, err := client.Create(context.Background(), publicArticle(), nil)
	require.NoError(t, err)
	assert.Len(t, fake.records[links.ShortID].EncryptionKey, libkb.KeySize)
}

func TestShortURLClient_Private(t *testing.T) {
	client, err := libkb.NewShortURLClient(http.DefaultClient, "http://127.0.0.1:1", "https://kasblog.lan", nil)
	require.NoError(t, err)

	a := publicArticle()
	a.IsPublic = false
	_, err = client.Create(context.Background(), a, nil)
	assert.ErrorIs(t, err, libkb.ErrPrivateArticleNotShareable)
}

func TestShortURLClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(newFakeShortener())
	defer srv.Close()

	client, err := libkb.NewShortURLClient(srv.Client(), srv.URL, "https://kasblog.lan", nil)
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), "Zz9zZz9z")
	assert.ErrorIs(t, err, libkb.ErrShortURLNotFound)
	assert.Contains(t, err.Error(), "Short URL not found or expired")

	_, err = client.Lookup(context.Background(), "short")
	assert.ErrorIs(t, err, libkb.ErrInvalidShortID)
}

func TestContentHash(t *testing.T) {
	assert.Len(t, libkb.ContentHash([]byte("hello")), 16)
	assert.Equal(t, libkb.ContentHash([]byte("hello")), libkb.ContentHash([]byte("hello")))
	assert.NotEqual(t, libkb.ContentHash([]byte("hello")), libkb.ContentHash([]byte("hellO")))
}
