package libkb_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kasblog/kasblog/pkg/libkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, wallet libkb.Wallet, shorturl *libkb.ShortURLClient) *libkb.Service {
	t.Helper()
	return libkb.NewService(libkb.Config{
		Store:    libkb.NewMemoryStore(),
		Wallet:   wallet,
		ShortURL: shorturl,
		Origin:   "https://kasblog.lan",
	})
}

func TestService_PublishPrivate(t *testing.T) {
	ctx := context.Background()
	wallet := libkb.NewMemoryWallet(address, []byte("seed"))
	service := newService(t, wallet, nil)

	result, err := service.Publish(ctx, &libkb.Article{
		Title:   "Premium",
		Content: "paid content",
		Price:   100000000,
	}, libkb.PublishSign)
	require.NoError(t, err)

	id := result.Article.ID
	assert.NotEmpty(t, id)
	assert.Equal(t, address, result.Article.Author)
	assert.NotEmpty(t, result.Artifact)
	assert.Equal(t, result.Artifact, result.Encrypted.Metadata.TxID)
	assert.Nil(t, result.SharedKey)
	assert.NotZero(t, result.Encrypted.Metadata.KeyEpoch)
	assert.NotContains(t, string(result.Payload), "paid content")

	_, err = service.LocalStore().SharedKey(id)
	assert.ErrorIs(t, err, libkb.ErrKeyNotFound)

	// Without the wallet the article cannot be read.
	wallet.Disconnect()
	_, err = service.Read(ctx, id)
	assert.ErrorIs(t, err, libkb.ErrNoAccountConnected)
	assert.Error(t, service.RevalidateAccess(ctx, id))

	_, err = service.Open(ctx, "https://kasblog.lan/articles/"+id)
	assert.ErrorIs(t, err, libkb.ErrNoAccountConnected)

	// Reconnecting the same wallet gives access back.
	wallet.Connect()
	a, err := service.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "paid content", a.Content)
	assert.Equal(t, int64(100000000), a.Price)
	assert.NoError(t, service.RevalidateAccess(ctx, id))

	// Another wallet on the same store cannot decrypt it.
	stranger := libkb.NewService(libkb.Config{
		Store:  storeOf(t, service),
		Wallet: libkb.NewMemoryWallet(address, []byte("other seed")),
	})
	_, err = stranger.Read(ctx, id)
	assert.ErrorIs(t, err, libkb.ErrDecryptionFailed)

	_, err = service.Share(ctx, id)
	assert.ErrorIs(t, err, libkb.ErrPrivateArticleNotShareable)
	_, err = service.ShareLink(id)
	assert.ErrorIs(t, err, libkb.ErrPrivateArticleNotShareable)
}

func TestService_PublishValidation(t *testing.T) {
	ctx := context.Background()
	wallet := libkb.NewMemoryWallet(address, []byte("seed"))
	service := newService(t, wallet, nil)

	_, err := service.Publish(ctx, &libkb.Article{Title: "Free private", Content: "x"}, libkb.PublishSign)
	assert.ErrorIs(t, err, libkb.ErrPriceRequired)

	_, err = service.Publish(ctx, &libkb.Article{
		Title:    "Huge",
		Content:  strings.Repeat("x", libkb.MaxContentSize+1),
		IsPublic: true,
	}, libkb.PublishSign)
	assert.ErrorIs(t, err, libkb.ErrContentTooLarge)

	wallet.Disconnect()
	_, err = service.Publish(ctx, &libkb.Article{Title: "t", Content: "x", IsPublic: true}, libkb.PublishSign)
	assert.ErrorIs(t, err, libkb.ErrNoAccountConnected)

	_, err = newService(t, nil, nil).Publish(ctx, &libkb.Article{Title: "t", Content: "x", IsPublic: true}, libkb.PublishSign)
	assert.ErrorIs(t, err, libkb.ErrWalletNotInstalled)

	summaries, err := service.List()
	assert.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestService_PublicLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := newFakeShortener()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	shorturl, err := libkb.NewShortURLClient(srv.Client(), srv.URL, "https://kasblog.lan", nil)
	require.NoError(t, err)

	wallet := libkb.NewMemoryWallet(address, []byte("seed"))
	service := newService(t, wallet, shorturl)

	result, err := service.Publish(ctx, &libkb.Article{
		Title:    "Hello",
		Content:  strings.Repeat("h", 50),
		Tags:     []string{"intro"},
		IsPublic: true,
	}, libkb.PublishTransaction)
	require.NoError(t, err)
	require.NotNil(t, result.SharedKey)
	assert.Equal(t, libkb.PublishTransaction, result.Mode)
	assert.Len(t, result.Artifact, 64)
	id := result.Article.ID

	links, err := service.Share(ctx, id)
	require.NoError(t, err)

	again, err := service.Share(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, links.ShortURL, again.ShortURL)

	// A reader with an empty store opens both links.
	reader := newService(t, nil, shorturl)

	a, err := reader.Open(ctx, links.ShortURL)
	require.NoError(t, err)
	assert.Equal(t, "Hello", a.Title)
	assert.Equal(t, strings.Repeat("h", 50), a.Content)

	offline := newService(t, nil, nil)
	a, err = offline.Open(ctx, links.FullURL)
	require.NoError(t, err)
	assert.Equal(t, "Hello", a.Title)
	assert.Equal(t, []string{"intro"}, a.Tags)

	// Opened links are cached.
	a, err = offline.Open(ctx, "https://kasblog.lan/articles/"+id)
	require.NoError(t, err)
	assert.Equal(t, "Hello", a.Title)

	_, err = offline.Open(ctx, "https://kasblog.lan/articles/unknown")
	assert.ErrorIs(t, err, libkb.ErrArticleNotFound)

	// Key id links work against the author store.
	link, err := service.ShareLink(id)
	require.NoError(t, err)
	assert.Equal(t, "https://kasblog.lan/articles/"+id+"?key="+result.SharedKey.KeyID, link)

	a, err = service.Open(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, "Hello", a.Title)

	summaries, err := service.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, id, summaries[0].ID)
	assert.Equal(t, 50, summaries[0].ContentLength)

	require.NoError(t, service.Delete(id))
	_, err = service.Read(ctx, id)
	assert.ErrorIs(t, err, libkb.ErrArticleNotFound)
	assert.ErrorIs(t, service.Delete(id), libkb.ErrArticleNotFound)
}

func TestService_RecoverKey(t *testing.T) {
	ctx := context.Background()
	service := newService(t, libkb.NewMemoryWallet(address, []byte("seed")), nil)

	result, err := service.Publish(ctx, &libkb.Article{Title: "Public", Content: "body", IsPublic: true}, libkb.PublishSign)
	require.NoError(t, err)
	id := result.Article.ID

	// Lose the key store.
	require.NoError(t, service.LocalStore().DeleteSharedKey(id))

	a, err := service.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "body", a.Content)

	k, err := service.LocalStore().SharedKey(id)
	require.NoError(t, err)
	assert.Equal(t, result.SharedKey.Key, k.Key)

	require.NoError(t, service.LocalStore().DeleteSharedKey(id))
	require.NoError(t, service.LocalStore().DeletePublishRecords(id))
	_, err = service.RecoverKey(id)
	assert.ErrorIs(t, err, libkb.ErrKeyNotFound)
}

func TestService_Drafts(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	service := libkb.NewService(libkb.Config{Now: func() time.Time { return now }})

	d, err := service.LoadDraft()
	assert.NoError(t, err)
	assert.Nil(t, d)

	require.NoError(t, service.SaveDraft(&libkb.Draft{Title: "wip", Content: "draft"}))
	d, err = service.LoadDraft()
	require.NoError(t, err)
	assert.Equal(t, "wip", d.Title)
	assert.Equal(t, libkb.UnixMillisecond(now), d.SavedAt)

	require.NoError(t, service.ClearDraft())
	d, err = service.LoadDraft()
	assert.NoError(t, err)
	assert.Nil(t, d)
}

func TestService_PurgeSharedCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &now
	service := libkb.NewService(libkb.Config{Now: func() time.Time { return *clock }})

	a := publicArticle()
	full, err := libkb.FullURL("https://kasblog.lan", a)
	require.NoError(t, err)
	_, err = service.Open(context.Background(), full)
	require.NoError(t, err)

	n, err := service.PurgeSharedCache()
	assert.NoError(t, err)
	assert.Zero(t, n)

	later := now.Add(8 * 24 * time.Hour)
	clock = &later
	n, err = service.PurgeSharedCache()
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

// storeOf copies the articles of a service into a new store.
func storeOf(t *testing.T, service *libkb.Service) libkb.Store {
	t.Helper()

	s := libkb.NewMemoryStore()
	ls := libkb.NewLocalStore(s)
	articles, err := service.LocalStore().Articles()
	require.NoError(t, err)
	for i := range articles {
		require.NoError(t, ls.SaveArticle(&articles[i]))
	}
	return s
}

func TestService_OpenCachedShortLink(t *testing.T) {
	ctx := context.Background()
	fake := newFakeShortener()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	shorturl, err := libkb.NewShortURLClient(srv.Client(), srv.URL, "https://kasblog.lan", nil)
	require.NoError(t, err)

	service := newService(t, libkb.NewMemoryWallet(address, []byte("seed")), shorturl)
	result, err := service.Publish(ctx, &libkb.Article{Title: "Hello", Content: "cached body", IsPublic: true}, libkb.PublishSign)
	require.NoError(t, err)
	links, err := service.Share(ctx, result.Article.ID)
	require.NoError(t, err)

	reader := newService(t, nil, shorturl)
	a, err := reader.Open(ctx, links.ShortURL)
	require.NoError(t, err)
	assert.Equal(t, "cached body", a.Content)

	// The short URL expires on the service.
	fake.mu.Lock()
	delete(fake.records, links.ShortID)
	fake.mu.Unlock()

	a, err = reader.Open(ctx, links.ShortURL)
	require.NoError(t, err)
	assert.Equal(t, result.Article.ID, a.ID)
	assert.Equal(t, "cached body", a.Content)

	newcomer := newService(t, nil, shorturl)
	_, err = newcomer.Open(ctx, links.ShortURL)
	assert.ErrorIs(t, err, libkb.ErrArticleNotFound)

	// The service is gone.
	srv.Close()
	a, err = reader.Open(ctx, links.ShortURL)
	require.NoError(t, err)
	assert.Equal(t, "cached body", a.Content)
}

func TestService_ShareWithoutShortURLService(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(newFakeShortener())
	shorturl, err := libkb.NewShortURLClient(srv.Client(), srv.URL, "https://kasblog.lan", nil)
	require.NoError(t, err)
	srv.Close()

	service := newService(t, libkb.NewMemoryWallet(address, []byte("seed")), shorturl)
	result, err := service.Publish(ctx, &libkb.Article{Title: "Hello", Content: "offline body", IsPublic: true}, libkb.PublishSign)
	require.NoError(t, err)

	links, err := service.Share(ctx, result.Article.ID)
	assert.Error(t, err)
	require.NotNil(t, links)
	assert.Empty(t, links.ShortURL)
	assert.True(t, strings.HasPrefix(links.FullURL, "https://kasblog.lan/articles/"+result.Article.ID+"?"))

	a, err := newService(t, nil, nil).Open(ctx, links.FullURL)
	require.NoError(t, err)
	assert.Equal(t, "offline body", a.Content)
}
