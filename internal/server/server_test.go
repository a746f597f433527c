package server_test

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/appleboy/gofight/v2"
	"github.com/kasblog/kasblog/internal/database"
	"github.com/kasblog/kasblog/internal/server"
	"github.com/kasblog/kasblog/pkg/libkb"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func setup(t *testing.T, options ...func(*server.IOC)) (*echo.Echo, database.Client, *clock, *gofight.RequestConfig) {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "kasblog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &clock{now: time.Now()}
	ctrl := server.IOC{
		Version:  "test",
		Database: db,
		Now:      c.Now,
	}
	for _, option := range options {
		option(&ctrl)
	}

	return server.EchoEngine(ctrl), db, c, gofight.New()
}

func body(articleID string, payload []byte) string {
	raw, err := json.Marshal(libkb.ShortURLRequest{
		ArticleID:        articleID,
		Title:            "Hello",
		Author:           "kaspa:author",
		CreatedAt:        1700000000000,
		ContentHash:      "0123456789abcdef",
		EncryptedPayload: payload,
		EncryptionKey:    []byte{1, 2, 3},
	})
	if err != nil {
		panic(err)
	}
	return string(raw)
}

func create(t *testing.T, engine *echo.Echo, r *gofight.RequestConfig, articleID string, payload []byte) libkb.ShortURLResponse {
	t.Helper()

	var res libkb.ShortURLResponse
	r.POST("/api/short").
		SetHeader(gofight.H{"Content-Type": "application/json"}).
		SetBody(body(articleID, payload)).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			require.Equal(t, http.StatusOK, r.Code, r.Body.String())
			require.NoError(t, json.Unmarshal(r.Body.Bytes(), &res))
		})
	return res
}

func TestRequestVersion(t *testing.T) {
	engine, _, _, r := setup(t)

	r.GET("/version").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"version":"test"}`, r.Body.String())
	})
}

func TestRequestHealth(t *testing.T) {
	engine, _, c, r := setup(t)
	c.now = c.now.Add(90 * time.Second)

	r.GET("/api/health").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var v struct {
			Status    string  `json:"status"`
			Timestamp string  `json:"timestamp"`
			Uptime    float64 `json:"uptime"`
		}
		require.NoError(t, json.Unmarshal(r.Body.Bytes(), &v))
		assert.Equal(t, "ok", v.Status)
		assert.InDelta(t, 90, v.Uptime, 0.001)

		ts, err := time.Parse(time.RFC3339Nano, v.Timestamp)
		require.NoError(t, err)
		assert.WithinDuration(t, c.now, ts, time.Millisecond)
	})
}

func TestRequestCreateShortURL(t *testing.T) {
	engine, _, _, r := setup(t)
	payload := []byte(strings.Repeat("x", 50))

	res := create(t, engine, r, "article-hello", payload)
	assert.Regexp(t, libkb.ShortIDPattern, res.ShortID)
	assert.False(t, res.Existing)
	assert.Empty(t, res.EncryptionKey)

	r.GET("/api/short/"+res.ShortID).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var record libkb.ShortURLRecord
		require.NoError(t, json.Unmarshal(r.Body.Bytes(), &record))
		assert.Equal(t, "article-hello", record.ArticleID)
		assert.Equal(t, "Hello", record.Title)
		assert.Equal(t, "kaspa:author", record.Author)
		assert.EqualValues(t, 1700000000000, record.CreatedAt)
		assert.Equal(t, "0123456789abcdef", record.ContentHash)
		assert.Equal(t, payload, []byte(record.EncryptedPayload))
		assert.NotContains(t, r.Body.String(), "encryptionKey")
	})

	// Same article, same short id.
	again := create(t, engine, r, "article-hello", []byte{4, 5, 6})
	assert.Equal(t, res.ShortID, again.ShortID)
	assert.True(t, again.Existing)
}

func TestRequestCreateShortURL_KeyEscrow(t *testing.T) {
	engine, _, _, r := setup(t, func(ctrl *server.IOC) {
		ctrl.StoreKeys = true
	})

	res := create(t, engine, r, "article-1", []byte{1})
	assert.Empty(t, res.EncryptionKey)

	again := create(t, engine, r, "article-1", []byte{1})
	assert.True(t, again.Existing)
	assert.Equal(t, []byte{1, 2, 3}, []byte(again.EncryptionKey))
}

func TestRequestCreateShortURL_Invalid(t *testing.T) {
	engine, _, _, r := setup(t)

	r.POST("/api/short").
		SetHeader(gofight.H{"Content-Type": "application/json"}).
		SetBody(`{"articleId":"article-1","title":"Hello"}`).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusBadRequest, r.Code)
			assert.JSONEq(t, `{"error":{"tag":"missing-field","message":"Missing required field: author"}}`, r.Body.String())
		})

	r.POST("/api/short").
		SetHeader(gofight.H{"Content-Type": "application/json"}).
		SetBody(`{"articleId":`).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusBadRequest, r.Code)
			assert.Contains(t, r.Body.String(), "invalid-body")
		})

	gofight.New().POST("/api/short").
		SetHeader(gofight.H{"Content-Type": "application/json"}).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusBadRequest, r.Code)
			assert.JSONEq(t, `{"error":{"tag":"invalid-body","message":"Could not get short URL params."}}`, r.Body.String())
		})
}

func TestRequestCreateShortURL_BodyLimit(t *testing.T) {
	engine, _, _, r := setup(t, func(ctrl *server.IOC) {
		ctrl.BodyLimit = "1K"
	})

	r.POST("/api/short").
		SetHeader(gofight.H{"Content-Type": "application/json"}).
		SetBody(body("article-1", make([]byte, 2048))).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusRequestEntityTooLarge, r.Code)
		})
}

func TestRequestShowShortURL_Invalid(t *testing.T) {
	engine, _, _, r := setup(t)

	r.GET("/api/short/abc").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-short-id","message":"Invalid short ID format"}}`, r.Body.String())
	})

	r.GET("/api/short/Ab3dE6g!").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
	})

	r.GET("/api/short/Ab3dE6gH").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"not-found","message":"Short URL not found or expired"}}`, r.Body.String())
	})
}

func TestRequestShowShortURL_Expired(t *testing.T) {
	engine, _, c, r := setup(t)

	res := create(t, engine, r, "article-1", []byte{1})
	c.now = c.now.Add(30*24*time.Hour + time.Second)

	r.GET("/api/short/"+res.ShortID).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})

	// An expired record does not block a new short URL for the article.
	fresh := create(t, engine, r, "article-1", []byte{2})
	assert.NotEqual(t, res.ShortID, fresh.ShortID)
	assert.False(t, fresh.Existing)
}

func TestRequestStats(t *testing.T) {
	engine, _, c, r := setup(t)

	r.GET("/api/stats").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"totalUrls":0,"activeUrls":0,"oldestCreated":null,"newestCreated":null}`, r.Body.String())
	})

	create(t, engine, r, "article-1", []byte{1})
	c.now = c.now.Add(31 * 24 * time.Hour)
	create(t, engine, r, "article-2", []byte{2})

	r.GET("/api/stats").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var v struct {
			Total  int        `json:"totalUrls"`
			Active int        `json:"activeUrls"`
			Oldest *time.Time `json:"oldestCreated"`
			Newest *time.Time `json:"newestCreated"`
		}
		require.NoError(t, json.Unmarshal(r.Body.Bytes(), &v))
		assert.Equal(t, 2, v.Total)
		assert.Equal(t, 1, v.Active)
		require.NotNil(t, v.Oldest)
		require.NotNil(t, v.Newest)
		assert.True(t, v.Oldest.Before(*v.Newest))
	})
}
