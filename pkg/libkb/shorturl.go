package libkb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ShortIDPattern matches valid short ids.
var ShortIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8}$`)

// DefaultTimeout is the timeout of the HTTP client built by NewDefaultShortURLClient.
const DefaultTimeout = 10 * time.Second

type (
	// A ShortURLRequest is the body of `POST /api/short`.
	// EncryptionKey is only sent when key escrow is enabled.
	ShortURLRequest struct {
		ArticleID        string `json:"articleId"`
		Title            string `json:"title"`
		Author           string `json:"author"`
		CreatedAt        int64  `json:"createdAt"`
		ContentHash      string `json:"contentHash"`
		EncryptedPayload Bytes  `json:"encryptedPayload"`
		EncryptionKey    Bytes  `json:"encryptionKey,omitempty"`
	}

	// A ShortURLResponse is the body returned by `POST /api/short`.
	// EncryptionKey is only returned for an existing record created with key escrow.
	ShortURLResponse struct {
		ShortID       string `json:"shortId"`
		Existing      bool   `json:"existing,omitempty"`
		EncryptionKey Bytes  `json:"encryptionKey,omitempty"`
	}

	// A ShortURLRecord is the body returned by `GET /api/short/:shortId`.
	ShortURLRecord struct {
		ArticleID        string `json:"articleId"`
		Title            string `json:"title"`
		Author           string `json:"author"`
		CreatedAt        int64  `json:"createdAt"`
		ContentHash      string `json:"contentHash"`
		EncryptedPayload Bytes  `json:"encryptedPayload"`
	}

	// A ShortURL holds the distributable links of a public article.
	ShortURL struct {
		ShortID  string `json:"shortId,omitempty"`
		ShortURL string `json:"shortUrl,omitempty"`
		FullURL  string `json:"fullUrl"`
	}

	// A ShortURLClient talks to the short-URL service.
	ShortURLClient struct {
		// SendKey escrows the payload key on the service.
		SendKey bool

		http     *http.Client
		endpoint string
		origin   string
		logger   logrus.FieldLogger
	}
)

// NewDefaultShortURLClient returns a new ShortURLClient using an HTTP client with DefaultTimeout.
func NewDefaultShortURLClient(endpoint, origin string, logger logrus.FieldLogger) (*ShortURLClient, error) {
	return NewShortURLClient(&http.Client{Timeout: DefaultTimeout}, endpoint, origin, logger)
}

// NewShortURLClient returns a new ShortURLClient.
// origin is the base of the generated article URLs.
func NewShortURLClient(c *http.Client, endpoint, origin string, logger logrus.FieldLogger) (*ShortURLClient, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, errors.Wrap(err, "could not parse endpoint")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ShortURLClient{
		http:     c,
		endpoint: endpoint,
		origin:   strings.TrimRight(origin, "/"),
		logger:   logger,
	}, nil
}

// Create registers a short URL for a public article.
// The payload key is derived from sharedKey when given, random otherwise.
func (c *ShortURLClient) Create(ctx context.Context, a *Article, sharedKey []byte) (*ShortURL, error) {
	if !a.IsPublic {
		return nil, ErrPrivateArticleNotShareable
	}

	fullURL, err := FullURL(c.origin, a)
	if err != nil {
		return nil, err
	}

	var key []byte
	derived := sharedKey != nil
	if derived {
		key, err = DeriveShortURLKey(sharedKey, a.ID)
	} else {
		key, err = GenerateKey()
	}
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(Minimize(a))
	if err != nil {
		return nil, errors.Wrap(err, "could not serialize article")
	}
	framed, err := Seal(raw, key)
	if err != nil {
		return nil, err
	}

	payload := ShortURLRequest{
		ArticleID:        a.ID,
		Title:            a.Title,
		Author:           a.Author,
		CreatedAt:        a.CreatedAt,
		ContentHash:      ContentHash(raw),
		EncryptedPayload: framed,
	}
	if c.SendKey {
		payload.EncryptionKey = key
	}

	var res ShortURLResponse
	if err = c.do(ctx, http.MethodPost, "/api/short", &payload, &res); err != nil {
		return nil, err
	}
	if !ShortIDPattern.MatchString(res.ShortID) {
		return nil, errors.Wrapf(ErrInvalidShortID, "service returned %q", res.ShortID)
	}

	if res.Existing && !derived {
		// The record was created earlier with another random key.
		if len(res.EncryptionKey) != KeySize {
			return nil, errors.Errorf("short url %s already exists with an unknown key", res.ShortID)
		}
		key = res.EncryptionKey
	}

	query := url.Values{}
	query.Set(ParamShortKey, EncodeURLKey(key))
	return &ShortURL{
		ShortID:  res.ShortID,
		ShortURL: ArticleURL(c.origin, res.ShortID, query),
		FullURL:  fullURL,
	}, nil
}

// Lookup fetches a short-URL record.
// It returns ErrShortURLNotFound or ErrInvalidShortID according to the service response.
func (c *ShortURLClient) Lookup(ctx context.Context, shortID string) (*ShortURLRecord, error) {
	if !ShortIDPattern.MatchString(shortID) {
		return nil, ErrInvalidShortID
	}

	var record ShortURLRecord
	if err := c.do(ctx, http.MethodGet, "/api/short/"+shortID, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Resolve fetches and decrypts the article behind shortID.
// It returns nil when the article cannot be resolved for any reason.
func (c *ShortURLClient) Resolve(ctx context.Context, shortID string, key []byte) *Article {
	logger := c.logger.WithField("short_id", shortID)

	record, err := c.Lookup(ctx, shortID)
	if err != nil {
		logger.WithError(err).Debug("short url lookup failed")
		return nil
	}

	raw, err := Open(record.EncryptedPayload, key)
	if err != nil {
		logger.WithError(err).Warn("could not decrypt short url payload")
		return nil
	}
	if hash := ContentHash(raw); hash != record.ContentHash {
		logger.WithField("expected", record.ContentHash).WithField("got", hash).Warn("content hash mismatch")
	}

	id, public, err := ProbeLink(raw)
	if err != nil || id != record.ArticleID || !public {
		logger.WithField("article_id", id).Warn("short url payload does not match its record")
		return nil
	}

	var m LinkArticle
	if err = json.Unmarshal(raw, &m); err != nil {
		logger.WithError(err).Warn("could not parse short url payload")
		return nil
	}
	return m.Article()
}

func (c *ShortURLClient) do(ctx context.Context, method, endpoint string, in, out any) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return errors.Wrap(err, "could not parse endpoint")
	}
	u.Path = path.Join(u.Path, endpoint)

	//
	// Build request
	var body bytes.Buffer
	if in != nil {
		if err = json.NewEncoder(&body).Encode(in); err != nil {
			return errors.Wrap(err, "could not serialize request")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), &body)
	if err != nil {
		return errors.Wrap(err, "could not build request")
	}
	req.Close = true
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	//
	// Perform request
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "could not perform request")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return parseAPIError(res.Body, res.StatusCode)
	}

	//
	// Process response
	dec := json.NewDecoder(res.Body)
	return errors.Wrap(dec.Decode(out), "could not parse response")
}

////
///
//

// ContentHash returns the non-cryptographic hash of a serialized projection.
func ContentHash(raw []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(raw))
}

// ArticleURL returns `<origin>/articles/<id>?<query>`.
func ArticleURL(origin, id string, query url.Values) string {
	u := strings.TrimRight(origin, "/") + "/articles/" + url.PathEscape(id)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// FullURL returns the self-contained plain link of a public article.
func FullURL(origin string, a *Article) (string, error) {
	if !a.IsPublic {
		return "", ErrPrivateArticleNotShareable
	}

	s, err := EncodePlain(Minimize(a))
	if err != nil {
		return "", err
	}
	query := url.Values{}
	query.Set(ParamShared, s)
	return ArticleURL(origin, a.ID, query), nil
}

// CompactURL returns the compressed link of a public article.
func CompactURL(origin string, a *Article) (string, error) {
	if !a.IsPublic {
		return "", ErrPrivateArticleNotShareable
	}

	s, err := EncodeCompact(Minimize(a))
	if err != nil {
		return "", err
	}
	query := url.Values{}
	query.Set(ParamCompact, s)
	return ArticleURL(origin, a.ID, query), nil
}

// ParseArticleURL extracts the path id and the query of an article URL.
func ParseArticleURL(rawurl string) (id string, query url.Values, err error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", nil, errors.Wrap(err, "could not parse url")
	}

	dir, id := path.Split(strings.TrimRight(u.Path, "/"))
	if path.Base(dir) != "articles" || id == "" {
		return "", nil, errors.Errorf("not an article url: %s", rawurl)
	}
	return id, u.Query(), nil
}
