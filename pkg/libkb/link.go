package libkb

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

// Link query parameters.
const (
	ParamCompact  = "c"
	ParamShared   = "shared"
	ParamKeyID    = "key"
	ParamShortKey = "k"
)

// A LinkArticle is the minimized projection of a public article embedded in URLs.
type LinkArticle struct {
	ID        string   `json:"i"`
	Title     string   `json:"t"`
	Content   string   `json:"c"`
	Author    string   `json:"a"`
	CreatedAt int64    `json:"d"`
	UpdatedAt int64    `json:"u,omitempty"`
	Image     string   `json:"g,omitempty"`
	Tags      []string `json:"m,omitempty"`
	IsPublic  bool     `json:"p"`
	TxID      string   `json:"x,omitempty"`
}

// Minimize returns the link projection of a.
func Minimize(a *Article) LinkArticle {
	return LinkArticle{
		ID:        a.ID,
		Title:     a.Title,
		Content:   a.Content,
		Author:    a.Author,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
		Image:     a.Image,
		Tags:      a.Tags,
		IsPublic:  a.IsPublic,
		TxID:      a.TxID,
	}
}

// Article expands the projection.
func (m LinkArticle) Article() *Article {
	updated := m.UpdatedAt
	if updated == 0 {
		updated = m.CreatedAt
	}
	return &Article{
		ID:        m.ID,
		Title:     m.Title,
		Content:   m.Content,
		Image:     m.Image,
		Tags:      m.Tags,
		IsPublic:  m.IsPublic,
		Author:    m.Author,
		CreatedAt: m.CreatedAt,
		UpdatedAt: updated,
		TxID:      m.TxID,
	}
}

////
///
//

// EncodeCompact serializes m, deflates it at the best compression level and returns URL-safe unpadded base64.
func EncodeCompact(m LinkArticle) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "could not serialize link")
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", errors.Wrap(err, "could not create compressor")
	}
	if _, err = w.Write(raw); err != nil {
		return "", errors.Wrap(err, "could not compress link")
	}
	if err = w.Close(); err != nil {
		return "", errors.Wrap(err, "could not compress link")
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeCompact reverses EncodeCompact.
func DecodeCompact(s string) (LinkArticle, error) {
	var m LinkArticle

	compressed, err := base64.RawURLEncoding.DecodeString(trimPadding(s))
	if err != nil {
		return m, errors.Wrap(err, "could not decode compact link")
	}

	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return m, errors.Wrap(err, "could not create decompressor")
	}
	defer r.Close()

	raw, err := io.ReadAll(io.LimitReader(r, MaxPayloadSize+1))
	if err != nil {
		return m, errors.Wrap(err, "could not decompress link")
	}
	if len(raw) > MaxPayloadSize {
		return m, &PayloadTooLargeError{Size: len(raw), Limit: MaxPayloadSize}
	}

	return m, errors.Wrap(json.Unmarshal(raw, &m), "could not parse link")
}

// EncodePlain returns the standard base64 encoding of the serialized projection.
func EncodePlain(m LinkArticle) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "could not serialize link")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePlain reverses EncodePlain.
func DecodePlain(s string) (LinkArticle, error) {
	var m LinkArticle

	// Query decoding turns unescaped '+' into spaces.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(s, " ", "+"))
	if err != nil {
		return m, errors.Wrap(err, "could not decode plain link")
	}
	return m, errors.Wrap(json.Unmarshal(raw, &m), "could not parse link")
}

////
///
//

// DecodeLink decodes the article embedded in the query of a shareable URL.
// The compact form is tried first, then the plain one.
// The embedded article must be public and have the expected id.
func DecodeLink(query url.Values, expectedID string) (*Article, error) {
	var errs []string

	if s := query.Get(ParamCompact); s != "" {
		m, err := DecodeCompact(s)
		if err == nil {
			err = checkLink(m, expectedID)
		}
		if err == nil {
			return m.Article(), nil
		}
		errs = append(errs, "compact: "+err.Error())
	}

	if s := query.Get(ParamShared); s != "" {
		m, err := DecodePlain(s)
		if err == nil {
			err = checkLink(m, expectedID)
		}
		if err == nil {
			return m.Article(), nil
		}
		errs = append(errs, "plain: "+err.Error())
	}

	if len(errs) == 0 {
		return nil, ErrArticleNotFound
	}
	return nil, errors.Wrap(ErrArticleNotFound, strings.Join(errs, "; "))
}

func checkLink(m LinkArticle, expectedID string) error {
	if m.ID != expectedID {
		return errors.Wrapf(ErrLinkMismatch, "id %q != %q", m.ID, expectedID)
	}
	if !m.IsPublic {
		return errors.Wrap(ErrLinkMismatch, "article is not public")
	}
	return nil
}

// ProbeLink reads the id and visibility of a serialized projection without decoding it.
func ProbeLink(raw []byte) (id string, public bool, err error) {
	v, err := fastjson.ParseBytes(raw)
	if err != nil {
		return "", false, errors.Wrap(err, "could not parse link")
	}
	return string(v.GetStringBytes("i")), v.GetBool("p"), nil
}

func trimPadding(s string) string {
	return strings.TrimRight(s, "=")
}
