package libkb

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

const (
	// MaxPayloadSize is the maximum size in bytes of a serialized publish payload.
	MaxPayloadSize = 50 * 1024
	// PayloadType identifies kasblog publish payloads.
	PayloadType = "kasblog-article"
	// PayloadVersion is the current payload version.
	PayloadVersion = 1
)

type (
	// A Payload is the envelope signed or published by the wallet.
	Payload struct {
		Type    string      `json:"type"`
		Version int         `json:"version"`
		Data    PayloadData `json:"data"`
	}

	// PayloadData is the content of a Payload.
	// Key is only set for public articles.
	PayloadData struct {
		Article   EncryptedArticle `json:"article"`
		Key       string           `json:"key,omitempty"`
		KeyID     string           `json:"keyId,omitempty"`
		Timestamp int64            `json:"timestamp"`
	}
)

// BuildPayload serializes the publish payload of ea.
// The shared key is embedded when the article is public.
func BuildPayload(ea *EncryptedArticle, shared *SharedKey, timestamp int64) ([]byte, error) {
	p := Payload{
		Type:    PayloadType,
		Version: PayloadVersion,
		Data: PayloadData{
			Article:   *ea,
			Timestamp: timestamp,
		},
	}
	if ea.Metadata.IsPublic && shared != nil {
		p.Data.Key = shared.Key
		p.Data.KeyID = shared.KeyID
	}

	raw, err := json.Marshal(&p)
	if err != nil {
		return nil, errors.Wrap(err, "could not serialize payload")
	}
	if len(raw) > MaxPayloadSize {
		return nil, &PayloadTooLargeError{Size: len(raw), Limit: MaxPayloadSize}
	}
	return raw, nil
}

// ParsePayload decodes a publish payload.
func ParsePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	if p.Type != PayloadType {
		return nil, errors.Wrapf(ErrInvalidPayload, "unexpected type %q", p.Type)
	}
	if p.Version > PayloadVersion {
		return nil, errors.Wrapf(ErrInvalidPayload, "unsupported version %d", p.Version)
	}
	return &p, nil
}

// RecoverKey extracts the shared key of a public article from its raw publish payload.
func RecoverKey(raw []byte) (*SharedKey, error) {
	v, err := fastjson.ParseBytes(raw)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	if string(v.GetStringBytes("type")) != PayloadType {
		return nil, errors.Wrap(ErrInvalidPayload, "not a kasblog payload")
	}

	data := v.Get("data")
	if data == nil {
		return nil, errors.Wrap(ErrInvalidPayload, "missing data")
	}
	if !data.GetBool("article", "metadata", "isPublic") {
		return nil, errors.Wrap(ErrKeyNotFound, "private payloads do not embed a key")
	}

	key := string(data.GetStringBytes("key"))
	if key == "" {
		return nil, errors.Wrap(ErrKeyNotFound, "payload does not embed a key")
	}
	if _, err := DecodeKey(key); err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}

	return &SharedKey{
		KeyID:     string(data.GetStringBytes("keyId")),
		ArticleID: string(data.GetStringBytes("article", "id")),
		Key:       key,
		CreatedAt: data.GetInt64("timestamp"),
	}, nil
}
