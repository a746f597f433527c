package serializer

import (
	"github.com/kasblog/kasblog/internal/model"
	"github.com/kasblog/kasblog/pkg/libkb"
)

// ShortURL serializes the render of a short URL.
// The escrowed key is never rendered.
func ShortURL(m *model.ShortURL) libkb.ShortURLRecord {
	return libkb.ShortURLRecord{
		ArticleID:        m.ArticleID,
		Title:            m.Title,
		Author:           m.Author,
		CreatedAt:        m.ArticleCreatedAt,
		ContentHash:      m.ContentHash,
		EncryptedPayload: m.EncryptedPayload,
	}
}

// Created serializes the render of a short URL creation.
// The escrowed key is only given back for an existing record, so its creator can rebuild the link.
func Created(m *model.ShortURL, existing bool) libkb.ShortURLResponse {
	r := libkb.ShortURLResponse{
		ShortID:  m.ID,
		Existing: existing,
	}
	if existing {
		r.EncryptionKey = m.EncryptionKey
	}
	return r
}

// Stats serializes the render of short URL statistics.
func Stats(m *model.ShortURLStats) map[string]any {
	return map[string]any{
		"totalUrls":     m.Total,
		"activeUrls":    m.Active,
		"oldestCreated": m.Oldest,
		"newestCreated": m.Newest,
	}
}
