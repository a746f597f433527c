package server

import (
	"net/http"

	"github.com/kasblog/kasblog/internal/kberror"
	"github.com/kasblog/kasblog/internal/server/serializer"
	"github.com/kasblog/kasblog/internal/server/service"
	"github.com/kasblog/kasblog/pkg/libkb"
	"github.com/labstack/echo/v4"
)

// shortURL contains all short URL handlers.
type shortURL struct {
	service *service.ShortURLService
}

///// Create
////
//

// Create returns the short id of the article, minting a new one when it has no active short URL.
func (h *shortURL) Create(c echo.Context) error {
	var params service.CreateParams
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest, kberror.NewWithTagCode(http.StatusBadRequest, kberror.TagInvalidBody, "Could not get short URL params."))
	}

	record, existing, err := h.service.Create(params)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, serializer.Created(record, existing))
}

///// Show
////
//

// Show returns the encrypted payload of an active short URL.
func (h *shortURL) Show(c echo.Context) error {
	id := c.Param("shortId")
	if !libkb.ShortIDPattern.MatchString(id) {
		return kberror.InvalidShortID()
	}

	record, err := h.service.Find(id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, serializer.ShortURL(record))
}

///// Stats
////
//

// Stats returns an overview of the stored short URLs.
func (h *shortURL) Stats(c echo.Context) error {
	stats, err := h.service.Stats()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, serializer.Stats(stats))
}
