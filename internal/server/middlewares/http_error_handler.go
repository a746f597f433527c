package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/kasblog/kasblog/internal/kberror"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HTTPErrorHandler returns a middleware that formats rendered errors.
func HTTPErrorHandler(logger logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var kberr *kberror.KBError
		var herr *echo.HTTPError

		switch {
		case errors.As(err, &kberr):
			status := kberror.StatusCode(kberr)
			if status < 500 {
				_ = c.JSON(status, kberr)
				return
			}

			internal(logger, err, c)
		case errors.As(err, &herr):
			if herr.Code >= 500 {
				internal(logger, err, c)
				return
			}

			logger.WithField("status", herr.Code).Debugf("echo: %v", herr.Message)
			_ = c.JSON(herr.Code, echo.Map{
				"error": echo.Map{
					"message": herr.Message,
				},
			})
		default:
			internal(logger, err, c)
		}
	}
}

func internal(logger logrus.FieldLogger, err error, c echo.Context) {
	id := uuid.Must(uuid.NewV4()).String()
	logger.WithField("error_id", id).WithError(err).Error("unexpected error")

	_ = c.JSON(http.StatusInternalServerError, echo.Map{
		"error": echo.Map{
			"message": fmt.Sprintf("Unexpected error (id: %s)", id),
		},
	})
}
