package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/folio/internal/content"
	"github.com/mohammad-safakhou/folio/internal/github"
	"github.com/mohammad-safakhou/folio/internal/imaging"
	"github.com/mohammad-safakhou/folio/internal/store"
	"github.com/sirupsen/logrus"
)

// statusFor maps a handler error onto an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	var (
		he  *echo.HTTPError
		ce  *content.ValidationError
		ie  *imaging.ValidationError
		ghe *github.Error
	)
	switch {
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Record not found"
	case errors.As(err, &ce):
		return http.StatusBadRequest, ce.Message
	case errors.As(err, &ie):
		return http.StatusBadRequest, ie.Reason
	case errors.As(err, &ghe):
		switch ghe.Kind {
		case github.KindUnauthorized:
			return http.StatusUnauthorized, "GitHub authentication failed"
		case github.KindForbidden:
			return http.StatusForbidden, "GitHub access forbidden"
		case github.KindRateLimited:
			return http.StatusTooManyRequests, "GitHub rate limit exceeded"
		case github.KindConflict:
			return http.StatusConflict, "File changed since it was loaded, reload and try again"
		default:
			return http.StatusBadGateway, "GitHub request failed: " + ghe.Message
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// ErrorHandler renders every error as {"status":"error","message":...}.
// Server-side failures are logged with detail; the client sees a generic message.
func ErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, msg := statusFor(err)
		req := c.Request()
		entry := log.WithFields(logrus.Fields{
			"status": code,
			"method": req.Method,
			"path":   req.URL.Path,
			"ip":     c.RealIP(),
		}).WithError(err)
		if code >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Debug("request rejected")
		}
		if c.Response().Committed {
			return
		}
		if req.Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, HTTPError{Status: "error", Message: msg})
	}
}
