package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/binaryhub/internal/models"
)

// StatusFor maps an engine error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvariant):
		return http.StatusConflict
	case errors.Is(err, models.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var messages = map[int]string{
	http.StatusBadRequest:          "invalid request",
	http.StatusNotFound:            "not found",
	http.StatusConflict:            "request conflicts with current balances",
	http.StatusServiceUnavailable:  "temporarily unavailable, retry later",
	http.StatusInternalServerError: "internal error",
}

// RespondError writes the error body. Only validation and not-found errors
// carry their message.
func RespondError(c echo.Context, err error) error {
	status := StatusFor(err)
	msg := messages[status]
	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		msg = err.Error()
	case http.StatusInternalServerError:
		c.Logger().Errorf("request failed: %v", err)
	}
	return c.JSON(status, echo.Map{"error": msg})
}
