package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"snaplink/internal/apperrs"
)

// renderError maps domain errors to HTTP statuses. Unknown errors become an
// opaque 500 so internal details never leak to clients.
func (sc *ShortenerController) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, apperrs.ErrInvalidURL):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrs.ErrUnsupportedScheme):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, apperrs.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, apperrs.ErrNotFound):
		status, message = http.StatusNotFound, "Short link not found"
	case errors.Is(err, apperrs.ErrGone):
		status, message = http.StatusGone, "Short link expired"
	case errors.Is(err, apperrs.ErrUnavailable):
		status, message = http.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		sc.log.WithError(err).Error("request failed")
	}

	c.JSON(status, gin.H{"error": message})
}
