package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"portal/internal/admin"
	"portal/internal/auth"
	"portal/internal/qr"
	"portal/internal/registration"
)

// writeError maps domain errors onto HTTP responses. Unexpected errors are
// logged and hidden behind a generic message.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorw("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	var ue *registration.UploadError
	switch {
	case registration.IsClientError(err),
		errors.Is(err, admin.ErrMissingFields),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, qr.ErrNoCode):
		return http.StatusBadRequest, qr.ErrNoCode.Error()
	case errors.Is(err, admin.ErrUnauthenticated),
		errors.Is(err, admin.ErrInvalidSetupCode),
		errors.Is(err, admin.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, admin.ErrForbidden),
		errors.Is(err, admin.ErrSetupDisabled):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, registration.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, registration.ErrConflict):
		return http.StatusConflict, registration.ErrConflict.Error()
	case errors.As(err, &ue):
		return http.StatusBadGateway, ue.Error()
	case errors.Is(err, registration.ErrNoFileStorage):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
