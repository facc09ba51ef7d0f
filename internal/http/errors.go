package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"userauth/internal/client"
	"userauth/internal/domain"
	"userauth/internal/service"
)

// writeError maps err to a status code and renders its description.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"status": status,
		}).WithError(err).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var upstream *client.StatusError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.As(err, &upstream):
		// relay the upstream verdict for client errors
		if upstream.StatusCode >= 400 && upstream.StatusCode < 500 {
			return upstream.StatusCode
		}
		return http.StatusBadGateway
	case errors.Is(err, client.ErrBadURL), errors.Is(err, client.ErrBadServerResponse):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrBackupsDisabled):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
