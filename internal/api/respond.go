package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/apperr"
)

// respondError maps a domain error to an HTTP status. Internal details
// stay in the log; the client only sees the domain message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeForbidden, apperr.CodeNotMember:
		status = http.StatusForbidden
	case apperr.CodeConflict:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": appErr.Message, "code": string(appErr.Code)})
}
