package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/repository"
	"github.com/mamadbah2/farmchain/internal/service/batches"
	"github.com/mamadbah2/farmchain/internal/service/notifications"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, batches.ErrNotFound), errors.Is(err, notifications.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, batches.ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrVersionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}
