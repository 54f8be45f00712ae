package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/domain-guardian/internal/core"
)

var kindStatus = map[string]int{
	"invalid_domain":      http.StatusBadRequest,
	"invalid_space":       http.StatusBadRequest,
	"duplicate_domain":    http.StatusConflict,
	"duplicate_owner":     http.StatusConflict,
	"not_found":           http.StatusNotFound,
	"precondition_failed": http.StatusPreconditionFailed,
	"unauthorized":        http.StatusUnauthorized,
	"conflict":            http.StatusConflict,
	"dns_timeout":         http.StatusServiceUnavailable,
	"dns_unavailable":     http.StatusServiceUnavailable,
}

func (h *Handler) respondError(c *gin.Context, err error) {
	kind := core.ErrorKind(err)
	status, ok := kindStatus[kind]
	if !ok {
		_ = c.Error(err)
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "kind": kind})
		return
	}

	body := gin.H{"error": err.Error(), "kind": kind}
	if core.IsRetryable(err) {
		body["retryable"] = true
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": "invalid_request"})
}
