package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leozw/domain-guardian/internal/api/middleware"
	"github.com/leozw/domain-guardian/internal/core"
)

func (h *Handler) ActivateDomain(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	rec, err := h.controller.Activate(c.Request.Context(), id, c.GetHeader(middleware.AdminKeyHeader))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListPending(c *gin.Context) {
	var status core.DomainStatus
	if raw := c.Query("status"); raw != "" {
		parsed, ok := core.ParseStatus(raw)
		if !ok {
			badRequest(c, fmt.Sprintf("unknown status %q", raw))
			return
		}
		status = parsed
	}

	records, err := h.controller.ListPending(c.Request.Context(), c.GetHeader(middleware.AdminKeyHeader), status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"domains": records,
		"count":   len(records),
	})
}

func (h *Handler) RunSweep(c *gin.Context) {
	report, err := h.sweeper.Sweep(c.Request.Context(), c.GetHeader(middleware.AdminKeyHeader))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
