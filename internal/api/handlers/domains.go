package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leozw/domain-guardian/internal/core"
)

type RegisterDomainRequest struct {
	SpaceID string `json:"space_id" binding:"required"`
	Domain  string `json:"domain" binding:"required"`
}

func (h *Handler) RegisterDomain(c *gin.Context) {
	var req RegisterDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	spaceID, err := uuid.Parse(req.SpaceID)
	if err != nil {
		h.respondError(c, fmt.Errorf("%w: %q", core.ErrInvalidSpace, req.SpaceID))
		return
	}

	rec, err := h.controller.Register(c.Request.Context(), spaceID, req.Domain)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) GetDomain(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	rec, err := h.registry.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if rec == nil {
		h.respondError(c, core.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *Handler) GetSpaceDomain(c *gin.Context) {
	spaceID, ok := parseID(c, "space_id")
	if !ok {
		return
	}

	rec, err := h.registry.GetBySpace(c.Request.Context(), spaceID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if rec == nil {
		h.respondError(c, fmt.Errorf("space %s has no custom domain: %w", spaceID, core.ErrNotFound))
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *Handler) VerifyDomain(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	rec, err := h.controller.Verify(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteDomain(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.controller.Remove(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		badRequest(c, fmt.Sprintf("invalid %s", param))
		return uuid.Nil, false
	}
	return id, true
}
