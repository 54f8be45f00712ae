package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResolveDomain is public: the widget front end calls it with the browser's
// hostname to find the space to render.
func (h *Handler) ResolveDomain(c *gin.Context) {
	host := c.Query("domain")
	if host == "" {
		badRequest(c, "domain query parameter is required")
		return
	}

	space, err := h.resolver.Resolve(c.Request.Context(), host)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, space)
}
