package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/leozw/domain-guardian/internal/api/handlers"
	"github.com/leozw/domain-guardian/internal/api/middleware"
	"github.com/leozw/domain-guardian/internal/config"
)

type Server struct {
	Router *gin.Engine
}

func NewServer(cfg config.ServerConfig, h *handlers.Handler, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	router := gin.New()

	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	server := &Server{Router: router}
	server.setupRoutes(h, gatherer)
	return server
}

func (s *Server) setupRoutes(h *handlers.Handler, gatherer prometheus.Gatherer) {
	s.Router.GET("/health", h.Health)
	s.Router.GET("/ready", h.Ready)
	s.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Public routing lookup used by the widget front end
	s.Router.GET("/api/custom-domains/resolve", h.ResolveDomain)

	api := s.Router.Group("/api/v1")
	{
		api.POST("/custom-domains", h.RegisterDomain)
		api.GET("/custom-domains/:id", h.GetDomain)
		api.DELETE("/custom-domains/:id", h.DeleteDomain)
		api.POST("/custom-domains/:id/verify", h.VerifyDomain)
		api.GET("/spaces/:space_id/custom-domain", h.GetSpaceDomain)
	}

	// Admin routes, authorized by the X-Admin-Key header
	admin := api.Group("/admin/custom-domains")
	{
		admin.POST("/sweep", h.RunSweep)
		admin.GET("/pending", h.ListPending)
		admin.POST("/:id/activate", h.ActivateDomain)
	}
}
