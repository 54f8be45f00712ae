package handlers

import (
	"go.uber.org/zap"

	"github.com/leozw/domain-guardian/internal/lifecycle"
	"github.com/leozw/domain-guardian/internal/registry"
	"github.com/leozw/domain-guardian/internal/routing"
	"github.com/leozw/domain-guardian/internal/scheduler"
)

type Handler struct {
	registry   *registry.Registry
	controller *lifecycle.Controller
	sweeper    *scheduler.Sweeper
	resolver   *routing.Resolver
	logger     *zap.Logger
}

func NewHandler(reg *registry.Registry, controller *lifecycle.Controller, sweeper *scheduler.Sweeper, resolver *routing.Resolver, logger *zap.Logger) *Handler {
	return &Handler{
		registry:   reg,
		controller: controller,
		sweeper:    sweeper,
		resolver:   resolver,
		logger:     logger,
	}
}
