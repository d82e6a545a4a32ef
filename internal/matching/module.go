// Package matching provides the fan-out and manual assignment module.
package matching

import (
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/matching/handler"
	"leadmarket_backend/internal/matching/service"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"
)

// Module is the matching module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the matching module.
func NewModule(st store.Store, eventBus events.Bus, policy *service.CoveragePolicy, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(st, eventBus, policy, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "matching"
}

// Service returns the service layer; the leads module uses it to fan out new leads.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the admin routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
