// Package assignments provides the assignment resolver module: a professional's
// inbox plus accept and reject.
package assignments

import (
	"leadmarket_backend/internal/assignments/handler"
	"leadmarket_backend/internal/assignments/service"
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"
)

// Module is the assignments module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the module. ledgerSvc charges the winner of an accept.
func NewModule(st store.Store, ledgerSvc service.Ledger, eventBus events.Bus, cfg config.ResolverConfig, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(st, ledgerSvc, eventBus, cfg, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assignments"
}

// Service returns the resolver; leadctl and tests drive it directly.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the professional routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	rg := ctx.Protected.Group("/assignments", httpkit.RequireRole(httpkit.RoleProfessional))
	m.handler.RegisterRoutes(rg)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
