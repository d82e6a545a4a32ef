// Package ledger provides the credit ledger bounded context module.
package ledger

import (
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/ledger/handler"
	"leadmarket_backend/internal/ledger/service"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"
)

// Module is the ledger bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the ledger module with all its dependencies.
func NewModule(st store.Store, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(st, eventBus, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ledger"
}

// Service returns the service layer for the assignment resolver.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts credit routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	credits := ctx.Protected.Group("/credits", httpkit.RequireRole(httpkit.RoleProfessional))
	m.handler.RegisterRoutes(credits)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
