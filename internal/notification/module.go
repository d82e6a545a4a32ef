// Package notification records notification triggers for lead lifecycle events.
//
// Domain modules publish events after their transactions commit; this module
// subscribes to them and appends outbox records. The scheduler relays those
// records to the Processor, which writes the notification rows recipients read
// and pushes them to open SSE streams.
// Nothing here can roll back or fail a committed assignment or ledger change.
package notification

import (
	"context"

	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/notification/handler"
	"leadmarket_backend/internal/notification/live"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/google/uuid"
)

// Module wires the emitter, the processor and the read side.
type Module struct {
	emitter   *Emitter
	processor *Processor
	handler   *handler.Handler
	hub       *live.Hub
	log       *logger.Logger
}

// New creates the notification module.
func New(st store.Store, cfg config.NotificationConfig, val *validator.Validator, log *logger.Logger) *Module {
	if log == nil {
		log = logger.Discard()
	}
	hub := live.NewHub(log)
	processor := NewProcessor(st, cfg, log)
	processor.SetLive(hub)
	return &Module{
		emitter:   NewEmitter(st, log),
		processor: processor,
		handler:   handler.New(st, val),
		hub:       hub,
		log:       log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the recipient's notification routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	m.handler.RegisterRoutes(group)
	group.GET("/stream", m.hub.Handler())
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.AssignmentCreated{}.EventName(), m.emitter)
	bus.Subscribe(events.AssignmentRejected{}.EventName(), m.emitter)
	bus.Subscribe(events.LeadAccepted{}.EventName(), m.emitter)
	bus.Subscribe(events.ProfessionalRegistered{}.EventName(), m.emitter)

	m.log.Info("notification module registered event handlers")
}

// Emitter returns the outbox writer.
func (m *Module) Emitter() *Emitter { return m.emitter }

// Processor returns the outbox consumer used by the scheduler worker and the
// inline relay.
func (m *Module) Processor() *Processor { return m.processor }

// Hub returns the SSE hub behind GET /notifications/stream.
func (m *Module) Hub() *live.Hub { return m.hub }

// SetLivePublisher replaces the local hub as the push target, e.g. with a
// Redis publisher in a process that serves no streams.
func (m *Module) SetLivePublisher(pub live.Publisher) { m.processor.SetLive(pub) }

// ProcessOutbox implements the scheduler's OutboxProcessor.
func (m *Module) ProcessOutbox(ctx context.Context, outboxID uuid.UUID) error {
	return m.processor.Process(ctx, outboxID)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
