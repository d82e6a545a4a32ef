package handler

import (
	"context"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/leads/service"
	"leadmarket_backend/internal/leads/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for leads.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new leads handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers lead routes. Customer-only routes carry their own guard.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	customer := httpkit.RequireRole(httpkit.RoleCustomer)

	rg.POST("", customer, h.Create)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/cancel", customer, h.Cancel)
	rg.POST("/:id/complete", customer, h.Complete)
	rg.POST("/:id/report-issue", customer, h.ReportIssue)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.BindError(c, err)
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.CreateLeadResponse{
		LeadResponse:         transport.ToLeadResponse(result.Lead),
		MatchedProfessionals: result.Matched,
	})
}

func (h *Handler) Get(c *gin.Context) {
	leadID, ok := httpkit.PathUUID(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	view, err := h.svc.Get(c.Request.Context(), leadID, service.Viewer{ID: identity.UserID(), Admin: identity.IsAdmin()})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ToLeadResponse(view.Lead)
	for _, a := range view.Assignments {
		resp.Assignments = append(resp.Assignments, transport.ToAssignmentSummary(a))
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.svc.Cancel)
}

func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, h.svc.Complete)
}

func (h *Handler) ReportIssue(c *gin.Context) {
	var req transport.ReportIssueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.BindError(c, err)
			return
		}
		if httpkit.HandleError(c, h.val.Struct(req)) {
			return
		}
	}

	h.transition(c, func(ctx context.Context, leadID, customerID uuid.UUID) (domain.Lead, error) {
		return h.svc.ReportIssue(ctx, leadID, customerID, req.Reason)
	})
}

type transitionFunc func(ctx context.Context, leadID, customerID uuid.UUID) (domain.Lead, error)

func (h *Handler) transition(c *gin.Context, fn transitionFunc) {
	leadID, ok := httpkit.PathUUID(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	lead, err := fn(c.Request.Context(), leadID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}
