package handler

import (
	"leadmarket_backend/internal/matching/service"
	"leadmarket_backend/internal/matching/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler exposes fan-out and manual assignment to administrators.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new matching handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterAdminRoutes registers routes on the admin group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads/:id/fan-out", h.FanOut)
	rg.POST("/leads/:id/assignments", h.ManualAssign)
	rg.GET("/leads/:id/assignments", h.ListLeadAssignments)
	rg.GET("/assignments/:id/history", h.History)
}

func (h *Handler) FanOut(c *gin.Context) {
	leadID, ok := httpkit.PathUUID(c, "id")
	if !ok {
		return
	}

	created, err := h.svc.FanOutAssignments(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAssignmentList(created))
}

func (h *Handler) ManualAssign(c *gin.Context) {
	leadID, ok := httpkit.PathUUID(c, "id")
	if !ok {
		return
	}

	var req transport.ManualAssignRequest
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

	a, err := h.svc.ManualAssign(c.Request.Context(), service.ManualAssignParams{
		LeadID:         leadID,
		ProfessionalID: req.ProfessionalID,
		AdminID:        identity.UserID(),
		Override:       req.Override,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToAssignmentResponse(a))
}

func (h *Handler) ListLeadAssignments(c *gin.Context) {
	leadID, ok := httpkit.PathUUID(c, "id")
	if !ok {
		return
	}

	items, err := h.svc.ListLeadAssignments(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAssignmentList(items))
}

func (h *Handler) History(c *gin.Context) {
	assignmentID, ok := httpkit.PathUUID(c, "id")
	if !ok {
		return
	}

	history, err := h.svc.History(c.Request.Context(), assignmentID)
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.TransitionResponse, 0, len(history))
	for _, t := range history {
		items = append(items, transport.ToTransitionResponse(t))
	}
	httpkit.OK(c, gin.H{"items": items})
}
