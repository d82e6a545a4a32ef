package handler

import (
	"leadmarket_backend/internal/assignments/service"
	"leadmarket_backend/internal/assignments/transport"
	"leadmarket_backend/internal/domain"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler exposes the professional's assignment inbox and decisions.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new assignments handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers routes on the provided router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/accept", h.Accept)
	rg.POST("/:id/reject", h.Reject)
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListAssignmentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
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

	var status *domain.AssignmentStatus
	if req.Status != "" {
		parsed, err := domain.ParseAssignmentStatus(req.Status)
		if err != nil {
			httpkit.HandleError(c, domain.ErrValidation(err.Error()))
			return
		}
		status = &parsed
	}

	items, err := h.svc.ListForProfessional(c.Request.Context(), identity.UserID(), status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAssignmentList(items))
}

func (h *Handler) Get(c *gin.Context) {
	assignmentID, ok := httpkit.PathUUID(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	a, contact, err := h.svc.Get(c.Request.Context(), assignmentID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.ToAssignmentResponse(a)
	if contact != nil {
		cr := transport.ToContactResponse(*contact)
		resp.Contact = &cr
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Accept(c *gin.Context) {
	assignmentID, ok := httpkit.PathUUID(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Accept(c.Request.Context(), assignmentID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAcceptResponse(result))
}

func (h *Handler) Reject(c *gin.Context) {
	assignmentID, ok := httpkit.PathUUID(c, "id")
	if !ok {
		return
	}

	// The body is optional.
	var req transport.RejectAssignmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.BindError(c, err)
			return
		}
		if httpkit.HandleError(c, h.val.Struct(req)) {
			return
		}
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	a, err := h.svc.Reject(c.Request.Context(), assignmentID, identity.UserID(), req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAssignmentResponse(a))
}
