package handler

import (
	"leadmarket_backend/internal/professionals/service"
	"leadmarket_backend/internal/professionals/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for professional profiles.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new professionals handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the self-service profile routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Register)
	rg.GET("/me", h.GetMe)
	rg.PUT("/me", h.UpdateMe)
	rg.PUT("/me/services", h.SetServices)
}

// RegisterCatalogRoutes registers the read side of the service catalog.
func (h *Handler) RegisterCatalogRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListServices)
}

// RegisterAdminRoutes registers catalog maintenance.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/services", h.CreateService)
}

func (h *Handler) Register(c *gin.Context) {
	var req transport.RegisterRequest
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

	p, err := h.svc.Register(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToProfessionalResponse(p))
}

func (h *Handler) GetMe(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToProfessionalResponse(p))
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var req transport.UpdateProfileRequest
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

	p, err := h.svc.UpdateProfile(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToProfessionalResponse(p))
}

func (h *Handler) SetServices(c *gin.Context) {
	var req transport.SetServicesRequest
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

	p, err := h.svc.SetServices(c.Request.Context(), identity.UserID(), req.ServiceIDs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToProfessionalResponse(p))
}

func (h *Handler) ListServices(c *gin.Context) {
	services, err := h.svc.ListServices(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.ServiceResponse, 0, len(services))
	for _, s := range services {
		items = append(items, transport.ToServiceResponse(s))
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) CreateService(c *gin.Context) {
	var req transport.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.BindError(c, err)
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	svc, err := h.svc.CreateService(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToServiceResponse(svc))
}
