package handler

import (
	"leadmarket_backend/internal/ledger/service"
	"leadmarket_backend/internal/ledger/transport"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for credit balances.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new ledger handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the professional-facing credit routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/balance", h.GetBalance)
	rg.GET("/entries", h.ListEntries)
}

// RegisterAdminRoutes registers the top-up route used by the wallet collaborator.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/professionals/:id/credits", h.AddCredits)
}

func (h *Handler) GetBalance(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	balance, err := h.svc.GetBalance(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.BalanceResponse{ProfessionalID: identity.UserID(), Balance: balance})
}

func (h *Handler) ListEntries(c *gin.Context) {
	var req transport.ListEntriesRequest
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

	limit, offset := httpkit.Pagination(req.Page, req.PageSize)
	entries, total, err := h.svc.ListEntries(c.Request.Context(), identity.UserID(), store.Page{Limit: limit, Offset: offset})
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.CreditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, transport.ToCreditEntryResponse(e))
	}
	httpkit.OK(c, transport.CreditEntryListResponse{
		Items:    items,
		Total:    total,
		Page:     offset/limit + 1,
		PageSize: limit,
	})
}

func (h *Handler) AddCredits(c *gin.Context) {
	professionalID, ok := httpkit.PathUUID(c, "id")
	if !ok {
		return
	}

	var req transport.AddCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.BindError(c, err)
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	result, err := h.svc.Credit(c.Request.Context(), professionalID, req.Amount, req.Reference)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.AddCreditsResponse{
		EntryID:   result.Entry.ID,
		Balance:   result.Balance,
		Duplicate: result.Duplicate,
	})
}
