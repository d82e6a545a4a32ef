package handler

import (
	"leadmarket_backend/internal/notification/transport"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler is the recipient's read side over notification rows.
type Handler struct {
	store store.Store
	val   *validator.Validator
}

func New(st store.Store, val *validator.Validator) *Handler {
	return &Handler{store: st, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("/:id/read", h.MarkRead)
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListNotificationsRequest
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
	items, err := h.store.ListNotifications(c.Request.Context(), identity.UserID(), req.UnreadOnly, store.Page{Limit: limit, Offset: offset})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.NotificationListResponse{Items: make([]transport.NotificationResponse, 0, len(items)), Page: offset/limit + 1}
	for _, n := range items {
		resp.Items = append(resp.Items, transport.ToNotificationResponse(n))
	}
	httpkit.OK(c, resp)
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := httpkit.PathUUID(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if httpkit.HandleError(c, h.store.MarkNotificationRead(c.Request.Context(), id, identity.UserID())) {
		return
	}
	httpkit.OK(c, gin.H{"status": "read"})
}
