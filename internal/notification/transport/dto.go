package transport

import (
	"time"

	"leadmarket_backend/internal/domain"

	"github.com/google/uuid"
)

type ListNotificationsRequest struct {
	Page       int  `form:"page" validate:"omitempty,min=1"`
	PageSize   int  `form:"pageSize" validate:"omitempty,min=1,max=100"`
	UnreadOnly bool `form:"unreadOnly"`
}

type NotificationResponse struct {
	ID         uuid.UUID         `json:"id"`
	Type       string            `json:"type"`
	Message    string            `json:"message"`
	RelatedIDs map[string]string `json:"relatedIds"`
	Read       bool              `json:"read"`
	CreatedAt  time.Time         `json:"createdAt"`
}

type NotificationListResponse struct {
	Items []NotificationResponse `json:"items"`
	Page  int                    `json:"page"`
}

func ToNotificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         n.ID,
		Type:       n.Type,
		Message:    n.Message,
		RelatedIDs: n.RelatedIDs,
		Read:       n.Read,
		CreatedAt:  n.CreatedAt,
	}
}
