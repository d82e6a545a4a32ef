// Package live pushes freshly written notifications to connected recipients
// over Server-Sent Events.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/notification/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventNotification is the SSE event name carrying one notification.
const EventNotification = "notification"

const clientBuffer = 32

// Publisher delivers a persisted notification to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// client represents a connected SSE client
type client struct {
	userID uuid.UUID
	events chan transport.NotificationResponse
}

// Hub manages SSE connections per recipient.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client // userID -> clients
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{clients: make(map[uuid.UUID][]*client), log: log}
}

func (h *Hub) addClient(userID uuid.UUID) *client {
	c := &client{userID: userID, events: make(chan transport.NotificationResponse, clientBuffer)}
	h.mu.Lock()
	h.clients[userID] = append(h.clients[userID], c)
	h.mu.Unlock()
	return c
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			h.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			if len(h.clients[c.userID]) == 0 {
				delete(h.clients, c.userID)
			}
			close(c.events)
			return
		}
	}
	// Already closed by Close.
}

// Connected returns how many streams the recipient has open.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish sends n to every stream its recipient has open. A full buffer drops
// the event; the row is still listed by GET /notifications.
func (h *Hub) Publish(_ context.Context, n domain.Notification) error {
	h.deliver(n.RecipientID, transport.ToNotificationResponse(n))
	return nil
}

func (h *Hub) deliver(userID uuid.UUID, resp transport.NotificationResponse) {
	// The read lock is held while sending so removeClient cannot close a
	// channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients[userID] {
		select {
		case c.events <- resp:
		default:
			h.log.Warn("sse buffer full, dropping notification", "user_id", userID.String(), "notification_id", resp.ID.String())
		}
	}
}

// Handler streams the caller's notifications until the request ends.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := httpkit.MustGetIdentity(c)
		if identity == nil {
			return
		}
		userID := identity.UserID()

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		cl := h.addClient(userID)
		defer h.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()
		h.log.Debug("sse client connected", "user_id", userID.String())

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				h.log.Debug("sse client disconnected", "user_id", userID.String())
				return
			case resp, ok := <-cl.events:
				if !ok {
					return
				}
				data, err := json.Marshal(resp)
				if err != nil {
					continue
				}
				c.SSEvent(EventNotification, string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close disconnects every stream.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	h.clients = make(map[uuid.UUID][]*client)
}

var _ Publisher = (*Hub)(nil)
