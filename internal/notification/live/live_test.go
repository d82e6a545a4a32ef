package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedRecorder lets the test read the body while the stream handler runs.
type lockedRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *lockedRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(b)
}

func (r *lockedRecorder) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

func (r *lockedRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
}

func serveStream(t *testing.T, hub *Hub, userID uuid.UUID) (*lockedRecorder, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.GET("/stream", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Set(httpkit.ContextRolesKey, []string{"professional"})
		c.Next()
	}, hub.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.ServeHTTP(rec, req)
	}()
	require.Eventually(t, func() bool { return hub.Connected(userID) == 1 }, time.Second, 5*time.Millisecond)
	return rec, cancel, done
}

func TestHubStreamsOnlyTheRecipientsNotifications(t *testing.T) {
	hub := NewHub(logger.Discard())
	me, other := uuid.New(), uuid.New()
	rec, cancel, done := serveStream(t, hub, me)

	require.NoError(t, hub.Publish(context.Background(), domain.Notification{
		ID: uuid.New(), Type: "lead_accepted", RecipientID: me, Message: "You won the lead",
	}))
	require.NoError(t, hub.Publish(context.Background(), domain.Notification{
		ID: uuid.New(), Type: "lead_missed", RecipientID: other, Message: "someone else's",
	}))

	require.Eventually(t, func() bool {
		return strings.Contains(rec.body(), "You won the lead")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	body := rec.body()
	assert.Contains(t, body, "event:connected")
	assert.Contains(t, body, "event:"+EventNotification)
	assert.NotContains(t, body, "someone else's")
	assert.Equal(t, 0, hub.Connected(me))
}

func TestHubCloseEndsStreams(t *testing.T) {
	hub := NewHub(logger.Discard())
	userID := uuid.New()
	_, cancel, done := serveStream(t, hub, userID)
	defer cancel()

	hub.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end after Close")
	}
	assert.Equal(t, 0, hub.Connected(userID))
}

func TestRedisBridgeRelaysToHub(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{RedisURL: "redis://" + mr.Addr()}

	rdb, err := NewRedisClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub(logger.Discard())
	userID := uuid.New()
	cl := hub.addClient(userID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, NewBridge(rdb, hub, "", logger.Discard()).Start(ctx))

	n := domain.Notification{ID: uuid.New(), Type: "assignment_created", RecipientID: userID, Message: "New lead"}
	require.NoError(t, NewRedisPublisher(rdb, "").Publish(ctx, n))

	select {
	case got := <-cl.events:
		assert.Equal(t, n.ID, got.ID)
		assert.Equal(t, "New lead", got.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not relayed")
	}
}

func TestNewRedisClientRequiresURL(t *testing.T) {
	_, err := NewRedisClient(&config.Config{})
	require.Error(t, err)
}
