package live

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/notification/transport"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel notifications are fanned out on.
const DefaultChannel = "leadmarket:notifications"

type envelope struct {
	RecipientID  uuid.UUID                      `json:"recipientId"`
	Notification transport.NotificationResponse `json:"notification"`
}

// NewRedisClient opens a go-redis client for cfg's REDIS_URL.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	if cfg.GetRedisURL() == "" {
		return nil, fmt.Errorf("redis url is required for live notifications")
	}
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

// RedisPublisher forwards notifications to API processes through Redis
// pub/sub. The scheduler worker uses it because it holds no SSE clients.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(envelope{RecipientID: n.RecipientID, Notification: transport.ToNotificationResponse(n)})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, data).Err()
}

// Bridge subscribes to the Redis channel and feeds a local Hub.
type Bridge struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
	log     *logger.Logger
}

func NewBridge(rdb *redis.Client, hub *Hub, channel string, log *logger.Logger) *Bridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Bridge{rdb: rdb, hub: hub, channel: channel, log: log}
}

// Start subscribes and returns once Redis confirmed the subscription. Messages
// are relayed in the background until ctx is done.
func (b *Bridge) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warn("dropping malformed live notification", "error", err)
					continue
				}
				b.hub.deliver(env.RecipientID, env.Notification)
			}
		}
	}()
	b.log.Info("live notification bridge subscribed", "channel", b.channel)
	return nil
}

var _ Publisher = (*RedisPublisher)(nil)
