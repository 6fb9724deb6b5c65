package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/opl-api/internal/models"
)

// RedisNotifier publishes transition events to a Redis channel. Delivery is
// best effort: publish failures are logged and never block or fail the
// transition that produced the event.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisNotifier constructs the notifier.
func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = "lesson:transitions"
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

// NotifyTransition publishes a single transition event.
func (n *RedisNotifier) NotifyTransition(ctx context.Context, event models.TransitionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("failed to encode transition event",
			zap.String("request_id", event.RequestID), zap.Error(err))
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := n.client.Publish(publishCtx, n.channel, payload).Err(); err != nil {
		n.logger.Warn("failed to publish transition event",
			zap.String("request_id", event.RequestID),
			zap.String("channel", n.channel),
			zap.Error(err))
	}
}
