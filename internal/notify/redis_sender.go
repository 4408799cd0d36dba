package notify

import (
	"auction-engine/internal/models"
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel auction events are published on
const DefaultChannel = "auction:events"

// RedisSender publishes events on a Redis pub/sub channel. Subscribers
// that are not connected at publish time miss the event.
type RedisSender struct {
	rdb     *redis.Client
	channel string
}

// NewRedisSender creates a sender publishing on channel
func NewRedisSender(rdb *redis.Client, channel string) *RedisSender {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSender{rdb: rdb, channel: channel}
}

func (s *RedisSender) Send(ctx context.Context, payload models.EventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.channel, body).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", s.channel, err)
	}
	return nil
}

func (s *RedisSender) Name() string { return "redis" }

var _ Sender = (*RedisSender)(nil)
