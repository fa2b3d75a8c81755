// internal/events/redis.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rental-agents-service/internal/domain/agent"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel the notification service listens on.
const DefaultChannel = "agent.events"

type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e agent.Event) error {
	data, err := json.Marshal(NewEnvelope(e, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type(), err)
	}
	return nil
}
