// Package events publishes review lifecycle notifications over Redis
// pub/sub so other dashboard components (the kanban board in particular)
// can recompute status badges without re-fetching the property.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channels, in increasing specificity. Both fire after every successful
// persist of a review blob.
const (
	ChannelPropertyUpdated = "property-updated"
	ChannelReviewsUpdated  = "reviews-updated"
)

// Payload is the message published on both channels.
type Payload struct {
	PropertyID string          `json:"propertyId"`
	ReviewBlob json.RawMessage `json:"reviewBlob"`
}

// Publisher is what the application layer depends on.
type Publisher interface {
	PublishReviewUpdate(ctx context.Context, payload Payload) error
}

// RedisPublisher fans review updates out over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(redisURL string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisPublisher{client: client}, nil
}

// NewRedisPublisherWithClient wraps an existing Redis client.
func NewRedisPublisherWithClient(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// PublishReviewUpdate emits the payload on both channels.
func (p *RedisPublisher) PublishReviewUpdate(ctx context.Context, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if err := p.client.Publish(ctx, ChannelPropertyUpdated, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ChannelPropertyUpdated, err)
	}
	if err := p.client.Publish(ctx, ChannelReviewsUpdated, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ChannelReviewsUpdated, err)
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// NopPublisher drops events; used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishReviewUpdate(context.Context, Payload) error {
	return nil
}
