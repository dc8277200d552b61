package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	// DefaultRedisChannel is the pub/sub channel snapshots are published to.
	DefaultRedisChannel = "pulse:dashboard"

	// DefaultRedisKey holds the latest snapshot for late-joining consumers.
	DefaultRedisKey = "pulse:dashboard:latest"

	defaultRedisTTL = time.Hour
)

// Redis publishes each snapshot to a pub/sub channel and stores the latest
// snapshot under a key with a TTL, so dashboard consumers can catch up
// without waiting for the next tick.
type Redis struct {
	client  *redis.Client
	channel string
	key     string
	ttl     time.Duration
}

// NewRedis connects to addr and verifies the connection with a ping.
// Empty channel falls back to DefaultRedisChannel.
func NewRedis(addr, channel string) (*Redis, error) {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	client := redis.NewClient(&redis.Options{
		Addr:       addr,
		MaxRetries: 3,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{
		client:  client,
		channel: channel,
		key:     DefaultRedisKey,
		ttl:     defaultRedisTTL,
	}, nil
}

func (r *Redis) Name() string { return "redis" }

// Deliver publishes the snapshot and refreshes the latest-snapshot key.
func (r *Redis) Deliver(ctx context.Context, snapshot *model.DashboardData) error {
	payload, err := marshalSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	if err := r.client.Set(ctx, r.key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set latest: %w", err)
	}
	return nil
}

// Latest returns the most recently stored snapshot, or nil when none exists.
func (r *Redis) Latest(ctx context.Context) (*model.DashboardData, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get latest: %w", err)
	}
	var snap model.DashboardData
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode latest snapshot: %w", err)
	}
	return &snap, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func marshalSnapshot(snapshot *model.DashboardData) ([]byte, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return payload, nil
}
