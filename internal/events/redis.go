// Package events delivers domain events over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// publishClient is the subset of *redis.Client used by Publisher.
type publishClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publisher JSON-encodes payloads and publishes them on a Redis channel.
type Publisher struct {
	rdb publishClient
}

// NewPublisher returns a Publisher over rdb.
func NewPublisher(rdb publishClient) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish sends payload to channel. Having no subscribers is not an error.
func (p *Publisher) Publish(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", channel, err)
	}
	if err := p.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

type setNXClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Deduper remembers keys for a TTL so an event is emitted once per key.
type Deduper struct {
	rdb    setNXClient
	prefix string
	ttl    time.Duration
}

// NewDeduper returns a Deduper storing keys under prefix for ttl.
func NewDeduper(rdb setNXClient, prefix string, ttl time.Duration) *Deduper {
	return &Deduper{rdb: rdb, prefix: prefix, ttl: ttl}
}

// First reports whether key is seen for the first time within the TTL and
// marks it as seen.
func (d *Deduper) First(ctx context.Context, key string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, d.prefix+key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

// Forget releases key so the next First for it reports true again.
func (d *Deduper) Forget(ctx context.Context, key string) error {
	if err := d.rdb.Del(ctx, d.prefix+key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}
