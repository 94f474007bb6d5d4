package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trossachsgroup/site-backend/internal/metrics"
	"github.com/trossachsgroup/site-backend/pkg/kv"
	memkv "github.com/trossachsgroup/site-backend/pkg/kv/memory"
	kvredis "github.com/trossachsgroup/site-backend/pkg/kv/redis"
	"go.uber.org/zap"
)

// Cache is the JSON cache and event bus of the site. Values live in a
// kv.Store: Redis when it answers at startup, the in-memory store otherwise.
// Events go through Redis pubsub or the in-process PubSubHub accordingly.
type Cache struct {
	// Set only when Redis is reachable, used for pubsub; owned by kvStore
	client  *redis.Client
	kvStore kv.Store

	// In-memory pubsub hub for when Redis is unavailable
	pubsubHub *PubSubHub

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewCache(addr string, logger *zap.SugaredLogger, metrics *metrics.Metrics) (*Cache, error) {
	redisStore, err := kvredis.New(addr)
	if err != nil {
		if logger != nil {
			logger.Warnw("Redis unavailable; using in-memory cache and pubsub", "addr", addr, "error", err)
		}
		return NewMemoryCache(logger, metrics), nil
	}

	if logger != nil {
		logger.Infow("Connected to Redis", "addr", addr)
	}
	return &Cache{
		client:  redisStore.Client(),
		kvStore: redisStore,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// NewMemoryCache builds a cache that never touches the network.
func NewMemoryCache(logger *zap.SugaredLogger, metrics *metrics.Metrics) *Cache {
	return &Cache{
		kvStore:   memkv.NewStore(),
		pubsubHub: NewPubSubHub(),
		logger:    logger,
		metrics:   metrics,
	}
}

// Cache keys and pubsub channels
const (
	KeyPostList     = "site:posts:list"
	KeyPostSequence = "site:posts:seq"
	KeyContactInbox = "site:contact:inbox"

	ChannelPostEvents    = "site:posts:events"
	ChannelContactEvents = "site:contact:events"
)

// ErrCacheMiss is returned by Get when the key holds nothing
var ErrCacheMiss = errors.New("cache miss")

// KV exposes the underlying store for counters and lists.
func (c *Cache) KV() kv.Store {
	return c.kvStore
}

func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			c.metrics.RecordCacheMiss(ctx, key)
			return ErrCacheMiss
		}
		if c.logger != nil {
			c.logger.Errorw("Cache get error", "key", key, "error", err)
		}
		return fmt.Errorf("cache get error: %w", err)
	}
	c.metrics.RecordCacheHit(ctx, key)
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.kvStore.Set(ctx, key, data, ttl); err != nil {
		if c.logger != nil {
			c.logger.Errorw("Cache set error", "key", key, "error", err)
		}
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := c.kvStore.Del(ctx, keys...); err != nil {
		if c.logger != nil {
			c.logger.Errorw("Cache delete error", "keys", keys, "error", err)
		}
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// PushCapped appends value as JSON to the list at key and keeps only the
// newest limit entries. A non-positive limit keeps everything. A positive
// ttl makes the whole list expire ttl after this push.
func (c *Cache) PushCapped(ctx context.Context, key string, value any, limit int64, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if _, err := c.kvStore.RPush(ctx, key, data); err != nil {
		return fmt.Errorf("cache push error: %w", err)
	}
	if limit > 0 {
		if err := c.kvStore.LTrim(ctx, key, -limit, -1); err != nil {
			return fmt.Errorf("cache trim error: %w", err)
		}
	}
	if ttl > 0 {
		if _, err := c.kvStore.Expire(ctx, key, ttl); err != nil {
			return fmt.Errorf("cache expire error: %w", err)
		}
	}
	return nil
}

// Range returns the raw JSON entries of the list at key, oldest first.
func (c *Cache) Range(ctx context.Context, key string) ([]json.RawMessage, error) {
	items, err := c.kvStore.LRange(ctx, key, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("cache range error: %w", err)
	}
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out, nil
}

// Publish sends message as JSON on channel.
func (c *Cache) Publish(ctx context.Context, channel string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("pubsub marshal error: %w", err)
	}

	if c.client != nil {
		if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
			if c.logger != nil {
				c.logger.Errorw("Publish error", "channel", channel, "error", err)
			}
			return fmt.Errorf("pubsub publish error: %w", err)
		}
		return nil
	}

	c.pubsubHub.Publish(channel, string(data))
	if c.logger != nil {
		c.logger.Debugw("Published to in-memory pubsub", "channel", channel)
	}
	return nil
}

// Subscribe listens on channels until ctx is done or the subscription is
// closed. With Redis the subscription is confirmed before returning.
func (c *Cache) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	if c.client != nil {
		ps := c.client.Subscribe(ctx, channels...)
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			return nil, fmt.Errorf("pubsub subscribe error: %w", err)
		}
		return newRedisSubscription(ctx, ps), nil
	}
	return c.pubsubHub.Subscribe(ctx, channels...), nil
}

// IsInMemoryMode returns true if the cache is running without Redis
func (c *Cache) IsInMemoryMode() bool {
	return c.client == nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.kvStore.Ping(ctx)
}

// Close closes the kv store, and with it the Redis client.
func (c *Cache) Close() error {
	return c.kvStore.Close()
}
