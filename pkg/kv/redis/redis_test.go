package redis

import (
	"errors"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/trossachsgroup/site-backend/pkg/kv"
	"github.com/trossachsgroup/site-backend/pkg/kv/kvtest"
)

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis tests")
	}

	factory := func(t *testing.T) kv.Store {
		store, err := New(redisURL)
		if err != nil {
			t.Fatalf("Failed to create Redis store: %v", err)
		}
		return store
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, IsConnectionError(nil))
	assert.False(t, IsConnectionError(redis.Nil))
	assert.True(t, IsConnectionError(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")))
	assert.True(t, IsConnectionError(errors.New("i/o timeout")))
	assert.False(t, IsConnectionError(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")))
}

func TestNewUnreachable(t *testing.T) {
	_, err := New("redis://127.0.0.1:1/0")
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)
}
