package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trossachsgroup/site-backend/internal/config"
	"github.com/trossachsgroup/site-backend/internal/posts"
	"github.com/trossachsgroup/site-backend/internal/store"
	"go.uber.org/zap"
)

func TestOpenMemoryBackend(t *testing.T) {
	ctx := context.Background()
	cache := store.NewMemoryCache(zap.NewNop().Sugar(), nil)
	defer cache.Close()

	s, err := Open(ctx, config.StoreConfig{Backend: config.BackendMemory}, cache, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, config.BackendMemory, s.Backend)
	assert.NoError(t, s.Ping(ctx))

	require.NoError(t, s.Seed(ctx, posts.DefaultSeed()))
	p, err := s.Posts.Create(ctx, posts.Fields{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.ID)

	// The counter lives in the cache
	n, err := cache.KV().IncrBy(ctx, store.KeyPostSequence, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestOpenSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "posts.db")

	s, err := Open(ctx, config.StoreConfig{Backend: config.BackendSQLite, SQLitePath: path}, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, config.BackendSQLite, s.Backend)
	assert.NoError(t, s.Ping(ctx))

	require.NoError(t, s.Seed(ctx, posts.DefaultSeed()))
	require.NoError(t, s.Seed(ctx, posts.DefaultSeed()), "second seed is skipped")

	list, err := s.Posts.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Backend: "cassandra"}, nil, nil)
	assert.Error(t, err)
}

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed("")
	require.NoError(t, err)
	assert.Equal(t, posts.DefaultSeed(), seed)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":9,"title":"Only","date":"2024-12-31"}]`), 0o644))
	seed, err = LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, seed, 1)
	assert.Equal(t, "Only", seed[0].Title)
}
