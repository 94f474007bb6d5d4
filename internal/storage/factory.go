// Package storage builds the post repository selected by configuration.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/trossachsgroup/site-backend/internal/config"
	"github.com/trossachsgroup/site-backend/internal/posts"
	"github.com/trossachsgroup/site-backend/internal/repository"
	"github.com/trossachsgroup/site-backend/internal/store"
	"go.uber.org/zap"
)

// Storage is an opened post backend
type Storage struct {
	Backend string
	Posts   posts.Repository

	db     *sql.DB
	memory *posts.Store
	sql    *repository.PostRepository
	logger *zap.SugaredLogger
}

// Open builds the configured backend. SQL backends are migrated before use.
// The memory backend takes its ids from the cache's kv store, so they keep
// growing across restarts when Redis is shared.
func Open(ctx context.Context, cfg config.StoreConfig, cache *store.Cache, logger *zap.SugaredLogger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	switch cfg.Backend {
	case "", config.BackendMemory:
		var opts []posts.Option
		if cache != nil {
			opts = append(opts, posts.WithSequence(posts.NewKVSequence(cache.KV(), store.KeyPostSequence)))
		}
		logger.Infow("Using in-memory post store")
		s := posts.NewStore(opts...)
		return &Storage{Backend: config.BackendMemory, Posts: s, memory: s, logger: logger}, nil

	case config.BackendPostgres:
		return openSQL(ctx, repository.DialectPostgres, cfg.PostgresDSN, logger)

	case config.BackendSQLite:
		return openSQL(ctx, repository.DialectSQLite, cfg.SQLitePath, logger)

	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

func openSQL(ctx context.Context, dialect, dsn string, logger *zap.SugaredLogger) (*Storage, error) {
	db, err := repository.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	logger.Infow("Using SQL post store", "dialect", dialect)
	repo := repository.NewPostRepository(db, dialect, logger)
	return &Storage{Backend: dialect, Posts: repo, db: db, sql: repo, logger: logger}, nil
}

// Seed loads seed posts. The memory store always takes them; SQL stores
// only when the table is empty.
func (s *Storage) Seed(ctx context.Context, seed []posts.Post) error {
	if s.memory != nil {
		if err := s.memory.Seed(ctx, seed); err != nil {
			return fmt.Errorf("seed memory store: %w", err)
		}
		s.logger.Infow("Seeded posts", "count", len(seed))
		return nil
	}
	if _, err := s.sql.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed %s store: %w", s.Backend, err)
	}
	return nil
}

// LoadSeed returns the seed file's posts when path is set, else the
// built-in posts.
func LoadSeed(path string) ([]posts.Post, error) {
	if path == "" {
		return posts.DefaultSeed(), nil
	}
	seed, err := posts.LoadSeedFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("seed file %s does not exist", path)
		}
		return nil, fmt.Errorf("load seed file %s: %w", path, err)
	}
	return seed, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
