package posts

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/trossachsgroup/site-backend/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type EventType string

const (
	EventCreated EventType = "post.created"
	EventUpdated EventType = "post.updated"
	EventDeleted EventType = "post.deleted"
)

// Event is published on store.ChannelPostEvents after every mutation
type Event struct {
	Type EventType `json:"type"`
	ID   int64     `json:"id"`
	Post *Post     `json:"post,omitempty"`
	At   int64     `json:"at"`
}

type MetricsRecorder interface {
	RecordPostMutation(ctx context.Context, op string)
}

// Service fronts a Repository with the list cache, change events and
// mutation metrics. It satisfies Repository itself so an Editor can run on
// top of it.
type Service struct {
	repo    Repository
	cache   *store.Cache
	logger  *zap.SugaredLogger
	metrics MetricsRecorder
	listTTL time.Duration

	fills singleflight.Group
	// gen counts committed mutations. A cached list is served only when it
	// was filled under the current generation.
	gen atomic.Uint64
}

// listEntry is the cached form of the post list
type listEntry struct {
	Gen   uint64 `json:"gen"`
	Posts []Post `json:"posts"`
}

var _ Repository = (*Service)(nil)

// NewService wires repo to cache. A zero listTTL disables list caching;
// a nil cache disables caching and events.
func NewService(repo Repository, cache *store.Cache, logger *zap.SugaredLogger, metrics MetricsRecorder, listTTL time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		listTTL: listTTL,
	}
}

func (s *Service) List(ctx context.Context) ([]Post, error) {
	if s.cache == nil || s.listTTL <= 0 {
		return s.repo.List(ctx)
	}

	gen := s.gen.Load()

	var cached listEntry
	err := s.cache.Get(ctx, store.KeyPostList, &cached)
	if err == nil && cached.Gen == gen {
		return cached.Posts, nil
	}
	if err != nil && !errors.Is(err, store.ErrCacheMiss) {
		s.logger.Warnw("Post list cache read failed", "error", err)
	}

	// Keyed by generation so a List after a mutation never joins an older fill
	key := store.KeyPostList + ":" + strconv.FormatUint(gen, 10)
	v, err, _ := s.fills.Do(key, func() (any, error) {
		// Waiters share this fill; one caller going away must not fail them all
		fillCtx := context.WithoutCancel(ctx)

		list, err := s.repo.List(fillCtx)
		if err != nil {
			return nil, err
		}
		if s.gen.Load() != gen {
			return list, nil
		}
		if err := s.cache.Set(fillCtx, store.KeyPostList, listEntry{Gen: gen, Posts: list}, s.listTTL); err != nil {
			s.logger.Warnw("Post list cache write failed", "error", err)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers sharing a fill get their own slice
	list := v.([]Post)
	out := make([]Post, len(list))
	copy(out, list)
	return out, nil
}

// InvalidateList drops the cached post list. Run it at startup: the cache may
// outlive the process when it is Redis.
func (s *Service) InvalidateList(ctx context.Context) error {
	s.gen.Add(1)
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, store.KeyPostList)
}

func (s *Service) Get(ctx context.Context, id int64) (Post, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, f Fields) (Post, error) {
	p, err := s.repo.Create(ctx, f)
	if err != nil {
		return Post{}, err
	}
	s.changed(ctx, EventCreated, p.ID, &p)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id int64, f Fields) (Post, error) {
	p, err := s.repo.Update(ctx, id, f)
	if err != nil {
		return Post{}, err
	}
	s.changed(ctx, EventUpdated, p.ID, &p)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, EventDeleted, id, nil)
	return nil
}

// changed runs after a committed mutation. Cache and pubsub failures are
// logged; the mutation itself already succeeded.
func (s *Service) changed(ctx context.Context, typ EventType, id int64, p *Post) {
	if s.metrics != nil {
		s.metrics.RecordPostMutation(ctx, string(typ))
	}
	s.logger.Infow("Post changed", "event", typ, "id", id)

	s.gen.Add(1)
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, store.KeyPostList); err != nil {
		s.logger.Warnw("Post list cache invalidation failed", "error", err)
	}
	ev := Event{Type: typ, ID: id, Post: p, At: time.Now().Unix()}
	if err := s.cache.Publish(ctx, store.ChannelPostEvents, ev); err != nil {
		s.logger.Warnw("Post event publish failed", "event", typ, "id", id, "error", err)
	}
}
