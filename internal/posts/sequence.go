package posts

import (
	"context"
	"fmt"
	"sync"

	"github.com/trossachsgroup/site-backend/pkg/kv"
)

// Sequence hands out post ids. Ids only grow: a deleted id is never handed
// out again, and the counter does not depend on which posts currently exist.
type Sequence interface {
	// Next returns a fresh id, starting at 1
	Next(ctx context.Context) (int64, error)
	// Advance makes sure later ids are greater than floor
	Advance(ctx context.Context, floor int64) error
}

// MemorySequence is a process-local counter
type MemorySequence struct {
	mu   sync.Mutex
	last int64
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{}
}

func (s *MemorySequence) Next(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last, nil
}

func (s *MemorySequence) Advance(ctx context.Context, floor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if floor > s.last {
		s.last = floor
	}
	return nil
}

// KVSequence keeps the counter in a kv.Store (INCRBY on Redis), so ids keep
// growing across restarts of an in-memory store sharing the same Redis.
type KVSequence struct {
	store kv.Store
	key   string
}

// DefaultSequenceKey is the kv key of the post id counter
const DefaultSequenceKey = "site:posts:seq"

func NewKVSequence(store kv.Store, key string) *KVSequence {
	if key == "" {
		key = DefaultSequenceKey
	}
	return &KVSequence{store: store, key: key}
}

func (s *KVSequence) Next(ctx context.Context) (int64, error) {
	id, err := s.store.IncrBy(ctx, s.key, 1)
	if err != nil {
		return 0, fmt.Errorf("next post id: %w", err)
	}
	return id, nil
}

func (s *KVSequence) Advance(ctx context.Context, floor int64) error {
	current, err := s.store.IncrBy(ctx, s.key, 0)
	if err != nil {
		return fmt.Errorf("read post id counter: %w", err)
	}
	if current >= floor {
		return nil
	}
	if _, err := s.store.IncrBy(ctx, s.key, floor-current); err != nil {
		return fmt.Errorf("advance post id counter: %w", err)
	}
	return nil
}
