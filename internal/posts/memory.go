package posts

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store is the in-memory content store. One instance owns its posts; build
// it where it is needed and pass it down. A single-writer lock makes every
// operation atomic.
type Store struct {
	mu    sync.RWMutex
	posts []Post // listing order
	seq   Sequence
	now   func() time.Time
}

var _ Repository = (*Store)(nil)

type Option func(*Store)

// WithClock sets the clock used to date new posts
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithSequence sets the id source
func WithSequence(seq Sequence) Option {
	return func(s *Store) {
		s.seq = seq
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		seq: NewMemorySequence(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed appends posts in the given order keeping their ids and dates, and
// advances the sequence past the largest id.
func (s *Store) Seed(ctx context.Context, seed []Post) error {
	maxID, err := ValidateSeed(seed)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range seed {
		if s.indexLocked(p.ID) >= 0 {
			return fmt.Errorf("%w: id %d already stored", ErrInvalidSeed, p.ID)
		}
	}
	if err := s.seq.Advance(ctx, maxID); err != nil {
		return err
	}
	s.posts = append(s.posts, seed...)
	return nil
}

func (s *Store) List(ctx context.Context) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Post, len(s.posts))
	copy(out, s.posts)
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Post{}, ErrNotFound
	}
	return s.posts[i], nil
}

// Create assigns the next id and today's date and puts the post first.
func (s *Store) Create(ctx context.Context, f Fields) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.seq.Next(ctx)
	if err != nil {
		return Post{}, err
	}
	// A shared counter can lag behind ids seeded by another writer
	for s.indexLocked(id) >= 0 {
		if id, err = s.seq.Next(ctx); err != nil {
			return Post{}, err
		}
	}

	p := NewPost(id, f, s.now())
	s.posts = append([]Post{p}, s.posts...)
	return p, nil
}

func (s *Store) Update(ctx context.Context, id int64, f Fields) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Post{}, ErrNotFound
	}
	s.posts[i].apply(f)
	return s.posts[i], nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	s.posts = append(s.posts[:i:i], s.posts[i+1:]...)
	return nil
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}
