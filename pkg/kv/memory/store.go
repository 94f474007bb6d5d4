package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/trossachsgroup/site-backend/pkg/kv"
)

// Store is an in-memory implementation of the kv.Store interface
type Store struct {
	mu          sync.RWMutex
	strings     map[string][]byte
	lists       map[string][][]byte
	expirations map[string]time.Time

	janitorInterval time.Duration
	janitorStop     chan struct{}
	janitorDone     chan struct{}
	closeOnce       sync.Once
}

var _ kv.Store = (*Store)(nil)

// New creates a new in-memory store. A positive janitorInterval starts a
// background goroutine that evicts expired keys; zero disables it and expired
// keys are then dropped lazily on access.
func New(janitorInterval time.Duration) *Store {
	s := &Store{
		strings:         make(map[string][]byte),
		lists:           make(map[string][][]byte),
		expirations:     make(map[string]time.Time),
		janitorInterval: janitorInterval,
		janitorStop:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}

	if janitorInterval > 0 {
		go s.janitor()
	} else {
		close(s.janitorDone)
	}

	return s
}

// NewStore creates a new in-memory store with the default janitor interval
func NewStore() kv.Store {
	return New(30 * time.Second)
}

func (s *Store) janitor() {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.janitorStop:
			return
		}
	}
}

func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, expiry := range s.expirations {
		if now.After(expiry) {
			s.deleteKeyLocked(key)
		}
	}
}

// expireIfNeeded drops key when its TTL has passed (must hold write lock)
func (s *Store) expireIfNeeded(key string) {
	if expiry, ok := s.expirations[key]; ok && time.Now().After(expiry) {
		s.deleteKeyLocked(key)
	}
}

// liveLocked reports whether key holds a value that has not expired (must hold a lock)
func (s *Store) liveLocked(key string) bool {
	if expiry, ok := s.expirations[key]; ok && time.Now().After(expiry) {
		return false
	}
	if _, ok := s.strings[key]; ok {
		return true
	}
	_, ok := s.lists[key]
	return ok
}

func (s *Store) deleteKeyLocked(key string) {
	delete(s.strings, key)
	delete(s.lists, key)
	delete(s.expirations, key)
}

// String operations

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteKeyLocked(key)
	buf := make([]byte, len(value))
	copy(buf, value)
	s.strings[key] = buf

	if len(ttl) > 0 && ttl[0] > 0 {
		s.expirations[key] = time.Now().Add(ttl[0])
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIfNeeded(key)
	if _, isList := s.lists[key]; isList {
		return nil, kv.ErrWrongType
	}
	value, ok := s.strings[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		if s.liveLocked(key) {
			deleted++
		}
		s.deleteKeyLocked(key)
	}
	return deleted, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIfNeeded(key)
	if !s.liveLocked(key) {
		return false, nil
	}
	if ttl <= 0 {
		s.deleteKeyLocked(key)
		return true, nil
	}
	s.expirations[key] = time.Now().Add(ttl)
	return true, nil
}

// Counter operations

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIfNeeded(key)
	if _, isList := s.lists[key]; isList {
		return 0, kv.ErrWrongType
	}

	var current int64
	if value, ok := s.strings[key]; ok {
		parsed, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return 0, kv.ErrWrongType
		}
		current = parsed
	}

	next := current + n
	s.strings[key] = []byte(strconv.FormatInt(next, 10))
	return next, nil
}

// List operations

func (s *Store) RPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIfNeeded(key)
	if _, isString := s.strings[key]; isString {
		return 0, kv.ErrWrongType
	}
	for _, v := range values {
		buf := make([]byte, len(v))
		copy(buf, v)
		s.lists[key] = append(s.lists[key], buf)
	}
	return int64(len(s.lists[key])), nil
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIfNeeded(key)
	if _, isString := s.strings[key]; isString {
		return nil, kv.ErrWrongType
	}
	list := s.lists[key]
	from, to, ok := normalizeRange(start, stop, int64(len(list)))
	if !ok {
		return [][]byte{}, nil
	}

	out := make([][]byte, 0, to-from+1)
	for _, v := range list[from : to+1] {
		buf := make([]byte, len(v))
		copy(buf, v)
		out = append(out, buf)
	}
	return out, nil
}

func (s *Store) LTrim(ctx context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIfNeeded(key)
	if _, isString := s.strings[key]; isString {
		return kv.ErrWrongType
	}
	list, ok := s.lists[key]
	if !ok {
		return nil
	}
	from, to, ok := normalizeRange(start, stop, int64(len(list)))
	if !ok {
		s.deleteKeyLocked(key)
		return nil
	}
	s.lists[key] = append([][]byte(nil), list[from:to+1]...)
	return nil
}

// normalizeRange resolves Redis-style inclusive, possibly negative, indexes
// against a list of length n.
func normalizeRange(start, stop, n int64) (int64, int64, bool) {
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

// Ping always succeeds for the in-memory store
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close stops the janitor. It is safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.janitorInterval > 0 {
			close(s.janitorStop)
		}
		<-s.janitorDone
	})
	return nil
}
