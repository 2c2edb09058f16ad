// Package cache provides a time-to-live keyed cache with single-flight computation, used to
// avoid redundant remote reads within a run.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the lifetime of an entry when no TTL is configured.
const DefaultTTL = 5 * time.Minute

// Entry is a cached value with its bookkeeping.
type Entry[T any] struct {
	Key      string
	Value    T
	StoredAt time.Time
	TTL      time.Duration
	Hits     int
}

func (e *Entry[T]) fresh(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Stats reports cache effectiveness.
type Stats struct {
	Entries int
	Hits    int
	Misses  int
}

type config struct {
	ttl     time.Duration
	now     func() time.Time
	backend Backend
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*config)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithBackend adds a shared second-level backend consulted on local misses.
func WithBackend(backend Backend) Option {
	return func(c *config) {
		c.backend = backend
	}
}

// WithLogger sets the logger used for backend failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Store caches values of one type. Reads may run concurrently; concurrent misses on the
// same key share a single computation.
type Store[T any] struct {
	cfg     config
	mu      sync.Mutex
	entries map[string]*Entry[T]
	group   singleflight.Group
	gen     uint64
	hits    int
	misses  int
}

// New creates a Store.
func New[T any](opts ...Option) *Store[T] {
	cfg := config{
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store[T]{
		cfg:     cfg,
		entries: make(map[string]*Entry[T]),
	}
}

// Get returns the cached value for key while it is younger than the TTL. Otherwise it
// calls compute, stores the result on success and returns it. Errors are never cached.
func (s *Store[T]) Get(ctx context.Context, key string, compute func(ctx context.Context) (T, error)) (T, error) {
	if value, ok := s.lookup(key); ok {
		return value, nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		if value, ok := s.lookup(key); ok {
			return value, nil
		}

		gen := s.generation()

		if value, ok := s.loadBackend(ctx, key); ok {
			s.store(key, value, gen)

			return value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return value, err
		}

		if s.store(key, value, gen) {
			s.saveBackend(ctx, key, value)
		}

		return value, nil
	})

	value, _ := result.(T)

	return value, err
}

// Peek returns the entry for key without computing or counting a hit.
func (s *Store[T]) Peek(key string) (Entry[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !entry.fresh(s.cfg.now()) {
		return Entry[T]{}, false
	}

	return *entry, true
}

// Invalidate evicts key.
func (s *Store[T]) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.gen++
	s.mu.Unlock()

	s.group.Forget(key)

	if s.cfg.backend != nil {
		s.withBackend(func(ctx context.Context) error {
			return s.cfg.backend.Delete(ctx, key)
		})
	}
}

// InvalidatePrefix evicts every key starting with prefix.
func (s *Store[T]) InvalidatePrefix(prefix string) {
	s.mu.Lock()
	s.gen++

	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			s.group.Forget(key)
		}
	}
	s.mu.Unlock()

	if s.cfg.backend != nil {
		s.withBackend(func(ctx context.Context) error {
			return s.cfg.backend.DeletePrefix(ctx, prefix)
		})
	}
}

// Clear evicts everything.
func (s *Store[T]) Clear() {
	s.InvalidatePrefix("")
}

// Stats returns hit and miss counters and the current entry count.
func (s *Store[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{Entries: len(s.entries), Hits: s.hits, Misses: s.misses}
}

func (s *Store[T]) lookup(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if ok && entry.fresh(s.cfg.now()) {
		entry.Hits++
		s.hits++

		return entry.Value, true
	}

	if ok {
		delete(s.entries, key)
	}

	s.misses++

	var zero T

	return zero, false
}

func (s *Store[T]) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gen
}

// store keeps value unless an invalidation happened since gen was read, in which case the
// computed value may already be stale.
func (s *Store[T]) store(key string, value T, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return false
	}

	s.entries[key] = &Entry[T]{
		Key:      key,
		Value:    value,
		StoredAt: s.cfg.now(),
		TTL:      s.cfg.ttl,
	}

	return true
}

func (s *Store[T]) loadBackend(ctx context.Context, key string) (T, bool) {
	var value T

	if s.cfg.backend == nil {
		return value, false
	}

	raw, ok, err := s.cfg.backend.Get(ctx, key)
	if err != nil {
		s.cfg.logger.WarnContext(ctx, "Cache backend read failed", "key", key, "error", err)

		return value, false
	}

	if !ok {
		return value, false
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		s.cfg.logger.WarnContext(ctx, "Cache backend entry is corrupt", "key", key, "error", err)

		return value, false
	}

	return value, true
}

func (s *Store[T]) saveBackend(ctx context.Context, key string, value T) {
	if s.cfg.backend == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		s.cfg.logger.WarnContext(ctx, "Cache value cannot be encoded", "key", key, "error", err)

		return
	}

	if err := s.cfg.backend.Set(ctx, key, raw, s.cfg.ttl); err != nil {
		s.cfg.logger.WarnContext(ctx, "Cache backend write failed", "key", key, "error", err)
	}
}

func (s *Store[T]) withBackend(fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.cfg.logger.Warn("Cache backend invalidation failed", "error", err)
	}
}
