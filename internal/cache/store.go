// Package cache provides a generic time-bounded store for whole resources.
// One Store instance backs one logical resource name ("markets",
// "embeddings"); staleness is evaluated lazily on access, never by a
// background timer.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/davidbz/marketmatch/internal/observability"
)

// Clock returns the current time. Injectable so tests can control staleness.
type Clock func() time.Time

// RefreshFunc produces a new value for the resource, typically through
// network or API work.
type RefreshFunc[T any] func(ctx context.Context) (T, error)

// Store caches a single resource value with a TTL. Concurrent callers that
// observe the same stale entry are collapsed into exactly one underlying
// refresh; all of them receive its single result. Readers always see either
// the old complete value or the new complete value.
type Store[T any] struct {
	name  string
	ttl   time.Duration
	now   Clock
	group singleflight.Group

	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	populated bool
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithClock overrides the store's time source.
func WithClock[T any](clock Clock) Option[T] {
	return func(s *Store[T]) {
		s.now = clock
	}
}

// NewStore creates a store for the named resource with the given TTL.
func NewStore[T any](name string, ttl time.Duration, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		name: name,
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the logical resource name.
func (s *Store[T]) Name() string {
	return s.name
}

// Get returns the cached value when fresh, invoking refresh otherwise. A
// refresh failure fails the call even when a stale value exists: freshness
// guarantees are not weakened by network failure. An in-flight shared refresh
// is detached from the triggering caller's context, so one caller going away
// cannot hand the remaining awaiters a partial result.
func (s *Store[T]) Get(ctx context.Context, refresh RefreshFunc[T]) (T, error) {
	if value, ok := s.freshValue(); ok {
		return value, nil
	}

	refreshCtx := observability.WithResource(context.WithoutCancel(ctx), s.name)
	logger := observability.FromContext(refreshCtx)

	result, err, shared := s.group.Do(s.name, func() (any, error) {
		// A concurrent caller may have completed the refresh while this
		// one was queued behind the flight group.
		if value, ok := s.freshValue(); ok {
			return value, nil
		}

		logger.Info("refreshing cached resource",
			observability.Duration("ttl", s.ttl))

		value, refreshErr := refresh(refreshCtx)
		if refreshErr != nil {
			logger.Error("resource refresh failed",
				observability.Error(refreshErr))
			return nil, refreshErr
		}

		s.Put(value)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	if shared {
		logger.Debug("joined in-flight refresh")
	}

	value, ok := result.(T)
	if !ok {
		// Only reachable if a future edit makes the flight fn return a
		// different type; fail loudly rather than hand back garbage.
		var zero T
		return zero, fmt.Errorf("cache %s: refresh returned unexpected type %T", s.name, result)
	}
	return value, nil
}

// Put replaces the cached value wholesale and stamps it as freshly fetched.
func (s *Store[T]) Put(value T) {
	now := s.now()

	s.mu.Lock()
	s.value = value
	s.fetchedAt = now
	s.populated = true
	s.mu.Unlock()
}

// Invalidate drops the cached value, forcing the next access to refresh.
func (s *Store[T]) Invalidate() {
	s.mu.Lock()
	var zero T
	s.value = zero
	s.populated = false
	s.mu.Unlock()
}

// Peek returns the cached value without any freshness check or refresh.
func (s *Store[T]) Peek() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.populated
}

// freshValue returns the cached value iff now - fetchedAt < ttl.
func (s *Store[T]) freshValue() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.populated || s.now().Sub(s.fetchedAt) >= s.ttl {
		var zero T
		return zero, false
	}
	return s.value, true
}
