package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/study-hours/internal/domain/student"
	"github.com/alem-hub/study-hours/pkg/circuitbreaker"
)

// StudentCache implements student.Cache on top of Cache. Calls go through a
// circuit breaker: while Redis is unreachable they fail fast with
// circuitbreaker.ErrCircuitOpen, which callers treat as a miss.
type StudentCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

var _ student.Cache = (*StudentCache)(nil)

// NewStudentCache creates a new StudentCache. opts override the breaker
// defaults (5 failures, 15s open).
func NewStudentCache(cache *Cache, opts ...circuitbreaker.Option) *StudentCache {
	defaults := []circuitbreaker.Option{
		circuitbreaker.WithFailureThreshold(5),
		circuitbreaker.WithTimeout(15 * time.Second),
		circuitbreaker.WithIsFailure(isOutage),
	}
	return &StudentCache{
		cache:   cache,
		breaker: circuitbreaker.New("redis-student-cache", append(defaults, opts...)...),
	}
}

// isOutage reports whether err means Redis itself is failing.
func isOutage(err error) bool {
	switch {
	case errors.Is(err, ErrCacheMiss),
		errors.Is(err, ErrCacheSerialization),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

// Breaker exposes the breaker state for health reporting.
func (s *StudentCache) Breaker() *circuitbreaker.CircuitBreaker {
	return s.breaker
}

// Get returns the cached enrollment or ErrCacheMiss.
func (s *StudentCache) Get(ctx context.Context, id student.StudentID) (*student.Enrollment, error) {
	var e student.Enrollment
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Get(ctx, StudentKey(id.String()), &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Set caches the enrollment. A zero ttl falls back to TTLStudentCache.
func (s *StudentCache) Set(ctx context.Context, e *student.Enrollment, ttl time.Duration) error {
	if e == nil {
		return nil
	}
	if ttl == 0 {
		ttl = TTLStudentCache
	}
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, StudentKey(e.ID.String()), e, ttl)
	})
}

// Add caches the enrollment unless a copy is already cached.
func (s *StudentCache) Add(ctx context.Context, e *student.Enrollment, ttl time.Duration) error {
	if e == nil {
		return nil
	}
	if ttl == 0 {
		ttl = TTLStudentCache
	}
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := s.cache.SetIfAbsent(ctx, StudentKey(e.ID.String()), e, ttl)
		return err
	})
}

// Delete drops the cached enrollment.
func (s *StudentCache) Delete(ctx context.Context, id student.StudentID) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Delete(ctx, StudentKey(id.String()))
	})
}
