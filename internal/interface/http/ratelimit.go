package http

import (
	"math"
	"sync"
	"time"
)

// rateLimiter is a per-client token bucket. Each client may burst up to
// perMinute requests, refilled continuously at perMinute per minute.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	burst   float64
	perSec  float64
	now     func() time.Time

	stop chan struct{}
	done chan struct{}
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{
		buckets: make(map[string]*bucket),
		burst:   float64(perMinute),
		perSec:  float64(perMinute) / 60,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go rl.sweep(time.Minute)
	return rl
}

// Allow takes a token for key. When none is left it returns false and the
// wait until the next token.
func (rl *rateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.burst, seen: now}
		rl.buckets[key] = b
	}
	b.tokens = math.Min(rl.burst, b.tokens+now.Sub(b.seen).Seconds()*rl.perSec)
	b.seen = now

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / rl.perSec * float64(time.Second))
		return false, wait
	}
	b.tokens--
	return true, 0
}

// sweep evicts buckets that have refilled completely.
func (rl *rateLimiter) sweep(every time.Duration) {
	defer close(rl.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	full := time.Duration(rl.burst / rl.perSec * float64(time.Second))
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, b := range rl.buckets {
				if now.Sub(b.seen) >= full {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the sweeper and waits for it.
func (rl *rateLimiter) Stop() {
	close(rl.stop)
	<-rl.done
}
