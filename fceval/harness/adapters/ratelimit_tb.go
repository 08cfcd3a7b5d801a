package adapters

import (
	"context"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/fceval/fceval/harness/ports"
)

// TokenBucket implements a per-key token bucket rate limiter. Tokens refill one per
// refillRate up to capacity; Acquire waits for the next token instead of failing.
type TokenBucket struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   int           // max tokens per bucket
	refillRate time.Duration // time between token refills
	now        func() time.Time
}

// bucket represents a single token bucket for a key.
type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewTokenBucket creates a new token bucket rate limiter.
func NewTokenBucket(capacity int, refillRate time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		buckets:    make(map[string]*bucket),
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
	}
}

// Acquire takes a token for key, blocking until one is available or ctx is done. A
// bucket without a refill rate fails with ErrRateLimitExceeded once it is empty.
// Tokens are consumed, not returned; release is a no-op kept for the port contract.
func (tb *TokenBucket) Acquire(ctx context.Context, key string) (release func(), err error) {
	for {
		wait, ok := tb.take(key)
		if ok {
			return func() {}, nil
		}
		if wait < 0 {
			// bucket never refills
			return nil, ErrRateLimitExceeded
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &RateLimitError{Message: "rate limit wait cancelled", Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// TryAcquire takes a token without waiting.
func (tb *TokenBucket) TryAcquire(key string) error {
	if _, ok := tb.take(key); !ok {
		return ErrRateLimitExceeded
	}
	return nil
}

// take consumes a token or reports how long until the next refill, or -1 when the
// bucket never refills.
func (tb *TokenBucket) take(key string) (time.Duration, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, exists := tb.buckets[key]
	if !exists {
		b = &bucket{tokens: tb.capacity, lastRefill: now}
		tb.buckets[key] = b
	}

	// Refill tokens based on elapsed time
	if tb.refillRate > 0 {
		elapsed := now.Sub(b.lastRefill)
		if tokensToAdd := int(elapsed / tb.refillRate); tokensToAdd > 0 {
			b.tokens = min(b.tokens+tokensToAdd, tb.capacity)
			b.lastRefill = b.lastRefill.Add(time.Duration(tokensToAdd) * tb.refillRate)
		}
	}

	if b.tokens > 0 {
		b.tokens--
		return 0, true
	}
	if tb.refillRate <= 0 {
		return -1, false
	}
	return b.lastRefill.Add(tb.refillRate).Sub(now), false
}

// ErrRateLimitExceeded is returned when the bucket is empty and waiting cannot help.
var ErrRateLimitExceeded = &RateLimitError{Message: "rate limit exceeded"}

// RateLimitError reports a failed acquisition.
type RateLimitError struct {
	Message string
	Err     error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Ensure TokenBucket implements the RateLimiter interface.
var _ ports.RateLimiter = (*TokenBucket)(nil)
