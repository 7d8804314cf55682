// Package ratelimit implements the token bucket gating every outbound
// Nimbus call. One bucket instance is shared by all phases of a run; it
// is constructed explicitly and passed in, never held as a global.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/metrics"
)

// Bucket is a token bucket with capacity `burst` refilled continuously
// at `rate` tokens per second. Refill is computed lazily from elapsed
// wall-clock time on each call; there is no background timer.
type Bucket struct {
	mu       sync.Mutex
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
	now      func() time.Time
}

// NewBucket creates a full bucket. rate must be > 0 and burst >= 1.
func NewBucket(rate float64, burst int) (*Bucket, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %v", rate)
	}
	if burst < 1 {
		return nil, fmt.Errorf("burst must be at least 1, got %d", burst)
	}
	return &Bucket{
		rate:     rate,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
		now:      time.Now,
	}, nil
}

// Take blocks until one token is available, then reserves it. The
// reservation happens under the bucket lock, so no two callers can be
// granted the same token. Returns early if ctx is canceled.
func (b *Bucket) Take(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refill()
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		// Wait long enough for the deficit to refill, then re-check.
		wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
		b.mu.Unlock()

		start := time.Now()
		select {
		case <-ctx.Done():
			metrics.RateLimitWaitSeconds.Add(time.Since(start).Seconds())
			return ctx.Err()
		case <-time.After(wait):
			metrics.RateLimitWaitSeconds.Add(time.Since(start).Seconds())
		}
	}
}

// Tokens returns the current token count after lazy refill.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// refill credits tokens for elapsed time. Caller holds b.mu.
func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}
