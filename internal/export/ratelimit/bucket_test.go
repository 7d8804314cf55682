package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/metrics"
)

func TestNewBucketValidation(t *testing.T) {
	if _, err := NewBucket(0, 5); err == nil {
		t.Error("expected error for zero rate")
	}
	if _, err := NewBucket(2, 0); err == nil {
		t.Error("expected error for zero burst")
	}
	if _, err := NewBucket(2, 5); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTakeBurstThenBlock(t *testing.T) {
	b, err := NewBucket(2, 5)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	// First 5 calls drain the burst without blocking.
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := b.Take(ctx); err != nil {
			t.Fatalf("take %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("burst takes blocked for %v", elapsed)
	}

	// The 6th waits for refill, ~500ms at 2 tokens/sec.
	start = time.Now()
	if err := b.Take(ctx); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)
	if elapsed < 350*time.Millisecond || elapsed > 900*time.Millisecond {
		t.Errorf("6th take waited %v, want ~500ms", elapsed)
	}
}

func TestTokensStayInBounds(t *testing.T) {
	b, err := NewBucket(100, 3)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Take(ctx)
			if tokens := b.Tokens(); tokens < 0 || tokens > 3 {
				t.Errorf("tokens out of bounds: %v", tokens)
			}
		}()
	}
	wg.Wait()

	if tokens := b.Tokens(); tokens < 0 || tokens > 3 {
		t.Errorf("final tokens out of bounds: %v", tokens)
	}
}

func TestTakeCanceledContext(t *testing.T) {
	b, err := NewBucket(0.1, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Drain the only token so the next take must wait.
	if err := b.Take(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := b.Take(ctx); err == nil {
		t.Error("expected context error for blocked take")
	}
}

func TestWaitMetricRecordsElapsedNotIntended(t *testing.T) {
	b, err := NewBucket(0.1, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Drain the only token; the next take's intended wait is ~10s.
	if err := b.Take(context.Background()); err != nil {
		t.Fatal(err)
	}

	before := testutil.ToFloat64(metrics.RateLimitWaitSeconds)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := b.Take(ctx); err == nil {
		t.Fatal("expected context error for blocked take")
	}

	// Only the ~100ms actually spent blocked may be counted, never the
	// full refill deficit.
	delta := testutil.ToFloat64(metrics.RateLimitWaitSeconds) - before
	if delta < 0.05 || delta > 1.0 {
		t.Errorf("wait metric grew by %vs, want ~0.1s", delta)
	}
}

func TestRefillCapsAtCapacity(t *testing.T) {
	b, err := NewBucket(1000, 2)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	if tokens := b.Tokens(); tokens > 2 {
		t.Errorf("tokens exceeded capacity: %v", tokens)
	}
}
