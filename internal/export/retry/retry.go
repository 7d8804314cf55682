// Package retry wraps fallible operations in exponential backoff with
// jitter. Call sites choose between Do, which returns a structured
// Result, and Run, which propagates the final error directly.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config defines retry behavior.
type Config struct {
	// MaxRetries bounds retries after the first attempt; an operation
	// runs at most MaxRetries+1 times.
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Multiplier defaults to 2 when zero.
	Multiplier float64

	// Retryable decides whether an error is worth another attempt.
	// Defaults to the package predicate.
	Retryable func(error) bool

	// OnAttempt, when set, observes each failed attempt before the
	// backoff sleep. delay is zero for the final attempt.
	OnAttempt func(attempt int, err error, delay time.Duration)
}

// DefaultConfig provides sensible defaults for Nimbus API calls.
var DefaultConfig = Config{
	MaxRetries:   3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
	Multiplier:   2,
}

// Result carries the outcome of a retried operation.
type Result[T any] struct {
	Value    T
	Err      error
	Attempts int
}

// OK reports whether the operation eventually succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Do runs op until it succeeds, the error is not retryable, retries are
// exhausted, or ctx is canceled. The attempt count in the result is
// always >= 1.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) Result[T] {
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = Retryable
	}

	var res Result[T]
	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		value, err := op(ctx)
		if err == nil {
			res.Value = value
			res.Err = nil
			return res
		}
		res.Err = err

		if !retryable(err) || attempt > cfg.MaxRetries {
			if cfg.OnAttempt != nil {
				cfg.OnAttempt(attempt, err, 0)
			}
			return res
		}

		delay := Delay(cfg, attempt)
		if cfg.OnAttempt != nil {
			cfg.OnAttempt(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			res.Err = fmt.Errorf("retry aborted after %d attempts: %w", attempt, ctx.Err())
			return res
		case <-time.After(delay):
		}
	}
}

// Run is the propagating variant of Do for call sites that want plain
// error flow.
func Run[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	res := Do(ctx, cfg, op)
	return res.Value, res.Err
}

// Delay computes the backoff for a 1-indexed attempt:
// min(maxDelay, initialDelay * multiplier^(attempt-1) * (1 + U(0,0.3))).
func Delay(cfg Config, attempt int) time.Duration {
	mult := cfg.Multiplier
	if mult <= 0 {
		mult = 2
	}
	base := float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt-1))
	jittered := base * (1 + rand.Float64()*0.3)
	if limit := float64(cfg.MaxDelay); cfg.MaxDelay > 0 && jittered > limit {
		jittered = limit
	}
	return time.Duration(jittered)
}
