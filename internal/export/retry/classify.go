package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/core/domain"
)

// StatusError is a non-2xx API response surfaced as an error.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Detail)
}

// RateLimitedError is raised for responses carrying a rate-limit
// status. Always retryable.
type RateLimitedError struct {
	Code int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (status %d)", e.Code)
}

// retryableStatuses is the fixed set of statuses worth retrying:
// request timeout, too-many-requests, and the 5xx family.
func retryableStatus(code int) bool {
	return code == 408 || code == 429 || (code >= 500 && code <= 599)
}

// permanentPatterns mark deterministic backend processing faults. The
// server reports these with the same shape as transient failures, so
// classification is by message text.
var permanentPatterns = []string{
	"internal converter error",
	"note is corrupted",
	"unsupported attachment",
	"export format not available",
}

// transientPatterns cover throttling and timeout messages that arrive
// without a usable status code.
var transientPatterns = []string{
	"rate limit",
	"too many requests",
	"throttle",
	"timeout",
	"timed out",
	"temporarily unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"eof",
}

// Classify maps an error to the failure taxonomy.
func Classify(err error) domain.FailureReason {
	if err == nil {
		return domain.FailureUnknown
	}

	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return domain.FailureRateLimited
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == 429:
			return domain.FailureRateLimited
		case se.Code >= 500 && se.Code <= 599:
			return domain.FailureServerError
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.FailureTransientNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureTimeout
	}

	s := strings.ToLower(err.Error())
	for _, p := range permanentPatterns {
		if strings.Contains(s, p) {
			return domain.FailurePermanentBackend
		}
	}
	for _, p := range transientPatterns {
		if strings.Contains(s, p) {
			return domain.FailureTransientNetwork
		}
	}

	return domain.FailureUnknown
}

// Retryable is the default retryability predicate: transient network
// errors, rate limiting, server errors, and retryable statuses. A
// permanent backend fault is terminal even on the first attempt, since
// no client-side retry can fix a deterministic processing failure.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return retryableStatus(se.Code)
	}

	switch Classify(err) {
	case domain.FailureRateLimited, domain.FailureServerError,
		domain.FailureTransientNetwork, domain.FailureTimeout:
		return true
	}
	return false
}
