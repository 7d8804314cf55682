package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		expect domain.FailureReason
	}{
		{&RateLimitedError{Code: 429}, domain.FailureRateLimited},
		{&StatusError{Code: 429}, domain.FailureRateLimited},
		{&StatusError{Code: 500, Detail: "backend exploded"}, domain.FailureServerError},
		{&StatusError{Code: 503}, domain.FailureServerError},
		{errors.New("connection reset by peer"), domain.FailureTransientNetwork},
		{errors.New("request timed out"), domain.FailureTransientNetwork},
		{errors.New("rate limit exceeded, slow down"), domain.FailureTransientNetwork},
		{errors.New("internal converter error"), domain.FailurePermanentBackend},
		{errors.New("note is corrupted"), domain.FailurePermanentBackend},
		{context.DeadlineExceeded, domain.FailureTimeout},
		{errors.New("something else entirely"), domain.FailureUnknown},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.expect {
			t.Errorf("Classify(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err    error
		expect bool
	}{
		{&RateLimitedError{Code: 429}, true},
		{&StatusError{Code: 408}, true},
		{&StatusError{Code: 429}, true},
		{&StatusError{Code: 500}, true},
		{&StatusError{Code: 599}, true},
		{&StatusError{Code: 400}, false},
		{&StatusError{Code: 403}, false},
		{&StatusError{Code: 404}, false},
		{errors.New("too many requests"), true},
		{errors.New("internal converter error"), false},
		{errors.New("export format not available"), false},
		{context.Canceled, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.expect {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}
