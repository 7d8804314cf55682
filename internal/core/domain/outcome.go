package domain

// FailureReason classifies why an item did not export.
type FailureReason string

const (
	FailureTransientNetwork FailureReason = "transient_network"
	FailureRateLimited      FailureReason = "rate_limited"
	FailureServerError      FailureReason = "server_error"
	FailureTimeout          FailureReason = "timeout"
	FailurePermanentBackend FailureReason = "permanent_backend"
	FailureUnknown          FailureReason = "unknown"
)

// OutcomeRecord is the final classified outcome for one failed item.
// A later success for the same item removes the record.
type OutcomeRecord struct {
	ItemID   string        `json:"item_id"`
	Reason   FailureReason `json:"reason"`
	Attempts int           `json:"attempts"`
	Detail   string        `json:"detail,omitempty"`
}
