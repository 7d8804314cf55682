package domain

import "time"

// ExportJob tracks one server-side export job. The job ID is opaque,
// assigned by the backend, and is the sole correlation key for
// completion events.
type ExportJob struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Deadline    time.Time `json:"deadline"`
	Status      JobStatus `json:"status"`

	// ArtifactURL is set when a completion event or a recovery probe
	// resolves the job's archive location.
	ArtifactURL string `json:"artifact_url,omitempty"`
}

type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusSucceeded   JobStatus = "succeeded"
	JobStatusFailed      JobStatus = "failed"
	JobStatusTimedOut    JobStatus = "timed_out"
	JobStatusRecovered   JobStatus = "recovered"
	JobStatusUnrecovered JobStatus = "unrecovered"
)

// Resolved reports whether the job reached a state that yields an
// artifact.
func (s JobStatus) Resolved() bool {
	return s == JobStatusSucceeded || s == JobStatusRecovered
}

// CompletionEvent is one message from the export-events channel. Err is
// empty for success events.
type CompletionEvent struct {
	JobID       string `json:"job_id"`
	ArtifactURL string `json:"artifact_url,omitempty"`
	Err         string `json:"error,omitempty"`
}
