package domain

import "time"

// ResumeDescriptor is the persisted end-of-run state consumed by a
// later pass. FailedIDs doubles as a retry allow-list for the next run.
type ResumeDescriptor struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	FailedIDs []string  `json:"failed_ids"`
}
