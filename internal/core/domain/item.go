package domain

// WorkItem represents a single note selected for export.
type WorkItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	WorkspaceID string   `json:"workspace_id"`
	ParentID    string   `json:"parent_id"`
	Tags        []string `json:"tags,omitempty"`

	// Attempts counts submission attempts across the item's lifetime in
	// this run. Monotonically non-decreasing; mutated only by the
	// coordinator's retry path.
	Attempts int `json:"attempts"`

	// JobID is the export job currently live for this item, empty while
	// queued. At most one live job exists per item.
	JobID string `json:"job_id,omitempty"`

	// ArtifactPath is the local path of the downloaded archive once the
	// download phase has resolved it.
	ArtifactPath string `json:"artifact_path,omitempty"`
}
