package nimbus

import (
	"context"
	"fmt"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/metrics"
)

type submitExportRequest struct {
	NoteIDs []string `json:"note_ids"`
	Format  string   `json:"format"`
}

type submitExportResponse struct {
	JobID string `json:"job_id"`
}

// SubmitExport asks the backend to start exporting one note and
// returns the assigned job ID. The call itself does not retry; the
// coordinator wraps it with a job-specific retry policy and owns the
// attempt counter.
func (c *Client) SubmitExport(ctx context.Context, noteID string) (string, error) {
	var resp submitExportResponse
	err := c.doJSON(ctx, "POST", "/api/export/notes", "export.submit",
		submitExportRequest{NoteIDs: []string{noteID}, Format: "zip"}, &resp)
	if err != nil {
		return "", fmt.Errorf("submit export for %s: %w", noteID, err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("submit export for %s: empty job id", noteID)
	}
	metrics.Submissions.Inc()
	return resp.JobID, nil
}
