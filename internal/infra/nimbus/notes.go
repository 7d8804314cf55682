package nimbus

import (
	"context"
	"fmt"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/core/domain"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/retry"
)

const listPageSize = 200

type listNotesRequest struct {
	Action string `json:"action"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

type noteEntry struct {
	GlobalID    string `json:"global_id"`
	Title       string `json:"title"`
	ParentID    string `json:"parent_id"`
	WorkspaceID string `json:"workspace_id"`
}

type listNotesResponse struct {
	Notes []noteEntry `json:"notes"`
	Total int         `json:"total"`
}

// ListNotes pages through the full note listing and returns the
// candidate work items. Pages are fetched with retry since listing is
// a setup step worth hardening.
func (c *Client) ListNotes(ctx context.Context) ([]*domain.WorkItem, error) {
	var items []*domain.WorkItem
	for offset := 0; ; offset += listPageSize {
		req := listNotesRequest{Action: "get", Offset: offset, Limit: listPageSize}
		page, err := retry.Run(ctx, c.retryCfg, func(ctx context.Context) (listNotesResponse, error) {
			var resp listNotesResponse
			err := c.doJSON(ctx, "POST", "/api/notes", "notes.list", req, &resp)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("list notes at offset %d: %w", offset, err)
		}

		for _, n := range page.Notes {
			items = append(items, &domain.WorkItem{
				ID:          n.GlobalID,
				Title:       n.Title,
				ParentID:    n.ParentID,
				WorkspaceID: n.WorkspaceID,
			})
		}
		if len(page.Notes) < listPageSize {
			break
		}
	}

	c.log.Info("note listing complete", "count", len(items))
	return items, nil
}

// Workspace is one Nimbus workspace visible to the session.
type Workspace struct {
	GlobalID string `json:"global_id"`
	Title    string `json:"title"`
}

type listWorkspacesResponse struct {
	Workspaces []Workspace `json:"workspaces"`
}

// ListWorkspaces returns the workspaces visible to the session. Used
// for reporting only; the note listing already spans all of them.
func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	resp, err := retry.Run(ctx, c.retryCfg, func(ctx context.Context) (listWorkspacesResponse, error) {
		var resp listWorkspacesResponse
		err := c.doJSON(ctx, "GET", "/api/workspaces", "workspaces.list", nil, &resp)
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return resp.Workspaces, nil
}

type noteTagsResponse struct {
	Tags []string `json:"tags"`
}

// NoteTags fetches the tags of one note for enrichment.
func (c *Client) NoteTags(ctx context.Context, noteID string) ([]string, error) {
	resp, err := retry.Run(ctx, c.retryCfg, func(ctx context.Context) (noteTagsResponse, error) {
		var resp noteTagsResponse
		err := c.doJSON(ctx, "GET", "/api/notes/"+noteID+"/tags", "notes.tags", nil, &resp)
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("tags for note %s: %w", noteID, err)
	}
	return resp.Tags, nil
}
