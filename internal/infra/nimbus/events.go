package nimbus

import (
	"context"
	"time"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/core/domain"
)

type exportEventsResponse struct {
	Events []struct {
		JobID string `json:"job_id"`
		URL   string `json:"url"`
		Error string `json:"error"`
	} `json:"events"`
}

// EventPoller long-polls the export-events endpoint and pushes
// completion events onto a channel consumed by the coordinator's
// single consumer task. Delivery is whatever the backend gives us;
// lost events are handled upstream by timeout recovery.
type EventPoller struct {
	client *Client
	events chan domain.CompletionEvent
}

// NewEventPoller creates a poller; call Run to start it.
func NewEventPoller(client *Client) *EventPoller {
	return &EventPoller{
		client: client,
		events: make(chan domain.CompletionEvent, 64),
	}
}

// Events is the completion channel. Closed when Run returns.
func (p *EventPoller) Events() <-chan domain.CompletionEvent {
	return p.events
}

// Run polls until ctx is canceled. Poll errors are logged and retried
// after a short pause; the poller itself never gives up, since a dead
// event channel would strand every pending job.
func (p *EventPoller) Run(ctx context.Context) {
	defer close(p.events)

	for {
		var resp exportEventsResponse
		err := p.client.doJSON(ctx, "GET", "/api/export/events?timeout=25", "export.events", nil, &resp)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.client.log.Warn("event poll failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for _, ev := range resp.Events {
			select {
			case p.events <- domain.CompletionEvent{JobID: ev.JobID, ArtifactURL: ev.URL, Err: ev.Error}:
			case <-ctx.Done():
				return
			}
		}
	}
}
