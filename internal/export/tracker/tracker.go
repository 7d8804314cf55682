// Package tracker accumulates per-item outcomes and run statistics.
package tracker

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/core/domain"
)

// Tracker records classified outcomes for a run. Success and failure
// are mutually exclusive per item: recording one removes the other.
type Tracker struct {
	mu        sync.Mutex
	total     int
	succeeded map[string]struct{}
	failures  map[string]*domain.OutcomeRecord

	tagFetched       int
	tagFailures      int
	downloads        int
	downloadFailures int
}

// New creates a tracker for a run of total candidate items.
func New(total int) *Tracker {
	return &Tracker{
		total:     total,
		succeeded: make(map[string]struct{}),
		failures:  make(map[string]*domain.OutcomeRecord),
	}
}

// RecordSuccess marks an item succeeded, removing any prior failure
// record for it.
func (t *Tracker) RecordSuccess(itemID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.succeeded[itemID] = struct{}{}
	delete(t.failures, itemID)
}

// RecordFailure upserts the failure record for an item. A repeat
// failure replaces reason, attempts, and detail.
func (t *Tracker) RecordFailure(itemID string, reason domain.FailureReason, attempts int, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.succeeded, itemID)
	t.failures[itemID] = &domain.OutcomeRecord{
		ItemID:   itemID,
		Reason:   reason,
		Attempts: attempts,
		Detail:   detail,
	}
}

// RecordTagFetch counts a tag enrichment attempt.
func (t *Tracker) RecordTagFetch(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ok {
		t.tagFetched++
	} else {
		t.tagFailures++
	}
}

// RecordDownload counts an artifact download attempt.
func (t *Tracker) RecordDownload(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ok {
		t.downloads++
	} else {
		t.downloadFailures++
	}
}

// Stats is a point-in-time snapshot of run counters.
type Stats struct {
	Total            int
	Succeeded        int
	Failed           int
	TimedOut         int
	TagFetched       int
	TagFailures      int
	Downloads        int
	DownloadFailures int
}

// Snapshot returns current counters. TimedOut counts failure records
// whose reason is timeout.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	timedOut := 0
	for _, rec := range t.failures {
		if rec.Reason == domain.FailureTimeout {
			timedOut++
		}
	}
	return Stats{
		Total:            t.total,
		Succeeded:        len(t.succeeded),
		Failed:           len(t.failures),
		TimedOut:         timedOut,
		TagFetched:       t.tagFetched,
		TagFailures:      t.tagFailures,
		Downloads:        t.downloads,
		DownloadFailures: t.downloadFailures,
	}
}

// SuccessRate returns succeeded/total, or 0 for an empty run.
func (t *Tracker) SuccessRate() float64 {
	s := t.Snapshot()
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}

// Perfect reports a run with no failures of any kind.
func (t *Tracker) Perfect() bool {
	s := t.Snapshot()
	return s.Failed == 0 && s.TimedOut == 0 && s.DownloadFailures == 0
}

// Failures returns outcome records sorted by item ID.
func (t *Tracker) Failures() []domain.OutcomeRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.OutcomeRecord, 0, len(t.failures))
	for _, rec := range t.failures {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// SucceededIDs returns the sorted identifiers of all succeeded items.
func (t *Tracker) SucceededIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.succeeded))
	for id := range t.succeeded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FailedIDs returns the sorted identifiers of all failed items.
func (t *Tracker) FailedIDs() []string {
	failures := t.Failures()
	ids := make([]string, len(failures))
	for i, rec := range failures {
		ids[i] = rec.ItemID
	}
	return ids
}

// Summary renders a human-readable end-of-run report.
func (t *Tracker) Summary() string {
	s := t.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "export run: %d/%d succeeded (%.1f%%)", s.Succeeded, s.Total, t.SuccessRate()*100)
	if s.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", s.Failed)
	}
	if s.TimedOut > 0 {
		fmt.Fprintf(&b, " (%d timed out)", s.TimedOut)
	}
	fmt.Fprintf(&b, "; tags %d ok/%d failed; downloads %d ok/%d failed",
		s.TagFetched, s.TagFailures, s.Downloads, s.DownloadFailures)

	for _, rec := range t.Failures() {
		fmt.Fprintf(&b, "\n  %s: %s after %d attempt(s)", rec.ItemID, rec.Reason, rec.Attempts)
		if rec.Detail != "" {
			fmt.Fprintf(&b, " (%s)", rec.Detail)
		}
	}
	return b.String()
}
