// Package coordinator drives the export state machine: it submits jobs
// through a bounded pool, correlates asynchronous completion events by
// job ID, enforces per-job deadlines with a grace window for late
// signals, and hands lost completions to best-effort recovery.
//
// All mutation of the pending-jobs map happens on the single Run
// goroutine; submission workers and deadline timers communicate with it
// only through channels.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/core/domain"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/metrics"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/pool"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/retry"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/tracker"
)

// Submitter starts one export job. The backend accepts every
// submission; whether a completion event ever follows is another
// matter entirely.
type Submitter interface {
	SubmitExport(ctx context.Context, itemID string) (string, error)
}

// Recoverer probes for the artifact of a job whose completion event
// was lost, and learns URL patterns from observed successes.
type Recoverer interface {
	Learn(jobID, artifactURL string)
	Recover(ctx context.Context, jobID string) (url string, ok bool)
}

// Config holds coordinator tuning.
type Config struct {
	// SubmitWidth bounds concurrent submissions.
	SubmitWidth int

	// JobDeadline is how long a job may await its completion event.
	JobDeadline time.Duration

	// GraceWindow is the extra wait after all deadlines have resolved,
	// tolerating late-but-genuine completion signals before timed-out
	// jobs are finalized.
	GraceWindow time.Duration

	// RecoveryEnabled gates the URL-probing recovery pass.
	RecoveryEnabled bool

	// Retry applies per submission; the retryability predicate may be
	// job-specific.
	Retry retry.Config
}

// Coordinator owns one run's export phase.
type Coordinator struct {
	cfg     Config
	client  Submitter
	events  <-chan domain.CompletionEvent
	prober  Recoverer
	tracker *tracker.Tracker
	log     *slog.Logger
}

// New wires a coordinator. prober may be nil when recovery is off.
func New(cfg Config, client Submitter, events <-chan domain.CompletionEvent,
	prober Recoverer, tr *tracker.Tracker, log *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		client:  client,
		events:  events,
		prober:  prober,
		tracker: tr,
		log:     log,
	}
}

// entry pairs a live job with its item and deadline timer. The timer
// is stopped exactly once, when a matching event removes the entry; a
// fired timer that lost the race finds the entry gone and no-ops.
type entry struct {
	job   *domain.ExportJob
	item  *domain.WorkItem
	timer *time.Timer
}

// Run submits every item and blocks until all jobs are finalized or
// ctx is canceled. Returned jobs cover every successful submission, in
// finalization order; check Status.Resolved() for downloadable ones.
// Items that never got a job ID are recorded in the tracker only.
func (c *Coordinator) Run(ctx context.Context, items []*domain.WorkItem) ([]*domain.ExportJob, error) {
	if len(items) == 0 {
		return nil, nil
	}

	p, err := pool.New(c.cfg.SubmitWidth)
	if err != nil {
		return nil, fmt.Errorf("submission pool: %w", err)
	}

	registerCh := make(chan *entry, len(items))
	expireCh := make(chan string, len(items))

	// Schedule all submissions; registerCh closes once the pool has
	// drained, which is the event loop's drain signal.
	go func() {
		for _, item := range items {
			item := item
			p.Go(func() { c.submit(ctx, item, registerCh) })
		}
		p.Drain()
		close(registerCh)
	}()

	return c.eventLoop(ctx, registerCh, expireCh)
}

// submit runs one submission through the retry executor and registers
// the resulting job with the event loop.
func (c *Coordinator) submit(ctx context.Context, item *domain.WorkItem, registerCh chan<- *entry) {
	cfg := c.cfg.Retry
	if cfg.Retryable == nil {
		cfg.Retryable = retry.Retryable
	}
	prev := cfg.OnAttempt
	cfg.OnAttempt = func(attempt int, err error, delay time.Duration) {
		if delay > 0 {
			metrics.Retries.WithLabelValues("submit").Inc()
			c.log.Debug("submission retry", "item_id", item.ID, "attempt", attempt, "delay", delay, "error", err)
		}
		if prev != nil {
			prev(attempt, err, delay)
		}
	}

	res := retry.Do(ctx, cfg, func(ctx context.Context) (string, error) {
		return c.client.SubmitExport(ctx, item.ID)
	})
	item.Attempts = res.Attempts

	if !res.OK() {
		c.tracker.RecordFailure(item.ID, retry.Classify(res.Err), item.Attempts, res.Err.Error())
		c.log.Warn("submission failed", "item_id", item.ID, "attempts", item.Attempts, "error", res.Err)
		return
	}

	now := time.Now()
	e := &entry{
		job: &domain.ExportJob{
			ID:          res.Value,
			ItemID:      item.ID,
			SubmittedAt: now,
			Deadline:    now.Add(c.cfg.JobDeadline),
			Status:      domain.JobStatusPending,
		},
		item: item,
	}
	item.JobID = e.job.ID

	select {
	case registerCh <- e:
	case <-ctx.Done():
	}
}

// eventLoop is the single consumer owning the pending and expired
// maps. It exits once every registered job is finalized.
func (c *Coordinator) eventLoop(ctx context.Context,
	registerCh <-chan *entry, expireCh chan string) ([]*domain.ExportJob, error) {

	pending := make(map[string]*entry)
	expired := make(map[string]*entry)
	var finalized []*domain.ExportJob

	events := c.events
	drained := false
	var graceCh <-chan time.Time

	// armGrace starts the grace window once no pending job can still
	// resolve on its own timer.
	armGrace := func() {
		if drained && len(pending) == 0 && graceCh == nil && len(expired) > 0 {
			c.log.Info("grace window armed", "timed_out", len(expired), "window", c.cfg.GraceWindow)
			graceCh = time.After(c.cfg.GraceWindow)
		}
	}

	for {
		if drained && len(pending) == 0 && len(expired) == 0 {
			return finalized, nil
		}

		select {
		case <-ctx.Done():
			return finalized, ctx.Err()

		case e, ok := <-registerCh:
			if !ok {
				registerCh = nil
				drained = true
				armGrace()
				continue
			}
			jobID := e.job.ID
			e.timer = time.AfterFunc(time.Until(e.job.Deadline), func() {
				// Buffered to capacity, never blocks.
				expireCh <- jobID
			})
			pending[jobID] = e
			metrics.PendingJobs.Set(float64(len(pending)))

		case jobID := <-expireCh:
			e, ok := pending[jobID]
			if !ok {
				// Event consumption won the race; removal from the
				// pending map is the single source of truth.
				continue
			}
			delete(pending, jobID)
			metrics.PendingJobs.Set(float64(len(pending)))
			metrics.Timeouts.Inc()
			e.job.Status = domain.JobStatusTimedOut
			expired[jobID] = e
			c.log.Warn("job deadline elapsed", "job_id", jobID, "item_id", e.job.ItemID)
			armGrace()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if e := c.take(pending, expired, ev.JobID); e != nil {
				metrics.PendingJobs.Set(float64(len(pending)))
				finalized = append(finalized, c.resolve(e, ev))
				armGrace()
			} else {
				c.log.Debug("completion event for unknown job", "job_id", ev.JobID)
			}

		case <-graceCh:
			for id, e := range expired {
				delete(expired, id)
				finalized = append(finalized, c.finalizeTimeout(ctx, e))
			}
			return finalized, nil
		}
	}
}

// take removes the entry for jobID from whichever map holds it and
// stops its deadline timer. Returns nil when the job is unknown.
func (c *Coordinator) take(pending, expired map[string]*entry, jobID string) *entry {
	if e, ok := pending[jobID]; ok {
		e.timer.Stop()
		delete(pending, jobID)
		return e
	}
	if e, ok := expired[jobID]; ok {
		// Late-but-genuine completion inside the grace window.
		delete(expired, jobID)
		return e
	}
	return nil
}

// resolve applies a completion event to a job.
func (c *Coordinator) resolve(e *entry, ev domain.CompletionEvent) *domain.ExportJob {
	job := e.job
	if ev.Err != "" {
		job.Status = domain.JobStatusFailed
		err := errors.New(ev.Err)
		c.tracker.RecordFailure(job.ItemID, retry.Classify(err), e.item.Attempts, ev.Err)
		metrics.Completions.WithLabelValues("failure").Inc()
		c.log.Warn("export job failed", "job_id", job.ID, "item_id", job.ItemID, "error", ev.Err)
		return job
	}

	job.Status = domain.JobStatusSucceeded
	job.ArtifactURL = ev.ArtifactURL
	c.tracker.RecordSuccess(job.ItemID)
	metrics.Completions.WithLabelValues("success").Inc()
	if c.prober != nil {
		c.prober.Learn(job.ID, ev.ArtifactURL)
	}
	c.log.Debug("export job completed", "job_id", job.ID, "item_id", job.ItemID)
	return job
}

// finalizeTimeout runs recovery for a job whose completion never
// arrived and settles its final status.
func (c *Coordinator) finalizeTimeout(ctx context.Context, e *entry) *domain.ExportJob {
	job := e.job

	if c.cfg.RecoveryEnabled && c.prober != nil {
		if url, ok := c.prober.Recover(ctx, job.ID); ok {
			job.Status = domain.JobStatusRecovered
			job.ArtifactURL = url
			c.tracker.RecordSuccess(job.ItemID)
			return job
		}
		job.Status = domain.JobStatusUnrecovered
	}

	c.tracker.RecordFailure(job.ItemID, domain.FailureTimeout, e.item.Attempts,
		"no completion signal within deadline and grace window")
	return job
}
