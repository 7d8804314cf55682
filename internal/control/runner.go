// Package control wires the export phases into one run: session,
// listing, resume planning, tag enrichment, submission/correlation,
// download, and end-of-run persistence.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/core/config"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/core/domain"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/coordinator"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/health"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/pool"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/ratelimit"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/recovery"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/resume"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/retry"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/tracker"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/infra/nimbus"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/infra/redisstore"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/infra/storage"
)

// ErrNoCandidates is returned when the account has no notes at all;
// an empty listing is a setup failure, not a finished run.
var ErrNoCandidates = errors.New("no candidate notes found")

// Runner executes one export pass.
type Runner struct {
	cfg *config.AppConfig
	log *slog.Logger

	// Allowlist, when non-nil, restricts the pass to these item IDs
	// (typically the failed-ID list of a prior run's descriptor).
	Allowlist []string
}

// New creates a runner for the given configuration.
func New(cfg *config.AppConfig, log *slog.Logger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// Run performs a full export pass. Isolated item failures never abort
// the run; only setup failures (login, empty listing) do.
func (r *Runner) Run(ctx context.Context) error {
	runID := uuid.New().String()
	log := r.log.With("run_id", runID)

	bucket, err := ratelimit.NewBucket(r.cfg.RateLimit.Rate, r.cfg.RateLimit.Burst)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	retryCfg := retry.Config{
		MaxRetries:   r.cfg.Retry.MaxRetries,
		InitialDelay: r.cfg.Retry.InitialDelay.Std(),
		MaxDelay:     r.cfg.Retry.MaxDelay.Std(),
		Multiplier:   2,
	}

	client := nimbus.New(nimbus.Config{
		BaseURL: r.cfg.Auth.BaseURL,
		Timeout: r.cfg.Export.SubmitTimeout.Std(),
		Retry:   retryCfg,
	}, bucket, log)

	if err := client.Login(ctx, r.cfg.Auth.Email, r.cfg.Auth.Password); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if workspaces, err := client.ListWorkspaces(ctx); err != nil {
		log.Warn("workspace listing failed", "error", err)
	} else {
		log.Info("account surveyed", "workspaces", len(workspaces))
	}

	candidates, err := client.ListNotes(ctx)
	if err != nil {
		return fmt.Errorf("note listing failed: %w", err)
	}
	if len(candidates) == 0 {
		return ErrNoCandidates
	}

	completed, store, err := r.completedSet(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	work := resume.Plan(candidates, completed, r.Allowlist)
	log.Info("resume plan computed",
		"candidates", len(candidates), "completed", len(completed), "work", len(work))
	if len(work) == 0 {
		log.Info("nothing left to export")
		return nil
	}

	tr := tracker.New(len(work))

	if r.cfg.Server.Port > 0 {
		srv := health.NewServer(tr, r.cfg.Server.Port)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("health server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	if err := r.enrichTags(ctx, client, work, tr, log); err != nil {
		return err
	}

	jobs, err := r.exportPhase(ctx, client, retryCfg, work, tr, log)
	if err != nil {
		return err
	}

	r.downloadPhase(ctx, client, work, jobs, tr, log)

	return r.finish(ctx, runID, store, tr, log)
}

// completedSet merges the archive scan with the Redis completed set
// when a shared store is configured.
func (r *Runner) completedSet(ctx context.Context) (map[string]struct{}, *redisstore.Store, error) {
	completed, err := storage.ScanArchive(r.cfg.Output.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("archive scan: %w", err)
	}

	if r.cfg.Redis.URL == "" {
		return completed, nil, nil
	}

	store, err := redisstore.New(r.cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("resume store: %w", err)
	}
	shared, err := store.CompletedIDs(ctx, r.cfg.Auth.Email)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("resume store: %w", err)
	}
	for id := range shared {
		completed[id] = struct{}{}
	}
	return completed, store, nil
}

// enrichTags runs the tag enrichment phase. Tag failures degrade the
// run but never block export.
func (r *Runner) enrichTags(ctx context.Context, client *nimbus.Client,
	work []*domain.WorkItem, tr *tracker.Tracker, log *slog.Logger) error {

	p, err := pool.New(r.cfg.Export.EnrichWidth)
	if err != nil {
		return fmt.Errorf("enrichment pool: %w", err)
	}

	for _, item := range work {
		item := item
		p.Go(func() {
			callCtx, cancel := context.WithTimeout(ctx, r.cfg.Export.SubmitTimeout.Std())
			defer cancel()

			tags, err := client.NoteTags(callCtx, item.ID)
			if err != nil {
				tr.RecordTagFetch(false)
				log.Debug("tag fetch failed", "item_id", item.ID, "error", err)
				return
			}
			item.Tags = tags
			tr.RecordTagFetch(true)
		})
	}
	p.Drain()
	return nil
}

// exportPhase submits jobs and correlates completions.
func (r *Runner) exportPhase(ctx context.Context, client *nimbus.Client, retryCfg retry.Config,
	work []*domain.WorkItem, tr *tracker.Tracker, log *slog.Logger) ([]*domain.ExportJob, error) {

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	poller := nimbus.NewEventPoller(client)
	go poller.Run(pollCtx)

	prober := recovery.New(client.Probe, r.cfg.Auth.BaseURL, log)

	co := coordinator.New(coordinator.Config{
		SubmitWidth:     r.cfg.Export.SubmitWidth,
		JobDeadline:     r.cfg.Export.JobDeadline.Std(),
		GraceWindow:     r.cfg.Export.GraceWindow.Std(),
		RecoveryEnabled: r.cfg.Recovery.Enabled,
		Retry:           retryCfg,
	}, client, poller.Events(), prober, tr, log)

	jobs, err := co.Run(ctx, work)
	if err != nil {
		return nil, fmt.Errorf("export coordination: %w", err)
	}
	return jobs, nil
}

// downloadPhase fetches artifacts for every resolved job.
func (r *Runner) downloadPhase(ctx context.Context, client *nimbus.Client,
	work []*domain.WorkItem, jobs []*domain.ExportJob, tr *tracker.Tracker, log *slog.Logger) {

	itemsByID := make(map[string]*domain.WorkItem, len(work))
	for _, item := range work {
		itemsByID[item.ID] = item
	}

	p, err := pool.New(r.cfg.Export.DownloadWidth)
	if err != nil {
		// Width was validated at config load; nothing sane to do here.
		log.Error("download pool", "error", err)
		return
	}

	for _, job := range jobs {
		if !job.Status.Resolved() {
			continue
		}
		job := job
		p.Go(func() {
			callCtx, cancel := context.WithTimeout(ctx, r.cfg.Export.DownloadTimeout.Std())
			defer cancel()

			item := itemsByID[job.ItemID]
			dest := filepath.Join(r.cfg.Output.Dir, job.ItemID+".zip")
			n, err := client.Download(callCtx, job.ArtifactURL, dest)
			if err != nil {
				tr.RecordDownload(false)
				tr.RecordFailure(job.ItemID, retry.Classify(err), item.Attempts, "download: "+err.Error())
				log.Warn("artifact download failed", "item_id", job.ItemID, "error", err)
				return
			}
			item.ArtifactPath = dest
			tr.RecordDownload(true)
			log.Debug("artifact downloaded", "item_id", job.ItemID, "bytes", n)
		})
	}
	p.Drain()
}

// finish writes the resume descriptor, updates the shared store, and
// logs the summary.
func (r *Runner) finish(ctx context.Context, runID string, store *redisstore.Store,
	tr *tracker.Tracker, log *slog.Logger) error {

	stats := tr.Snapshot()
	desc := &domain.ResumeDescriptor{
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Total:     stats.Total,
		Succeeded: stats.Succeeded,
		FailedIDs: tr.FailedIDs(),
	}
	if err := storage.SaveDescriptor(r.cfg.Output.ResumeFile, desc); err != nil {
		log.Error("failed to persist resume descriptor", "error", err)
	}

	if store != nil {
		account := r.cfg.Auth.Email
		if err := store.MarkCompleted(ctx, account, tr.SucceededIDs()...); err != nil {
			log.Warn("resume store update failed", "error", err)
		}
		if err := store.MarkFailed(ctx, account, desc.FailedIDs...); err != nil {
			log.Warn("resume store update failed", "error", err)
		}
	}

	log.Info("run complete", "succeeded", stats.Succeeded, "failed", stats.Failed,
		"success_rate", fmt.Sprintf("%.1f%%", tr.SuccessRate()*100), "perfect", tr.Perfect())
	fmt.Println(tr.Summary())
	return nil
}
