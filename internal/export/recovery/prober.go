// Package recovery implements best-effort recovery of jobs whose
// completion event never arrived. It guesses candidate artifact URLs
// from patterns observed on successful completions, then from a fixed
// fallback list, and confirms with cheap existence probes. This is a
// heuristic, not a protocol guarantee, and sits behind a config flag.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/metrics"
)

// maxLearnedTemplates bounds the learned set; patterns past the first
// few are almost always duplicates of one URL shape.
const maxLearnedTemplates = 8

// ProbeFunc checks whether a candidate URL resolves to an artifact.
type ProbeFunc func(ctx context.Context, url string) bool

// Prober holds learned URL templates and probes candidates in fixed
// priority order: learned patterns first, then fallbacks.
type Prober struct {
	probe ProbeFunc
	log   *slog.Logger

	mu        sync.Mutex
	learned   []string
	fallbacks []string
}

// New creates a prober. baseURL seeds the generic fallback templates.
func New(probe ProbeFunc, baseURL string, log *slog.Logger) *Prober {
	base := strings.TrimRight(baseURL, "/")
	return &Prober{
		probe: probe,
		log:   log,
		fallbacks: []string{
			base + "/api/export/%s/archive.zip",
			base + "/api/export/download?job=%s",
			base + "/files/export/%s.zip",
		},
	}
}

// Learn derives a template from a successful completion by
// substituting the job ID out of its artifact URL. URLs that do not
// embed the job ID teach us nothing.
func (p *Prober) Learn(jobID, artifactURL string) {
	if jobID == "" || !strings.Contains(artifactURL, jobID) {
		return
	}
	tmpl := strings.Replace(artifactURL, jobID, "%s", 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.learned {
		if existing == tmpl {
			return
		}
	}
	if len(p.learned) >= maxLearnedTemplates {
		return
	}
	p.learned = append(p.learned, tmpl)
	p.log.Debug("learned artifact URL template", "template", tmpl)
}

// Recover probes candidate URLs for a timed-out job and returns the
// first confirmed artifact location.
func (p *Prober) Recover(ctx context.Context, jobID string) (string, bool) {
	p.mu.Lock()
	candidates := make([]string, 0, len(p.learned)+len(p.fallbacks))
	candidates = append(candidates, p.learned...)
	candidates = append(candidates, p.fallbacks...)
	p.mu.Unlock()

	for _, tmpl := range candidates {
		url := fmt.Sprintf(tmpl, jobID)
		if p.probe(ctx, url) {
			p.log.Info("recovered lost completion", "job_id", jobID, "url", url)
			metrics.Recoveries.WithLabelValues("recovered").Inc()
			return url, true
		}
		if ctx.Err() != nil {
			break
		}
	}

	metrics.Recoveries.WithLabelValues("unrecovered").Inc()
	return "", false
}
