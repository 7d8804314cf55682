// Package pool provides a fixed-width task runner. Each export phase
// (tag enrichment, job submission, artifact download) gets its own pool
// sized for that phase's backend cost.
package pool

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool runs independent tasks with bounded concurrency. A failing task
// never cancels its siblings; task errors are the task's own business
// (report through a tracker, log, etc.). Idle exposes a signal that
// fires once Drain has been called and every task has returned.
type Pool struct {
	g    errgroup.Group
	idle chan struct{}
	once sync.Once
}

// New creates a pool of the given width. width must be >= 1.
func New(width int) (*Pool, error) {
	if width < 1 {
		return nil, fmt.Errorf("pool width must be at least 1, got %d", width)
	}
	p := &Pool{idle: make(chan struct{})}
	p.g.SetLimit(width)
	return p, nil
}

// Go schedules a task, blocking while all slots are busy.
func (p *Pool) Go(task func()) {
	p.g.Go(func() error {
		task()
		return nil
	})
}

// Drain waits for all scheduled tasks and fires the idle signal. Safe
// to call more than once; no tasks may be scheduled after Drain.
func (p *Pool) Drain() {
	_ = p.g.Wait()
	p.once.Do(func() { close(p.idle) })
}

// Idle is closed when the pool has fully drained.
func (p *Pool) Idle() <-chan struct{} {
	return p.idle
}
