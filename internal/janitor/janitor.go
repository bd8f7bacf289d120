// Package janitor periodically fails lead-scoring jobs that stopped
// heartbeating, typically after a crash or deploy mid-run. A failed job can
// always be retried, so sweeping aggressively is safe.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/daneshyar/leadscore/internal/store"
)

// Jobs stuck in running without a progress write for longer than the stall
// timeout are marked failed with this message.
const stalledMessage = "تحلیل به دلیل وقفه طولانی متوقف شد. لطفاً دوباره تلاش کنید."

// Janitor runs the stale-job sweep on a cron schedule.
type Janitor struct {
	store        store.Store
	cron         *cron.Cron
	stallTimeout time.Duration
}

// New creates a Janitor. schedule uses cron syntax, including the
// "@every 10m" form.
func New(s store.Store, schedule string, stallTimeout time.Duration) (*Janitor, error) {
	j := &Janitor{
		store:        s,
		cron:         cron.New(),
		stallTimeout: stallTimeout,
	}
	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins the schedule in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Sweep fails all running jobs whose last update is older than the stall
// timeout. Exported so operators can trigger it outside the schedule.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-j.stallTimeout)
	return j.store.FailStalledLeadJobs(ctx, cutoff, stalledMessage)
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := j.Sweep(ctx)
	if err != nil {
		slog.Error("stale job sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Warn("failed stalled jobs", "count", n, "stall_timeout", j.stallTimeout)
	}
}
