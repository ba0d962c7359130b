package entity

import (
	"context"
	"time"
)

// PruneStore is the subset of the history store the pruner needs.
type PruneStore interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Pruner periodically deletes history rows older than the retention
// window, keeping the state history table bounded on long-running
// deployments.
type Pruner struct {
	store     PruneStore
	retention time.Duration
	interval  time.Duration
	logger    Logger
}

// NewPruner creates a pruner enforcing the given retention window.
// A non-positive interval gets a default of one hour; retention is
// measured in days, so hourly enforcement is plenty.
func NewPruner(store PruneStore, retention, interval time.Duration) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Pruner{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the pruner.
func (p *Pruner) SetLogger(logger Logger) {
	p.logger = logger
}

// Run enforces retention every interval until ctx is cancelled.
// One pass runs immediately so a receiver that was stopped for a long
// time does not wait a full interval to trim its backlog.
// Blocks; run in its own goroutine.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

// prune runs one retention pass. Errors are logged, not fatal; the next
// tick retries.
func (p *Pruner) prune(ctx context.Context) {
	removed, err := p.store.PruneHistory(ctx, p.retention)
	if err != nil {
		p.logger.Error("pruning state history", "error", err)
		return
	}
	if removed > 0 {
		p.logger.Info("state history pruned", "rows", removed, "retention", p.retention)
	}
}
