package entity

import (
	"context"
	"time"
)

// Sweeper periodically removes stale records from a registry.
//
// It runs on its own ticker, independent of the listener's poll cadence,
// so expiry continues even when no datagrams arrive.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	logger   Logger
}

// NewSweeper creates a sweeper for the given registry.
// A non-positive interval gets a default of 30 seconds.
func NewSweeper(registry *Registry, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the sweeper.
func (s *Sweeper) SetLogger(logger Logger) {
	s.logger = logger
}

// Run sweeps the registry every interval until ctx is cancelled.
// Blocks; run in its own goroutine. Shutdown is bounded by one interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := s.registry.Sweep(now.UTC()); removed > 0 {
				s.logger.Info("stale entities swept", "removed", removed)
			}
		}
	}
}
