package entity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// countingPruneStore records prune calls and can be made to fail.
type countingPruneStore struct {
	calls     atomic.Int64
	lastOlder atomic.Int64 // nanoseconds of the last olderThan argument
	fail      atomic.Bool
}

func (s *countingPruneStore) PruneHistory(_ context.Context, olderThan time.Duration) (int64, error) {
	s.calls.Add(1)
	s.lastOlder.Store(int64(olderThan))
	if s.fail.Load() {
		return 0, errors.New("history: prune failed")
	}
	return 3, nil
}

func TestPrunerRunsImmediatelyAndOnTicks(t *testing.T) {
	store := &countingPruneStore{}
	p := NewPruner(store, 30*24*time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	deadline := time.After(2 * time.Second)
	for store.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("prune ran %d times, want at least 3", store.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if got := time.Duration(store.lastOlder.Load()); got != 30*24*time.Hour {
		t.Errorf("olderThan = %v, want %v", got, 30*24*time.Hour)
	}
}

func TestPrunerContinuesAfterError(t *testing.T) {
	store := &countingPruneStore{}
	store.fail.Store(true)

	p := NewPruner(store, 24*time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// Failing passes must not stop the loop.
	deadline := time.After(2 * time.Second)
	for store.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("prune ran %d times after errors, want at least 3", store.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPrunerStopsOnCancel(t *testing.T) {
	store := &countingPruneStore{}
	p := NewPruner(store, 24*time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pruner did not stop after context cancellation")
	}
}

func TestNewPrunerDefaultInterval(t *testing.T) {
	p := NewPruner(&countingPruneStore{}, 24*time.Hour, 0)
	if p.interval != time.Hour {
		t.Errorf("interval = %v, want %v", p.interval, time.Hour)
	}
}
