package entity

import (
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the live set of broadcast entities.
//
// Records are keyed by entity_id with last-write-wins semantics: an update
// for an existing id replaces its state wholesale. Records expire when no
// update arrives within the staleness timeout; Sweep removes them.
//
// Deep copies cross the boundary in both directions, so callers can never
// mutate registry internals and vice versa.
//
// All public methods are thread-safe.
type Registry struct {
	mu        sync.RWMutex
	records   map[string]*Record
	timeout   time.Duration
	logger    Logger
	notifiers []Notifier

	// now is injectable for deterministic staleness tests.
	now func() time.Time
}

// NewRegistry creates an empty registry with the given staleness timeout.
// Records older than the timeout are removed by Sweep.
func NewRegistry(stalenessTimeout time.Duration) *Registry {
	return &Registry{
		records: make(map[string]*Record),
		timeout: stalenessTimeout,
		logger:  noopLogger{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetClock overrides the registry's time source. Test use only.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Subscribe registers a notifier for lifecycle events.
//
// Notifiers are invoked synchronously under the mutation lock, in
// subscription order, with per-notifier panic recovery. Subscribe before
// starting the listener; it is not safe to call concurrently with updates.
func (r *Registry) Subscribe(n Notifier) {
	r.notifiers = append(r.notifiers, n)
}

// ApplyUpdate upserts the record for u.EntityID, stamping LastSeen.
//
// Returns true when the entity was created, false when an existing record
// was replaced. Exactly one notification (Created or Updated) fires per
// call. LastSeen never moves backwards while the record is live.
func (r *Registry) ApplyUpdate(u Update) bool {
	now := r.now()

	rec := &Record{
		EntityID:        u.EntityID,
		State:           u.State,
		Attributes:      deepCopyMap(u.Attributes),
		BroadcasterName: u.BroadcasterName,
		SourceIP:        u.SourceIP,
		LastSeen:        now,
	}
	if rec.Attributes == nil {
		rec.Attributes = Attributes{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.records[u.EntityID]
	if exists && prev.LastSeen.After(now) {
		// Clock skew guard: keep LastSeen monotonic
		rec.LastSeen = prev.LastSeen
	}
	r.records[u.EntityID] = rec

	kind := EventUpdated
	if !exists {
		kind = EventCreated
		r.logger.Debug("entity created", "entity_id", u.EntityID, "broadcaster", u.BroadcasterName)
	}

	r.dispatch(Event{Kind: kind, Record: *rec.DeepCopy(), Timestamp: now})

	return !exists
}

// Sweep removes every record whose age at now exceeds the staleness
// timeout (strictly greater). Returns the number of records removed; one
// Removed notification fires per removal.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, rec := range r.records {
		if now.Sub(rec.LastSeen) > r.timeout {
			delete(r.records, id)
			removed++
			r.logger.Info("entity expired", "entity_id", id, "last_seen", rec.LastSeen)
			r.dispatch(Event{Kind: EventRemoved, Record: *rec.DeepCopy(), Timestamp: now})
		}
	}

	return removed
}

// Get retrieves a record by entity ID.
// Returns ErrEntityNotFound if the entity does not exist.
// The returned record is a deep copy; callers can safely modify it.
func (r *Registry) Get(id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return rec.DeepCopy(), nil
}

// List returns a single consistent snapshot of all records, sorted by
// entity ID. The returned records are deep copies.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, *rec.DeepCopy())
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].EntityID < records[j].EntityID
	})
	return records
}

// Remove deletes the record for id, firing a Removed notification.
// Returns false (and fires nothing) when the id is absent; removing an
// absent id is a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}

	delete(r.records, id)
	r.logger.Info("entity removed", "entity_id", id)
	r.dispatch(Event{Kind: EventRemoved, Record: *rec.DeepCopy(), Timestamp: r.now()})
	return true
}

// Count returns the number of live records.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Stats holds registry statistics for monitoring.
type Stats struct {
	TotalEntities int            `json:"total_entities"`
	ByBroadcaster map[string]int `json:"by_broadcaster"`
	OldestSeen    *time.Time     `json:"oldest_seen,omitempty"`
	NewestSeen    *time.Time     `json:"newest_seen,omitempty"`
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalEntities: len(r.records),
		ByBroadcaster: make(map[string]int),
	}

	for _, rec := range r.records {
		stats.ByBroadcaster[rec.BroadcasterName]++
		seen := rec.LastSeen
		if stats.OldestSeen == nil || seen.Before(*stats.OldestSeen) {
			t := seen
			stats.OldestSeen = &t
		}
		if stats.NewestSeen == nil || seen.After(*stats.NewestSeen) {
			t := seen
			stats.NewestSeen = &t
		}
	}

	return stats
}

// dispatch invokes every subscribed notifier with per-notifier panic
// recovery. Called with the mutation lock held; a failing subscriber
// never corrupts the registry or suppresses the mutation.
func (r *Registry) dispatch(e Event) {
	for _, n := range r.notifiers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("notifier panic recovered",
						"kind", e.Kind,
						"entity_id", e.Record.EntityID,
						"panic", rec,
					)
				}
			}()
			n.Notify(e)
		}()
	}
}
