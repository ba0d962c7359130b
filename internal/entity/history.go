package entity

import (
	"context"
	"time"
)

// HistoryEntry represents a single recorded entity state update.
//
// Each entry stores the full update as received, so the history remains a
// usable audit trail even after the live record has expired from the
// registry.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// EntityID is the unique entity identifier.
	EntityID string `json:"entity_id"`

	// State is the state carried by the update.
	State string `json:"state"`

	// Attributes is the attribute map carried by the update.
	Attributes Attributes `json:"attributes"`

	// BroadcasterName identifies the broadcasting instance.
	BroadcasterName string `json:"broadcaster_name"`

	// SourceIP is the address the update arrived from.
	SourceIP string `json:"source_ip"`

	// ReceivedAt is when the update arrived (UTC).
	ReceivedAt time.Time `json:"received_at"`
}

// HistoryRepository stores and retrieves entity state update history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// RecordUpdate appends a history row for an accepted update.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - rec: The registry record after the update was applied
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordUpdate(ctx context.Context, rec Record) error

	// GetHistory returns recent update history for the entity.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entityID: Unique entity identifier
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []HistoryEntry: Ordered newest-first history entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetHistory(ctx context.Context, entityID string, limit int) ([]HistoryEntry, error)
}
