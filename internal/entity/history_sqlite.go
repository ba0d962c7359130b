package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
//
// It stores attribute maps as JSON in the entity_state_history table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a new SQLite history repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteHistoryRepository: Repository instance ready for use
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// RecordUpdate inserts a new history row for an accepted update.
func (r *SQLiteHistoryRepository) RecordUpdate(ctx context.Context, rec Record) error {
	if rec.EntityID == "" {
		return fmt.Errorf("entity id is required")
	}

	attrs := rec.Attributes
	if attrs == nil {
		attrs = Attributes{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}

	receivedAt := rec.LastSeen
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO entity_state_history
		 (entity_id, state, attributes, broadcaster_name, source_ip, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.EntityID,
		rec.State,
		string(attrsJSON),
		rec.BroadcasterName,
		rec.SourceIP,
		receivedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting entity history: %w", err)
	}

	return nil
}

// GetHistory returns recent history entries for an entity, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - entityID: Unique entity identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []HistoryEntry: History entries ordered by received_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteHistoryRepository) GetHistory(ctx context.Context, entityID string, limit int) ([]HistoryEntry, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_id, state, attributes, broadcaster_name, source_ip, received_at
		 FROM entity_state_history
		 WHERE entity_id = ?
		 ORDER BY received_at DESC
		 LIMIT ?`,
		entityID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying entity history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var attrsJSON sql.NullString
		var receivedAt string

		if err := rows.Scan(
			&entry.ID,
			&entry.EntityID,
			&entry.State,
			&attrsJSON,
			&entry.BroadcasterName,
			&entry.SourceIP,
			&receivedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning entity history: %w", err)
		}

		entry.Attributes = Attributes{}
		if attrsJSON.Valid && attrsJSON.String != "" {
			if err := json.Unmarshal([]byte(attrsJSON.String), &entry.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshalling attributes: %w", err)
			}
		}

		timestamp, err := parseHistoryTimestamp(receivedAt)
		if err != nil {
			return nil, err
		}
		entry.ReceivedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity history: %w", err)
	}

	return entries, nil
}

// PruneHistory deletes history entries older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM entity_state_history WHERE received_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting entity history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("received_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing received_at: %w", err)
	}

	return timestamp, nil
}
