package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/raido/internal/apperr"
)

// BatchRow is one assembled batch outcome.
type BatchRow struct {
	Name           string    `json:"name"`
	OutputPath     string    `json:"output_path,omitempty"`
	OutputChecksum string    `json:"output_checksum,omitempty"`
	Written        int       `json:"written"`
	Deleted        int       `json:"deleted"`
	Quarantined    int       `json:"quarantined"`
	CompletedAt    time.Time `json:"completed_at"`
}

// QuarantineRow is one quarantined-file event.
type QuarantineRow struct {
	ID         int64     `json:"id"`
	Batch      string    `json:"batch,omitempty"`
	StoredPath string    `json:"stored_path"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RecordBatch inserts or replaces a batch outcome. A batch re-assembled
// under the same name (e.g. after a crash re-run) replaces its old row.
func (db *DB) RecordBatch(row BatchRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO batches (name, output_path, output_checksum, written, deleted, quarantined, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			output_path     = excluded.output_path,
			output_checksum = excluded.output_checksum,
			written         = excluded.written,
			deleted         = excluded.deleted,
			quarantined     = excluded.quarantined,
			completed_at    = excluded.completed_at
	`, row.Name, row.OutputPath, row.OutputChecksum, row.Written, row.Deleted, row.Quarantined, row.CompletedAt)
	if err != nil {
		return fmt.Errorf("index: record batch: %w", err)
	}
	return nil
}

// GetBatch returns one batch outcome by name.
func (db *DB) GetBatch(name string) (*BatchRow, error) {
	var row BatchRow
	err := db.conn.QueryRow(`
		SELECT name, output_path, output_checksum, written, deleted, quarantined, completed_at
		FROM batches WHERE name = ?
	`, name).Scan(&row.Name, &row.OutputPath, &row.OutputChecksum, &row.Written, &row.Deleted, &row.Quarantined, &row.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get batch: %w", err)
	}
	return &row, nil
}

// ListBatches returns batch outcomes newest first, plus the total count.
func (db *DB) ListBatches(limit, offset int) ([]BatchRow, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM batches`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count batches: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT name, output_path, output_checksum, written, deleted, quarantined, completed_at
		FROM batches ORDER BY completed_at DESC, name DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list batches: %w", err)
	}
	defer rows.Close()

	var out []BatchRow
	for rows.Next() {
		var row BatchRow
		if err := rows.Scan(&row.Name, &row.OutputPath, &row.OutputChecksum, &row.Written, &row.Deleted, &row.Quarantined, &row.CompletedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// RecordQuarantine appends one quarantine event.
func (db *DB) RecordQuarantine(row QuarantineRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO quarantine_events (batch, stored_path, reason, occurred_at)
		VALUES (?, ?, ?, ?)
	`, row.Batch, row.StoredPath, row.Reason, row.OccurredAt)
	if err != nil {
		return fmt.Errorf("index: record quarantine: %w", err)
	}
	return nil
}

// ListQuarantine returns quarantine events newest first.
func (db *DB) ListQuarantine(limit int) ([]QuarantineRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, batch, stored_path, reason, occurred_at
		FROM quarantine_events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: list quarantine: %w", err)
	}
	defer rows.Close()

	var out []QuarantineRow
	for rows.Next() {
		var row QuarantineRow
		if err := rows.Scan(&row.ID, &row.Batch, &row.StoredPath, &row.Reason, &row.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
