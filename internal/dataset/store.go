// Package dataset persists exported call samples to a local SQLite database.
//
// DESIGN: Each dataset hook that opts in produces a DatasetItem per call. The
// store writes one row per item, keeping both the hook-chosen fields and the
// sanitized log payload as JSON columns so downstream tooling can re-shape
// them freely.
//
// FLOW: gateway completes call -> dispatch.RunDatasetHooks collects items ->
// Store.Append writes each item inside a single implicit transaction.
package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/harborai/llm-gateway/internal/hooks"
)

const schema = `
CREATE TABLE IF NOT EXISTS dataset_items (
	id         TEXT PRIMARY KEY,
	call_id    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	fields     TEXT NOT NULL,
	payload    TEXT
);
CREATE INDEX IF NOT EXISTS idx_dataset_items_call_id ON dataset_items(call_id);
`

// Store is a SQLite-backed sink for dataset items.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the dataset database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("dataset: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("dataset: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Append writes one exported item. The item ID is generated when the hook did
// not assign one. payload may be nil for hooks that export fields only.
func (s *Store) Append(ctx context.Context, item *hooks.DatasetItem, payload *hooks.StandardLogPayload) error {
	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}

	fieldsJSON, err := json.Marshal(item.Fields)
	if err != nil {
		return fmt.Errorf("dataset: marshal fields: %w", err)
	}

	var payloadJSON []byte
	callID := ""
	if payload != nil {
		callID = payload.ID
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("dataset: marshal payload: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dataset_items (id, call_id, created_at, fields, payload) VALUES (?, ?, ?, ?, ?)`,
		id, callID, time.Now().UTC().Format(time.RFC3339Nano), string(fieldsJSON), nullableString(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("dataset: insert item: %w", err)
	}
	return nil
}

// StoredItem is a dataset row as read back from the database.
type StoredItem struct {
	ID        string
	CallID    string
	CreatedAt time.Time
	Fields    map[string]any
	Payload   *hooks.StandardLogPayload
}

// List returns up to limit items, newest first. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]*StoredItem, error) {
	query := `SELECT id, call_id, created_at, fields, payload FROM dataset_items ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dataset: query items: %w", err)
	}
	defer rows.Close()

	var items []*StoredItem
	for rows.Next() {
		var (
			item        StoredItem
			createdAt   string
			fieldsJSON  string
			payloadJSON sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.CallID, &createdAt, &fieldsJSON, &payloadJSON); err != nil {
			return nil, fmt.Errorf("dataset: scan item: %w", err)
		}
		item.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if err := json.Unmarshal([]byte(fieldsJSON), &item.Fields); err != nil {
			return nil, fmt.Errorf("dataset: decode fields for %s: %w", item.ID, err)
		}
		if payloadJSON.Valid && payloadJSON.String != "" {
			var payload hooks.StandardLogPayload
			if err := json.Unmarshal([]byte(payloadJSON.String), &payload); err != nil {
				return nil, fmt.Errorf("dataset: decode payload for %s: %w", item.ID, err)
			}
			item.Payload = &payload
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// Count returns the number of stored items.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dataset_items`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
