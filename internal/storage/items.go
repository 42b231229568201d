package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/statement-flow/internal/model"
)

// fingerprintChunk keeps IN lists well under SQLite's host parameter limit.
const fingerprintChunk = 500

func insertItemsTx(ctx context.Context, tx *sql.Tx, batchID string, items []model.IngestionItem) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ingestion_items (
			batch_id, row_index, raw_payload, parsed_payload, fingerprint,
			row_hash, source_format, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for i := range items {
		item := &items[i]
		item.BatchID = batchID

		raw, err := marshalJSON(item.RawPayload)
		if err != nil {
			return fmt.Errorf("failed to encode raw payload for row %d: %w", item.RowIndex, err)
		}
		parsed, err := marshalJSON(item.Parsed)
		if err != nil {
			return fmt.Errorf("failed to encode parsed payload for row %d: %w", item.RowIndex, err)
		}

		res, err := stmt.ExecContext(ctx,
			batchID, item.RowIndex, raw, parsed, item.Fingerprint,
			item.RowHash, string(item.SourceFormat), string(item.Status), now)
		if err != nil {
			return fmt.Errorf("failed to insert item %d: %w", item.RowIndex, err)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read item id: %w", err)
		}
		item.CreatedAt = now
	}
	return nil
}

// ExistingFingerprints returns which of the given fingerprints are already
// held by a non-duplicate item of the user for the same source format.
// Batches that ended in error do not count.
func (s *SQLiteStorage) ExistingFingerprints(ctx context.Context, userID string, source model.SourceFormat, fingerprints []string) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	found := make(map[string]bool)
	for start := 0; start < len(fingerprints); start += fingerprintChunk {
		end := min(start+fingerprintChunk, len(fingerprints))
		chunk := fingerprints[start:end]

		args := make([]any, 0, len(chunk)+4)
		args = append(args, userID, string(source), string(model.BatchError), string(model.ItemDuplicate))
		for _, fp := range chunk {
			args = append(args, fp)
		}

		query := `
			SELECT DISTINCT i.fingerprint
			FROM ingestion_items i
			JOIN ingestion_batches b ON b.id = i.batch_id
			WHERE b.user_id = ? AND i.source_format = ? AND b.status != ? AND i.status != ?
				AND i.fingerprint IN (?` + strings.Repeat(",?", len(chunk)-1) + `)`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, classify(fmt.Errorf("failed to query fingerprints: %w", err))
		}
		for rows.Next() {
			var fp string
			if err := rows.Scan(&fp); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
			}
			found[fp] = true
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}
	return found, nil
}

// ListItems returns a batch's items in row order, optionally filtered by status.
func (s *SQLiteStorage) ListItems(ctx context.Context, batchID string, status *model.ItemStatus) ([]model.IngestionItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, batch_id, row_index, raw_payload, parsed_payload, fingerprint,
			row_hash, source_format, status, created_at
		FROM ingestion_items
		WHERE batch_id = ?`
	args := []any{batchID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY row_index`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.IngestionItem
	for rows.Next() {
		var (
			item           model.IngestionItem
			raw, parsed        string
			format, itemStatus string
		)
		if err := rows.Scan(&item.ID, &item.BatchID, &item.RowIndex, &raw, &parsed,
			&item.Fingerprint, &item.RowHash, &format, &itemStatus, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &item.RawPayload); err != nil {
			return nil, fmt.Errorf("failed to decode raw payload of item %d: %w", item.ID, err)
		}
		if err := json.Unmarshal([]byte(parsed), &item.Parsed); err != nil {
			return nil, fmt.Errorf("failed to decode parsed payload of item %d: %w", item.ID, err)
		}
		item.Parsed.Raw = item.RawPayload
		item.SourceFormat = model.SourceFormat(format)
		item.Status = model.ItemStatus(itemStatus)
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountItems returns the number of items per status in a batch.
func (s *SQLiteStorage) CountItems(ctx context.Context, batchID string) (map[model.ItemStatus]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM ingestion_items WHERE batch_id = ? GROUP BY status`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.ItemStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[model.ItemStatus(status)] = n
	}
	return counts, rows.Err()
}
