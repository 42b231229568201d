package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/model"
)

const batchColumns = `id, user_id, filename, source_format, status, file_hash, file_size,
	parser_version, normalization_version, rules_version, taxonomy_version,
	diagnostics, created_at, updated_at, committed_at`

// CreateBatch inserts a new batch in the processing state and assigns its ID.
func (s *SQLiteStorage) CreateBatch(ctx context.Context, batch *model.IngestionBatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBatch(batch); err != nil {
		return err
	}

	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.Status == "" {
		batch.Status = model.BatchProcessing
	}
	if batch.SourceFormat == "" {
		batch.SourceFormat = model.FormatUnknown
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now

	diag, err := batch.Diagnostics.MarshalText()
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ingestion_batches (
			id, user_id, filename, source_format, status, file_hash, file_size,
			parser_version, normalization_version, diagnostics, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.UserID, batch.Filename, string(batch.SourceFormat), string(batch.Status),
		batch.FileHash, batch.FileSize, batch.ParserVersion, batch.NormalizationVersion,
		string(diag), now, now,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to create batch: %w", err))
	}
	return nil
}

// GetBatch returns a batch owned by userID.
func (s *SQLiteStorage) GetBatch(ctx context.Context, userID, batchID string) (*model.IngestionBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM ingestion_batches WHERE id = ? AND user_id = ?`,
		batchID, userID)

	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", batchID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns the user's batches, newest first.
func (s *SQLiteStorage) ListBatches(ctx context.Context, userID string, limit int) ([]model.IngestionBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM ingestion_batches
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []model.IngestionBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *batch)
	}
	return batches, rows.Err()
}

// CompleteBatchParse persists the parsed items and moves the batch from
// processing to preview in a single transaction. Item IDs are filled in.
func (s *SQLiteStorage) CompleteBatchParse(ctx context.Context, batch *model.IngestionBatch, items []model.IngestionItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBatch(batch); err != nil {
		return err
	}
	for i := range items {
		if err := validateItem(&items[i]); err != nil {
			return err
		}
	}

	diag, err := batch.Diagnostics.MarshalText()
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertItemsTx(ctx, tx, batch.ID, items); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE ingestion_batches
			SET status = ?, source_format = ?, diagnostics = ?,
				parser_version = ?, normalization_version = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(model.BatchPreview), string(batch.SourceFormat), string(diag),
			batch.ParserVersion, batch.NormalizationVersion, time.Now().UTC(),
			batch.ID, string(model.BatchProcessing))
		if err != nil {
			return fmt.Errorf("failed to update batch: %w", err)
		}
		return expectOneRow(res, batch.ID)
	})
	if err != nil {
		return err
	}

	batch.Status = model.BatchPreview
	slog.Debug("Batch parsed", "batch_id", batch.ID, "items", len(items))
	return nil
}

// TransitionBatch moves a batch from one status to another. The update only
// applies while the batch is still in the expected status, so the status
// column works as an advisory lock between concurrent callers. A nil diag
// keeps the stored diagnostics.
func (s *SQLiteStorage) TransitionBatch(ctx context.Context, batchID string, from, to model.BatchStatus, diag *model.Diagnostics) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return err
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	var diagText sql.NullString
	if diag != nil {
		b, err := diag.MarshalText()
		if err != nil {
			return fmt.Errorf("failed to encode diagnostics: %w", err)
		}
		diagText = sql.NullString{String: string(b), Valid: true}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE ingestion_batches
			SET status = ?, diagnostics = COALESCE(?, diagnostics), updated_at = ?
			WHERE id = ? AND status = ?`,
			string(to), diagText, time.Now().UTC(), batchID, string(from))
		if err != nil {
			return fmt.Errorf("failed to transition batch: %w", err)
		}
		return expectOneRowTx(ctx, tx, res, batchID)
	})
}

// MarkBatchCommitted stamps the batch with the rule and taxonomy versions in
// effect and moves it to committed. The batch's current Status is the
// expected prior state.
func (s *SQLiteStorage) MarkBatchCommitted(ctx context.Context, batch *model.IngestionBatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBatch(batch); err != nil {
		return err
	}
	if !batch.Status.CanTransition(model.BatchCommitted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, batch.Status, model.BatchCommitted)
	}

	diag, err := batch.Diagnostics.MarshalText()
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}
	now := time.Now().UTC()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE ingestion_batches
			SET status = ?, rules_version = ?, taxonomy_version = ?, diagnostics = ?,
				committed_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(model.BatchCommitted), batch.RulesVersion, batch.TaxonomyVersion, string(diag),
			now, now, batch.ID, string(batch.Status))
		if err != nil {
			return fmt.Errorf("failed to mark batch committed: %w", err)
		}
		return expectOneRowTx(ctx, tx, res, batch.ID)
	})
	if err != nil {
		return err
	}

	batch.Status = model.BatchCommitted
	batch.CommittedAt = &now
	return nil
}

func expectOneRow(res sql.Result, batchID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("batch %s: %w", batchID, ErrBatchStateChanged)
	}
	return nil
}

// expectOneRowTx distinguishes a missing batch from one whose status moved.
func expectOneRowTx(ctx context.Context, q queryable, res sql.Result, batchID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM ingestion_batches WHERE id = ?`, batchID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("batch %s: %w", batchID, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check batch: %w", err)
	}
	return fmt.Errorf("batch %s: %w", batchID, ErrBatchStateChanged)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*model.IngestionBatch, error) {
	var (
		batch       model.IngestionBatch
		format      string
		status      string
		diag        string
		committedAt sql.NullTime
	)
	err := row.Scan(
		&batch.ID, &batch.UserID, &batch.Filename, &format, &status,
		&batch.FileHash, &batch.FileSize, &batch.ParserVersion, &batch.NormalizationVersion,
		&batch.RulesVersion, &batch.TaxonomyVersion, &diag,
		&batch.CreatedAt, &batch.UpdatedAt, &committedAt,
	)
	if err != nil {
		return nil, err
	}

	batch.SourceFormat = model.SourceFormat(format)
	batch.Status = model.BatchStatus(status)
	batch.CommittedAt = timePtrFromNull(committedAt)
	if err := batch.Diagnostics.UnmarshalText([]byte(diag)); err != nil {
		return nil, fmt.Errorf("failed to decode diagnostics: %w", err)
	}
	return &batch, nil
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
