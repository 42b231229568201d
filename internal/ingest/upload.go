package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/dedup"
	"github.com/Veraticus/statement-flow/internal/fingerprint"
	"github.com/Veraticus/statement-flow/internal/model"
	"github.com/Veraticus/statement-flow/internal/normalize"
)

// Upload error codes.
const (
	CodeEmptyFile   = "EMPTY_FILE"
	CodeParseFailed = "PARSE_FAILED"
	CodeNoRows      = "NO_ROWS"

	// CodeStagingFailed marks a parsed file whose rows could not be stored.
	CodeStagingFailed = "STAGING_FAILED"
)

// UploadError reports a file that could not become a preview batch. The
// batch itself is kept in the error state with its diagnostics.
type UploadError struct {
	Err     error
	Code    string
	BatchID string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload rejected (%s): %v", e.Code, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// UploadResult summarizes a batch that reached preview.
type UploadResult struct {
	BatchID     string
	Format      model.SourceFormat
	Diagnostics model.Diagnostics
	NewItems    int
	Duplicates  int
}

// UploadBatch normalizes a statement file and stages its rows as a preview
// batch. Rows whose fingerprint was already seen for the same user and
// source, in an earlier batch or earlier in this file, are kept as
// duplicates.
func (s *Service) UploadBatch(ctx context.Context, userID string, data []byte, filename string) (*UploadResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}

	batch := &model.IngestionBatch{
		UserID:               userID,
		Filename:             filename,
		FileHash:             fingerprint.File(data),
		FileSize:             int64(len(data)),
		ParserVersion:        s.opts.ParserVersion,
		NormalizationVersion: normalize.Version,
		Status:               model.BatchProcessing,
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	res := s.opts.Registry.Normalize(filename, data)
	if !res.Success {
		return nil, s.failBatch(ctx, batch, res)
	}

	items, err := s.stageItems(ctx, userID, res)
	if err != nil {
		return nil, s.abandonBatch(ctx, batch, res, err)
	}

	unique := 0
	for _, item := range items {
		if item.Status == model.ItemPending {
			unique++
		}
	}

	batch.SourceFormat = res.Format
	batch.Diagnostics = res.Diagnostics
	batch.Diagnostics.RowsTotal = len(items)
	batch.Diagnostics.NewItems = unique
	batch.Diagnostics.Duplicates = len(items) - unique

	if err := s.store.CompleteBatchParse(ctx, batch, items); err != nil {
		return nil, s.abandonBatch(ctx, batch, res, fmt.Errorf("failed to stage batch items: %w", err))
	}

	slog.Info("Batch uploaded",
		"batch_id", batch.ID,
		"filename", filename,
		"format", res.Format,
		"new_items", unique,
		"duplicates", batch.Diagnostics.Duplicates)

	return &UploadResult{
		BatchID:     batch.ID,
		Format:      res.Format,
		NewItems:    unique,
		Duplicates:  batch.Diagnostics.Duplicates,
		Diagnostics: batch.Diagnostics,
	}, nil
}

// stageItems fingerprints every row and folds them against the fingerprints
// already persisted for this user and source.
func (s *Service) stageItems(ctx context.Context, userID string, res normalize.Result) ([]model.IngestionItem, error) {
	fps := make([]string, len(res.Rows))
	for i, row := range res.Rows {
		fps[i] = fingerprint.Row(row)
	}

	existing, err := s.store.ExistingFingerprints(ctx, userID, res.Format, fps)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing fingerprints: %w", err)
	}
	decisions := dedup.Fold(dedup.NewSeenSet(existing), fps)
	common.LogDebug("Fingerprints folded", common.Fields{
		"rows":     len(fps),
		"existing": len(existing),
		"format":   res.Format,
	})

	items := make([]model.IngestionItem, len(res.Rows))
	for i, row := range res.Rows {
		rowHash, err := fingerprint.RowHash(row.Raw)
		if err != nil {
			return nil, fmt.Errorf("failed to hash row %d: %w", row.Index, err)
		}
		status := model.ItemPending
		if !decisions[i].Unique {
			status = model.ItemDuplicate
		}
		items[i] = model.IngestionItem{
			Parsed:       row,
			RawPayload:   row.Raw,
			Fingerprint:  decisions[i].Fingerprint,
			RowHash:      rowHash,
			SourceFormat: res.Format,
			Status:       status,
			RowIndex:     row.Index,
		}
	}
	return items, nil
}

// failBatch moves the batch to error with the normalizer's diagnostics.
func (s *Service) failBatch(ctx context.Context, batch *model.IngestionBatch, res normalize.Result) error {
	code := CodeParseFailed
	switch {
	case errors.Is(res.Err, normalize.ErrEmptyFile):
		code = CodeEmptyFile
	case errors.Is(res.Err, normalize.ErrNoRows):
		code = CodeNoRows
	}

	diag := res.Diagnostics
	if diag.Extra == nil {
		diag.Extra = make(map[string]any)
	}
	diag.Extra["error_code"] = code

	if err := s.store.TransitionBatch(ctx, batch.ID, model.BatchProcessing, model.BatchError, &diag); err != nil {
		return fmt.Errorf("failed to record failed upload: %w", err)
	}

	slog.Warn("Upload rejected",
		"batch_id", batch.ID,
		"filename", batch.Filename,
		"code", code,
		"messages", diag.Messages)

	uploadErr := res.Err
	if uploadErr == nil {
		uploadErr = errors.New(strings.Join(diag.Messages, "; "))
	}
	return &UploadError{Code: code, BatchID: batch.ID, Err: uploadErr}
}

// abandonBatch moves a batch that parsed but could not be staged to error,
// keeping the cause in its diagnostics. It returns cause, joined with any
// failure to record it.
func (s *Service) abandonBatch(ctx context.Context, batch *model.IngestionBatch, res normalize.Result, cause error) error {
	diag := res.Diagnostics
	diag.Messages = append(diag.Messages, cause.Error())
	if diag.Extra == nil {
		diag.Extra = make(map[string]any)
	}
	diag.Extra["error_code"] = CodeStagingFailed

	// The transition must land even when ctx is what failed staging.
	if err := s.store.TransitionBatch(context.WithoutCancel(ctx), batch.ID, model.BatchProcessing, model.BatchError, &diag); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to record failed upload: %w", err))
	}

	common.LogError(cause, "Batch staging failed", common.Fields{
		"batch_id": batch.ID,
		"filename": batch.Filename,
	})
	return cause
}
