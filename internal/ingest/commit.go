package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/statement-flow/internal/classify"
	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/model"
	"github.com/Veraticus/statement-flow/internal/service"
)

// DefaultCurrency is used for rows whose export carries no currency.
const DefaultCurrency = "EUR"

// CommitResult summarizes a commit run.
type CommitResult struct {
	BatchID     string
	Failed      []model.FailedItem
	Imported    int
	Created     int
	Linked      int
	NeedsReview int
	Conflicts   int
	Duration    time.Duration
}

// commitTally is shared by the commit workers.
type commitTally struct {
	failed      []model.FailedItem
	imported    int
	created     int
	linked      int
	needsReview int
	conflicts   int
	retries     int
	done        int
	mu          sync.Mutex
}

// CommitBatch classifies every pending item of a preview batch and persists
// it as a canonical transaction with an evidence link. Items are handled by
// a bounded pool of workers and each is written in its own SQL transaction,
// so a failing item is recorded in the batch diagnostics and stays pending
// while the rest of the batch commits.
func (s *Service) CommitBatch(ctx context.Context, userID, batchID string) (*CommitResult, error) {
	start := time.Now()

	batch, err := s.store.GetBatch(ctx, userID, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	switch {
	case batch.Status == model.BatchCommitted:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyImported, batch.ID)
	case !batch.Status.Committable():
		return nil, fmt.Errorf("%w: cannot commit batch in %s", ErrInvalidBatchState, batch.Status)
	}

	classifier, err := s.loadClassifier(ctx, userID)
	if err != nil {
		return nil, err
	}

	pending := model.ItemPending
	items, err := s.store.ListItems(ctx, batch.ID, &pending)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	slog.Info("Committing batch",
		"batch_id", batch.ID,
		"items", len(items),
		"workers", s.opts.Workers,
		"rules_version", classifier.RulesVersion())

	tally := &commitTally{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return s.commitItem(gctx, classifier, batch, item, tally, len(items))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("commit of batch %s aborted: %w", batch.ID, err)
	}

	sort.Slice(tally.failed, func(i, j int) bool {
		return tally.failed[i].RowIndex < tally.failed[j].RowIndex
	})

	batch.RulesVersion = classifier.RulesVersion()
	batch.TaxonomyVersion = classifier.TaxonomyVersion()
	batch.Diagnostics.Imported = tally.imported
	batch.Diagnostics.NeedsReview = tally.needsReview
	batch.Diagnostics.Conflicts = tally.conflicts
	batch.Diagnostics.FailedItems = tally.failed
	batch.Diagnostics.CommitRetries = tally.retries
	batch.Diagnostics.RolledBack = 0

	if err := s.store.MarkBatchCommitted(ctx, batch); err != nil {
		// A concurrent commit of the same batch got there first.
		if current, getErr := s.store.GetBatch(ctx, userID, batch.ID); getErr == nil && current.Status == model.BatchCommitted {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyImported, batch.ID)
		}
		return nil, fmt.Errorf("failed to mark batch committed: %w", err)
	}

	result := &CommitResult{
		BatchID:     batch.ID,
		Imported:    tally.imported,
		Created:     tally.created,
		Linked:      tally.linked,
		NeedsReview: tally.needsReview,
		Conflicts:   tally.conflicts,
		Failed:      tally.failed,
		Duration:    time.Since(start),
	}

	slog.Info("Batch committed",
		"batch_id", batch.ID,
		"imported", result.Imported,
		"created", result.Created,
		"linked", result.Linked,
		"needs_review", result.NeedsReview,
		"failed", len(result.Failed),
		"duration", result.Duration)

	return result, nil
}

// commitItem classifies and persists one item. Only a classification error
// aborts the batch; persistence failures are recorded against the item.
func (s *Service) commitItem(ctx context.Context, classifier *classify.Classifier, batch *model.IngestionBatch, item model.IngestionItem, tally *commitTally, total int) error {
	txn := transactionFromItem(batch, item)

	outcome, err := classifier.Classify(item.Parsed.Description)
	if err != nil {
		return fmt.Errorf("failed to classify row %d: %w", item.RowIndex, err)
	}
	classifier.Apply(&txn, outcome)

	var res service.CommitResult
	attempts := 0
	err = common.WithRetry(ctx, func() error {
		attempts++
		var commitErr error
		res, commitErr = s.store.CommitItem(ctx, service.CommitRecord{
			Transaction: txn,
			Item:        item,
			IsPrimary:   true,
		})
		return commitErr
	}, s.opts.Retry)

	tally.mu.Lock()
	defer tally.mu.Unlock()

	tally.retries += attempts - 1
	tally.done++
	s.progress(tally.done, total)

	if err != nil {
		common.LogError(err, "Failed to commit item", common.Fields{
			"batch_id":  batch.ID,
			"item_id":   item.ID,
			"row_index": item.RowIndex,
		})
		tally.failed = append(tally.failed, model.FailedItem{
			ItemID:   item.ID,
			RowIndex: item.RowIndex,
			Error:    err.Error(),
		})
		return nil
	}

	tally.imported++
	if res.Created {
		tally.created++
	} else {
		tally.linked++
	}
	if txn.NeedsReview {
		tally.needsReview++
	}
	if txn.ConflictFlag {
		tally.conflicts++
	}
	return nil
}

// transactionFromItem builds the unclassified transaction for an item. The
// source key identifies the transaction when the export provides one;
// otherwise the row fingerprint does.
func transactionFromItem(batch *model.IngestionBatch, item model.IngestionItem) model.Transaction {
	row := item.Parsed

	key := row.Key
	if key == "" {
		key = item.Fingerprint
	}
	currency := row.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	descRaw := row.RawDescription
	if descRaw == "" {
		descRaw = row.Description
	}

	return model.Transaction{
		UserID:        batch.UserID,
		Key:           key,
		PaymentDate:   row.Date,
		BookingDate:   row.BookingDate,
		Amount:        row.Amount.Decimal,
		Currency:      currency,
		DescRaw:       descRaw,
		ParserVersion: batch.ParserVersion,
		SourceFormat:  item.SourceFormat,
	}
}
