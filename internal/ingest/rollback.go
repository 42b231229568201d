package ingest

import (
	"context"
	"fmt"

	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/model"
)

// RollbackBatch undoes a commit: transactions created from the batch and
// their evidence links are removed, imported items return to pending, and
// the batch goes back to preview so it can be committed again. It returns
// the number of items reset. A transaction still backed by an item of
// another batch survives with that batch's evidence link.
func (s *Service) RollbackBatch(ctx context.Context, userID, batchID string) (int, error) {
	batch, err := s.store.GetBatch(ctx, userID, batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to load batch: %w", err)
	}
	if batch.Status != model.BatchCommitted {
		return 0, fmt.Errorf("%w: cannot roll back batch in %s", ErrInvalidBatchState, batch.Status)
	}

	reset, err := s.store.RollbackBatch(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to roll back batch %s: %w", batch.ID, err)
	}

	common.LogInfo("Batch rolled back", common.Fields{
		"batch_id":    batch.ID,
		"user_id":     userID,
		"items_reset": reset,
	})
	return reset, nil
}
