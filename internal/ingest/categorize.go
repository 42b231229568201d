package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/service"
)

const categorizePageSize = 500

// CategorizationResult summarizes a re-categorization pass.
type CategorizationResult struct {
	Total       int
	Categorized int
	NeedsReview int
	Manual      int
}

// ApplyCategorization re-classifies every transaction of the user against
// the current rules and taxonomy, using the same classifier as commit.
// Manually categorized transactions are counted but left alone.
func (s *Service) ApplyCategorization(ctx context.Context, userID string) (*CategorizationResult, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	classifier, err := s.loadClassifier(ctx, userID)
	if err != nil {
		return nil, err
	}

	total, err := s.store.GetTransactionCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	result := &CategorizationResult{}
	for offset := 0; ; offset += categorizePageSize {
		page, err := s.store.GetTransactions(ctx, service.TransactionFilter{
			UserID: userID,
			Limit:  categorizePageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load transactions: %w", err)
		}

		for i := range page {
			txn := &page[i]
			result.Total++
			s.progress(result.Total, total)

			if txn.ManualOverride {
				result.Manual++
				continue
			}

			// DescNorm is the normalized commit-time description, so matching
			// it again yields the same result as the original commit.
			description := txn.DescNorm
			if description == "" {
				description = txn.DescRaw
			}
			outcome, err := classifier.Classify(description)
			if err != nil {
				return nil, fmt.Errorf("failed to classify transaction %d: %w", txn.ID, err)
			}
			classifier.Apply(txn, outcome)

			err = common.WithRetry(ctx, func() error {
				return s.store.UpdateTransactionClassification(ctx, txn)
			}, s.opts.Retry)
			if err != nil {
				return nil, fmt.Errorf("failed to update transaction %d: %w", txn.ID, err)
			}

			if txn.NeedsReview {
				result.NeedsReview++
			} else {
				result.Categorized++
			}
		}

		if len(page) < categorizePageSize {
			break
		}
	}

	slog.Info("Re-categorization complete",
		"user_id", userID,
		"total", result.Total,
		"categorized", result.Categorized,
		"needs_review", result.NeedsReview,
		"manual", result.Manual)

	return result, nil
}
