package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/model"
	"github.com/Veraticus/statement-flow/internal/service"
)

const transactionColumns = `id, user_id, key, payment_date, booking_date, amount, currency,
	desc_raw, desc_norm, alias_desc, category1, category1_kind, category2, category3,
	leaf_id, app_category_id, app_category_name, confidence, needs_review, conflict_flag,
	candidates, classified_by, resolution_status, rule_id, matched_keyword,
	internal_transfer, exclude_from_budget, display, manual_override,
	rules_version, taxonomy_version, parser_version, source_format, created_at`

// CommitItem persists one committed item in its own transaction: the
// canonical transaction (ignored if the user already has one with the same
// key), the evidence link, and the item's move to imported. Replaying a
// commit for the same item changes nothing.
func (s *SQLiteStorage) CommitItem(ctx context.Context, record service.CommitRecord) (service.CommitResult, error) {
	if err := validateContext(ctx); err != nil {
		return service.CommitResult{}, err
	}
	txn := &record.Transaction
	if err := validateTransaction(txn); err != nil {
		return service.CommitResult{}, err
	}
	if record.Item.ID == 0 {
		return service.CommitResult{}, fmt.Errorf("%w: item has no id", ErrInvalidItem)
	}

	candidates, err := marshalJSON(nonNilMatches(txn.Candidates))
	if err != nil {
		return service.CommitResult{}, fmt.Errorf("failed to encode candidates: %w", err)
	}

	var result service.CommitResult
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				user_id, key, payment_date, booking_date, amount, currency,
				desc_raw, desc_norm, alias_desc, category1, category1_kind, category2, category3,
				leaf_id, app_category_id, app_category_name, confidence, needs_review, conflict_flag,
				candidates, classified_by, resolution_status, rule_id, matched_keyword,
				internal_transfer, exclude_from_budget, display, manual_override,
				rules_version, taxonomy_version, parser_version, source_format, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.UserID, txn.Key, txn.PaymentDate, txn.BookingDate, txn.Amount.String(), txn.Currency,
			txn.DescRaw, txn.DescNorm, txn.AliasDesc, string(txn.Category1.Name), categoryKind(txn.Category1),
			txn.Category2, txn.Category3,
			nullInt64(txn.LeafID), nullInt64(txn.AppCategoryID), txn.AppCategoryName,
			txn.Confidence, txn.NeedsReview, txn.ConflictFlag,
			candidates, string(txn.ClassifiedBy), string(txn.ResolutionStatus), nullInt64(txn.RuleID), txn.MatchedKeyword,
			txn.InternalTransfer, txn.ExcludeFromBudget, txn.Display, txn.ManualOverride,
			txn.RulesVersion, txn.TaxonomyVersion, txn.ParserVersion, string(txn.SourceFormat), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 1 {
			if result.TransactionID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("failed to read transaction id: %w", err)
			}
			result.Created = true
		} else {
			err = tx.QueryRowContext(ctx,
				`SELECT id FROM transactions WHERE user_id = ? AND key = ?`,
				txn.UserID, txn.Key).Scan(&result.TransactionID)
			if err != nil {
				return fmt.Errorf("failed to look up existing transaction: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO transaction_evidence_links (
				transaction_id, ingestion_item_id, is_primary, match_confidence, created_at
			) VALUES (?, ?, ?, ?, ?)`,
			result.TransactionID, record.Item.ID, record.IsPrimary && result.Created, 100, now); err != nil {
			return fmt.Errorf("failed to link evidence: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE ingestion_items SET status = ? WHERE id = ? AND status = ?`,
			string(model.ItemImported), record.Item.ID, string(model.ItemPending)); err != nil {
			return fmt.Errorf("failed to mark item imported: %w", err)
		}
		return nil
	})
	if err != nil {
		return service.CommitResult{}, err
	}

	txn.ID = result.TransactionID
	return result, nil
}

// RollbackBatch undoes a commit in one transaction. Evidence links from the
// batch's items are removed, transactions left without any evidence are
// deleted, imported items return to pending, and the batch goes back to
// preview with its commit stamps cleared. It returns the number of items
// reset.
func (s *SQLiteStorage) RollbackBatch(ctx context.Context, batch *model.IngestionBatch) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateBatch(batch); err != nil {
		return 0, err
	}

	var reset int
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT DISTINCT l.transaction_id
			FROM transaction_evidence_links l
			JOIN ingestion_items i ON i.id = l.ingestion_item_id
			WHERE i.batch_id = ?`, batch.ID)
		if err != nil {
			return fmt.Errorf("failed to find linked transactions: %w", err)
		}
		var txnIDs []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan transaction id: %w", err)
			}
			txnIDs = append(txnIDs, id)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		_ = rows.Close()

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM transaction_evidence_links
			WHERE ingestion_item_id IN (SELECT id FROM ingestion_items WHERE batch_id = ?)`,
			batch.ID); err != nil {
			return fmt.Errorf("failed to delete evidence links: %w", err)
		}

		for _, id := range txnIDs {
			res, err := tx.ExecContext(ctx, `
				DELETE FROM transactions
				WHERE id = ? AND NOT EXISTS (
					SELECT 1 FROM transaction_evidence_links WHERE transaction_id = ?
				)`, id, id)
			if err != nil {
				return fmt.Errorf("failed to delete transaction %d: %w", id, err)
			}
			n, _ := res.RowsAffected()
			removed += n
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE ingestion_items SET status = ? WHERE batch_id = ? AND status = ?`,
			string(model.ItemPending), batch.ID, string(model.ItemImported))
		if err != nil {
			return fmt.Errorf("failed to reset items: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		reset = int(n)

		diag := batch.Diagnostics
		diag.RolledBack = reset
		diag.Imported = 0
		diagText, err := diag.MarshalText()
		if err != nil {
			return fmt.Errorf("failed to encode diagnostics: %w", err)
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE ingestion_batches
			SET status = ?, rules_version = '', taxonomy_version = '', committed_at = NULL,
				diagnostics = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(model.BatchPreview), string(diagText), time.Now().UTC(),
			batch.ID, string(model.BatchCommitted))
		if err != nil {
			return fmt.Errorf("failed to reset batch: %w", err)
		}
		if err := expectOneRowTx(ctx, tx, res, batch.ID); err != nil {
			return err
		}
		batch.Diagnostics = diag
		return nil
	})
	if err != nil {
		return 0, err
	}

	batch.Status = model.BatchPreview
	batch.RulesVersion = ""
	batch.TaxonomyVersion = ""
	batch.CommittedAt = nil

	slog.Info("Batch rolled back",
		"batch_id", batch.ID,
		"items_reset", reset,
		"transactions_removed", removed)
	return reset, nil
}

// GetTransaction retrieves a single transaction owned by userID.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, userID string, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactions retrieves transactions matching the filter, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filter.UserID, "userID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{filter.UserID}

	if filter.NeedsReview != nil {
		query += ` AND needs_review = ?`
		args = append(args, *filter.NeedsReview)
	}
	if filter.LeafID != nil {
		query += ` AND leaf_id = ?`
		args = append(args, *filter.LeafID)
	}

	query += ` ORDER BY payment_date DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// GetTransactionCount returns the number of transactions the user owns.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// UpdateTransactionClassification rewrites the classification and provenance
// fields of an existing transaction.
func (s *SQLiteStorage) UpdateTransactionClassification(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	candidates, err := marshalJSON(nonNilMatches(txn.Candidates))
	if err != nil {
		return fmt.Errorf("failed to encode candidates: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET
			desc_norm = ?, alias_desc = ?, category1 = ?, category1_kind = ?, category2 = ?, category3 = ?,
			leaf_id = ?, app_category_id = ?, app_category_name = ?, confidence = ?,
			needs_review = ?, conflict_flag = ?, candidates = ?, classified_by = ?,
			resolution_status = ?, rule_id = ?, matched_keyword = ?,
			internal_transfer = ?, exclude_from_budget = ?, display = ?, manual_override = ?,
			rules_version = ?, taxonomy_version = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		txn.DescNorm, txn.AliasDesc, string(txn.Category1.Name), categoryKind(txn.Category1),
		txn.Category2, txn.Category3,
		nullInt64(txn.LeafID), nullInt64(txn.AppCategoryID), txn.AppCategoryName, txn.Confidence,
		txn.NeedsReview, txn.ConflictFlag, candidates, string(txn.ClassifiedBy),
		string(txn.ResolutionStatus), nullInt64(txn.RuleID), txn.MatchedKeyword,
		txn.InternalTransfer, txn.ExcludeFromBudget, txn.Display, txn.ManualOverride,
		txn.RulesVersion, txn.TaxonomyVersion, time.Now().UTC(),
		txn.ID, txn.UserID,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to update transaction %d: %w", txn.ID, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", txn.ID, common.ErrNotFound)
	}
	return nil
}

// GetEvidenceLinks returns the items backing a transaction, primary first.
func (s *SQLiteStorage) GetEvidenceLinks(ctx context.Context, transactionID int64) ([]model.TransactionEvidenceLink, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, ingestion_item_id, is_primary, match_confidence, created_at
		FROM transaction_evidence_links
		WHERE transaction_id = ?
		ORDER BY is_primary DESC, ingestion_item_id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []model.TransactionEvidenceLink
	for rows.Next() {
		var link model.TransactionEvidenceLink
		if err := rows.Scan(&link.TransactionID, &link.IngestionItemID, &link.IsPrimary,
			&link.MatchConfidence, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evidence link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn           model.Transaction
		bookingDate   sql.NullTime
		amount        string
		category1     string
		category1Kind string
		leafID        sql.NullInt64
		appCategoryID sql.NullInt64
		ruleID        sql.NullInt64
		candidates    string
		classifiedBy  string
		resolution    string
		sourceFormat  string
	)
	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.Key, &txn.PaymentDate, &bookingDate, &amount, &txn.Currency,
		&txn.DescRaw, &txn.DescNorm, &txn.AliasDesc, &category1, &category1Kind, &txn.Category2, &txn.Category3,
		&leafID, &appCategoryID, &txn.AppCategoryName, &txn.Confidence, &txn.NeedsReview, &txn.ConflictFlag,
		&candidates, &classifiedBy, &resolution, &ruleID, &txn.MatchedKeyword,
		&txn.InternalTransfer, &txn.ExcludeFromBudget, &txn.Display, &txn.ManualOverride,
		&txn.RulesVersion, &txn.TaxonomyVersion, &txn.ParserVersion, &sourceFormat, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := txn.Amount.Scan(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	txn.BookingDate = timePtrFromNull(bookingDate)
	txn.LeafID = int64PtrFromNull(leafID)
	txn.AppCategoryID = int64PtrFromNull(appCategoryID)
	txn.RuleID = int64PtrFromNull(ruleID)
	txn.Category1 = model.CategoryValue{Name: model.Category1(category1), Kind: model.CategoryKind(category1Kind)}
	txn.ClassifiedBy = model.ClassifiedBy(classifiedBy)
	txn.ResolutionStatus = model.ResolutionStatus(resolution)
	txn.SourceFormat = model.SourceFormat(sourceFormat)

	if candidates != "" {
		if err := json.Unmarshal([]byte(candidates), &txn.Candidates); err != nil {
			return nil, fmt.Errorf("failed to decode candidates: %w", err)
		}
		if len(txn.Candidates) == 0 {
			txn.Candidates = nil
		}
	}
	return &txn, nil
}

func categoryKind(c model.CategoryValue) string {
	if c.Kind == "" {
		return string(model.CategoryUnset)
	}
	return string(c.Kind)
}

func nonNilMatches(m []model.RuleMatch) []model.RuleMatch {
	if m == nil {
		return []model.RuleMatch{}
	}
	return m
}
