// Package storage provides the SQLite persistence layer for batches, items,
// canonical transactions, rules, taxonomy and aliases.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/statement-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidTransition  = errors.New("invalid batch status transition")
	ErrBatchStateChanged  = errors.New("batch status changed concurrently")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidItem        = errors.New("invalid ingestion item")
	ErrInvalidRule        = errors.New("invalid rule")
	ErrInvalidAlias       = errors.New("invalid alias")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateBatch(batch *model.IngestionBatch) error {
	if batch == nil {
		return fmt.Errorf("%w: batch", ErrNilParameter)
	}
	if err := validateString(batch.UserID, "userID"); err != nil {
		return err
	}
	if batch.Status != "" && !batch.Status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, batch.Status)
	}
	return nil
}

func validateItem(item *model.IngestionItem) error {
	if item.RowIndex < 0 {
		return fmt.Errorf("%w: negative row index", ErrInvalidItem)
	}
	if item.Fingerprint == "" {
		return fmt.Errorf("%w: missing fingerprint for row %d", ErrInvalidItem, item.RowIndex)
	}
	switch item.Status {
	case model.ItemPending, model.ItemDuplicate, model.ItemImported:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, item.Status)
	}
	return nil
}

// validateTransaction checks the fields every canonical transaction must
// carry. The top-level category is checked against its kind so that free
// text is never persisted as a known category.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if strings.TrimSpace(txn.UserID) == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.Key) == "" {
		return fmt.Errorf("%w: missing key", ErrInvalidTransaction)
	}
	if txn.PaymentDate.IsZero() {
		return fmt.Errorf("%w: missing payment date", ErrInvalidTransaction)
	}
	if txn.Confidence < 0 || txn.Confidence > 100 {
		return fmt.Errorf("%w: confidence %d out of range", ErrInvalidTransaction, txn.Confidence)
	}

	switch txn.Category1.Kind {
	case model.CategoryKnown:
		if parsed := model.ParseCategory1(string(txn.Category1.Name)); parsed.Kind != model.CategoryKnown {
			return fmt.Errorf("%w: %q is not a known category", ErrInvalidTransaction, txn.Category1.Name)
		}
	case model.CategoryLegacy:
		if strings.TrimSpace(string(txn.Category1.Name)) == "" {
			return fmt.Errorf("%w: empty legacy category", ErrInvalidTransaction)
		}
	case model.CategoryUnset, "":
		if txn.Category1.Name != "" {
			return fmt.Errorf("%w: unset category carries a name", ErrInvalidTransaction)
		}
	default:
		return fmt.Errorf("%w: category kind %q", ErrInvalidTransaction, txn.Category1.Kind)
	}
	return nil
}

func validateRule(rule *model.Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if strings.TrimSpace(rule.UserID) == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.KeyWords) == "" {
		return fmt.Errorf("%w: missing key words", ErrInvalidRule)
	}
	if rule.LeafID == nil && strings.TrimSpace(rule.Category1) == "" {
		return fmt.Errorf("%w: rule needs a leaf or a category", ErrInvalidRule)
	}
	switch rule.Origin {
	case model.RuleSystem, model.RuleUser:
	default:
		return fmt.Errorf("%w: origin %q", ErrInvalidRule, rule.Origin)
	}
	return nil
}

func validateAlias(alias *model.AliasAsset) error {
	if alias == nil {
		return fmt.Errorf("%w: alias", ErrNilParameter)
	}
	if strings.TrimSpace(alias.UserID) == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidAlias)
	}
	if strings.TrimSpace(alias.Alias) == "" {
		return fmt.Errorf("%w: missing label", ErrInvalidAlias)
	}
	if strings.TrimSpace(alias.KeyWords) == "" {
		return fmt.Errorf("%w: missing key words", ErrInvalidAlias)
	}
	return nil
}
