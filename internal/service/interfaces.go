// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/statement-flow/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	NeedsReview *bool
	LeafID      *int64
	UserID      string
	Limit       int
	Offset      int
}

// CommitRecord is everything persisted for one item during commit: the
// canonical transaction and the evidence link pointing back at the item.
// A primary link is only recorded when the item created the transaction.
type CommitRecord struct {
	Transaction model.Transaction
	Item        model.IngestionItem
	IsPrimary   bool
}

// CommitResult reports what happened to one committed item.
type CommitResult struct {
	TransactionID int64
	Created       bool
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Batch operations
	CreateBatch(ctx context.Context, batch *model.IngestionBatch) error
	GetBatch(ctx context.Context, userID, batchID string) (*model.IngestionBatch, error)
	ListBatches(ctx context.Context, userID string, limit int) ([]model.IngestionBatch, error)
	CompleteBatchParse(ctx context.Context, batch *model.IngestionBatch, items []model.IngestionItem) error
	TransitionBatch(ctx context.Context, batchID string, from, to model.BatchStatus, diag *model.Diagnostics) error
	MarkBatchCommitted(ctx context.Context, batch *model.IngestionBatch) error

	// Item operations
	ExistingFingerprints(ctx context.Context, userID string, source model.SourceFormat, fingerprints []string) (map[string]bool, error)
	ListItems(ctx context.Context, batchID string, status *model.ItemStatus) ([]model.IngestionItem, error)
	CountItems(ctx context.Context, batchID string) (map[model.ItemStatus]int, error)

	// Commit and rollback
	CommitItem(ctx context.Context, record CommitRecord) (CommitResult, error)
	RollbackBatch(ctx context.Context, batch *model.IngestionBatch) (int, error)

	// Transaction operations
	GetTransaction(ctx context.Context, userID string, id int64) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionCount(ctx context.Context, userID string) (int, error)
	UpdateTransactionClassification(ctx context.Context, txn *model.Transaction) error
	GetEvidenceLinks(ctx context.Context, transactionID int64) ([]model.TransactionEvidenceLink, error)

	// Rule operations
	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRules(ctx context.Context, userID string, activeOnly bool) ([]model.Rule, error)
	SetRuleActive(ctx context.Context, userID string, id int64, active bool) error

	// Taxonomy operations
	FindOrCreateLevel1(ctx context.Context, userID, name string) (int64, error)
	FindOrCreateLevel2(ctx context.Context, level1ID int64, name string) (int64, error)
	FindOrCreateLeaf(ctx context.Context, level2ID int64, name string) (int64, error)
	FindOrCreateAppCategory(ctx context.Context, userID, name string) (int64, error)
	LinkAppCategoryLeaf(ctx context.Context, appCategoryID, leafID int64) error
	GetLeafHierarchies(ctx context.Context, userID string) ([]model.LeafHierarchy, error)
	GetOpenLeafID(ctx context.Context, userID string) (int64, error)

	// Alias operations
	CreateAlias(ctx context.Context, alias *model.AliasAsset) error
	GetAliases(ctx context.Context, userID string) ([]model.AliasAsset, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
