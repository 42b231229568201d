// Package ingest drives statement batches through their lifecycle: upload
// and dedup, commit into canonical transactions, rollback, and
// re-categorization of existing transactions.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/statement-flow/internal/classify"
	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/normalize"
	"github.com/Veraticus/statement-flow/internal/rules"
	"github.com/Veraticus/statement-flow/internal/service"
	"github.com/Veraticus/statement-flow/internal/taxonomy"
)

// Batch state errors. They are returned before anything is written.
var (
	ErrAlreadyImported   = errors.New("batch already imported")
	ErrInvalidBatchState = errors.New("invalid batch state")
	ErrMissingUser       = errors.New("user id is required")
)

// DefaultParserVersion is stamped on batches when no version is configured.
const DefaultParserVersion = "flow-parser-v1"

// ProgressFunc is called after each item or transaction is processed.
type ProgressFunc func(done, total int)

// Options configures a Service.
type Options struct {
	Registry      *normalize.Registry
	Progress      ProgressFunc
	ParserVersion string
	Settings      *rules.Settings
	Retry         service.RetryOptions
	Workers       int
}

// Service runs the ingestion pipeline against a storage backend.
type Service struct {
	store service.Storage
	opts  Options
}

// New creates an ingestion service. Zero options fall back to the default
// registry, four workers and the default rule settings.
func New(store service.Storage, opts Options) *Service {
	if opts.Registry == nil {
		opts.Registry = normalize.DefaultRegistry()
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.ParserVersion == "" {
		opts.ParserVersion = DefaultParserVersion
	}
	if opts.Settings == nil {
		defaults := rules.DefaultSettings()
		opts.Settings = &defaults
	}
	return &Service{store: store, opts: opts}
}

// loadClassifier snapshots the user's active rules, taxonomy and aliases.
// A missing OPEN leaf is fatal for the whole pass.
func (s *Service) loadClassifier(ctx context.Context, userID string) (*classify.Classifier, error) {
	ruleSet, err := s.store.GetRules(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	leaves, err := s.store.GetLeafHierarchies(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}
	aliases, err := s.store.GetAliases(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}
	openLeafID, err := s.store.GetOpenLeafID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: run bootstrap for user %s", taxonomy.ErrOpenLeafMissing, userID)
		}
		return nil, fmt.Errorf("failed to load OPEN leaf: %w", err)
	}

	return classify.New(classify.Snapshot{
		Rules:      ruleSet,
		Leaves:     leaves,
		Aliases:    aliases,
		Settings:   *s.opts.Settings,
		OpenLeafID: openLeafID,
	})
}

func (s *Service) progress(done, total int) {
	if s.opts.Progress != nil {
		s.opts.Progress(done, total)
	}
}
