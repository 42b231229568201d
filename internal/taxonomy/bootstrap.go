package taxonomy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/statement-flow/internal/model"
)

// Store is the persistence the taxonomy setup routines need. Every method is
// find-or-create so callers may run them repeatedly.
type Store interface {
	FindOrCreateLevel1(ctx context.Context, userID, name string) (int64, error)
	FindOrCreateLevel2(ctx context.Context, level1ID int64, name string) (int64, error)
	FindOrCreateLeaf(ctx context.Context, level2ID int64, name string) (int64, error)
	FindOrCreateAppCategory(ctx context.Context, userID, name string) (int64, error)
	LinkAppCategoryLeaf(ctx context.Context, appCategoryID, leafID int64) error
}

// Bootstrap guarantees the OPEN chain for a user: level-1, level-2 and leaf
// named OPEN, an OPEN app category, and the link between leaf and app
// category. After the first run it changes nothing.
func Bootstrap(ctx context.Context, store Store, userID string) (model.OpenChain, error) {
	var chain model.OpenChain
	var err error

	if chain.Level1ID, err = store.FindOrCreateLevel1(ctx, userID, model.OpenCategory); err != nil {
		return model.OpenChain{}, fmt.Errorf("failed to ensure OPEN level 1: %w", err)
	}
	if chain.Level2ID, err = store.FindOrCreateLevel2(ctx, chain.Level1ID, model.OpenCategory); err != nil {
		return model.OpenChain{}, fmt.Errorf("failed to ensure OPEN level 2: %w", err)
	}
	if chain.LeafID, err = store.FindOrCreateLeaf(ctx, chain.Level2ID, model.OpenCategory); err != nil {
		return model.OpenChain{}, fmt.Errorf("failed to ensure OPEN leaf: %w", err)
	}
	if chain.AppCategoryID, err = store.FindOrCreateAppCategory(ctx, userID, model.OpenCategory); err != nil {
		return model.OpenChain{}, fmt.Errorf("failed to ensure OPEN app category: %w", err)
	}
	if err := store.LinkAppCategoryLeaf(ctx, chain.AppCategoryID, chain.LeafID); err != nil {
		return model.OpenChain{}, fmt.Errorf("failed to link OPEN leaf: %w", err)
	}

	slog.Debug("OPEN taxonomy chain ensured",
		"user_id", userID,
		"leaf_id", chain.LeafID,
		"app_category_id", chain.AppCategoryID)

	return chain, nil
}
