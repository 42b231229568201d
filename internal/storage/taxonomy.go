package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/model"
)

// findOrCreate inserts a row unless its natural key already exists and
// returns the row's ID either way.
func (s *SQLiteStorage) findOrCreate(ctx context.Context, insert, lookup string, args ...any) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, lookup, args...).Scan(&id)
	})
	return id, err
}

// FindOrCreateLevel1 returns the level-1 node with the given name, creating it if needed.
func (s *SQLiteStorage) FindOrCreateLevel1(ctx context.Context, userID, name string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	if err := validateString(name, "name"); err != nil {
		return 0, err
	}

	id, err := s.findOrCreate(ctx,
		`INSERT OR IGNORE INTO taxonomy_level1 (user_id, name) VALUES (?, ?)`,
		`SELECT id FROM taxonomy_level1 WHERE user_id = ? AND name = ?`,
		userID, strings.TrimSpace(name))
	if err != nil {
		return 0, fmt.Errorf("failed to ensure level 1 %q: %w", name, err)
	}
	return id, nil
}

// FindOrCreateLevel2 returns the level-2 node under level1ID, creating it if needed.
func (s *SQLiteStorage) FindOrCreateLevel2(ctx context.Context, level1ID int64, name string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(name, "name"); err != nil {
		return 0, err
	}

	id, err := s.findOrCreate(ctx,
		`INSERT OR IGNORE INTO taxonomy_level2 (level1_id, name) VALUES (?, ?)`,
		`SELECT id FROM taxonomy_level2 WHERE level1_id = ? AND name = ?`,
		level1ID, strings.TrimSpace(name))
	if err != nil {
		return 0, fmt.Errorf("failed to ensure level 2 %q: %w", name, err)
	}
	return id, nil
}

// FindOrCreateLeaf returns the leaf under level2ID, creating it if needed.
func (s *SQLiteStorage) FindOrCreateLeaf(ctx context.Context, level2ID int64, name string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(name, "name"); err != nil {
		return 0, err
	}

	id, err := s.findOrCreate(ctx,
		`INSERT OR IGNORE INTO taxonomy_leaf (level2_id, name) VALUES (?, ?)`,
		`SELECT id FROM taxonomy_leaf WHERE level2_id = ? AND name = ?`,
		level2ID, strings.TrimSpace(name))
	if err != nil {
		return 0, fmt.Errorf("failed to ensure leaf %q: %w", name, err)
	}
	return id, nil
}

// FindOrCreateAppCategory returns the user's app category, creating it if needed.
func (s *SQLiteStorage) FindOrCreateAppCategory(ctx context.Context, userID, name string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	if err := validateString(name, "name"); err != nil {
		return 0, err
	}

	id, err := s.findOrCreate(ctx,
		`INSERT OR IGNORE INTO app_categories (user_id, name) VALUES (?, ?)`,
		`SELECT id FROM app_categories WHERE user_id = ? AND name = ?`,
		userID, strings.TrimSpace(name))
	if err != nil {
		return 0, fmt.Errorf("failed to ensure app category %q: %w", name, err)
	}
	return id, nil
}

// LinkAppCategoryLeaf files a leaf under an app category. A leaf belongs to
// at most one app category; relinking moves it.
func (s *SQLiteStorage) LinkAppCategoryLeaf(ctx context.Context, appCategoryID, leafID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_category_leaves (leaf_id, app_category_id) VALUES (?, ?)
		ON CONFLICT(leaf_id) DO UPDATE SET app_category_id = excluded.app_category_id`,
		leafID, appCategoryID)
	if err != nil {
		return classify(fmt.Errorf("failed to link leaf %d: %w", leafID, err))
	}
	return nil
}

// GetLeafHierarchies returns every leaf of the user's taxonomy with its
// ancestry and app category, ordered by leaf ID.
func (s *SQLiteStorage) GetLeafHierarchies(ctx context.Context, userID string) ([]model.LeafHierarchy, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT leaf.id, l1.name, l2.name, leaf.name, ac.id, COALESCE(ac.name, '')
		FROM taxonomy_leaf leaf
		JOIN taxonomy_level2 l2 ON l2.id = leaf.level2_id
		JOIN taxonomy_level1 l1 ON l1.id = l2.level1_id
		LEFT JOIN app_category_leaves acl ON acl.leaf_id = leaf.id
		LEFT JOIN app_categories ac ON ac.id = acl.app_category_id
		WHERE l1.user_id = ?
		ORDER BY leaf.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query taxonomy: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var leaves []model.LeafHierarchy
	for rows.Next() {
		var (
			h     model.LeafHierarchy
			appID sql.NullInt64
		)
		if err := rows.Scan(&h.LeafID, &h.Category1, &h.Category2, &h.Category3, &appID, &h.AppCategoryName); err != nil {
			return nil, fmt.Errorf("failed to scan leaf: %w", err)
		}
		h.AppCategoryID = int64PtrFromNull(appID)
		leaves = append(leaves, h)
	}
	return leaves, rows.Err()
}

// GetOpenLeafID returns the ID of the user's OPEN/OPEN/OPEN leaf.
func (s *SQLiteStorage) GetOpenLeafID(ctx context.Context, userID string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT leaf.id
		FROM taxonomy_leaf leaf
		JOIN taxonomy_level2 l2 ON l2.id = leaf.level2_id
		JOIN taxonomy_level1 l1 ON l1.id = l2.level1_id
		WHERE l1.user_id = ? AND l1.name = ? AND l2.name = ? AND leaf.name = ?`,
		userID, model.OpenCategory, model.OpenCategory, model.OpenCategory).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("OPEN leaf for user %s: %w", userID, common.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get OPEN leaf: %w", err)
	}
	return id, nil
}
