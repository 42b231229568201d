package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/model"
)

// CreateAlias inserts an alias. Labels are unique per user.
func (s *SQLiteStorage) CreateAlias(ctx context.Context, alias *model.AliasAsset) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAlias(alias); err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alias_assets (user_id, alias, key_words, logo_url, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		alias.UserID, alias.Alias, alias.KeyWords, alias.LogoURL, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("alias %q: %w", alias.Alias, common.ErrDuplicateEntry)
		}
		return classify(fmt.Errorf("failed to create alias: %w", err))
	}

	if alias.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get alias ID: %w", err)
	}
	alias.CreatedAt = now
	return nil
}

// GetAliases returns the user's aliases ordered by ID.
func (s *SQLiteStorage) GetAliases(ctx context.Context, userID string) ([]model.AliasAsset, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, alias, key_words, logo_url, created_at
		FROM alias_assets
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var aliases []model.AliasAsset
	for rows.Next() {
		var a model.AliasAsset
		if err := rows.Scan(&a.ID, &a.UserID, &a.Alias, &a.KeyWords, &a.LogoURL, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}
