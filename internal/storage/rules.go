package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/model"
)

// CreateRule inserts a classification rule and assigns its ID.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule != nil && rule.Origin == "" {
		rule.Origin = model.RuleUser
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (
			user_id, name, key_words, key_words_negative, category1, category2, category3,
			leaf_id, priority, strict, origin, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.UserID, rule.Name, rule.KeyWords, rule.KeyWordsNeg,
		rule.Category1, rule.Category2, rule.Category3,
		nullInt64(rule.LeafID), rule.Priority, rule.Strict, string(rule.Origin), rule.Active,
		now, now,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to create rule: %w", err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}
	rule.ID = id
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// GetRules returns the user's rules ordered by priority descending, then ID.
func (s *SQLiteStorage) GetRules(ctx context.Context, userID string, activeOnly bool) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, name, key_words, key_words_negative, category1, category2, category3,
			leaf_id, priority, strict, origin, active, created_at, updated_at
		FROM rules
		WHERE user_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY priority DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		var (
			rule   model.Rule
			origin string
			leafID sql.NullInt64
		)
		if err := rows.Scan(
			&rule.ID, &rule.UserID, &rule.Name, &rule.KeyWords, &rule.KeyWordsNeg,
			&rule.Category1, &rule.Category2, &rule.Category3,
			&leafID, &rule.Priority, &rule.Strict, &origin, &rule.Active,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule.Origin = model.RuleOrigin(origin)
		rule.LeafID = int64PtrFromNull(leafID)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SetRuleActive enables or disables a rule.
func (s *SQLiteStorage) SetRuleActive(ctx context.Context, userID string, id int64, active bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE rules SET active = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		active, time.Now().UTC(), id, userID)
	if err != nil {
		return classify(fmt.Errorf("failed to update rule: %w", err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}
	return nil
}
