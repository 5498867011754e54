package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/repo"
)

// ruleRepo implements the notification rule repository on sqlite
type ruleRepo struct {
	db *sql.DB
}

// NewRuleRepo creates a new rule repository on an open database
func NewRuleRepo(db *sql.DB) (repo.RuleRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notification_rules (
			position INTEGER PRIMARY KEY,
			package_name TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			parser_spec_id TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification_rules table: %w", err)
	}
	return &ruleRepo{db: db}, nil
}

func (r *ruleRepo) List(ctx context.Context) ([]domain.RuleData, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT package_name, user_id, parser_spec_id
		FROM notification_rules
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.RuleData
	for rows.Next() {
		var rule domain.RuleData
		if err := rows.Scan(&rule.PackageName, &rule.UserID, &rule.ParserSpecID); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *ruleRepo) Replace(ctx context.Context, rules []domain.RuleData) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notification_rules`); err != nil {
		return fmt.Errorf("failed to clear rules: %w", err)
	}
	for i, rule := range rules {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notification_rules (position, package_name, user_id, parser_spec_id)
			VALUES (?, ?, ?, ?)
		`, i, rule.PackageName, rule.UserID, rule.ParserSpecID)
		if err != nil {
			return fmt.Errorf("failed to insert rule: %w", err)
		}
	}
	return tx.Commit()
}
