package database

import (
	"context"
	"fmt"
	"time"

	"courtside/internal/models"
)

const ruleColumns = `id, sport_id, type, start_time, end_time, price_multiplier, override_price, is_active`

func scanRule(r rowScanner) (*models.PricingRule, error) {
	var rule models.PricingRule
	if err := r.Scan(&rule.ID, &rule.SportID, &rule.Type, &rule.StartTime, &rule.EndTime,
		&rule.PriceMultiplier, &rule.OverridePrice, &rule.IsActive); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (db *DB) CreatePricingRule(ctx context.Context, rule *models.PricingRule) error {
	if rule.StartTime == "" {
		rule.StartTime = "00:00"
	}
	if rule.EndTime == "" {
		rule.EndTime = "24:00"
	}

	query := `INSERT INTO pricing_rules (sport_id, type, start_time, end_time, price_multiplier, override_price, is_active, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		rule.SportID,
		rule.Type,
		rule.StartTime,
		rule.EndTime,
		rule.PriceMultiplier,
		rule.OverridePrice,
		rule.IsActive,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create pricing rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rule.ID = id
	return nil
}

func (db *DB) DeactivatePricingRule(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE pricing_rules SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate pricing rule: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// GetActivePricingRules returns active rules of one type in creation order,
// so the first element is the rule that wins.
func (db *DB) GetActivePricingRules(ctx context.Context, sportID int64, ruleType string) ([]*models.PricingRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM pricing_rules
              WHERE sport_id = ? AND type = ? AND is_active = 1 ORDER BY id ASC`
	return db.queryRules(ctx, query, sportID, ruleType)
}

func (db *DB) GetPricingRules(ctx context.Context, sportID int64) ([]*models.PricingRule, error) {
	return db.queryRules(ctx, `SELECT `+ruleColumns+` FROM pricing_rules WHERE sport_id = ? ORDER BY id ASC`, sportID)
}

func (db *DB) queryRules(ctx context.Context, query string, args ...any) ([]*models.PricingRule, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.PricingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pricing rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
