package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtside/internal/models"
)

const blockColumns = `id, sport_id, date, start_time, end_time, reason, created_at`

func scanBlock(r rowScanner) (*models.BlockedSlot, error) {
	var b models.BlockedSlot
	if err := r.Scan(&b.ID, &b.SportID, &b.Date, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) CreateBlockedSlot(ctx context.Context, block *models.BlockedSlot) error {
	query := `INSERT INTO blocked_slots (sport_id, date, start_time, end_time, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, block.SportID, block.Date, block.StartTime, block.EndTime, block.Reason, now)
	if err != nil {
		return classify("create blocked slot", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	block.ID = id
	block.CreatedAt = now
	return nil
}

func (db *DB) GetBlockedSlot(ctx context.Context, id int64) (*models.BlockedSlot, error) {
	block, err := scanBlock(db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocked_slots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blocked slot: %w", err)
	}
	return block, nil
}

func (db *DB) DeleteBlockedSlot(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM blocked_slots WHERE id = ?`, id)
	if err != nil {
		return classify("delete blocked slot", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (db *DB) GetBlockedSlots(ctx context.Context, sportID int64, date string) ([]*models.BlockedSlot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM blocked_slots WHERE sport_id = ? AND date = ? ORDER BY start_time ASC`,
		sportID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get blocked slots: %w", err)
	}
	defer rows.Close()

	var blocks []*models.BlockedSlot
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blocked slot: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
