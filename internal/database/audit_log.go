package database

import (
	"context"
	"fmt"
	"time"

	"courtside/internal/models"
)

func (db *DB) CreateAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO audit_log (actor, action, entity_type, entity_id, before, after, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Before, entry.After, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

func (db *DB) GetAuditEntries(ctx context.Context, entityType string, entityID int64) ([]*models.AuditEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, actor, action, entity_type, entity_id, COALESCE(before, ''), COALESCE(after, ''), created_at
         FROM audit_log WHERE entity_type = ? AND entity_id = ? ORDER BY id ASC`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID, &e.Before, &e.After, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
