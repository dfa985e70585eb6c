package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtside/internal/models"
)

const sportColumns = `id, name, base_price, is_active, sort_order, duration_options, created_at, updated_at`

func scanSport(r rowScanner) (*models.Sport, error) {
	var s models.Sport
	var durations string
	if err := r.Scan(&s.ID, &s.Name, &s.BasePrice, &s.IsActive, &s.SortOrder, &durations, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if durations != "" {
		if err := json.Unmarshal([]byte(durations), &s.DurationOptions); err != nil {
			return nil, fmt.Errorf("decode duration options for sport %d: %w", s.ID, err)
		}
	}
	return &s, nil
}

func encodeDurations(options []float64) (string, error) {
	if options == nil {
		options = []float64{}
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("encode duration options: %w", err)
	}
	return string(raw), nil
}

func (db *DB) CreateSport(ctx context.Context, sport *models.Sport) error {
	durations, err := encodeDurations(sport.DurationOptions)
	if err != nil {
		return err
	}

	query := `INSERT INTO sports (name, base_price, is_active, sort_order, duration_options, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		strings.TrimSpace(sport.Name),
		sport.BasePrice,
		sport.IsActive,
		sport.SortOrder,
		durations,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSport
		}
		return fmt.Errorf("failed to create sport: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	sport.ID = id
	sport.CreatedAt = now
	sport.UpdatedAt = now
	return nil
}

func (db *DB) UpdateSport(ctx context.Context, sport *models.Sport) error {
	durations, err := encodeDurations(sport.DurationOptions)
	if err != nil {
		return err
	}

	query := `UPDATE sports SET name = ?, base_price = ?, is_active = ?, sort_order = ?, duration_options = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		strings.TrimSpace(sport.Name), sport.BasePrice, sport.IsActive, sport.SortOrder, durations, now, sport.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSport
		}
		return fmt.Errorf("failed to update sport: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrSportNotFound
	}
	sport.UpdatedAt = now
	return nil
}

func (db *DB) DeactivateSport(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE sports SET is_active = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate sport: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrSportNotFound
	}
	return nil
}

func (db *DB) GetSportByID(ctx context.Context, id int64) (*models.Sport, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sportColumns+` FROM sports WHERE id = ?`, id)
	sport, err := scanSport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sport: %w", err)
	}
	return sport, nil
}

// GetSportByName matches names case-insensitively.
func (db *DB) GetSportByName(ctx context.Context, name string) (*models.Sport, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sportColumns+` FROM sports WHERE name = ? COLLATE NOCASE`, strings.TrimSpace(name))
	sport, err := scanSport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sport by name: %w", err)
	}
	return sport, nil
}

func (db *DB) GetActiveSports(ctx context.Context) ([]*models.Sport, error) {
	return db.querySports(ctx, `SELECT `+sportColumns+` FROM sports WHERE is_active = 1 ORDER BY sort_order ASC, id ASC`)
}

func (db *DB) GetAllSports(ctx context.Context) ([]*models.Sport, error) {
	return db.querySports(ctx, `SELECT `+sportColumns+` FROM sports ORDER BY sort_order ASC, id ASC`)
}

func (db *DB) querySports(ctx context.Context, query string, args ...any) ([]*models.Sport, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sports: %w", err)
	}
	defer rows.Close()

	var sports []*models.Sport
	for rows.Next() {
		s, err := scanSport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sport: %w", err)
		}
		sports = append(sports, s)
	}
	return sports, rows.Err()
}

// SyncSports upserts the catalogue by name. Prices, ordering and durations of
// existing sports follow the list; their active flag is left to the admin API,
// so a retired sport stays retired. Sports missing from the list are untouched.
func (db *DB) SyncSports(ctx context.Context, sports []models.Sport) (created, updated int, err error) {
	return db.upsertSports(ctx, sports, true)
}

// SeedSports inserts listed sports that do not exist yet and leaves existing
// rows alone. It runs on every start, after which the admin API owns the rows.
func (db *DB) SeedSports(ctx context.Context, sports []models.Sport) (created int, err error) {
	created, _, err = db.upsertSports(ctx, sports, false)
	return created, err
}

func (db *DB) upsertSports(ctx context.Context, sports []models.Sport, overwrite bool) (created, updated int, err error) {
	err = db.withTx(ctx, "sync sports", func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for i := range sports {
			s := &sports[i]
			name := strings.TrimSpace(s.Name)
			durations, err := encodeDurations(s.DurationOptions)
			if err != nil {
				return err
			}

			var id int64
			err = tx.QueryRowContext(ctx, `SELECT id FROM sports WHERE name = ? COLLATE NOCASE`, name).Scan(&id)
			switch {
			case err == nil:
				if !overwrite {
					continue
				}
				if _, err := tx.ExecContext(ctx,
					`UPDATE sports SET base_price = ?, sort_order = ?, duration_options = ?, updated_at = ? WHERE id = ?`,
					s.BasePrice, s.SortOrder, durations, now, id); err != nil {
					return fmt.Errorf("failed to update sport %s: %w", name, err)
				}
				updated++
				continue
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("failed to look up sport %s: %w", name, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sports (name, base_price, is_active, sort_order, duration_options, created_at, updated_at)
                 VALUES (?, ?, 1, ?, ?, ?, ?)`,
				name, s.BasePrice, s.SortOrder, durations, now, now); err != nil {
				return fmt.Errorf("failed to insert sport %s: %w", name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}
