package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtside/internal/models"
)

const bookingColumns = `id, sport_id, sport_name, user_id, guest_id, date, start_time, end_time, duration,
	customer_name, customer_phone, customer_email, amount, status, payment_status, payment_method,
	paid_amount, payment_verified, payment_verified_at, source, rescheduled_from, notes,
	created_at, updated_at, version`

// activeClause selects bookings that still hold their time range.
const activeClause = `status NOT IN ('cancelled', 'rescheduled')`

const midnight = "24:00"

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanBooking(r rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := r.Scan(
		&b.ID, &b.SportID, &b.SportName, &b.UserID, &b.GuestID, &b.Date, &b.StartTime, &b.EndTime, &b.Duration,
		&b.CustomerName, &b.CustomerPhone, &b.CustomerEmail, &b.Amount, &b.Status, &b.PaymentStatus, &b.PaymentMethod,
		&b.PaidAmount, &b.PaymentVerified, &b.PaymentVerifiedAt, &b.Source, &b.RescheduledFrom, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func loadBooking(ctx context.Context, q queryer, id int64) (*models.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, classify("load booking", err)
	}
	return b, nil
}

// CreateBookingWithLock is the guarded allocation: the conflict checks and the
// insert share one immediate transaction, so concurrent requests for the same
// range are serialized and at most one of them commits.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	return db.withTx(ctx, "allocate booking", func(tx *sql.Tx) error {
		if err := ensureSlotFree(ctx, tx, booking.SportID, booking.Date, booking.StartTime, booking.EndTime, 0); err != nil {
			return err
		}
		return insertBooking(ctx, tx, booking)
	})
}

// ensureSlotFree rejects [start, end) on date when it overlaps an active booking
// (including spill-over across midnight in either direction) or a blocked range.
func ensureSlotFree(ctx context.Context, tx *sql.Tx, sportID int64, date, start, end string, excludeID int64) error {
	var overlapping int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings
              WHERE sport_id = ? AND date = ? AND id != ? AND `+activeClause+`
              AND start_time < ? AND end_time > ?`,
		sportID, date, excludeID, end, start).Scan(&overlapping)
	if err != nil {
		return classify("check overlap", err)
	}
	if overlapping > 0 {
		return ErrSlotUnavailable
	}

	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return fmt.Errorf("invalid booking date %q: %w", date, err)
	}
	prevDate := day.AddDate(0, 0, -1).Format(models.DateLayout)
	nextDate := day.AddDate(0, 0, 1).Format(models.DateLayout)

	// Previous-day bookings that run past midnight occupy the start of this day.
	var spill int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings
              WHERE sport_id = ? AND date = ? AND id != ? AND `+activeClause+`
              AND end_time > ? AND end_time > ?`,
		sportID, prevDate, excludeID, midnight, shiftForward(start)).Scan(&spill)
	if err != nil {
		return classify("check previous-day overlap", err)
	}
	if spill > 0 {
		return ErrSlotUnavailable
	}

	spillEnd := ""
	if end > midnight {
		spillEnd = shiftBack(end)
		var early int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings
                  WHERE sport_id = ? AND date = ? AND id != ? AND `+activeClause+`
                  AND start_time < ?`,
			sportID, nextDate, excludeID, spillEnd).Scan(&early)
		if err != nil {
			return classify("check next-day overlap", err)
		}
		if early > 0 {
			return ErrSlotUnavailable
		}
	}

	var blocked int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocked_slots
              WHERE sport_id = ? AND date = ? AND start_time < ? AND end_time > ?`,
		sportID, date, end, start).Scan(&blocked)
	if err != nil {
		return classify("check blocked slots", err)
	}
	if blocked == 0 && spillEnd != "" {
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocked_slots
                  WHERE sport_id = ? AND date = ? AND start_time < ?`,
			sportID, nextDate, spillEnd).Scan(&blocked)
		if err != nil {
			return classify("check next-day blocked slots", err)
		}
	}
	if blocked > 0 {
		return ErrSlotBlocked
	}
	return nil
}

// shiftForward expresses a time of day as the equivalent hour on the previous
// day's clock (01:00 -> 25:00).
func shiftForward(clock string) string {
	m, err := models.ParseClock(clock)
	if err != nil {
		return clock
	}
	return models.FormatClock(m + 24*60)
}

// shiftBack maps a spill-over end time onto the next day's clock (25:30 -> 01:30).
func shiftBack(clock string) string {
	m, err := models.ParseClock(clock)
	if err != nil || m < 24*60 {
		return clock
	}
	return models.FormatClock(m - 24*60)
}

func insertBooking(ctx context.Context, tx *sql.Tx, b *models.Booking) error {
	query := `INSERT INTO bookings (
				sport_id, sport_name, user_id, guest_id, date, start_time, end_time, duration,
				customer_name, customer_phone, customer_email, amount, status, payment_status, payment_method,
				paid_amount, payment_verified, payment_verified_at, source, rescheduled_from, notes,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, query,
		b.SportID, b.SportName, b.UserID, b.GuestID, b.Date, b.StartTime, b.EndTime, b.Duration,
		b.CustomerName, b.CustomerPhone, b.CustomerEmail, b.Amount, b.Status, b.PaymentStatus, b.PaymentMethod,
		b.PaidAmount, b.PaymentVerified, b.PaymentVerifiedAt, b.Source, b.RescheduledFrom, b.Notes,
		now, now, 1,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotUnavailable
		}
		return classify("insert booking", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1
	return nil
}

// setStatus moves b to status, guarded by its version.
func setStatus(ctx context.Context, tx *sql.Tx, b *models.Booking, status string) error {
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		status, now, b.ID, b.Version)
	if err != nil {
		return classify("update booking status", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrConcurrentModification
	}
	b.Status = status
	b.UpdatedAt = now
	b.Version++
	return nil
}

// CancelBooking cancels an active booking. With a non-nil ownerID the booking
// must belong to that user or guest, otherwise it is reported as not found.
func (db *DB) CancelBooking(ctx context.Context, id int64, ownerID *string) (*models.Booking, error) {
	var cancelled *models.Booking
	err := db.withTx(ctx, "cancel booking", func(tx *sql.Tx) error {
		b, err := loadBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if ownerID != nil && !b.OwnedBy(*ownerID) {
			return ErrBookingNotFound
		}
		switch b.Status {
		case models.StatusCancelled:
			return ErrAlreadyCancelled
		case models.StatusRescheduled:
			return ErrInvalidTransition
		}
		if err := setStatus(ctx, tx, b, models.StatusCancelled); err != nil {
			return err
		}
		cancelled = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// RescheduleBooking retires a confirmed booking and inserts its successor in one
// transaction. replacement supplies the new date, range, duration and amount;
// customer and payment fields are carried over from the original.
func (db *DB) RescheduleBooking(ctx context.Context, id int64, ownerID *string, replacement *models.Booking) (*models.Booking, error) {
	var old *models.Booking
	err := db.withTx(ctx, "reschedule booking", func(tx *sql.Tx) error {
		b, err := loadBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if ownerID != nil && !b.OwnedBy(*ownerID) {
			return ErrBookingNotFound
		}
		if b.Status != models.StatusConfirmed {
			return ErrBookingNotFound
		}

		if err := ensureSlotFree(ctx, tx, b.SportID, replacement.Date, replacement.StartTime, replacement.EndTime, b.ID); err != nil {
			return err
		}

		if err := setStatus(ctx, tx, b, models.StatusRescheduled); err != nil {
			return err
		}

		replacement.SportID = b.SportID
		replacement.SportName = b.SportName
		replacement.UserID = b.UserID
		replacement.GuestID = b.GuestID
		replacement.CustomerName = b.CustomerName
		replacement.CustomerPhone = b.CustomerPhone
		replacement.CustomerEmail = b.CustomerEmail
		replacement.PaymentStatus = b.PaymentStatus
		replacement.PaymentMethod = b.PaymentMethod
		replacement.PaidAmount = b.PaidAmount
		replacement.PaymentVerified = b.PaymentVerified
		replacement.PaymentVerifiedAt = b.PaymentVerifiedAt
		replacement.Notes = b.Notes
		replacement.Status = models.StatusConfirmed
		replacement.Source = models.SourceOnline
		replacement.RescheduledFrom = &b.ID

		if err := insertBooking(ctx, tx, replacement); err != nil {
			return err
		}
		old = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

// ExpirePendingBooking cancels an online booking that is still pending with
// pending payment and was created before cutoff. expired is false when the
// booking no longer qualifies, e.g. it was confirmed or paid meanwhile.
func (db *DB) ExpirePendingBooking(ctx context.Context, id int64, cutoff time.Time) (booking *models.Booking, expired bool, err error) {
	err = db.withTx(ctx, "expire booking", func(tx *sql.Tx) error {
		b, err := loadBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.Status != models.StatusPending || b.PaymentStatus != models.PaymentPending ||
			b.Source != models.SourceOnline || !b.CreatedAt.Before(cutoff) {
			booking = b
			return nil
		}
		if err := setStatus(ctx, tx, b, models.StatusCancelled); err != nil {
			return err
		}
		booking, expired = b, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return booking, expired, nil
}

// ConfirmBooking moves a pending booking to confirmed. Confirming an already
// confirmed booking is a no-op reported by changed=false.
func (db *DB) ConfirmBooking(ctx context.Context, id int64) (booking *models.Booking, changed bool, err error) {
	err = db.withTx(ctx, "confirm booking", func(tx *sql.Tx) error {
		b, err := loadBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		switch b.Status {
		case models.StatusConfirmed:
			booking = b
			return nil
		case models.StatusPending:
		default:
			return ErrInvalidTransition
		}
		if err := setStatus(ctx, tx, b, models.StatusConfirmed); err != nil {
			return err
		}
		booking, changed = b, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return booking, changed, nil
}

// UpdatePayment records payment metadata. A verified full payment confirms a
// pending booking in the same write.
func (db *DB) UpdatePayment(ctx context.Context, id int64, upd models.PaymentUpdate) (before, after *models.Booking, err error) {
	err = db.withTx(ctx, "update payment", func(tx *sql.Tx) error {
		b, err := loadBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.Status == models.StatusRescheduled {
			return ErrInvalidTransition
		}

		snapshot := *b
		before = &snapshot

		now := time.Now().UTC()
		b.PaymentStatus = upd.Status
		if upd.Method != "" {
			b.PaymentMethod = upd.Method
		}
		b.PaidAmount = upd.PaidAmount
		if upd.Verified && !b.PaymentVerified {
			b.PaymentVerifiedAt = &now
		}
		if !upd.Verified {
			b.PaymentVerifiedAt = nil
		}
		b.PaymentVerified = upd.Verified
		if b.Status == models.StatusPending && upd.Verified && upd.Status == models.PaymentPaid {
			b.Status = models.StatusConfirmed
		}

		result, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ?, payment_status = ?, payment_method = ?,
                  paid_amount = ?, payment_verified = ?, payment_verified_at = ?, version = version + 1, updated_at = ?
                  WHERE id = ? AND version = ?`,
			b.Status, b.PaymentStatus, b.PaymentMethod, b.PaidAmount, b.PaymentVerified, b.PaymentVerifiedAt,
			now, b.ID, b.Version)
		if err != nil {
			return classify("update payment", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return ErrConcurrentModification
		}
		b.Version++
		b.UpdatedAt = now
		after = b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return loadBooking(ctx, db, id)
}

// GetActiveBookings returns bookings of a sport on a date that still hold their range.
func (db *DB) GetActiveBookings(ctx context.Context, sportID int64, date string) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings
              WHERE sport_id = ? AND date = ? AND `+activeClause+` ORDER BY start_time ASC`,
		sportID, date)
}

// GetOverflowBookings returns active bookings on date that end after midnight.
func (db *DB) GetOverflowBookings(ctx context.Context, sportID int64, date string) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings
              WHERE sport_id = ? AND date = ? AND `+activeClause+` AND end_time > ? ORDER BY start_time ASC`,
		sportID, date, midnight)
}

// GetBookingsByDate lists every booking on a date regardless of status.
func (db *DB) GetBookingsByDate(ctx context.Context, date string) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings
              WHERE date = ? ORDER BY sport_id ASC, start_time ASC, id ASC`, date)
}

func (db *DB) GetOwnerBookings(ctx context.Context, ownerID string) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings
              WHERE user_id = ? OR guest_id = ? ORDER BY date DESC, start_time DESC`, ownerID, ownerID)
}

// GetPendingUnpaidBookings lists online bookings still waiting for payment.
func (db *DB) GetPendingUnpaidBookings(ctx context.Context) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings
              WHERE status = ? AND payment_status = ? AND source = ? ORDER BY created_at ASC`,
		models.StatusPending, models.PaymentPending, models.SourceOnline)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
