package database

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound = errors.New("not found")

	ErrSportNotFound   = fmt.Errorf("sport %w", ErrNotFound)
	ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)
	ErrBlockNotFound   = fmt.Errorf("blocked slot %w", ErrNotFound)
	ErrRuleNotFound    = fmt.Errorf("pricing rule %w", ErrNotFound)

	ErrSlotUnavailable        = errors.New("slot is not available")
	ErrSlotBlocked            = errors.New("slot is blocked")
	ErrAlreadyCancelled       = errors.New("booking already cancelled")
	ErrInvalidTransition      = errors.New("invalid booking status transition")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrDuplicateSport         = errors.New("sport with this name already exists")

	// ErrTransient marks failures worth retrying: the write lock could not be
	// acquired within the busy timeout.
	ErrTransient = errors.New("transient database error")
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// classify wraps a driver error, tagging lock contention as ErrTransient.
func classify(op string, err error) error {
	if isBusy(err) {
		return fmt.Errorf("failed to %s: %w: %w", op, ErrTransient, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
