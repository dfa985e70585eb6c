package service

import (
	"errors"
	"fmt"

	"courtside/internal/database"
)

// ErrInvalidRequest is the root of every input validation failure.
var ErrInvalidRequest = errors.New("invalid request")

var (
	ErrInvalidDate     = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	ErrInvalidTime     = fmt.Errorf("%w: time must be HH:MM", ErrInvalidRequest)
	ErrInvalidDuration = fmt.Errorf("%w: unsupported duration", ErrInvalidRequest)
	ErrPastDate        = fmt.Errorf("%w: date is in the past", ErrInvalidRequest)
	ErrDateTooFar      = fmt.Errorf("%w: date is beyond the booking horizon", ErrInvalidRequest)
	ErrPastSlot        = fmt.Errorf("%w: start time has already passed", ErrInvalidRequest)
)

// Error codes exposed to callers. Raw errors never leave the service boundary.
const (
	CodeSlotUnavailable  = "SLOT_UNAVAILABLE"
	CodeSlotBlocked      = "SLOT_BLOCKED"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyCancelled = "ALREADY_CANCELLED"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInternal         = "INTERNAL"
)

// ErrorCode maps err onto the error taxonomy.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, database.ErrSlotUnavailable):
		return CodeSlotUnavailable
	case errors.Is(err, database.ErrSlotBlocked):
		return CodeSlotBlocked
	case errors.Is(err, database.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, database.ErrAlreadyCancelled):
		return CodeAlreadyCancelled
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrDuplicateSport):
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
