package models

const (
	StatusPending     = "pending"
	StatusConfirmed   = "confirmed"
	StatusCancelled   = "cancelled"
	StatusRescheduled = "rescheduled"
)

const (
	PaymentPending  = "pending"
	PaymentPartial  = "partial"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

const (
	SourceOnline = "online"
	SourceWalkIn = "walk-in"
)

const (
	SlotAvailable = "available"
	SlotBooked    = "booked"
	SlotPassed    = "passed"
)

const (
	// DateLayout is the calendar-date key used everywhere a booking date is stored.
	DateLayout = "2006-01-02"

	// SlotsPerDay количество часовых слотов в сетке
	SlotsPerDay = 24

	// DefaultGraceMinutes окно, в течение которого неоплаченная онлайн-заявка держит слот
	DefaultGraceMinutes = 15

	// DefaultVenueUTCOffsetHours смещение часового пояса площадки (UTC+5)
	DefaultVenueUTCOffsetHours = 5

	// DefaultMaxBookingDays горизонт онлайн-бронирования
	DefaultMaxBookingDays = 60

	// MaxClockHour upper bound for an end time that spills into the next day.
	MaxClockHour = 48

	// IdempotencyTTL how long a processed Idempotency-Key is remembered, in seconds.
	IdempotencyTTL = 24 * 60 * 60
)

// PaymentStatuses lists values accepted for Booking.PaymentStatus.
var PaymentStatuses = []string{PaymentPending, PaymentPartial, PaymentPaid, PaymentRefunded}
