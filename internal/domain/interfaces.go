package domain

import (
	"context"
	"time"

	"courtside/internal/models"
)

type SportRepository interface {
	CreateSport(ctx context.Context, sport *models.Sport) error
	UpdateSport(ctx context.Context, sport *models.Sport) error
	DeactivateSport(ctx context.Context, id int64) error
	GetSportByID(ctx context.Context, id int64) (*models.Sport, error)
	GetSportByName(ctx context.Context, name string) (*models.Sport, error)
	GetActiveSports(ctx context.Context) ([]*models.Sport, error)
	GetAllSports(ctx context.Context) ([]*models.Sport, error)
}

type PricingRuleRepository interface {
	CreatePricingRule(ctx context.Context, rule *models.PricingRule) error
	DeactivatePricingRule(ctx context.Context, id int64) error
	GetActivePricingRules(ctx context.Context, sportID int64, ruleType string) ([]*models.PricingRule, error)
	GetPricingRules(ctx context.Context, sportID int64) ([]*models.PricingRule, error)
}

type BlockedSlotRepository interface {
	CreateBlockedSlot(ctx context.Context, block *models.BlockedSlot) error
	GetBlockedSlot(ctx context.Context, id int64) (*models.BlockedSlot, error)
	DeleteBlockedSlot(ctx context.Context, id int64) error
	GetBlockedSlots(ctx context.Context, sportID int64, date string) ([]*models.BlockedSlot, error)
}

type BookingRepository interface {
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	CancelBooking(ctx context.Context, id int64, ownerID *string) (*models.Booking, error)
	RescheduleBooking(ctx context.Context, id int64, ownerID *string, replacement *models.Booking) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, id int64) (*models.Booking, bool, error)
	UpdatePayment(ctx context.Context, id int64, upd models.PaymentUpdate) (*models.Booking, *models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetActiveBookings(ctx context.Context, sportID int64, date string) ([]*models.Booking, error)
	GetOverflowBookings(ctx context.Context, sportID int64, date string) ([]*models.Booking, error)
	GetBookingsByDate(ctx context.Context, date string) ([]*models.Booking, error)
	GetOwnerBookings(ctx context.Context, ownerID string) ([]*models.Booking, error)
	GetPendingUnpaidBookings(ctx context.Context) ([]*models.Booking, error)
	ExpirePendingBooking(ctx context.Context, id int64, cutoff time.Time) (*models.Booking, bool, error)
}

type AuditRepository interface {
	CreateAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	GetAuditEntries(ctx context.Context, entityType string, entityID int64) ([]*models.AuditEntry, error)
}

// Repository is the full persistence surface; *database.DB implements it.
type Repository interface {
	SportRepository
	PricingRuleRepository
	BlockedSlotRepository
	BookingRepository
	AuditRepository
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// RequestStore backs idempotent request replay and cross-instance rate limits.
type RequestStore interface {
	// Reserve claims key for ttl. It returns false when the key is already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Lookup returns the stored response for key; pending reports a reservation
	// whose request has not finished yet.
	Lookup(ctx context.Context, key string) (resp *models.StoredResponse, pending bool, err error)
	Complete(ctx context.Context, key string, resp *models.StoredResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// NotificationEnqueuer hands a booking event to the delivery outbox.
type NotificationEnqueuer interface {
	EnqueueEvent(ctx context.Context, eventType string, payload []byte) error
}
