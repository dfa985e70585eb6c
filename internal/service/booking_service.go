package service

import (
	"context"
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"courtside/internal/database"
	"courtside/internal/domain"
	"courtside/internal/events"
	"courtside/internal/metrics"
	"courtside/internal/models"
	"courtside/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingRequest is a booking as entered by a customer or the front desk.
type BookingRequest struct {
	Sport         string
	Date          string
	StartTime     string
	Duration      float64
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	UserID        *string
	GuestID       *string
	PaymentMethod string
	Notes         string
}

// RescheduleRequest moves a confirmed booking to a new date and range.
type RescheduleRequest struct {
	Date      string
	StartTime string
	Duration  float64
}

// RescheduleResult holds the retired booking and its successor.
type RescheduleResult struct {
	Old *models.Booking `json:"old"`
	New *models.Booking `json:"new"`
}

type BookingOptions struct {
	MaxBookingDays int
	GraceWindow    time.Duration
	MaxTxAttempts  int
	TxRetry        worker.RetryPolicy
}

type BookingService struct {
	repo     domain.BookingRepository
	sports   SportCatalog
	pricing  *PricingService
	eventBus domain.EventPublisher
	clock    *VenueClock
	opts     BookingOptions
	logger   *zerolog.Logger
}

func NewBookingService(repo domain.BookingRepository, sports SportCatalog, pricing *PricingService, eventBus domain.EventPublisher, clock *VenueClock, opts BookingOptions, logger *zerolog.Logger) *BookingService {
	if opts.MaxBookingDays <= 0 {
		opts.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if opts.GraceWindow <= 0 {
		opts.GraceWindow = models.DefaultGraceMinutes * time.Minute
	}
	if opts.MaxTxAttempts <= 0 {
		opts.MaxTxAttempts = 3
	}
	if opts.TxRetry.InitialDelay <= 0 {
		opts.TxRetry = worker.RetryPolicy{InitialDelay: 50 * time.Millisecond, MaxDelay: 500 * time.Millisecond, BackoffFactor: 2}
	}
	return &BookingService{
		repo:     repo,
		sports:   sports,
		pricing:  pricing,
		eventBus: eventBus,
		clock:    clock,
		opts:     opts,
		logger:   logger,
	}
}

// ValidateBookingDate rejects dates before today or beyond the booking horizon,
// both measured on the venue calendar.
func (s *BookingService) ValidateBookingDate(date string) error {
	day, err := parseDate(date)
	if err != nil {
		return err
	}
	today, _ := time.Parse(models.DateLayout, s.clock.Today())

	// Проверяем, что дата не в прошлом
	if day.Before(today) {
		return ErrPastDate
	}

	// Проверяем максимальную дату
	if day.After(today.AddDate(0, 0, s.opts.MaxBookingDays)) {
		return ErrDateTooFar
	}
	return nil
}

// validateStartHour rejects a start hour on today's venue date that the
// availability grid already reports as passed.
func (s *BookingService) validateStartHour(date, start string) error {
	now := s.clock.Now()
	if date == now.Format(models.DateLayout) && models.ClockHour(start) < now.Hour() {
		return ErrPastSlot
	}
	return nil
}

// CreateBooking allocates an online booking. It is created pending with
// payment pending and holds its range until cancelled.
func (s *BookingService) CreateBooking(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	if req.UserID == nil && req.GuestID == nil {
		guest := uuid.NewString()
		req.GuestID = &guest
	}
	b, err := s.allocate(ctx, req, models.SourceOnline)
	if err != nil {
		return nil, err
	}
	publishBookingEvent(s.eventBus, s.logger, events.EventBookingCreated, b)
	return b, nil
}

// CreateWalkIn records a front-desk booking: confirmed and paid in full.
func (s *BookingService) CreateWalkIn(ctx context.Context, req BookingRequest, actor string) (*models.Booking, error) {
	b, err := s.allocate(ctx, req, models.SourceWalkIn)
	if err != nil {
		return nil, err
	}
	publishBookingEvent(s.eventBus, s.logger, events.EventBookingCreated, b)
	publishAudit(s.eventBus, s.logger, actor, "booking.walk_in", "booking", b.ID, nil, b)
	return b, nil
}

func (s *BookingService) allocate(ctx context.Context, req BookingRequest, source string) (*models.Booking, error) {
	started := time.Now()

	if _, err := parseDate(req.Date); err != nil {
		return nil, err
	}
	start, err := models.NormalizeClock(req.StartTime)
	if err != nil || models.ClockHour(start) >= models.SlotsPerDay {
		return nil, ErrInvalidTime
	}
	if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CustomerPhone) == "" {
		return nil, invalidf("customer name and phone are required")
	}
	if source == models.SourceOnline {
		if err := s.ValidateBookingDate(req.Date); err != nil {
			return nil, err
		}
		if err := s.validateStartHour(req.Date, start); err != nil {
			return nil, err
		}
	}

	sport, err := s.sports.ResolveSport(ctx, req.Sport)
	if err != nil {
		return nil, err
	}
	end, err := endTime(sport, start, req.Duration)
	if err != nil {
		return nil, err
	}
	amount, err := s.amount(ctx, sport, req.Date, req.Duration)
	if err != nil {
		return nil, err
	}

	b := &models.Booking{
		SportID:       sport.ID,
		SportName:     sport.Name,
		UserID:        req.UserID,
		GuestID:       req.GuestID,
		Date:          req.Date,
		StartTime:     start,
		EndTime:       end,
		Duration:      req.Duration,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Amount:        amount,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: req.PaymentMethod,
		Source:        source,
		Notes:         req.Notes,
	}
	if source == models.SourceWalkIn {
		now := time.Now().UTC()
		b.Status = models.StatusConfirmed
		b.PaymentStatus = models.PaymentPaid
		b.PaymentVerified = true
		b.PaymentVerifiedAt = &now
		b.PaidAmount = amount
		if b.PaymentMethod == "" {
			b.PaymentMethod = "cash"
		}
	}

	err = s.withRetry(ctx, "create booking", func() error {
		return s.repo.CreateBookingWithLock(ctx, b)
	})
	metrics.ObserveAllocation(started)
	if err != nil {
		s.recordConflict(err)
		return nil, err
	}

	metrics.IncBookingCreated(sport.Name, source)
	s.logger.Info().Int64("booking_id", b.ID).Str("sport", sport.Name).Str("date", b.Date).
		Str("start", b.StartTime).Str("end", b.EndTime).Str("source", source).Msg("booking created")
	return b, nil
}

// Cancel cancels a booking. A non-nil ownerID scopes the lookup to that
// customer; other customers' bookings are reported as not found.
func (s *BookingService) Cancel(ctx context.Context, bookingID int64, ownerID *string) (*models.Booking, error) {
	var cancelled *models.Booking
	err := s.withRetry(ctx, "cancel booking", func() error {
		var err error
		cancelled, err = s.repo.CancelBooking(ctx, bookingID, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("booking_id", bookingID).Msg("booking cancelled")
	publishBookingEvent(s.eventBus, s.logger, events.EventBookingCancelled, cancelled)
	return cancelled, nil
}

// AdminCancel cancels any booking on behalf of staff and records an audit entry.
func (s *BookingService) AdminCancel(ctx context.Context, bookingID int64, actor string) (*models.Booking, error) {
	before, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	cancelled, err := s.Cancel(ctx, bookingID, nil)
	if err != nil {
		return nil, err
	}
	publishAudit(s.eventBus, s.logger, actor, "booking.cancel", "booking", bookingID, before, cancelled)
	return cancelled, nil
}

// Reschedule retires a confirmed booking and creates its successor at the new
// date and range, priced for the new date. Both changes commit together.
func (s *BookingService) Reschedule(ctx context.Context, bookingID int64, ownerID *string, req RescheduleRequest) (*RescheduleResult, error) {
	if _, err := parseDate(req.Date); err != nil {
		return nil, err
	}
	start, err := models.NormalizeClock(req.StartTime)
	if err != nil || models.ClockHour(start) >= models.SlotsPerDay {
		return nil, ErrInvalidTime
	}
	if err := s.ValidateBookingDate(req.Date); err != nil {
		return nil, err
	}
	if err := s.validateStartHour(req.Date, start); err != nil {
		return nil, err
	}

	current, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if ownerID != nil && !current.OwnedBy(*ownerID) {
		return nil, database.ErrBookingNotFound
	}
	sport, err := s.sports.ResolveSport(ctx, formatID(current.SportID))
	if err != nil {
		return nil, err
	}
	end, err := endTime(sport, start, req.Duration)
	if err != nil {
		return nil, err
	}
	amount, err := s.amount(ctx, sport, req.Date, req.Duration)
	if err != nil {
		return nil, err
	}

	var (
		replacement *models.Booking
		old         *models.Booking
	)
	err = s.withRetry(ctx, "reschedule booking", func() error {
		replacement = &models.Booking{
			Date:      req.Date,
			StartTime: start,
			EndTime:   end,
			Duration:  req.Duration,
			Amount:    amount,
		}
		var err error
		old, err = s.repo.RescheduleBooking(ctx, bookingID, ownerID, replacement)
		return err
	})
	if err != nil {
		s.recordConflict(err)
		return nil, err
	}

	s.logger.Info().Int64("booking_id", old.ID).Int64("new_booking_id", replacement.ID).
		Str("date", replacement.Date).Str("start", replacement.StartTime).Msg("booking rescheduled")
	publishBookingEvent(s.eventBus, s.logger, events.EventBookingRescheduled, replacement)
	return &RescheduleResult{Old: old, New: replacement}, nil
}

// Confirm moves a pending booking to confirmed. Confirming twice is a no-op.
func (s *BookingService) Confirm(ctx context.Context, bookingID int64, actor string) (*models.Booking, error) {
	var (
		b       *models.Booking
		changed bool
	)
	err := s.withRetry(ctx, "confirm booking", func() error {
		var err error
		b, changed, err = s.repo.ConfirmBooking(ctx, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		before := *b
		before.Status = models.StatusPending
		publishBookingEvent(s.eventBus, s.logger, events.EventBookingConfirmed, b)
		publishAudit(s.eventBus, s.logger, actor, "booking.confirm", "booking", b.ID, &before, b)
	}
	return b, nil
}

// RecordPayment stores payment metadata entered by staff.
func (s *BookingService) RecordPayment(ctx context.Context, bookingID int64, upd models.PaymentUpdate, actor string) (*models.Booking, error) {
	if !slices.Contains(models.PaymentStatuses, upd.Status) {
		return nil, invalidf("unknown payment status %q", upd.Status)
	}
	if upd.PaidAmount < 0 {
		return nil, invalidf("paid amount must not be negative")
	}

	var before, after *models.Booking
	err := s.withRetry(ctx, "record payment", func() error {
		var err error
		before, after, err = s.repo.UpdatePayment(ctx, bookingID, upd)
		return err
	})
	if err != nil {
		return nil, err
	}

	if before.PaymentStatus != after.PaymentStatus || before.PaymentVerified != after.PaymentVerified {
		publishBookingEvent(s.eventBus, s.logger, events.EventPaymentReceived, after)
	}
	if before.Status != after.Status && after.Status == models.StatusConfirmed {
		publishBookingEvent(s.eventBus, s.logger, events.EventBookingConfirmed, after)
	}
	publishAudit(s.eventBus, s.logger, actor, "booking.payment", "booking", bookingID, before, after)
	return after, nil
}

// ExpireStalePending cancels online requests whose payment never arrived
// within the grace window. It returns the number of bookings cancelled.
func (s *BookingService) ExpireStalePending(ctx context.Context) (int, error) {
	pending, err := s.repo.GetPendingUnpaidBookings(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.clock.Now().Add(-s.opts.GraceWindow)

	expired := 0
	for _, b := range pending {
		if !b.CreatedAt.Before(cutoff) {
			continue
		}
		cancelled, ok, err := s.repo.ExpirePendingBooking(ctx, b.ID, cutoff)
		if err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("expire booking failed")
			continue
		}
		if !ok {
			continue
		}
		expired++
		publishBookingEvent(s.eventBus, s.logger, events.EventBookingCancelled, cancelled)
	}
	return expired, nil
}

// GetBooking returns a booking; with a non-nil ownerID it must belong to that customer.
func (s *BookingService) GetBooking(ctx context.Context, id int64, ownerID *string) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if ownerID != nil && !b.OwnedBy(*ownerID) {
		return nil, database.ErrBookingNotFound
	}
	return b, nil
}

func (s *BookingService) GetOwnerBookings(ctx context.Context, ownerID string) ([]*models.Booking, error) {
	return s.repo.GetOwnerBookings(ctx, ownerID)
}

// GetDaySchedule lists every booking on date across sports.
func (s *BookingService) GetDaySchedule(ctx context.Context, date string) ([]*models.Booking, error) {
	if _, err := parseDate(date); err != nil {
		return nil, err
	}
	return s.repo.GetBookingsByDate(ctx, date)
}

func (s *BookingService) amount(ctx context.Context, sport *models.Sport, date string, duration float64) (float64, error) {
	day, err := parseDate(date)
	if err != nil {
		return 0, err
	}
	price, err := s.pricing.PriceFor(ctx, sport, day)
	if err != nil {
		return 0, err
	}
	return math.Round(price*duration*100) / 100, nil
}

// withRetry reruns fn while it fails with a transient lock error.
func (s *BookingService) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.opts.MaxTxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, database.ErrTransient) {
			return err
		}
		if attempt == s.opts.MaxTxAttempts {
			break
		}
		delay := s.opts.TxRetry.NextDelay(attempt)
		s.logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("transient failure, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (s *BookingService) recordConflict(err error) {
	switch {
	case errors.Is(err, database.ErrSlotUnavailable):
		metrics.IncConflict("unavailable")
	case errors.Is(err, database.ErrSlotBlocked):
		metrics.IncConflict("blocked")
	}
}

func endTime(sport *models.Sport, start string, duration float64) (string, error) {
	if !sport.AllowsDuration(duration) {
		return "", ErrInvalidDuration
	}
	end, err := models.AddHours(start, duration)
	if err != nil || end <= start {
		return "", ErrInvalidDuration
	}
	return end, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
