package service

import (
	"context"
	"sync"
	"time"

	"courtside/internal/domain"
	"courtside/internal/models"

	"github.com/rs/zerolog"
)

type availabilityStore interface {
	GetActiveBookings(ctx context.Context, sportID int64, date string) ([]*models.Booking, error)
	GetOverflowBookings(ctx context.Context, sportID int64, date string) ([]*models.Booking, error)
	domain.BlockedSlotRepository
}

// AvailabilityService projects bookings and blocks onto the hourly grid. It is
// read-only and does not take the allocation lock, so a projection may be
// momentarily stale; the allocator has the final word.
type AvailabilityService struct {
	repo    availabilityStore
	sports  SportCatalog
	pricing *PricingService
	clock   *VenueClock
	grace   time.Duration
	logger  *zerolog.Logger
}

func NewAvailabilityService(repo availabilityStore, sports SportCatalog, pricing *PricingService, clock *VenueClock, grace time.Duration, logger *zerolog.Logger) *AvailabilityService {
	if grace <= 0 {
		grace = models.DefaultGraceMinutes * time.Minute
	}
	return &AvailabilityService{
		repo:    repo,
		sports:  sports,
		pricing: pricing,
		clock:   clock,
		grace:   grace,
		logger:  logger,
	}
}

// GetAvailability returns the 24 slots of sportRef on date.
func (s *AvailabilityService) GetAvailability(ctx context.Context, sportRef, date string) ([]models.Slot, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	sport, err := s.sports.ResolveSport(ctx, sportRef)
	if err != nil {
		return nil, err
	}
	previousDate := day.AddDate(0, 0, -1).Format(models.DateLayout)

	var (
		wg       sync.WaitGroup
		price    float64
		bookings []*models.Booking
		overflow []*models.Booking
		blocks   []*models.BlockedSlot
		errs     [4]error
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		price, errs[0] = s.pricing.PriceFor(ctx, sport, day)
	}()
	go func() {
		defer wg.Done()
		bookings, errs[1] = s.repo.GetActiveBookings(ctx, sport.ID, date)
	}()
	go func() {
		defer wg.Done()
		overflow, errs[2] = s.repo.GetOverflowBookings(ctx, sport.ID, previousDate)
	}()
	go func() {
		defer wg.Done()
		blocks, errs[3] = s.repo.GetBlockedSlots(ctx, sport.ID, date)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	slots := GenerateSlotGrid(price)

	var ranges [][2]int
	for _, b := range bookings {
		if !s.holdsSlot(b, now) {
			continue
		}
		ranges = appendRange(ranges, b.StartTime, b.EndTime)
	}
	for _, bl := range blocks {
		ranges = appendRange(ranges, bl.StartTime, bl.EndTime)
	}

	for i := range slots {
		start := slots[i].Hour * 60
		for _, r := range ranges {
			if start >= r[0] && start < r[1] {
				slots[i].Status = models.SlotBooked
				break
			}
		}
	}

	// Spillover from the previous evening is applied at whole-hour granularity:
	// a booking ending at 25:30 marks only the 00:00 slot.
	for _, b := range overflow {
		if !s.holdsSlot(b, now) {
			continue
		}
		endHour := models.ClockHour(b.EndTime)
		if endHour <= 24 {
			continue
		}
		overflowHour := endHour - 24
		for i := range slots {
			if slots[i].Status == models.SlotAvailable && overflowHour > slots[i].Hour {
				slots[i].Status = models.SlotBooked
			}
		}
	}

	if date == now.Format(models.DateLayout) {
		currentHour := now.Hour()
		for i := range slots {
			if slots[i].Status == models.SlotAvailable && slots[i].Hour < currentHour {
				slots[i].Status = models.SlotPassed
			}
		}
	}

	s.logger.Debug().Int64("sport_id", sport.ID).Str("date", date).Int("bookings", len(bookings)).
		Int("blocks", len(blocks)).Msg("availability projected")
	return slots, nil
}

// holdsSlot reports whether a booking counts against availability: confirmed,
// paid in some form, or an unpaid request still inside the grace window.
func (s *AvailabilityService) holdsSlot(b *models.Booking, now time.Time) bool {
	if !b.IsActive() {
		return false
	}
	if b.Status == models.StatusConfirmed || b.PaymentStatus != models.PaymentPending {
		return true
	}
	return now.Sub(b.CreatedAt) <= s.grace
}

func appendRange(ranges [][2]int, start, end string) [][2]int {
	from, err := models.ParseClock(start)
	if err != nil {
		return ranges
	}
	to, err := models.ParseClock(end)
	if err != nil {
		return ranges
	}
	return append(ranges, [2]int{from, to})
}
