package service

import (
	"context"
	"testing"
	"time"

	"courtside/internal/database"
	"courtside/internal/models"
	"courtside/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// 2025-06-10 14:30 at UTC+5, a Tuesday. 2025-06-13 is a Friday, 2025-06-14 a Saturday.
var (
	venueZone = time.FixedZone("UTC+5", 5*3600)
	fixedNow  = time.Date(2025, 6, 10, 14, 30, 0, 0, venueZone)
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

func (m *mockPublisher) count(eventType string) int {
	n := 0
	for _, call := range m.Calls {
		if call.Arguments.String(0) == eventType {
			n++
		}
	}
	return n
}

type testEnv struct {
	db           *database.DB
	bus          *mockPublisher
	now          func() time.Time
	sports       *SportService
	pricing      *PricingService
	availability *AvailabilityService
	bookings     *BookingService
	blocks       *BlockService
	futsal       *models.Sport
	padel        *models.Sport
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{db: db, bus: &mockPublisher{}, now: func() time.Time { return fixedNow }}
	env.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	ctx := context.Background()
	env.futsal = &models.Sport{Name: "Futsal", BasePrice: 2700, IsActive: true, SortOrder: 1, DurationOptions: []float64{1, 1.5, 2}}
	env.padel = &models.Sport{Name: "Padel", BasePrice: 4000, IsActive: true, SortOrder: 2, DurationOptions: []float64{1, 1.5, 2}}
	require.NoError(t, db.CreateSport(ctx, env.futsal))
	require.NoError(t, db.CreateSport(ctx, env.padel))

	weekend := 3500.0
	require.NoError(t, db.CreatePricingRule(ctx, &models.PricingRule{SportID: env.futsal.ID, Type: models.RuleWeekend, PriceMultiplier: 1, OverridePrice: &weekend, IsActive: true}))
	require.NoError(t, db.CreatePricingRule(ctx, &models.PricingRule{SportID: env.padel.ID, Type: models.RuleWeekend, PriceMultiplier: 1.25, IsActive: true}))

	clock := NewVenueClock(venueZone, func() time.Time { return env.now() })
	env.sports = NewSportService(db, env.bus, &logger)
	require.NoError(t, env.sports.Refresh(ctx))
	env.pricing = NewPricingService(env.sports, db, map[string]float64{"Squash": 1500}, &logger)
	env.availability = NewAvailabilityService(db, env.sports, env.pricing, clock, 15*time.Minute, &logger)
	env.bookings = NewBookingService(db, env.sports, env.pricing, env.bus, clock, BookingOptions{
		MaxBookingDays: 60,
		GraceWindow:    15 * time.Minute,
		MaxTxAttempts:  3,
		TxRetry:        worker.RetryPolicy{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2},
	}, &logger)
	env.blocks = NewBlockService(db, env.sports, env.bus, &logger)
	return env
}

// useWallClock switches the venue clock to real time shifted by offset, for
// tests that compare against created_at timestamps written by the database.
func (e *testEnv) useWallClock(offset *time.Duration) {
	e.now = func() time.Time { return time.Now().Add(*offset) }
}

func (e *testEnv) request(sport, date, start string, duration float64) BookingRequest {
	return BookingRequest{
		Sport:         sport,
		Date:          date,
		StartTime:     start,
		Duration:      duration,
		CustomerName:  "Ali Raza",
		CustomerPhone: "+923001234567",
	}
}

func strPtr(s string) *string { return &s }
