package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courtside/internal/config"
	"courtside/internal/database"
	"courtside/internal/domain"
	"courtside/internal/events"
	"courtside/internal/models"
	"courtside/internal/repository"
	"courtside/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-06-10 14:30 at UTC+5. 2025-06-14 is a Saturday.
var (
	testZone = time.FixedZone("UTC+5", 5*3600)
	testNow  = time.Date(2025, 6, 10, 14, 30, 0, 0, testZone)
)

const (
	adminKey   = "admin-key"
	adminExtra = "admin-extra"
	appKey     = "app-key"
	appExtra   = "app-extra"
)

type testServer struct {
	db     *database.DB
	server *HTTPServer
	ts     *httptest.Server
	futsal *models.Sport
}

func newTestConfig() *config.APIConfig {
	return &config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, Port: 0},
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: adminKey, Extra: adminExtra, Name: "front-desk", Permissions: []string{permAdmin}},
				{Key: appKey, Extra: appExtra, Name: "web", Permissions: []string{permReadCatalog, permWriteBookings}},
			},
		},
	}
}

func newTestServer(t *testing.T, cfg *config.APIConfig, store domain.RequestStore) *testServer {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	futsal := &models.Sport{Name: "Futsal", BasePrice: 2700, IsActive: true, SortOrder: 1, DurationOptions: []float64{1, 1.5, 2}}
	require.NoError(t, db.CreateSport(ctx, futsal))
	weekend := 3500.0
	require.NoError(t, db.CreatePricingRule(ctx, &models.PricingRule{
		SportID: futsal.ID, Type: models.RuleWeekend, PriceMultiplier: 1, OverridePrice: &weekend, IsActive: true,
	}))

	bus := events.NewEventBus(&logger)
	clock := service.NewVenueClock(testZone, func() time.Time { return testNow })
	sports := service.NewSportService(db, bus, &logger)
	require.NoError(t, sports.Refresh(ctx))
	pricing := service.NewPricingService(sports, db, nil, &logger)

	svc := Services{
		Sports:       sports,
		Pricing:      pricing,
		Availability: service.NewAvailabilityService(db, sports, pricing, clock, 15*time.Minute, &logger),
		Bookings:     service.NewBookingService(db, sports, pricing, bus, clock, service.BookingOptions{}, &logger),
		Blocks:       service.NewBlockService(db, sports, bus, &logger),
		Outbox:       db,
	}

	server := NewHTTPServer(cfg, svc, store, db, &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &testServer{db: db, server: server, ts: ts, futsal: futsal}
}

type requestOption func(*http.Request)

func asAdmin(req *http.Request) {
	req.Header.Set("x-api-key", adminKey)
	req.Header.Set("x-api-extra", adminExtra)
}

func asApp(req *http.Request) {
	req.Header.Set("x-api-key", appKey)
	req.Header.Set("x-api-extra", appExtra)
}

func withHeader(key, value string) requestOption {
	return func(req *http.Request) { req.Header.Set(key, value) }
}

func (s *testServer) do(t *testing.T, method, path string, body any, opts ...requestOption) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func bookingBody(date, start string, duration float64) map[string]any {
	return map[string]any{
		"sport":          "futsal",
		"date":           date,
		"start_time":     start,
		"duration":       duration,
		"customer_name":  "Ali Raza",
		"customer_phone": "+923001234567",
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	resp := s.do(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	resp := s.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("db down") }

func TestReadyz_DBFail(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)
	s.server.db = failingPinger{}

	resp := s.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	resp := s.do(t, http.MethodGet, "/healthz", nil, withHeader(requestIDHeader, "req-42"))
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))
}

func TestListSports(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	resp := s.do(t, http.MethodGet, "/api/v1/sports", nil, asApp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Sports []models.Sport `json:"sports"`
	}](t, resp)
	require.Len(t, body.Sports, 1)
	assert.Equal(t, "Futsal", body.Sports[0].Name)
}

func TestPrice(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	tests := []struct {
		date string
		want float64
	}{
		{"2025-06-13", 2700},
		{"2025-06-14", 3500},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			resp := s.do(t, http.MethodGet, "/api/v1/sports/futsal/price?date="+tt.date, nil, asApp)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			body := decode[struct {
				Price float64 `json:"price"`
			}](t, resp)
			assert.Equal(t, tt.want, body.Price)
		})
	}
}

func TestPriceErrors(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"missing date", "/api/v1/sports/futsal/price", http.StatusBadRequest, service.CodeInvalidRequest},
		{"bad date", "/api/v1/sports/futsal/price?date=14-06-2025", http.StatusBadRequest, service.CodeInvalidRequest},
		{"unknown sport", "/api/v1/sports/curling/price?date=2025-06-14", http.StatusNotFound, service.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, http.MethodGet, tt.path, nil, asApp)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[errorResponse](t, resp)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestAvailabilityReflectsBookings(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	resp := s.do(t, http.MethodPost, "/api/v1/admin/walk-ins", bookingBody("2025-06-14", "18:00", 2), asAdmin)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/sports/futsal/availability?date=2025-06-14", nil, asApp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Slots []models.Slot `json:"slots"`
	}](t, resp)
	require.Len(t, body.Slots, 24)
	for _, slot := range body.Slots {
		want := models.SlotAvailable
		if slot.Hour == 18 || slot.Hour == 19 {
			want = models.SlotBooked
		}
		assert.Equal(t, want, slot.Status, "hour %d", slot.Hour)
		assert.Equal(t, 3500.0, slot.Price)
	}
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)
	guest := withHeader(guestIDHeader, "guest-1")

	resp := s.do(t, http.MethodPost, "/api/v1/bookings", bookingBody("2025-06-14", "18:00", 2), asApp, guest)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Booking](t, resp)
	assert.Equal(t, 7000.0, created.Amount)
	assert.Equal(t, "20:00", created.EndTime)
	assert.Equal(t, models.StatusPending, created.Status)
	require.NotNil(t, created.GuestID)
	assert.Equal(t, "guest-1", *created.GuestID)

	t.Run("conflict", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/v1/bookings", bookingBody("2025-06-14", "19:00", 1), asApp)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		body := decode[errorResponse](t, resp)
		assert.Equal(t, service.CodeSlotUnavailable, body.Code)
	})

	t.Run("owner listing", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/v1/bookings", nil, asApp, guest)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Bookings []models.Booking `json:"bookings"`
		}](t, resp)
		require.Len(t, body.Bookings, 1)
		assert.Equal(t, created.ID, body.Bookings[0].ID)
	})

	t.Run("foreign owner cannot read", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/bookings/%d", created.ID)
		resp := s.do(t, http.MethodGet, path, nil, asApp, withHeader(guestIDHeader, "guest-2"))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	var moved models.Booking
	t.Run("reschedule", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/bookings/%d/reschedule", created.ID)
		resp := s.do(t, http.MethodPost, path, map[string]any{"date": "2025-06-14", "start_time": "19:00", "duration": 1}, asApp, guest)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "pending bookings cannot be moved")

		resp = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/bookings/%d/confirm", created.ID), nil, asAdmin)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = s.do(t, http.MethodPost, path, map[string]any{"date": "2025-06-14", "start_time": "19:00", "duration": 1}, asApp, guest)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[service.RescheduleResult](t, resp)
		require.NotNil(t, body.New)
		require.NotNil(t, body.Old)
		assert.Equal(t, models.StatusRescheduled, body.Old.Status)
		assert.Equal(t, 3500.0, body.New.Amount)
		moved = *body.New
	})

	t.Run("cancel", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/bookings/%d/cancel", moved.ID)
		resp := s.do(t, http.MethodPost, path, nil, asApp, guest)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[models.Booking](t, resp)
		assert.Equal(t, models.StatusCancelled, body.Status)

		resp = s.do(t, http.MethodPost, path, nil, asApp, guest)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, service.CodeAlreadyCancelled, decode[errorResponse](t, resp).Code)
	})
}

func TestCreateBookingRequiresOwnerForLookups(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	resp := s.do(t, http.MethodGet, "/api/v1/bookings", nil, asApp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/bookings/abc", nil, asApp, withHeader(userIDHeader, "u-1"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateBookingValidation(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	tests := []struct {
		name string
		body any
	}{
		{"missing phone", map[string]any{"sport": "futsal", "date": "2025-06-14", "start_time": "18:00", "duration": 1, "customer_name": "Ali"}},
		{"bad clock", map[string]any{"sport": "futsal", "date": "2025-06-14", "start_time": "6pm", "duration": 1, "customer_name": "Ali", "customer_phone": "+923001234567"}},
		{"unknown field", map[string]any{"sport": "futsal", "date": "2025-06-14", "start_time": "18:00", "duration": 1, "customer_name": "Ali", "customer_phone": "+923001234567", "discount": 50}},
		{"zero duration", map[string]any{"sport": "futsal", "date": "2025-06-14", "start_time": "18:00", "duration": 0, "customer_name": "Ali", "customer_phone": "+923001234567"}},
		{"past date", bookingBody("2025-06-01", "18:00", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, http.MethodPost, "/api/v1/bookings", tt.body, asApp)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[errorResponse](t, resp)
			assert.Equal(t, service.CodeInvalidRequest, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestBlockedSlotRejectsBooking(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	resp := s.do(t, http.MethodPost, "/api/v1/admin/blocked-slots", map[string]any{
		"sport": "futsal", "date": "2025-06-14", "start_time": "08:00", "end_time": "10:00", "reason": "maintenance",
	}, asAdmin)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	block := decode[models.BlockedSlot](t, resp)

	resp = s.do(t, http.MethodPost, "/api/v1/bookings", bookingBody("2025-06-14", "08:00", 1), asApp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, service.CodeSlotBlocked, decode[errorResponse](t, resp).Code)

	resp = s.do(t, http.MethodGet, "/api/v1/admin/blocked-slots?sport=futsal&date=2025-06-14", nil, asAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Blocks []models.BlockedSlot `json:"blocked_slots"`
	}](t, resp)
	assert.Len(t, list.Blocks, 1)

	resp = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/blocked-slots/%d", block.ID), nil, asAdmin)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/v1/bookings", bookingBody("2025-06-14", "08:00", 1), asApp)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAdminBookingLifecycle(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	resp := s.do(t, http.MethodPost, "/api/v1/bookings", bookingBody("2025-06-13", "10:00", 1), asApp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Booking](t, resp)

	resp = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/bookings/%d/payment", created.ID), map[string]any{
		"status": "paid", "method": "bank_transfer", "paid_amount": 2700, "verified": true,
	}, asAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paid := decode[models.Booking](t, resp)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	assert.True(t, paid.PaymentVerified)

	resp = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/bookings/%d/confirm", created.ID), nil, asAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusConfirmed, decode[models.Booking](t, resp).Status)

	resp = s.do(t, http.MethodGet, "/api/v1/admin/bookings?date=2025-06-13", nil, asAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	day := decode[struct {
		Bookings []models.Booking `json:"bookings"`
	}](t, resp)
	assert.Len(t, day.Bookings, 1)

	resp = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/bookings/%d/cancel", created.ID), nil, asAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusCancelled, decode[models.Booking](t, resp).Status)
}

func TestAdminPaymentValidation(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	resp := s.do(t, http.MethodPost, "/api/v1/admin/bookings/1/payment", map[string]any{"status": "waived"}, asAdmin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/v1/admin/bookings/999/payment", map[string]any{"status": "paid"}, asAdmin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSportAdministration(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	resp := s.do(t, http.MethodPost, "/api/v1/admin/sports", map[string]any{
		"name": "Padel", "base_price": 4000, "sort_order": 2, "duration_options": []float64{1, 1.5},
	}, asAdmin)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	padel := decode[models.Sport](t, resp)
	require.NotZero(t, padel.ID)
	assert.True(t, padel.IsActive)

	resp = s.do(t, http.MethodPost, "/api/v1/admin/sports", map[string]any{"name": "padel", "base_price": 1}, asAdmin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	rulesPath := fmt.Sprintf("/api/v1/admin/sports/%d/pricing-rules", padel.ID)
	resp = s.do(t, http.MethodPost, rulesPath, map[string]any{"type": "weekend", "price_multiplier": 1.25}, asAdmin)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rule := decode[models.PricingRule](t, resp)

	resp = s.do(t, http.MethodGet, "/api/v1/sports/padel/price?date=2025-06-14", nil, asApp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5000.0, decode[struct {
		Price float64 `json:"price"`
	}](t, resp).Price)

	resp = s.do(t, http.MethodGet, rulesPath, nil, asAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rules := decode[struct {
		Rules []models.PricingRule `json:"pricing_rules"`
	}](t, resp)
	assert.Len(t, rules.Rules, 1)

	resp = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/pricing-rules/%d", rule.ID), nil, asAdmin)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/sports/%d", padel.ID), map[string]any{
		"name": "Padel", "base_price": 4200,
	}, asAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/sports/padel/price?date=2025-06-14", nil, asApp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4200.0, decode[struct {
		Price float64 `json:"price"`
	}](t, resp).Price)

	resp = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/sports/%d", padel.ID), nil, asAdmin)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/sports/padel/price?date=2025-06-14", nil, asApp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIdempotentBookingReplay(t *testing.T) {
	s := newTestServer(t, newTestConfig(), repository.NewMemoryRequestStore())
	key := withHeader(idempotencyHeader, "checkout-7")

	first := s.do(t, http.MethodPost, "/api/v1/bookings", bookingBody("2025-06-14", "18:00", 1), asApp, key)
	require.Equal(t, http.StatusCreated, first.StatusCode)
	assert.Empty(t, first.Header.Get(replayedHeader))
	original := decode[models.Booking](t, first)

	second := s.do(t, http.MethodPost, "/api/v1/bookings", bookingBody("2025-06-14", "18:00", 1), asApp, key)
	require.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get(replayedHeader))
	replayed := decode[models.Booking](t, second)
	assert.Equal(t, original.ID, replayed.ID)

	// A fresh key reaches the allocator and hits the conflict.
	third := s.do(t, http.MethodPost, "/api/v1/bookings", bookingBody("2025-06-14", "18:00", 1), asApp, withHeader(idempotencyHeader, "checkout-8"))
	assert.Equal(t, http.StatusConflict, third.StatusCode)
}

func TestIdempotencyKeyTooLong(t *testing.T) {
	s := newTestServer(t, newTestConfig(), repository.NewMemoryRequestStore())
	long := string(bytes.Repeat([]byte("k"), 129))

	resp := s.do(t, http.MethodPost, "/api/v1/bookings", bookingBody("2025-06-14", "18:00", 1), asApp, withHeader(idempotencyHeader, long))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBookingQuotaPerPhone(t *testing.T) {
	cfg := newTestConfig()
	cfg.BookingRateLimit = config.BookingRateLimitConfig{Limit: 2, WindowSeconds: 60}
	s := newTestServer(t, cfg, repository.NewMemoryRequestStore())

	for _, start := range []string{"08:00", "09:00"} {
		resp := s.do(t, http.MethodPost, "/api/v1/bookings", bookingBody("2025-06-14", start, 1), asApp)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := s.do(t, http.MethodPost, "/api/v1/bookings", bookingBody("2025-06-14", "10:00", 1), asApp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, codeRateLimited, decode[errorResponse](t, resp).Code)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)

	resp := s.do(t, http.MethodGet, "/api/v1/nothing-here", nil, asApp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodPatch, "/api/v1/bookings", nil, asApp)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTPServer_StartStop(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)
	s.server.server.Addr = "127.0.0.1:0"

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.server.Shutdown(ctx))
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestFailedNotifications(t *testing.T) {
	s := newTestServer(t, newTestConfig(), nil)
	ctx := context.Background()

	resp := s.do(t, http.MethodGet, "/api/v1/admin/notifications/failed", nil, asAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	empty := decode[map[string][]models.NotificationTask](t, resp)
	assert.Empty(t, empty["notifications"])

	delivered := &models.NotificationTask{Channel: "kafka", EventKind: "booking.created", BookingID: 1, Payload: "{}"}
	require.NoError(t, s.db.CreateNotificationTask(ctx, delivered))
	require.NoError(t, s.db.UpdateNotificationTaskStatus(ctx, delivered.ID, models.TaskCompleted, "", nil))
	dead := &models.NotificationTask{Channel: "amqp", EventKind: "booking.cancelled", BookingID: 2, Payload: "{}"}
	require.NoError(t, s.db.CreateNotificationTask(ctx, dead))
	require.NoError(t, s.db.UpdateNotificationTaskStatus(ctx, dead.ID, models.TaskFailed, "broker unreachable", nil))

	resp = s.do(t, http.MethodGet, "/api/v1/admin/notifications/failed", nil, asAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string][]models.NotificationTask](t, resp)["notifications"]
	require.Len(t, got, 1)
	assert.Equal(t, dead.ID, got[0].ID)
	assert.Equal(t, "amqp", got[0].Channel)
	require.NotNil(t, got[0].LastError)
	assert.Equal(t, "broker unreachable", *got[0].LastError)

	resp = s.do(t, http.MethodGet, "/api/v1/admin/notifications/failed", nil, asApp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
