package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"courtside/internal/config"
	"courtside/internal/domain"
	"courtside/internal/models"
	"courtside/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Services bundles the booking core the HTTP layer calls into.
type Services struct {
	Sports       *service.SportService
	Pricing      *service.PricingService
	Availability *service.AvailabilityService
	Bookings     *service.BookingService
	Blocks       *service.BlockService
	// Outbox is optional; without it the failed-notification listing is empty.
	Outbox       FailedNotifications
}

// FailedNotifications lists outbox rows that exhausted their retries.
type FailedNotifications interface {
	GetFailedNotificationTasks(ctx context.Context) ([]models.NotificationTask, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HTTPServer exposes the booking API over HTTP.
type HTTPServer struct {
	cfg      *config.APIConfig
	svc      Services
	store    domain.RequestStore
	db       Pinger
	validate *validator.Validate
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

// NewHTTPServer wires routes and middleware. store may be nil, which disables
// idempotent replay and the per-phone booking quota.
func NewHTTPServer(cfg *config.APIConfig, svc Services, store domain.RequestStore, db Pinger, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		store:    store,
		db:       db,
		validate: newValidator(),
		auth:     NewHTTPAuth(cfg),
		logger:   logger,
	}

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, withRoute(pattern, h))
	}

	route("GET /healthz", srv.handleHealthz)
	route("GET /readyz", srv.handleReadyz)

	route("GET /api/v1/sports", srv.handleListSports)
	route("GET /api/v1/sports/{sport}/price", srv.handlePrice)
	route("GET /api/v1/sports/{sport}/availability", srv.handleAvailability)

	route("POST /api/v1/bookings", srv.idempotent("bookings", srv.handleCreateBooking))
	route("GET /api/v1/bookings", srv.handleOwnerBookings)
	route("GET /api/v1/bookings/{id}", srv.handleGetBooking)
	route("POST /api/v1/bookings/{id}/cancel", srv.handleCancelBooking)
	route("POST /api/v1/bookings/{id}/reschedule", srv.handleRescheduleBooking)

	route("POST /api/v1/admin/walk-ins", srv.idempotent("walk-ins", srv.handleCreateWalkIn))
	route("GET /api/v1/admin/bookings", srv.handleDaySchedule)
	route("POST /api/v1/admin/bookings/{id}/confirm", srv.handleConfirmBooking)
	route("POST /api/v1/admin/bookings/{id}/cancel", srv.handleAdminCancel)
	route("POST /api/v1/admin/bookings/{id}/payment", srv.handleRecordPayment)
	route("GET /api/v1/admin/blocked-slots", srv.handleListBlocks)
	route("POST /api/v1/admin/blocked-slots", srv.handleCreateBlock)
	route("DELETE /api/v1/admin/blocked-slots/{id}", srv.handleDeleteBlock)
	route("POST /api/v1/admin/sports", srv.handleCreateSport)
	route("PUT /api/v1/admin/sports/{id}", srv.handleUpdateSport)
	route("DELETE /api/v1/admin/sports/{id}", srv.handleDeactivateSport)
	route("GET /api/v1/admin/sports/{id}/pricing-rules", srv.handleListPricingRules)
	route("POST /api/v1/admin/sports/{id}/pricing-rules", srv.handleCreatePricingRule)
	route("DELETE /api/v1/admin/pricing-rules/{id}", srv.handleDeactivatePricingRule)
	route("GET /api/v1/admin/notifications/failed", srv.handleFailedNotifications)

	handler := recoverMiddleware(logger, loggingMiddleware(logger, srv.auth.Wrap(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
