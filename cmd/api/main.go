package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"courtside/internal/api"
	"courtside/internal/config"
	"courtside/internal/database"
	"courtside/internal/domain"
	"courtside/internal/events"
	"courtside/internal/logging"
	"courtside/internal/metrics"
	"courtside/internal/models"
	"courtside/internal/notify"
	"courtside/internal/repository"
	"courtside/internal/service"
	"courtside/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	sports, err := loadSports(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, sports, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	store := initRequestStore(redisClient, logger)

	bus := events.NewEventBus(logging.Component(logger, "events"))
	service.NewAuditRecorder(db, logging.Component(logger, "audit")).Subscribe(bus)

	sinks, err := notify.BuildSinks(&cfg.Notifications, logging.Component(logger, "notify"))
	if err != nil {
		return fmt.Errorf("build notification sinks: %w", err)
	}
	defer func() {
		if err := notify.CloseAll(sinks); err != nil {
			logger.Warn().Err(err).Msg("close notification sinks")
		}
	}()

	svc, bookings, err := buildServices(ctx, cfg, db, bus, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	startBackground := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	if cfg.Notifications.Enabled && len(sinks) > 0 {
		nw := worker.NewNotificationWorker(
			db,
			sinks,
			redisClient,
			worker.RetryPolicyFromConfig(cfg.Notifications.Retry),
			parseDuration(cfg.Notifications.PollInterval, 2*time.Second),
			logging.Component(logger, "notification-worker"),
		)
		nw.Subscribe(bus)
		startBackground(nw.Start)
	}

	if cfg.Booking.ExpirePending {
		ew := worker.NewExpiryWorker(bookings, cfg.Booking.ExpiryEvery(), logging.Component(logger, "expiry-worker"))
		startBackground(ew.Start)
	}

	backup := database.NewBackupService(db, cfg.Database.Path, cfg.Backup, logging.Component(logger, "backup"))
	startBackground(backup.Start)

	startMetrics(ctx, cfg, logger)

	httpServer := api.NewHTTPServer(&cfg.API, svc, store, db, logging.Component(logger, "http"))
	err = serve(ctx, httpServer, cfg, logger)

	stop()
	wg.Wait()
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(baseLogger, "api-main")

	return cfg, logger, closer, nil
}

// loadSports reads the sport catalogue from SPORTS_PATH. When the file does
// not exist the sports listed in the main config are used.
func loadSports(cfg *config.Config, logger *zerolog.Logger) ([]models.Sport, error) {
	sportsPath := os.Getenv("SPORTS_PATH")
	if sportsPath == "" {
		sportsPath = "configs/sports.yaml"
	}
	data, err := os.ReadFile(sportsPath)
	if errors.Is(err, os.ErrNotExist) {
		return cfg.Sports, nil
	}
	if err != nil {
		logger.Error().Err(err).Str("sports_path", sportsPath).Msg("read sports")
		return nil, err
	}

	var sportsConfig struct {
		Sports []models.Sport `yaml:"sports"`
	}
	if err := yaml.Unmarshal(data, &sportsConfig); err != nil {
		logger.Error().Err(err).Str("sports_path", sportsPath).Msg("parse sports")
		return nil, err
	}
	for i := range sportsConfig.Sports {
		if sportsConfig.Sports[i].SortOrder == 0 {
			sportsConfig.Sports[i].SortOrder = int64(i + 1)
		}
	}
	if err := config.ValidateSports(sportsConfig.Sports); err != nil {
		return nil, fmt.Errorf("sports catalogue: %w", err)
	}
	return sportsConfig.Sports, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, sports []models.Sport, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}

	if len(sports) > 0 {
		created, err := db.SeedSports(ctx, sports)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed sports: %w", err)
		}
		logger.Info().Int("created", created).Msg("sport catalogue seeded")
	}
	return db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initRequestStore(redisClient *redis.Client, logger *zerolog.Logger) domain.RequestStore {
	memory := repository.NewMemoryRequestStore()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverRequestStore(
		repository.NewRedisRequestStore(redisClient),
		memory,
		logging.Component(logger, "request-store"),
	)
}

func buildServices(ctx context.Context, cfg *config.Config, db *database.DB, bus *events.EventBus, logger *zerolog.Logger) (api.Services, *service.BookingService, error) {
	clock := service.NewVenueClock(cfg.Venue.Location(), nil)

	sports := service.NewSportService(db, bus, logging.Component(logger, "sports"))
	sports.SetCacheTTL(cfg.Booking.SportCacheEvery())
	if err := sports.Refresh(ctx); err != nil {
		return api.Services{}, nil, fmt.Errorf("load sports: %w", err)
	}
	pricing := service.NewPricingService(sports, db, cfg.Pricing.FallbackPrices, logging.Component(logger, "pricing"))
	availability := service.NewAvailabilityService(db, sports, pricing, clock, cfg.Booking.GraceWindow(), logging.Component(logger, "availability"))
	bookings := service.NewBookingService(db, sports, pricing, bus, clock, service.BookingOptions{
		MaxBookingDays: cfg.Venue.MaxBookingDays,
		GraceWindow:    cfg.Booking.GraceWindow(),
		MaxTxAttempts:  cfg.Booking.MaxTxAttempts,
	}, logging.Component(logger, "bookings"))
	blocks := service.NewBlockService(db, sports, bus, logging.Component(logger, "blocks"))

	return api.Services{
		Sports:       sports,
		Pricing:      pricing,
		Availability: availability,
		Bookings:     bookings,
		Blocks:       blocks,
		Outbox:       db,
	}, bookings, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Str("venue", cfg.Venue.Name).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}
