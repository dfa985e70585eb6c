package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"courtside/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	API           APIConfig           `yaml:"api"`
	Venue         VenueConfig         `yaml:"venue"`
	Booking       BookingConfig       `yaml:"booking"`
	Pricing       PricingConfig       `yaml:"pricing"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Sports        []models.Sport      `yaml:"sports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled          bool                   `yaml:"enabled"`
	HTTP             APIHTTPConfig          `yaml:"http"`
	Auth             APIAuthConfig          `yaml:"auth"`
	RateLimit        APIRateLimitConfig     `yaml:"rate_limit"`
	BookingRateLimit BookingRateLimitConfig `yaml:"booking_rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BookingRateLimitConfig caps booking attempts per customer phone across instances.
type BookingRateLimitConfig struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"window_seconds"`
}

type VenueConfig struct {
	Name           string `yaml:"name"`
	UTCOffsetHours int    `yaml:"utc_offset_hours"`
	MaxBookingDays int    `yaml:"max_booking_days"`
}

// Location returns the fixed-offset zone the venue operates in.
func (v VenueConfig) Location() *time.Location {
	name := fmt.Sprintf("UTC%+d", v.UTCOffsetHours)
	return time.FixedZone(name, v.UTCOffsetHours*3600)
}

type BookingConfig struct {
	GraceMinutes   int    `yaml:"grace_minutes"`
	MaxTxAttempts  int    `yaml:"max_tx_attempts"`
	ExpirePending  bool   `yaml:"expire_pending"`
	ExpiryInterval string `yaml:"expiry_interval"`
	SportCacheTTL  string `yaml:"sport_cache_ttl"`
}

// GraceWindow is how long an unpaid online booking keeps its slot.
func (b BookingConfig) GraceWindow() time.Duration {
	return time.Duration(b.GraceMinutes) * time.Minute
}

// ExpiryEvery parses ExpiryInterval, falling back to one minute.
func (b BookingConfig) ExpiryEvery() time.Duration {
	if d, err := time.ParseDuration(b.ExpiryInterval); err == nil && d > 0 {
		return d
	}
	return time.Minute
}

// SportCacheEvery parses SportCacheTTL, falling back to 30 seconds.
func (b BookingConfig) SportCacheEvery() time.Duration {
	if d, err := time.ParseDuration(b.SportCacheTTL); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

type PricingConfig struct {
	// FallbackPrices maps lower-cased sport names to an hourly price used when the
	// catalogue has no matching sport.
	FallbackPrices map[string]float64 `yaml:"fallback_prices"`
}

type NotificationsConfig struct {
	Enabled      bool              `yaml:"enabled"`
	PollInterval string            `yaml:"poll_interval"`
	Log          LogSinkConfig     `yaml:"log"`
	Kafka        KafkaSinkConfig   `yaml:"kafka"`
	AMQP         AMQPSinkConfig    `yaml:"amqp"`
	Retry        RetryPolicyConfig `yaml:"retry"`
}

type LogSinkConfig struct {
	Enabled bool `yaml:"enabled"`
}

type KafkaSinkConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	RetryMax     int      `yaml:"retry_max"`
	TimeoutMs    int      `yaml:"timeout_ms"`
	RequiredAcks string   `yaml:"required_acks"`
}

type AMQPSinkConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type RetryPolicyConfig struct {
	MaxRetries    int     `yaml:"max_retries"`
	InitialDelay  string  `yaml:"initial_delay"`
	MaxDelay      string  `yaml:"max_delay"`
	BackoffFactor float64 `yaml:"backoff_factor"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Venue.UTCOffsetHours < -12 || c.Venue.UTCOffsetHours > 14 {
		return fmt.Errorf("venue utc offset %d out of range", c.Venue.UTCOffsetHours)
	}
	if c.Booking.GraceMinutes < 0 {
		return errors.New("booking grace_minutes must not be negative")
	}
	if c.Notifications.Kafka.Enabled && len(c.Notifications.Kafka.Brokers) == 0 {
		return errors.New("notifications.kafka requires brokers")
	}
	if c.Notifications.AMQP.Enabled && c.Notifications.AMQP.URL == "" {
		return errors.New("notifications.amqp requires url")
	}
	if c.API.Enabled && c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth is enabled but no api keys are configured")
	}

	return ValidateSports(c.Sports)
}

func ValidateSports(sports []models.Sport) error {
	names := make(map[string]bool)
	for _, sport := range sports {
		name := strings.ToLower(strings.TrimSpace(sport.Name))
		if name == "" {
			return errors.New("sport name is required")
		}
		if names[name] {
			return fmt.Errorf("duplicate sport name found: %s", sport.Name)
		}
		names[name] = true
		if sport.BasePrice <= 0 {
			return fmt.Errorf("sport '%s' has invalid base price %.2f", sport.Name, sport.BasePrice)
		}
		for _, d := range sport.DurationOptions {
			if d <= 0 {
				return fmt.Errorf("sport '%s' has invalid duration option %.2f", sport.Name, d)
			}
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.BookingRateLimit.WindowSeconds == 0 {
		c.API.BookingRateLimit.WindowSeconds = 3600
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	// Venue defaults
	if c.Venue.UTCOffsetHours == 0 {
		c.Venue.UTCOffsetHours = models.DefaultVenueUTCOffsetHours
	}
	if c.Venue.MaxBookingDays == 0 {
		c.Venue.MaxBookingDays = models.DefaultMaxBookingDays
	}

	// Booking defaults
	if c.Booking.GraceMinutes == 0 {
		c.Booking.GraceMinutes = models.DefaultGraceMinutes
	}
	if c.Booking.MaxTxAttempts == 0 {
		c.Booking.MaxTxAttempts = 3
	}

	if c.Notifications.PollInterval == "" {
		c.Notifications.PollInterval = "2s"
	}
	if c.Notifications.Kafka.Topic == "" {
		c.Notifications.Kafka.Topic = "booking-notifications"
	}
	if c.Notifications.AMQP.Exchange == "" {
		c.Notifications.AMQP.Exchange = "courtside.bookings"
	}
	if c.Notifications.Retry.MaxRetries == 0 {
		c.Notifications.Retry.MaxRetries = 5
	}

	for i := range c.Sports {
		if c.Sports[i].SortOrder == 0 {
			c.Sports[i].SortOrder = int64(i + 1)
		}
	}
}
