// Package notify delivers booking events to external channels.
package notify

import (
	"context"
	"errors"
	"fmt"

	"courtside/internal/config"
	"courtside/internal/events"

	"github.com/rs/zerolog"
)

// Sink delivers a single booking event to one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event *events.BookingEventPayload) error
}

// Closer is implemented by sinks holding network resources.
type Closer interface {
	Close() error
}

// BuildSinks constructs every sink enabled in cfg. Already opened sinks are
// closed when a later one fails.
func BuildSinks(cfg *config.NotificationsConfig, logger *zerolog.Logger) ([]Sink, error) {
	var sinks []Sink
	if cfg.Log.Enabled {
		sinks = append(sinks, NewLogSink(logger))
	}
	if cfg.Kafka.Enabled {
		k, err := NewKafkaSink(&cfg.Kafka, logger)
		if err != nil {
			CloseAll(sinks)
			return nil, err
		}
		sinks = append(sinks, k)
	}
	if cfg.AMQP.Enabled {
		a, err := NewAMQPSink(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			CloseAll(sinks)
			return nil, err
		}
		sinks = append(sinks, a)
	}
	return sinks, nil
}

// CloseAll closes every sink that holds resources.
func CloseAll(sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s sink: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// LogSink writes notifications to the application log. Used in development and
// as the default channel when no broker is configured.
type LogSink struct {
	logger *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, e *events.BookingEventPayload) error {
	s.logger.Info().
		Str("event_id", e.EventID).
		Str("event_kind", e.Kind).
		Int64("booking_id", e.BookingID).
		Str("sport", e.SportName).
		Str("customer", e.CustomerName).
		Str("phone", e.CustomerPhone).
		Str("date", e.Date).
		Str("start_time", e.StartTime).
		Str("end_time", e.EndTime).
		Float64("amount", e.Amount).
		Str("status", e.Status).
		Msg("booking notification")
	return nil
}
