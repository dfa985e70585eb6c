package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"courtside/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes booking events to a topic exchange with routing key
// "booking.<kind>".
type AMQPSink struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	logger   *zerolog.Logger
}

func NewAMQPSink(url, exchange string, logger *zerolog.Logger) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	sink := newAMQPSinkWithChannel(ch, exchange, logger)
	sink.conn = conn
	return sink, nil
}

func newAMQPSinkWithChannel(ch amqpChannel, exchange string, logger *zerolog.Logger) *AMQPSink {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AMQPSink{ch: ch, exchange: exchange, logger: logger}
}

func (s *AMQPSink) Name() string { return "amqp" }

func RoutingKey(kind string) string {
	return "booking." + kind
}

func (s *AMQPSink) Deliver(ctx context.Context, e *events.BookingEventPayload) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = s.ch.PublishWithContext(ctx, s.exchange, RoutingKey(e.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.EventID,
		Timestamp:    e.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.exchange, err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
