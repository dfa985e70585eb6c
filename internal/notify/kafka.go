package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"courtside/internal/config"
	"courtside/internal/events"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// KafkaSink publishes booking events to a Kafka topic keyed by booking id,
// so every event of one booking lands on the same partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zerolog.Logger
}

func NewKafkaSink(cfg *config.KafkaSinkConfig, logger *zerolog.Logger) (*KafkaSink, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = requiredAcks(cfg.RequiredAcks)
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	if cfg.RetryMax > 0 {
		saramaConfig.Producer.Retry.Max = cfg.RetryMax
	}
	if cfg.TimeoutMs > 0 {
		saramaConfig.Producer.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(producer, cfg.Topic, logger), nil
}

// NewKafkaSinkWithProducer wraps an existing producer.
func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string, logger *zerolog.Logger) *KafkaSink {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &KafkaSink{producer: producer, topic: topic, logger: logger}
}

func requiredAcks(v string) sarama.RequiredAcks {
	switch strings.ToLower(v) {
	case "none", "0":
		return sarama.NoResponse
	case "local", "1":
		return sarama.WaitForLocal
	default:
		return sarama.WaitForAll
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(_ context.Context, e *events.BookingEventPayload) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(e.BookingID, 10)),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(e.EventID)},
			{Key: []byte("event_kind"), Value: []byte(e.Kind)},
		},
		Timestamp: e.OccurredAt,
	}

	partition, offset, err := s.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send notification to Kafka: %w", err)
	}

	s.logger.Debug().
		Str("topic", s.topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Str("event_kind", e.Kind).
		Int64("booking_id", e.BookingID).
		Msg("notification published to kafka")
	return nil
}

func (s *KafkaSink) Close() error {
	if s.producer == nil {
		return nil
	}
	if err := s.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
