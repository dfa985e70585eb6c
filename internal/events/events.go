package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"courtside/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventBookingCreated     = "booking.created"
	EventBookingConfirmed   = "booking.confirmed"
	EventBookingCancelled   = "booking.cancelled"
	EventBookingRescheduled = "booking.rescheduled"
	EventPaymentReceived    = "booking.payment_received"

	EventAuditRecorded = "audit.recorded"
)

// BookingEventTypes lists every event that is fanned out to notification sinks.
var BookingEventTypes = []string{
	EventBookingCreated,
	EventBookingConfirmed,
	EventBookingCancelled,
	EventBookingRescheduled,
	EventPaymentReceived,
}

// Notification kinds carried in BookingEventPayload.Kind.
const (
	KindCreated         = "created"
	KindConfirmed       = "confirmed"
	KindCancelled       = "cancelled"
	KindRescheduled     = "rescheduled"
	KindPaymentReceived = "payment_received"
)

var kindByType = map[string]string{
	EventBookingCreated:     KindCreated,
	EventBookingConfirmed:   KindConfirmed,
	EventBookingCancelled:   KindCancelled,
	EventBookingRescheduled: KindRescheduled,
	EventPaymentReceived:    KindPaymentReceived,
}

// KindOf maps an event type to its notification kind.
func KindOf(eventType string) (string, bool) {
	kind, ok := kindByType[eventType]
	return kind, ok
}

// BookingEventPayload is the booking snapshot handed to notification sinks.
type BookingEventPayload struct {
	EventID           string    `json:"event_id"`
	Kind              string    `json:"kind"`
	BookingID         int64     `json:"booking_id"`
	SportID           int64     `json:"sport_id"`
	SportName         string    `json:"sport_name"`
	CustomerName      string    `json:"customer_name"`
	CustomerPhone     string    `json:"customer_phone"`
	CustomerEmail     string    `json:"customer_email,omitempty"`
	Date              string    `json:"date"`
	StartTime         string    `json:"start_time"`
	EndTime           string    `json:"end_time"`
	Amount            float64   `json:"amount"`
	Status            string    `json:"status"`
	PaymentStatus     string    `json:"payment_status"`
	Source            string    `json:"source"`
	PreviousBookingID *int64    `json:"previous_booking_id,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// NewBookingEvent snapshots b for the given event type.
func NewBookingEvent(eventType string, b *models.Booking) (*BookingEventPayload, error) {
	kind, ok := KindOf(eventType)
	if !ok {
		return nil, fmt.Errorf("unknown booking event type: %s", eventType)
	}
	return &BookingEventPayload{
		EventID:           uuid.NewString(),
		Kind:              kind,
		BookingID:         b.ID,
		SportID:           b.SportID,
		SportName:         b.SportName,
		CustomerName:      b.CustomerName,
		CustomerPhone:     b.CustomerPhone,
		CustomerEmail:     b.CustomerEmail,
		Date:              b.Date,
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		Amount:            b.Amount,
		Status:            b.Status,
		PaymentStatus:     b.PaymentStatus,
		Source:            b.Source,
		PreviousBookingID: b.RescheduledFrom,
		OccurredAt:        time.Now().UTC(),
	}, nil
}

// AuditEventPayload describes an administrative mutation.
type AuditEventPayload struct {
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// NewAuditEvent marshals before/after snapshots; nil snapshots are omitted.
func NewAuditEvent(actor, action, entityType string, entityID int64, before, after any) (*AuditEventPayload, error) {
	p := &AuditEventPayload{Actor: actor, Action: action, EntityType: entityType, EntityID: entityID}
	var err error
	if p.Before, err = snapshot(before); err != nil {
		return nil, err
	}
	if p.After, err = snapshot(after); err != nil {
		return nil, err
	}
	return p, nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode audit snapshot: %w", err)
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events. Handler failures are logged
// and never reach the publisher.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		b.dispatch(handler, event)
	}
}

func (b *EventBus) dispatch(handler EventHandler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("event_type", event.Type).Msg("event handler panicked")
		}
	}()
	if err := handler(event); err != nil {
		b.logger.Warn().Err(err).Str("event_type", event.Type).Str("event_id", event.ID).Msg("event handler failed")
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// DecodeBookingEvent unmarshals the payload of a booking event.
func DecodeBookingEvent(event *Event) (*BookingEventPayload, error) {
	var p BookingEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	return &p, nil
}
