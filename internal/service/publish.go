package service

import (
	"courtside/internal/domain"
	"courtside/internal/events"
	"courtside/internal/models"

	"github.com/rs/zerolog"
)

// publishBookingEvent fans a booking snapshot out after commit. Failures are
// logged only; the committed operation stands.
func publishBookingEvent(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, b *models.Booking) {
	if bus == nil || b == nil {
		return
	}
	payload, err := events.NewBookingEvent(eventType, b)
	if err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("build event error")
		return
	}
	if err := bus.PublishJSON(eventType, payload); err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}

func publishAudit(bus domain.EventPublisher, logger *zerolog.Logger, actor, action, entityType string, entityID int64, before, after any) {
	if bus == nil {
		return
	}
	payload, err := events.NewAuditEvent(actor, action, entityType, entityID, before, after)
	if err != nil {
		logger.Error().Err(err).Str("action", action).Msg("build audit event error")
		return
	}
	if err := bus.PublishJSON(events.EventAuditRecorded, payload); err != nil {
		logger.Error().Err(err).Str("action", action).Int64("entity_id", entityID).Msg("publish audit error")
	}
}
