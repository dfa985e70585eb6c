package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"courtside/internal/domain"
	"courtside/internal/events"
	"courtside/internal/models"

	"github.com/rs/zerolog"
)

// AuditRecorder persists audit events published on the bus.
type AuditRecorder struct {
	repo   domain.AuditRepository
	logger *zerolog.Logger
}

func NewAuditRecorder(repo domain.AuditRepository, logger *zerolog.Logger) *AuditRecorder {
	return &AuditRecorder{repo: repo, logger: logger}
}

// Subscribe attaches the recorder to bus.
func (r *AuditRecorder) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventAuditRecorded, r.handle)
}

func (r *AuditRecorder) handle(ev *events.Event) error {
	var p events.AuditEventPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return fmt.Errorf("decode audit payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &models.AuditEntry{
		Actor:      p.Actor,
		Action:     p.Action,
		EntityType: p.EntityType,
		EntityID:   p.EntityID,
		Before:     string(p.Before),
		After:      string(p.After),
	}
	if err := r.repo.CreateAuditEntry(ctx, entry); err != nil {
		return err
	}
	r.logger.Info().Str("actor", p.Actor).Str("action", p.Action).Str("entity", p.EntityType).
		Int64("entity_id", p.EntityID).Msg("audit recorded")
	return nil
}
