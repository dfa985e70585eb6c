package service

import (
	"context"
	"strings"

	"courtside/internal/domain"
	"courtside/internal/models"

	"github.com/rs/zerolog"
)

// BlockRequest withholds [StartTime, EndTime) of a sport on a date.
type BlockRequest struct {
	Sport     string
	Date      string
	StartTime string
	EndTime   string
	Reason    string
}

// BlockService manages blocked ranges. A new block only withholds free
// inventory: bookings already inside the range are kept.
type BlockService struct {
	repo     domain.BlockedSlotRepository
	sports   SportCatalog
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewBlockService(repo domain.BlockedSlotRepository, sports SportCatalog, eventBus domain.EventPublisher, logger *zerolog.Logger) *BlockService {
	return &BlockService{repo: repo, sports: sports, eventBus: eventBus, logger: logger}
}

func (s *BlockService) CreateBlock(ctx context.Context, req BlockRequest, actor string) (*models.BlockedSlot, error) {
	if _, err := parseDate(req.Date); err != nil {
		return nil, err
	}
	start, err := models.NormalizeClock(req.StartTime)
	if err != nil {
		return nil, ErrInvalidTime
	}
	end, err := models.NormalizeClock(req.EndTime)
	if err != nil || end > "24:00" {
		return nil, ErrInvalidTime
	}
	if start >= end {
		return nil, invalidf("block must end after it starts")
	}
	sport, err := s.sports.ResolveSport(ctx, req.Sport)
	if err != nil {
		return nil, err
	}

	block := &models.BlockedSlot{
		SportID:   sport.ID,
		Date:      req.Date,
		StartTime: start,
		EndTime:   end,
		Reason:    strings.TrimSpace(req.Reason),
	}
	if err := s.repo.CreateBlockedSlot(ctx, block); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("block_id", block.ID).Str("sport", sport.Name).Str("date", block.Date).
		Str("start", start).Str("end", end).Msg("slot range blocked")
	publishAudit(s.eventBus, s.logger, actor, "block.create", "blocked_slot", block.ID, nil, block)
	return block, nil
}

func (s *BlockService) DeleteBlock(ctx context.Context, id int64, actor string) error {
	before, err := s.repo.GetBlockedSlot(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteBlockedSlot(ctx, id); err != nil {
		return err
	}
	publishAudit(s.eventBus, s.logger, actor, "block.delete", "blocked_slot", id, before, nil)
	return nil
}

func (s *BlockService) ListBlocks(ctx context.Context, sportRef, date string) ([]*models.BlockedSlot, error) {
	if _, err := parseDate(date); err != nil {
		return nil, err
	}
	sport, err := s.sports.ResolveSport(ctx, sportRef)
	if err != nil {
		return nil, err
	}
	return s.repo.GetBlockedSlots(ctx, sport.ID, date)
}
