package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"courtside/internal/database"
	"courtside/internal/domain"
	"courtside/internal/models"

	"github.com/rs/zerolog"
)

// SportCatalog is the subset of SportService the other services rely on.
type SportCatalog interface {
	ResolveSport(ctx context.Context, ref string) (*models.Sport, error)
}

const defaultSportCacheTTL = 30 * time.Second

// SportService keeps the active catalogue in memory. Entries are reloaded once
// they are older than the cache TTL, so a change made through another instance
// is visible here within one TTL.
type SportService struct {
	repo     sportStore
	events   domain.EventPublisher
	logger   *zerolog.Logger
	sports   []models.Sport
	sportMap map[int64]models.Sport
	loadedAt time.Time
	cacheTTL time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

type sportStore interface {
	domain.SportRepository
	domain.PricingRuleRepository
}

func NewSportService(repo sportStore, eventBus domain.EventPublisher, logger *zerolog.Logger) *SportService {
	return &SportService{
		repo:     repo,
		events:   eventBus,
		logger:   logger,
		sportMap: make(map[int64]models.Sport),
		cacheTTL: defaultSportCacheTTL,
		now:      time.Now,
	}
}

// SetCacheTTL changes how long the cached catalogue is trusted.
func (s *SportService) SetCacheTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.cacheTTL = ttl
	s.mu.Unlock()
}

func (s *SportService) refreshIfStale(ctx context.Context) {
	s.mu.RLock()
	stale := s.now().Sub(s.loadedAt) > s.cacheTTL
	s.mu.RUnlock()
	if !stale {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("sport cache refresh failed, serving stale entries")
	}
}

func (s *SportService) GetActiveSports(ctx context.Context) ([]models.Sport, error) {
	s.refreshIfStale(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Sport(nil), s.sports...), nil
}

// ResolveSport finds an active sport by numeric id or, failing that, by
// case-insensitive name. A cache miss falls through to the database so that
// sports created by another instance are found.
func (s *SportService) ResolveSport(ctx context.Context, ref string) (*models.Sport, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, database.ErrSportNotFound
	}
	id, idErr := strconv.ParseInt(ref, 10, 64)

	s.refreshIfStale(ctx)
	s.mu.RLock()
	if idErr == nil {
		if sport, ok := s.sportMap[id]; ok {
			s.mu.RUnlock()
			return &sport, nil
		}
	}
	for _, sport := range s.sports {
		if strings.EqualFold(sport.Name, ref) {
			s.mu.RUnlock()
			return &sport, nil
		}
	}
	s.mu.RUnlock()

	var (
		sport *models.Sport
		err   error
	)
	if idErr == nil {
		sport, err = s.repo.GetSportByID(ctx, id)
		if errors.Is(err, database.ErrSportNotFound) {
			sport, err = s.repo.GetSportByName(ctx, ref)
		}
	} else {
		sport, err = s.repo.GetSportByName(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if !sport.IsActive {
		return nil, database.ErrSportNotFound
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("sport cache refresh failed")
	}
	return sport, nil
}

func (s *SportService) CreateSport(ctx context.Context, sport *models.Sport, actor string) error {
	if err := validateSport(sport); err != nil {
		return err
	}
	if err := s.repo.CreateSport(ctx, sport); err != nil {
		return err
	}
	publishAudit(s.events, s.logger, actor, "sport.create", "sport", sport.ID, nil, sport)
	return s.Refresh(ctx)
}

func (s *SportService) UpdateSport(ctx context.Context, sport *models.Sport, actor string) error {
	if err := validateSport(sport); err != nil {
		return err
	}
	before, err := s.repo.GetSportByID(ctx, sport.ID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateSport(ctx, sport); err != nil {
		return err
	}
	publishAudit(s.events, s.logger, actor, "sport.update", "sport", sport.ID, before, sport)
	return s.Refresh(ctx)
}

func (s *SportService) DeactivateSport(ctx context.Context, id int64, actor string) error {
	before, err := s.repo.GetSportByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeactivateSport(ctx, id); err != nil {
		return err
	}
	after := *before
	after.IsActive = false
	publishAudit(s.events, s.logger, actor, "sport.deactivate", "sport", id, before, &after)
	return s.Refresh(ctx)
}

// CreatePricingRule attaches a rule to an existing sport.
func (s *SportService) CreatePricingRule(ctx context.Context, rule *models.PricingRule, actor string) error {
	switch rule.Type {
	case models.RuleWeekday, models.RuleWeekend, models.RuleSpecial:
	default:
		return invalidf("unknown pricing rule type %q", rule.Type)
	}
	if rule.OverridePrice != nil && *rule.OverridePrice <= 0 {
		return invalidf("override price must be positive")
	}
	if rule.OverridePrice == nil && rule.PriceMultiplier <= 0 {
		return invalidf("price multiplier must be positive")
	}
	if _, err := s.repo.GetSportByID(ctx, rule.SportID); err != nil {
		return err
	}
	if err := s.repo.CreatePricingRule(ctx, rule); err != nil {
		return err
	}
	publishAudit(s.events, s.logger, actor, "pricing_rule.create", "pricing_rule", rule.ID, nil, rule)
	return nil
}

func (s *SportService) DeactivatePricingRule(ctx context.Context, id int64, actor string) error {
	if err := s.repo.DeactivatePricingRule(ctx, id); err != nil {
		return err
	}
	publishAudit(s.events, s.logger, actor, "pricing_rule.deactivate", "pricing_rule", id, nil, nil)
	return nil
}

func (s *SportService) ListPricingRules(ctx context.Context, sportID int64) ([]*models.PricingRule, error) {
	return s.repo.GetPricingRules(ctx, sportID)
}

func (s *SportService) Refresh(ctx context.Context) error {
	sports, err := s.repo.GetActiveSports(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadedAt = s.now()
	s.sports = make([]models.Sport, 0, len(sports))
	s.sportMap = make(map[int64]models.Sport, len(sports))
	for _, sport := range sports {
		s.sports = append(s.sports, *sport)
		s.sportMap[sport.ID] = *sport
	}
	return nil
}

func validateSport(sport *models.Sport) error {
	sport.Name = strings.TrimSpace(sport.Name)
	if sport.Name == "" {
		return invalidf("sport name is required")
	}
	if sport.BasePrice <= 0 {
		return invalidf("base price must be positive")
	}
	for _, d := range sport.DurationOptions {
		if d <= 0 {
			return invalidf("duration options must be positive")
		}
	}
	return nil
}
