package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"courtside/internal/database"
	"courtside/internal/domain"
	"courtside/internal/models"

	"github.com/rs/zerolog"
)

type PricingService struct {
	sports   SportCatalog
	rules    domain.PricingRuleRepository
	fallback map[string]float64
	logger   *zerolog.Logger
}

// NewPricingService builds the resolver. fallback maps lower-cased sport names to
// an hourly price and is consulted only by ResolvePriceWithFallback.
func NewPricingService(sports SportCatalog, rules domain.PricingRuleRepository, fallback map[string]float64, logger *zerolog.Logger) *PricingService {
	normalized := make(map[string]float64, len(fallback))
	for name, price := range fallback {
		normalized[strings.ToLower(strings.TrimSpace(name))] = price
	}
	return &PricingService{sports: sports, rules: rules, fallback: normalized, logger: logger}
}

// ResolvePrice returns the hourly price of sportRef on date.
func (s *PricingService) ResolvePrice(ctx context.Context, sportRef, date string) (float64, error) {
	day, err := parseDate(date)
	if err != nil {
		return 0, err
	}
	sport, err := s.sports.ResolveSport(ctx, sportRef)
	if err != nil {
		return 0, err
	}
	return s.PriceFor(ctx, sport, day)
}

// PriceFor applies the first active weekend rule on Saturdays and Sundays and
// the base price otherwise.
func (s *PricingService) PriceFor(ctx context.Context, sport *models.Sport, day time.Time) (float64, error) {
	if !isWeekend(day) {
		return sport.BasePrice, nil
	}
	rules, err := s.rules.GetActivePricingRules(ctx, sport.ID, models.RuleWeekend)
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return sport.BasePrice, nil
	}
	return rules[0].Apply(sport.BasePrice), nil
}

// ResolvePriceWithFallback behaves like ResolvePrice but falls back to the
// configured static price table when the sport is unknown.
func (s *PricingService) ResolvePriceWithFallback(ctx context.Context, sportRef, date string) (float64, error) {
	price, err := s.ResolvePrice(ctx, sportRef, date)
	if err == nil || !errors.Is(err, database.ErrSportNotFound) {
		return price, err
	}
	if p, ok := s.fallback[strings.ToLower(strings.TrimSpace(sportRef))]; ok {
		s.logger.Warn().Str("sport", sportRef).Float64("price", p).Msg("using fallback price for unknown sport")
		return p, nil
	}
	return 0, err
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
