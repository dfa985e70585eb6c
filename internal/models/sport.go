package models

import "time"

// Sport is a bookable activity at the venue. Sports are deactivated, never deleted.
type Sport struct {
	ID              int64     `yaml:"id" json:"id"`
	Name            string    `yaml:"name" json:"name"`
	BasePrice       float64   `yaml:"base_price" json:"base_price"`
	IsActive        bool      `yaml:"is_active" json:"is_active"`
	SortOrder       int64     `yaml:"sort_order" json:"sort_order"`
	DurationOptions []float64 `yaml:"duration_options" json:"duration_options"`
	CreatedAt       time.Time `yaml:"-" json:"created_at"`
	UpdatedAt       time.Time `yaml:"-" json:"updated_at"`
}

// AllowsDuration reports whether hours is one of the configured duration options.
// A sport without options accepts any positive duration.
func (s *Sport) AllowsDuration(hours float64) bool {
	if hours <= 0 {
		return false
	}
	if len(s.DurationOptions) == 0 {
		return true
	}
	for _, d := range s.DurationOptions {
		if d == hours {
			return true
		}
	}
	return false
}

const (
	RuleWeekday = "weekday"
	RuleWeekend = "weekend"
	RuleSpecial = "special"
)

type PricingRule struct {
	ID              int64    `json:"id"`
	SportID         int64    `json:"sport_id"`
	Type            string   `json:"type"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	PriceMultiplier float64  `json:"price_multiplier"`
	OverridePrice   *float64 `json:"override_price,omitempty"`
	IsActive        bool     `json:"is_active"`
}

// Apply returns the hourly price this rule yields for the given base price.
func (r *PricingRule) Apply(basePrice float64) float64 {
	if r.OverridePrice != nil {
		return *r.OverridePrice
	}
	return basePrice * r.PriceMultiplier
}
