package service

import (
	"time"

	"courtside/internal/models"
)

// VenueClock reports the current time in the venue's fixed-offset zone.
type VenueClock struct {
	loc *time.Location
	now func() time.Time
}

// NewVenueClock returns a clock for loc; a nil now uses time.Now.
func NewVenueClock(loc *time.Location, now func() time.Time) *VenueClock {
	if loc == nil {
		loc = time.FixedZone("UTC+5", models.DefaultVenueUTCOffsetHours*3600)
	}
	if now == nil {
		now = time.Now
	}
	return &VenueClock{loc: loc, now: now}
}

func (c *VenueClock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today is the venue calendar date as YYYY-MM-DD.
func (c *VenueClock) Today() string {
	return c.Now().Format(models.DateLayout)
}

// Location returns the venue zone.
func (c *VenueClock) Location() *time.Location {
	return c.loc
}

func parseDate(date string) (time.Time, error) {
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return day, nil
}
