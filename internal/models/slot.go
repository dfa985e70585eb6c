package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Slot is one hourly unit of the daily grid.
type Slot struct {
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Hour      int     `json:"hour"`
	Status    string  `json:"status"`
	Price     float64 `json:"price"`
}

// BlockedSlot withholds a time range of a sport on a date from booking.
type BlockedSlot struct {
	ID        int64     `json:"id"`
	SportID   int64     `json:"sport_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// ParseClock converts a zero-padded "HH:MM" value into minutes since midnight.
// Hours up to 48 are accepted so that ranges may spill into the next day.
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > MaxClockHour {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	total := h*60 + m
	if total > MaxClockHour*60 {
		return 0, fmt.Errorf("time %q is out of range", value)
	}
	return total, nil
}

// FormatClock renders minutes since midnight as "HH:MM". Values past 24:00 keep
// counting hours (25:30 is 01:30 on the following day).
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock re-renders a time value in its canonical zero-padded form.
func NormalizeClock(value string) (string, error) {
	m, err := ParseClock(value)
	if err != nil {
		return "", err
	}
	return FormatClock(m), nil
}

// AddHours returns start shifted by a fractional number of hours, rounded to the minute.
func AddHours(start string, hours float64) (string, error) {
	m, err := ParseClock(start)
	if err != nil {
		return "", err
	}
	end := m + int(math.Round(hours*60))
	if end > MaxClockHour*60 {
		return "", fmt.Errorf("end time past %d:00", MaxClockHour)
	}
	return FormatClock(end), nil
}

// ClockHour returns the hour component of an "HH:MM" value, or -1 when it cannot be parsed.
func ClockHour(value string) int {
	m, err := ParseClock(value)
	if err != nil {
		return -1
	}
	return m / 60
}
