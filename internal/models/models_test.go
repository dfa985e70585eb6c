package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"24:00", 1440, false},
		{"25:30", 1530, false},
		{"48:00", 2880, false},
		{"48:01", 0, true},
		{"9:5", 0, true},
		{"ab:00", 0, true},
		{"10:60", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeClock(t *testing.T) {
	got, err := NormalizeClock("7:05")
	require.NoError(t, err)
	assert.Equal(t, "07:05", got)
}

func TestAddHours(t *testing.T) {
	end, err := AddHours("18:00", 2)
	require.NoError(t, err)
	assert.Equal(t, "20:00", end)

	end, err = AddHours("23:00", 1.5)
	require.NoError(t, err)
	assert.Equal(t, "24:30", end)

	end, err = AddHours("10:15", 0.75)
	require.NoError(t, err)
	assert.Equal(t, "11:00", end)

	_, err = AddHours("47:00", 2)
	assert.Error(t, err)
}

func TestClockOrderingIsLexical(t *testing.T) {
	// Stored ranges are compared as strings in SQL.
	assert.True(t, "23:59" < "24:00")
	assert.True(t, "09:00" < "10:00")
	assert.True(t, FormatClock(25*60) > FormatClock(24*60+59))
}

func TestClockHour(t *testing.T) {
	assert.Equal(t, 25, ClockHour("25:30"))
	assert.Equal(t, -1, ClockHour("bogus"))
}

func TestBookingHelpers(t *testing.T) {
	user := "user-1"
	guest := "guest-1"

	b := &Booking{Status: StatusPending, UserID: &user}
	assert.True(t, b.IsActive())
	assert.True(t, b.OwnedBy("user-1"))
	assert.False(t, b.OwnedBy("guest-1"))

	b.GuestID = &guest
	assert.True(t, b.OwnedBy("guest-1"))

	b.Status = StatusRescheduled
	assert.False(t, b.IsActive())
	b.Status = StatusCancelled
	assert.False(t, b.IsActive())
}

func TestSportAllowsDuration(t *testing.T) {
	s := &Sport{}
	assert.True(t, s.AllowsDuration(1.5))
	assert.False(t, s.AllowsDuration(0))

	s.DurationOptions = []float64{1, 2}
	assert.True(t, s.AllowsDuration(2))
	assert.False(t, s.AllowsDuration(1.5))
}

func TestPricingRuleApply(t *testing.T) {
	override := 3500.0
	r := &PricingRule{PriceMultiplier: 1.25}
	assert.Equal(t, 3375.0, r.Apply(2700))

	r.OverridePrice = &override
	assert.Equal(t, 3500.0, r.Apply(2700))
}
