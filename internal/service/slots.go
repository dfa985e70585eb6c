package service

import "courtside/internal/models"

// GenerateSlotGrid returns the 24 hourly slots of a day, all available at price.
func GenerateSlotGrid(price float64) []models.Slot {
	slots := make([]models.Slot, models.SlotsPerDay)
	for h := 0; h < models.SlotsPerDay; h++ {
		slots[h] = models.Slot{
			StartTime: models.FormatClock(h * 60),
			EndTime:   models.FormatClock((h + 1) * 60),
			Hour:      h,
			Status:    models.SlotAvailable,
			Price:     price,
		}
	}
	return slots
}
