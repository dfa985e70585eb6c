package database

import (
	"context"
	"testing"

	"courtside/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockedSlots(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sport := createTestSport(t, db, "Futsal", 2700)

	block := &models.BlockedSlot{SportID: sport.ID, Date: "2025-06-14", StartTime: "08:00", EndTime: "10:00", Reason: "maintenance"}
	require.NoError(t, db.CreateBlockedSlot(ctx, block))
	assert.NotZero(t, block.ID)

	other := &models.BlockedSlot{SportID: sport.ID, Date: "2025-06-15", StartTime: "06:00", EndTime: "07:00"}
	require.NoError(t, db.CreateBlockedSlot(ctx, other))

	blocks, err := db.GetBlockedSlots(ctx, sport.ID, "2025-06-14")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "maintenance", blocks[0].Reason)

	got, err := db.GetBlockedSlot(ctx, block.ID)
	require.NoError(t, err)
	assert.Equal(t, "08:00", got.StartTime)

	require.NoError(t, db.DeleteBlockedSlot(ctx, block.ID))
	assert.ErrorIs(t, db.DeleteBlockedSlot(ctx, block.ID), ErrBlockNotFound)

	_, err = db.GetBlockedSlot(ctx, block.ID)
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestBlockedSlotRejectsEmptyRange(t *testing.T) {
	db := setupTestDB(t)
	sport := createTestSport(t, db, "Futsal", 2700)

	err := db.CreateBlockedSlot(context.Background(), &models.BlockedSlot{SportID: sport.ID, Date: "2025-06-14", StartTime: "10:00", EndTime: "10:00"})
	assert.Error(t, err)
}
