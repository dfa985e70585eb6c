package database

import (
	"context"
	"errors"
	"io"
	"testing"

	"courtside/internal/models"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	assert.NoError(t, err)
	db.Close() // Close the DB to trigger errors

	ctx := context.Background()

	t.Run("CreateBookingWithLock", func(t *testing.T) {
		err := db.CreateBookingWithLock(ctx, &models.Booking{Date: "2025-06-14"})
		assert.Error(t, err)
	})

	t.Run("CancelBooking", func(t *testing.T) {
		_, err := db.CancelBooking(ctx, 1, nil)
		assert.Error(t, err)
	})

	t.Run("GetActiveBookings", func(t *testing.T) {
		_, err := db.GetActiveBookings(ctx, 1, "2025-06-14")
		assert.Error(t, err)
	})

	t.Run("GetSportByID", func(t *testing.T) {
		_, err := db.GetSportByID(ctx, 1)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("SyncSports", func(t *testing.T) {
		_, _, err := db.SyncSports(ctx, []models.Sport{{Name: "Futsal", BasePrice: 1}})
		assert.Error(t, err)
	})

	t.Run("CreateNotificationTask", func(t *testing.T) {
		err := db.CreateNotificationTask(ctx, &models.NotificationTask{})
		assert.Error(t, err)
	})

	t.Run("CreateAuditEntry", func(t *testing.T) {
		err := db.CreateAuditEntry(ctx, &models.AuditEntry{})
		assert.Error(t, err)
	})
}

func TestNewDB_Error(t *testing.T) {
	logger := zerolog.New(io.Discard)
	_, err := NewDB(t.TempDir(), &logger)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	err := classify("insert booking", busy)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Contains(t, err.Error(), "failed to insert booking")

	locked := sqlite3.Error{Code: sqlite3.ErrLocked}
	assert.ErrorIs(t, classify("x", locked), ErrTransient)

	plain := classify("x", errors.New("disk I/O"))
	assert.NotErrorIs(t, plain, ErrTransient)

	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	assert.True(t, isUniqueViolation(unique))
	assert.False(t, isUniqueViolation(busy))
}
