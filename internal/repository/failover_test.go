package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"courtside/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Lookup(ctx context.Context, key string) (*models.StoredResponse, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.StoredResponse), args.Bool(1), args.Error(2)
}

func (m *mockStore) Complete(ctx context.Context, key string, resp *models.StoredResponse, ttl time.Duration) error {
	return m.Called(ctx, key, resp, ttl).Error(0)
}

func (m *mockStore) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverRequestStore(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverRequestStore(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Reserve", ctx, "a", time.Minute).Return(true, nil).Once()
		ok, err := repo.Reserve(ctx, "a", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, repo.isDown.Load())
	})

	t.Run("PrimaryFailureFallsBack", func(t *testing.T) {
		primary.On("Lookup", ctx, "b").Return(nil, false, errors.New("redis down")).Once()
		fallback.On("Lookup", ctx, "b").Return(&models.StoredResponse{StatusCode: 201}, false, nil).Once()

		resp, pending, err := repo.Lookup(ctx, "b")
		require.NoError(t, err)
		assert.False(t, pending)
		assert.Equal(t, 201, resp.StatusCode)
		assert.True(t, repo.isDown.Load())
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("CheckRateLimit", ctx, "phone", 5, time.Hour).Return(true, nil).Once()
		allowed, err := repo.CheckRateLimit(ctx, "phone", 5, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)

		fallback.On("Release", ctx, "c").Return(nil).Once()
		assert.NoError(t, repo.Release(ctx, "c"))
	})

	t.Run("Recovery", func(t *testing.T) {
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
		stored := &models.StoredResponse{StatusCode: 200}
		primary.On("Complete", ctx, "d", stored, time.Hour).Return(nil).Once()

		require.NoError(t, repo.Complete(ctx, "d", stored, time.Hour))
		assert.False(t, repo.isDown.Load())
	})

	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}
