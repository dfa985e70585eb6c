package repository

import (
	"context"
	"testing"
	"time"

	"courtside/internal/config"
	"courtside/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRequestStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisRequestStore(client)
	ctx := context.Background()

	t.Run("ReserveOnce", func(t *testing.T) {
		ok, err := repo.Reserve(ctx, "key-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Reserve(ctx, "key-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)

		resp, pending, err := repo.Lookup(ctx, "key-1")
		require.NoError(t, err)
		assert.True(t, pending)
		assert.Nil(t, resp)
	})

	t.Run("CompleteAndReplay", func(t *testing.T) {
		stored := &models.StoredResponse{StatusCode: 201, Body: []byte(`{"id":7}`)}
		require.NoError(t, repo.Complete(ctx, "key-1", stored, time.Hour))

		resp, pending, err := repo.Lookup(ctx, "key-1")
		require.NoError(t, err)
		assert.False(t, pending)
		require.NotNil(t, resp)
		assert.Equal(t, 201, resp.StatusCode)
		assert.JSONEq(t, `{"id":7}`, string(resp.Body))
	})

	t.Run("Expiry", func(t *testing.T) {
		ok, err := repo.Reserve(ctx, "short", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		s.FastForward(2 * time.Second)

		resp, pending, err := repo.Lookup(ctx, "short")
		require.NoError(t, err)
		assert.False(t, pending)
		assert.Nil(t, resp)
	})

	t.Run("Release", func(t *testing.T) {
		ok, err := repo.Reserve(ctx, "released", time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, repo.Release(ctx, "released"))

		ok, err = repo.Reserve(ctx, "released", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("CorruptRecord", func(t *testing.T) {
		require.NoError(t, s.Set(idempotencyPrefix+"bad", "{not json"))
		_, _, err := repo.Lookup(ctx, "bad")
		assert.Error(t, err)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "+923001234567"
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRedisRequestStore_NilClient(t *testing.T) {
	repo := NewRedisRequestStore(nil)
	ctx := context.Background()

	_, err := repo.Reserve(ctx, "k", time.Second)
	assert.Error(t, err)
	_, _, err = repo.Lookup(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, repo.Complete(ctx, "k", &models.StoredResponse{}, time.Second))
	assert.Error(t, repo.Release(ctx, "k"))
	_, err = repo.CheckRateLimit(ctx, "k", 1, time.Second)
	assert.Error(t, err)
}

func TestRedisHelpers(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	assert.NoError(t, Ping(context.Background(), client))
	assert.NoError(t, Close(client))
	assert.NoError(t, Close(nil))

	addr := s.Addr()
	s.Close()
	dead := NewRedisClient(config.RedisConfig{Address: addr})
	defer dead.Close()
	assert.Error(t, Ping(context.Background(), dead))
}
