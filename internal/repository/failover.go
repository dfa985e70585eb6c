package repository

import (
	"context"
	"sync/atomic"
	"time"

	"courtside/internal/domain"
	"courtside/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverRequestStore uses primary until it fails, then serves from fallback
// and probes primary again once a minute.
type FailoverRequestStore struct {
	primary   domain.RequestStore
	fallback  domain.RequestStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverRequestStore(primary, fallback domain.RequestStore, logger *zerolog.Logger) *FailoverRequestStore {
	return &FailoverRequestStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// active picks the store for the next call.
func (r *FailoverRequestStore) active() domain.RequestStore {
	if !r.isDown.Load() {
		return r.primary
	}
	if time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval {
		r.lastCheck.Store(time.Now().UnixNano())
		return r.primary
	}
	return r.fallback
}

func (r *FailoverRequestStore) observe(store domain.RequestStore, err error) bool {
	if store != r.primary {
		return false
	}
	if err == nil {
		if r.isDown.CompareAndSwap(true, false) {
			r.logger.Info().Msg("Primary request store recovered")
		}
		return false
	}
	r.logger.Error().Err(err).Msg("Primary request store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
	return true
}

func (r *FailoverRequestStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	store := r.active()
	ok, err := store.Reserve(ctx, key, ttl)
	if r.observe(store, err) {
		return r.fallback.Reserve(ctx, key, ttl)
	}
	return ok, err
}

func (r *FailoverRequestStore) Lookup(ctx context.Context, key string) (*models.StoredResponse, bool, error) {
	store := r.active()
	resp, pending, err := store.Lookup(ctx, key)
	if r.observe(store, err) {
		return r.fallback.Lookup(ctx, key)
	}
	return resp, pending, err
}

func (r *FailoverRequestStore) Complete(ctx context.Context, key string, resp *models.StoredResponse, ttl time.Duration) error {
	store := r.active()
	err := store.Complete(ctx, key, resp, ttl)
	if r.observe(store, err) {
		return r.fallback.Complete(ctx, key, resp, ttl)
	}
	return err
}

func (r *FailoverRequestStore) Release(ctx context.Context, key string) error {
	store := r.active()
	err := store.Release(ctx, key)
	if r.observe(store, err) {
		return r.fallback.Release(ctx, key)
	}
	return err
}

func (r *FailoverRequestStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	store := r.active()
	allowed, err := store.CheckRateLimit(ctx, key, limit, window)
	if r.observe(store, err) {
		return r.fallback.CheckRateLimit(ctx, key, limit, window)
	}
	return allowed, err
}
