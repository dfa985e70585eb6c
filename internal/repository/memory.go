package repository

import (
	"context"
	"sync"
	"time"

	"courtside/internal/models"
)

type memoryRecord struct {
	resp      *models.StoredResponse
	expiresAt time.Time
}

// MemoryRequestStore is the single-process RequestStore used when Redis is
// not configured or unreachable.
type MemoryRequestStore struct {
	mu         sync.Mutex
	records    map[string]memoryRecord
	rateLimits map[string]*rateLimitEntry
	now        func() time.Time
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{
		records:    make(map[string]memoryRecord),
		rateLimits: make(map[string]*rateLimitEntry),
		now:        time.Now,
	}
}

func (r *MemoryRequestStore) live(key string) (memoryRecord, bool) {
	rec, ok := r.records[key]
	if !ok {
		return rec, false
	}
	if !rec.expiresAt.IsZero() && r.now().After(rec.expiresAt) {
		delete(r.records, key)
		return rec, false
	}
	return rec, true
}

func (r *MemoryRequestStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live(key); ok {
		return false, nil
	}
	r.records[key] = memoryRecord{expiresAt: r.expiry(ttl)}
	return true, nil
}

func (r *MemoryRequestStore) Lookup(_ context.Context, key string) (*models.StoredResponse, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.live(key)
	if !ok {
		return nil, false, nil
	}
	if rec.resp == nil {
		return nil, true, nil
	}
	return rec.resp, false, nil
}

func (r *MemoryRequestStore) Complete(_ context.Context, key string, resp *models.StoredResponse, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key] = memoryRecord{resp: resp, expiresAt: r.expiry(ttl)}
	return nil
}

func (r *MemoryRequestStore) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, key)
	return nil
}

func (r *MemoryRequestStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return r.now().Add(ttl)
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryRequestStore) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
