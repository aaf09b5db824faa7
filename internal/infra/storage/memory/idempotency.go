package memory

import (
	"context"
	"sync"
	"time"

	"partyspace/internal/app/middleware"
)

// IdempotencyStore stores command outcomes in memory for TTL.
type IdempotencyStore struct {
	mu    sync.Mutex
	items map[string]middleware.IdempotencyRecord
	ttl   time.Duration
	now   func() time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]middleware.IdempotencyRecord), ttl: ttl, now: time.Now}
}

func (s *IdempotencyStore) Claim(ctx context.Context, key string, now time.Time, lease time.Duration) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.items[key]; ok && !s.expired(rec) && !rec.Abandoned(now, lease) {
		return rec, false, nil
	}
	rec := middleware.IdempotencyRecord{Key: key, Pending: true, OccurredAt: now}
	s.items[key] = rec
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Pending = false
	s.items[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.items[key]; ok && rec.Pending {
		delete(s.items, key)
	}
	return nil
}

func (s *IdempotencyStore) expired(rec middleware.IdempotencyRecord) bool {
	return s.ttl > 0 && s.now().Sub(rec.OccurredAt) > s.ttl
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
