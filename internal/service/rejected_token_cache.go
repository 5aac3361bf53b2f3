package service

import (
	"context"
	"sync"
	"time"
)

// RejectedTokenStore remembers token hashes that did not resolve to a
// session. Tokens are random and are never reissued, so a miss stays a miss
// and a hit can be answered without touching the database.
type RejectedTokenStore interface {
	Seen(ctx context.Context, hash string) (bool, error)
	Remember(ctx context.Context, hash string, ttl time.Duration) error
}

type NoopRejectedTokenStore struct{}

func NewNoopRejectedTokenStore() *NoopRejectedTokenStore { return &NoopRejectedTokenStore{} }

func (NoopRejectedTokenStore) Seen(context.Context, string) (bool, error) { return false, nil }

func (NoopRejectedTokenStore) Remember(context.Context, string, time.Duration) error { return nil }

type InMemoryRejectedTokenStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[string]time.Time
}

func NewInMemoryRejectedTokenStore() *InMemoryRejectedTokenStore {
	return &InMemoryRejectedTokenStore{
		now:     func() time.Time { return time.Now().UTC() },
		entries: make(map[string]time.Time),
	}
}

func (s *InMemoryRejectedTokenStore) Seen(_ context.Context, hash string) (bool, error) {
	now := s.now()
	s.mu.RLock()
	expiresAt, ok := s.entries[hash]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if now.After(expiresAt) {
		s.mu.Lock()
		if exp, ok := s.entries[hash]; ok && now.After(exp) {
			delete(s.entries, hash)
		}
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (s *InMemoryRejectedTokenStore) Remember(_ context.Context, hash string, ttl time.Duration) error {
	if ttl <= 0 || hash == "" {
		return nil
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, k)
		}
	}
	s.entries[hash] = now.Add(ttl)
	return nil
}
