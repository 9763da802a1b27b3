package usage

import (
	"context"
	"sync"
	"time"
)

// Counter is the stored usage state for one subject (a user id or guest id).
type Counter struct {
	Subject      string
	Count        int
	IsPremium    bool
	PremiumSince *time.Time
}

// Store persists per-subject analysis counters and the advisory premium
// flag. The entitlements table remains the security boundary; this store
// stands in for the client-side counters the product started with.
type Store interface {
	Get(ctx context.Context, subject string) (Counter, error)
	Increment(ctx context.Context, subject string) (int, error)
	SetPremium(ctx context.Context, subject string, since time.Time) error
}

// MemoryStore is an in-process Store for tests and dev.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]Counter
}

// NewMemoryStore creates an empty in-memory usage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]Counter)}
}

func (s *MemoryStore) Get(ctx context.Context, subject string) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[subject]
	if !ok {
		return Counter{Subject: subject}, nil
	}
	return c, nil
}

func (s *MemoryStore) Increment(ctx context.Context, subject string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters[subject]
	c.Subject = subject
	c.Count++
	s.counters[subject] = c
	return c.Count, nil
}

func (s *MemoryStore) SetPremium(ctx context.Context, subject string, since time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters[subject]
	c.Subject = subject
	if !c.IsPremium {
		c.IsPremium = true
		t := since.UTC()
		c.PremiumSince = &t
	}
	s.counters[subject] = c
	return nil
}

var _ Store = (*MemoryStore)(nil)
