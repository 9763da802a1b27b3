package entitlements

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Repo persists entitlements. Grant is idempotent: replays keep the
// original premium_since.
type Repo interface {
	Grant(ctx context.Context, email string, since time.Time) error
	Get(ctx context.Context, email string) (*Entitlement, error)
	CountPremium(ctx context.Context) (int, error)
}

// MemoryRepo is an in-process Repo for dev and tests.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]Entitlement
}

// NewMemoryRepo creates an empty in-memory entitlement repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]Entitlement)}
}

func (r *MemoryRepo) Grant(ctx context.Context, email string, since time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeEmail(email)
	now := time.Now().UTC()
	existing, ok := r.records[key]
	if ok && existing.IsPremium {
		existing.UpdatedAt = now
		r.records[key] = existing
		return nil
	}

	t := since.UTC()
	r.records[key] = Entitlement{
		Email:        key,
		IsPremium:    true,
		PremiumSince: &t,
		UpdatedAt:    now,
	}
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, email string) (*Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.records[normalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *MemoryRepo) CountPremium(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.records {
		if e.IsPremium {
			count++
		}
	}
	return count, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ Repo = (*MemoryRepo)(nil)
