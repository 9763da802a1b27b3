package waitlist

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Lead is one waitlist signup.
type Lead struct {
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repo persists waitlist leads, keyed by email.
type Repo interface {
	Upsert(ctx context.Context, lead Lead) error
	Count(ctx context.Context) (int, error)
}

// MemoryRepo is an in-process Repo for dev and tests.
type MemoryRepo struct {
	mu    sync.Mutex
	leads map[string]Lead
}

// NewMemoryRepo creates an empty in-memory waitlist repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{leads: make(map[string]Lead)}
}

func (r *MemoryRepo) Upsert(ctx context.Context, lead Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(lead.Email))
	existing, ok := r.leads[key]
	if ok {
		if lead.Phone != "" {
			existing.Phone = lead.Phone
		}
		r.leads[key] = existing
		return nil
	}

	lead.Email = key
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	r.leads[key] = lead
	return nil
}

func (r *MemoryRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leads), nil
}

var _ Repo = (*MemoryRepo)(nil)
