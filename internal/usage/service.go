package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chartlens-backend/internal/shared/telemetry"
)

// ErrLimitReached is returned by MayProceed when a free subject has used
// up the analysis quota.
var ErrLimitReached = errors.New("free analysis limit reached")

// EntitlementSource answers whether an email has a paid entitlement. It is
// the authoritative premium check; the local premium flag is advisory.
type EntitlementSource interface {
	IsPremium(ctx context.Context, email string) (bool, error)
}

// Snapshot is the quota view returned to clients.
type Snapshot struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	IsPremium bool `json:"isPremium"`
}

// Service enforces the free-tier analysis quota with a premium override.
type Service struct {
	store        Store
	entitlements EntitlementSource
	limit        int
}

// NewService builds the quota service. entitlements may be nil when no
// remote database is configured. limit <= 0 disables gating in practice
// only via a very large default upstream; callers pass the configured value.
func NewService(store Store, entitlements EntitlementSource, limit int) *Service {
	return &Service{store: store, entitlements: entitlements, limit: limit}
}

// MayProceed checks whether the subject can run another analysis. Premium
// subjects always pass. Free subjects pass while their count is below the
// limit; otherwise ErrLimitReached.
func (s *Service) MayProceed(ctx context.Context, subject, email string) error {
	premium, err := s.isPremium(ctx, subject, email)
	if err != nil {
		return err
	}
	if premium {
		return nil
	}

	c, err := s.store.Get(ctx, subject)
	if err != nil {
		return fmt.Errorf("check quota: %w", err)
	}
	if c.Count >= s.limit {
		return ErrLimitReached
	}
	return nil
}

// Record counts one completed analysis. Called only after the model
// produced a valid result.
func (s *Service) Record(ctx context.Context, subject string) error {
	if _, err := s.store.Increment(ctx, subject); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// GrantPremium marks the subject premium in the local store. Advisory:
// the entitlements table decides on its own.
func (s *Service) GrantPremium(ctx context.Context, subject string) error {
	if err := s.store.SetPremium(ctx, subject, time.Now()); err != nil {
		return fmt.Errorf("grant premium: %w", err)
	}
	return nil
}

// Snapshot returns the subject's current quota state.
func (s *Service) Snapshot(ctx context.Context, subject, email string) (Snapshot, error) {
	premium, err := s.isPremium(ctx, subject, email)
	if err != nil {
		return Snapshot{}, err
	}

	c, err := s.store.Get(ctx, subject)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read usage: %w", err)
	}

	remaining := s.limit - c.Count
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		Used:      c.Count,
		Limit:     s.limit,
		Remaining: remaining,
		IsPremium: premium,
	}, nil
}

func (s *Service) isPremium(ctx context.Context, subject, email string) (bool, error) {
	if email != "" && s.entitlements != nil {
		premium, err := s.entitlements.IsPremium(ctx, email)
		if err != nil {
			telemetry.Warn("usage.entitlement_check_failed", map[string]any{"error": err.Error()})
		} else if premium {
			return true, nil
		}
	}

	c, err := s.store.Get(ctx, subject)
	if err != nil {
		return false, fmt.Errorf("read usage: %w", err)
	}
	return c.IsPremium, nil
}
