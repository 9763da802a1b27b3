package entitlements

import (
	"context"
	"time"
)

// Service exposes entitlement checks and grants to the rest of the app.
type Service struct {
	repo Repo
}

// NewService builds the entitlement service.
func NewService(repo Repo) *Service {
	return &Service{repo: repo}
}

// IsPremium reports whether the email has a paid entitlement.
func (s *Service) IsPremium(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	e, err := s.repo.Get(ctx, email)
	if err != nil {
		return false, err
	}
	return e != nil && e.IsPremium, nil
}

// Grant marks the email premium. Idempotent; replays keep the original
// premium_since.
func (s *Service) Grant(ctx context.Context, email string) error {
	return s.repo.Grant(ctx, email, time.Now())
}

// CountPremium returns the number of premium entitlements.
func (s *Service) CountPremium(ctx context.Context) (int, error) {
	return s.repo.CountPremium(ctx)
}
