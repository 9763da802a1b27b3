package entitlements

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PGRepo stores entitlements in Postgres.
type PGRepo struct {
	db *sql.DB
}

// NewPGRepo creates a Postgres entitlement repository.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db}
}

func (r *PGRepo) Grant(ctx context.Context, email string, since time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entitlements (email, is_premium, premium_since, updated_at)
		VALUES ($1, TRUE, $2, NOW())
		ON CONFLICT (email) DO UPDATE SET
			is_premium = TRUE,
			premium_since = COALESCE(entitlements.premium_since, EXCLUDED.premium_since),
			updated_at = NOW()`,
		normalizeEmail(email), since.UTC())
	if err != nil {
		return fmt.Errorf("grant entitlement: %w", err)
	}
	return nil
}

func (r *PGRepo) Get(ctx context.Context, email string) (*Entitlement, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT email, is_premium, premium_since, updated_at
		FROM entitlements WHERE email = $1`, normalizeEmail(email))

	var e Entitlement
	var since sql.NullTime
	err := row.Scan(&e.Email, &e.IsPremium, &since, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	if since.Valid {
		t := since.Time
		e.PremiumSince = &t
	}
	return &e, nil
}

func (r *PGRepo) CountPremium(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entitlements WHERE is_premium`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count premium: %w", err)
	}
	return count, nil
}

var _ Repo = (*PGRepo)(nil)
