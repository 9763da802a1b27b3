package waitlist

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PGRepo stores waitlist leads in Postgres.
type PGRepo struct {
	db *sql.DB
}

// NewPGRepo creates a Postgres waitlist repository.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db}
}

func (r *PGRepo) Upsert(ctx context.Context, lead Lead) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO waitlist (email, phone, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (email) DO UPDATE SET
			phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE waitlist.phone END`,
		strings.ToLower(strings.TrimSpace(lead.Email)), lead.Phone)
	if err != nil {
		return fmt.Errorf("upsert lead: %w", err)
	}
	return nil
}

func (r *PGRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM waitlist`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return count, nil
}

var _ Repo = (*PGRepo)(nil)
