package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore keeps usage counters in the embedded local database so they
// survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a usage store backed by the local database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, subject string) (Counter, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT subject, count, is_premium, premium_since
		FROM usage WHERE subject = ?`, subject)

	var c Counter
	var isPremium int
	var since sql.NullTime
	err := row.Scan(&c.Subject, &c.Count, &isPremium, &since)
	if errors.Is(err, sql.ErrNoRows) {
		return Counter{Subject: subject}, nil
	}
	if err != nil {
		return Counter{}, fmt.Errorf("get usage: %w", err)
	}
	c.IsPremium = isPremium != 0
	if since.Valid {
		t := since.Time
		c.PremiumSince = &t
	}
	return c, nil
}

func (s *SQLiteStore) Increment(ctx context.Context, subject string) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage (subject, count) VALUES (?, 1)
		ON CONFLICT (subject) DO UPDATE SET count = count + 1`, subject)
	if err != nil {
		return 0, fmt.Errorf("increment usage: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count FROM usage WHERE subject = ?`, subject).Scan(&count); err != nil {
		return 0, fmt.Errorf("read usage count: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) SetPremium(ctx context.Context, subject string, since time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage (subject, count, is_premium, premium_since) VALUES (?, 0, 1, ?)
		ON CONFLICT (subject) DO UPDATE SET
			is_premium = 1,
			premium_since = COALESCE(usage.premium_since, excluded.premium_since)`,
		subject, since.UTC())
	if err != nil {
		return fmt.Errorf("set premium: %w", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
