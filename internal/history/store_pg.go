package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRepo stores history in Postgres for authenticated users. It is the
// remote side of the write-through pair.
type PGRepo struct {
	db    *sql.DB
	limit int
}

// NewPGRepo creates a Postgres history repository. limit <= 0 falls back
// to DefaultLimit.
func NewPGRepo(db *sql.DB, limit int) *PGRepo {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &PGRepo{db: db, limit: limit}
}

func (r *PGRepo) Insert(ctx context.Context, e Entry) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analyses (id, user_id, signal, trend, trade_grade, pattern, risk_reward, confidence, thumbnail_key, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.UserID, e.Signal, e.Trend, e.TradeGrade, e.Pattern, e.RiskReward,
		e.Confidence, e.ThumbnailKey, string(e.Result), e.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("insert analysis: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		DELETE FROM analyses
		WHERE user_id = $1 AND id IN (
			SELECT id FROM analyses
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			OFFSET $2
		)
		RETURNING thumbnail_key`, e.UserID, r.limit)
	if err != nil {
		return nil, fmt.Errorf("evict analyses: %w", err)
	}

	var evicted []string
	for rows.Next() {
		var thumb string
		if err := rows.Scan(&thumb); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan evicted: %w", err)
		}
		evicted = append(evicted, thumb)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evicted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return nonEmpty(evicted), nil
}

func (r *PGRepo) List(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, signal, trend, trade_grade, pattern, risk_reward, confidence, thumbnail_key, result, created_at
		FROM analyses
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return entries, nil
}

func (r *PGRepo) Get(ctx context.Context, userID, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, signal, trend, trade_grade, pattern, risk_reward, confidence, thumbnail_key, result, created_at
		FROM analyses
		WHERE user_id = $1 AND id = $2`, userID, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PGRepo) Delete(ctx context.Context, userID, id string) (*Entry, error) {
	e, err := r.Get(ctx, userID, id)
	if err != nil || e == nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM analyses WHERE user_id = $1 AND id = $2`, userID, id); err != nil {
		return nil, fmt.Errorf("delete analysis: %w", err)
	}
	return e, nil
}

func (r *PGRepo) DeleteAll(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		DELETE FROM analyses WHERE user_id = $1
		RETURNING thumbnail_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("clear analyses: %w", err)
	}
	defer rows.Close()

	var thumbs []string
	for rows.Next() {
		var thumb string
		if err := rows.Scan(&thumb); err != nil {
			return nil, fmt.Errorf("scan thumbnail: %w", err)
		}
		thumbs = append(thumbs, thumb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thumbnails: %w", err)
	}
	return nonEmpty(thumbs), nil
}

var _ Repo = (*PGRepo)(nil)
