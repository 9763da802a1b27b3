package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLiteRepo stores history in the embedded local database. It is the
// synchronous cache side of the write-through pair.
type SQLiteRepo struct {
	db    *sql.DB
	limit int
}

// NewSQLiteRepo creates a local history repository. limit <= 0 falls back
// to DefaultLimit.
func NewSQLiteRepo(db *sql.DB, limit int) *SQLiteRepo {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &SQLiteRepo{db: db, limit: limit}
}

func (r *SQLiteRepo) Insert(ctx context.Context, e Entry) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history (id, user_id, signal, trend, trade_grade, pattern, risk_reward, confidence, thumbnail_key, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Signal, e.Trend, e.TradeGrade, e.Pattern, e.RiskReward,
		e.Confidence, e.ThumbnailKey, string(e.Result), e.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, thumbnail_key FROM history
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT -1 OFFSET ?`, e.UserID, r.limit)
	if err != nil {
		return nil, fmt.Errorf("select overflow: %w", err)
	}

	var evictIDs []string
	var evictThumbs []string
	for rows.Next() {
		var id, thumb string
		if err := rows.Scan(&id, &thumb); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan overflow: %w", err)
		}
		evictIDs = append(evictIDs, id)
		if thumb != "" {
			evictThumbs = append(evictThumbs, thumb)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overflow: %w", err)
	}

	for _, id := range evictIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE user_id = ? AND id = ?`, e.UserID, id); err != nil {
			return nil, fmt.Errorf("evict history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return evictThumbs, nil
}

func (r *SQLiteRepo) List(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, signal, trend, trade_grade, pattern, risk_reward, confidence, thumbnail_key, result, created_at
		FROM history
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
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
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepo) Get(ctx context.Context, userID, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, signal, trend, trade_grade, pattern, risk_reward, confidence, thumbnail_key, result, created_at
		FROM history
		WHERE user_id = ? AND id = ?`, userID, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *SQLiteRepo) Delete(ctx context.Context, userID, id string) (*Entry, error) {
	e, err := r.Get(ctx, userID, id)
	if err != nil || e == nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM history WHERE user_id = ? AND id = ?`, userID, id); err != nil {
		return nil, fmt.Errorf("delete history: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepo) DeleteAll(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT thumbnail_key FROM history WHERE user_id = ? AND thumbnail_key != ''`, userID)
	if err != nil {
		return nil, fmt.Errorf("select thumbnails: %w", err)
	}
	var thumbs []string
	for rows.Next() {
		var thumb string
		if err := rows.Scan(&thumb); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan thumbnail: %w", err)
		}
		thumbs = append(thumbs, thumb)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thumbnails: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM history WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("clear history: %w", err)
	}
	return thumbs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var result string
	var createdAt time.Time
	err := row.Scan(&e.ID, &e.UserID, &e.Signal, &e.Trend, &e.TradeGrade, &e.Pattern,
		&e.RiskReward, &e.Confidence, &e.ThumbnailKey, &result, &createdAt)
	if err != nil {
		return Entry{}, err
	}
	e.Result = []byte(result)
	e.CreatedAt = createdAt
	return e, nil
}

var _ Repo = (*SQLiteRepo)(nil)

// nonEmpty filters out blank keys; shared by the pg repo.
func nonEmpty(keys []string) []string {
	out := keys[:0]
	for _, k := range keys {
		if strings.TrimSpace(k) != "" {
			out = append(out, k)
		}
	}
	return out
}
