package admin

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AnalysisStats aggregates stored analyses for the admin view.
type AnalysisStats struct {
	Total              int            `json:"total"`
	Last24h            int            `json:"last24h"`
	Last7d             int            `json:"last7d"`
	SignalDistribution map[string]int `json:"signalDistribution"`
}

// StatsSource reads analysis aggregates from a store.
type StatsSource interface {
	AnalysisStats(ctx context.Context) (AnalysisStats, error)
}

// recentWindow bounds the signal distribution to the most recent analyses
// so the breakdown reflects current usage, not all time.
const recentWindow = 100

// SQLiteStats aggregates over the local history table.
type SQLiteStats struct {
	db *sql.DB
}

// NewSQLiteStats creates a stats source over the local database.
func NewSQLiteStats(db *sql.DB) *SQLiteStats {
	return &SQLiteStats{db: db}
}

func (s *SQLiteStats) AnalysisStats(ctx context.Context) (AnalysisStats, error) {
	stats := AnalysisStats{SignalDistribution: make(map[string]int)}
	now := time.Now().UTC()

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("count analyses: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history WHERE created_at >= ?`,
		now.Add(-24*time.Hour)).Scan(&stats.Last24h); err != nil {
		return stats, fmt.Errorf("count 24h: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history WHERE created_at >= ?`,
		now.Add(-7*24*time.Hour)).Scan(&stats.Last7d); err != nil {
		return stats, fmt.Errorf("count 7d: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT signal, COUNT(*) FROM (
			SELECT signal FROM history ORDER BY created_at DESC LIMIT ?
		) GROUP BY signal`, recentWindow)
	if err != nil {
		return stats, fmt.Errorf("signal distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var signal string
		var count int
		if err := rows.Scan(&signal, &count); err != nil {
			return stats, fmt.Errorf("scan distribution: %w", err)
		}
		stats.SignalDistribution[signal] = count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate distribution: %w", err)
	}
	return stats, nil
}

// PGStats aggregates over the remote analyses table.
type PGStats struct {
	db *sql.DB
}

// NewPGStats creates a stats source over Postgres.
func NewPGStats(db *sql.DB) *PGStats {
	return &PGStats{db: db}
}

func (s *PGStats) AnalysisStats(ctx context.Context) (AnalysisStats, error) {
	stats := AnalysisStats{SignalDistribution: make(map[string]int)}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '24 hours'),
		       COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '7 days')
		FROM analyses`).Scan(&stats.Total, &stats.Last24h, &stats.Last7d)
	if err != nil {
		return stats, fmt.Errorf("count analyses: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT signal, COUNT(*) FROM (
			SELECT signal FROM analyses ORDER BY created_at DESC LIMIT $1
		) recent GROUP BY signal`, recentWindow)
	if err != nil {
		return stats, fmt.Errorf("signal distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var signal string
		var count int
		if err := rows.Scan(&signal, &count); err != nil {
			return stats, fmt.Errorf("scan distribution: %w", err)
		}
		stats.SignalDistribution[signal] = count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate distribution: %w", err)
	}
	return stats, nil
}

var (
	_ StatsSource = (*SQLiteStats)(nil)
	_ StatsSource = (*PGStats)(nil)
)
