package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pixelvault/apiserver/types"
)

// StatsRepository computes dashboard aggregates.
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) Dashboard(ctx context.Context, now time.Time) (types.DashboardStats, error) {
	const query = `
		SELECT
			(SELECT COUNT(1) FROM users),
			(SELECT COUNT(1) FROM users WHERE is_admin OR is_super_admin),
			(SELECT COUNT(1) FROM images),
			(SELECT COUNT(1) FROM categories),
			(SELECT COUNT(1) FROM collections),
			(SELECT COUNT(1) FROM sessions WHERE expires_at >= $1),
			(SELECT COUNT(1) FROM users WHERE created_at >= $2)`
	var stats types.DashboardStats
	err := r.db.QueryRowContext(ctx, query, now, now.Add(-7*24*time.Hour)).Scan(
		&stats.Users,
		&stats.Admins,
		&stats.Images,
		&stats.Categories,
		&stats.Collections,
		&stats.ActiveSessions,
		&stats.NewUsers7d,
	)
	return stats, err
}
