package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/WanderLanka/review-service/internal/domain"
	"github.com/WanderLanka/review-service/pkg/database"
)

// applyStatsDelta upserts the rating_stats row for a target, adding the given
// delta. The conflicting-row update takes a row lock, which serializes
// concurrent mutations per target.
func applyStatsDelta(ctx context.Context, tx pgx.Tx, targetID string, d domain.StatsDelta) error {
	query := `
		INSERT INTO rating_stats (target_id, total_reviews, rating_sum, rating_1, rating_2, rating_3, rating_4, rating_5, updated_at)
		VALUES ($1, GREATEST($2, 0), GREATEST($3, 0), GREATEST($4, 0), GREATEST($5, 0), GREATEST($6, 0), GREATEST($7, 0), GREATEST($8, 0), NOW())
		ON CONFLICT (target_id) DO UPDATE SET
			total_reviews = rating_stats.total_reviews + $2,
			rating_sum = rating_stats.rating_sum + $3,
			rating_1 = rating_stats.rating_1 + $4,
			rating_2 = rating_stats.rating_2 + $5,
			rating_3 = rating_stats.rating_3 + $6,
			rating_4 = rating_stats.rating_4 + $7,
			rating_5 = rating_stats.rating_5 + $8,
			updated_at = NOW()`

	_, err := tx.Exec(ctx, query,
		targetID,
		d.Count,
		d.Sum,
		d.Buckets[0],
		d.Buckets[1],
		d.Buckets[2],
		d.Buckets[3],
		d.Buckets[4],
	)
	if err != nil {
		return fmt.Errorf("apply stats delta: %w", err)
	}

	return nil
}

// StatsRepository implements rating statistics reads and rebuilds using
// PostgreSQL.
type StatsRepository struct {
	pool database.DBTX
}

// NewStatsRepository creates a new PostgreSQL-backed stats repository.
func NewStatsRepository(pool database.DBTX) *StatsRepository {
	return &StatsRepository{pool: pool}
}

const statsQuery = `
	SELECT target_id, total_reviews, rating_sum, rating_1, rating_2, rating_3, rating_4, rating_5, updated_at
	FROM rating_stats
	WHERE target_id = $1`

// Get returns the statistics snapshot for a target. Targets with no stats row
// yield empty statistics.
func (r *StatsRepository) Get(ctx context.Context, targetID string) (*domain.RatingStats, error) {
	ctx, end := database.TraceQuery(ctx, "GetRatingStats", statsQuery)
	stats, err := scanStats(r.pool.QueryRow(ctx, statsQuery, targetID))
	if errors.Is(err, pgx.ErrNoRows) {
		// A target with no reviews simply has no row yet.
		end(nil)
		return domain.NewRatingStats(targetID), nil
	}
	end(err)
	if err != nil {
		return nil, fmt.Errorf("get rating stats: %w", err)
	}

	return stats, nil
}

// Rebuild recomputes the target's statistics from its active reviews and
// overwrites the maintained row in one transaction.
func (r *StatsRepository) Rebuild(ctx context.Context, targetID string) (*domain.RatingStats, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	recomputeQuery := `
		SELECT COUNT(*),
		       COALESCE(SUM(rating), 0),
		       COUNT(*) FILTER (WHERE rating = 1),
		       COUNT(*) FILTER (WHERE rating = 2),
		       COUNT(*) FILTER (WHERE rating = 3),
		       COUNT(*) FILTER (WHERE rating = 4),
		       COUNT(*) FILTER (WHERE rating = 5)
		FROM reviews
		WHERE target_id = $1 AND status = 'active'`

	stats := domain.NewRatingStats(targetID)
	var buckets [5]int
	err = tx.QueryRow(ctx, recomputeQuery, targetID).Scan(
		&stats.TotalReviews,
		&stats.RatingSum,
		&buckets[0],
		&buckets[1],
		&buckets[2],
		&buckets[3],
		&buckets[4],
	)
	if err != nil {
		return nil, fmt.Errorf("recompute rating stats: %w", err)
	}
	for i, c := range buckets {
		stats.Distribution[i+1] = c
	}

	upsertQuery := `
		INSERT INTO rating_stats (target_id, total_reviews, rating_sum, rating_1, rating_2, rating_3, rating_4, rating_5, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (target_id) DO UPDATE SET
			total_reviews = EXCLUDED.total_reviews,
			rating_sum = EXCLUDED.rating_sum,
			rating_1 = EXCLUDED.rating_1,
			rating_2 = EXCLUDED.rating_2,
			rating_3 = EXCLUDED.rating_3,
			rating_4 = EXCLUDED.rating_4,
			rating_5 = EXCLUDED.rating_5,
			updated_at = NOW()`

	_, err = tx.Exec(ctx, upsertQuery,
		targetID,
		stats.TotalReviews,
		stats.RatingSum,
		buckets[0],
		buckets[1],
		buckets[2],
		buckets[3],
		buckets[4],
	)
	if err != nil {
		return nil, fmt.Errorf("write rebuilt stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return stats, nil
}

func scanStats(row rowScanner) (*domain.RatingStats, error) {
	stats := &domain.RatingStats{Distribution: make(map[int]int, 5)}
	var buckets [5]int

	err := row.Scan(
		&stats.TargetID,
		&stats.TotalReviews,
		&stats.RatingSum,
		&buckets[0],
		&buckets[1],
		&buckets[2],
		&buckets[3],
		&buckets[4],
		&stats.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for i, c := range buckets {
		stats.Distribution[i+1] = c
	}

	return stats, nil
}
