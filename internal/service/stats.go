package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WanderLanka/review-service/internal/repository"
	apperrors "github.com/WanderLanka/review-service/pkg/errors"
)

// StatsService implements statistics recovery: full recomputation of a
// target's rating statistics from its active reviews.
type StatsService struct {
	stats  repository.StatsRepository
	cache  repository.StatsCache
	logger *slog.Logger
}

// NewStatsService creates a new stats service.
func NewStatsService(
	stats repository.StatsRepository,
	cache repository.StatsCache,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		stats:  stats,
		cache:  cache,
		logger: logger,
	}
}

// Rebuild recomputes the target's statistics from the review store and
// overwrites the maintained row. Drift between the maintained and recomputed
// values is logged and counted; the rebuilt values win either way.
func (s *StatsService) Rebuild(ctx context.Context, targetID string) (*StatsView, error) {
	if targetID == "" {
		return nil, apperrors.InvalidInput("target_id is required")
	}

	maintained, err := s.stats.Get(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("read maintained stats: %w", err)
	}

	rebuilt, err := s.stats.Rebuild(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("rebuild stats: %w", err)
	}
	statsRebuilds.Inc()

	if !rebuilt.Equal(maintained) {
		statsDriftDetected.Inc()
		s.logger.WarnContext(ctx, "rating stats drift detected, rebuilt from reviews",
			slog.String("target_id", targetID),
			slog.Int("maintained_total", maintained.TotalReviews),
			slog.Int("rebuilt_total", rebuilt.TotalReviews),
			slog.Int("maintained_sum", maintained.RatingSum),
			slog.Int("rebuilt_sum", rebuilt.RatingSum),
		)
	}

	if err := s.cache.Invalidate(ctx, targetID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate stats cache after rebuild",
			slog.String("target_id", targetID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "rating stats rebuilt",
		slog.String("target_id", targetID),
		slog.Int("total_reviews", rebuilt.TotalReviews),
	)

	return statsView(rebuilt), nil
}
