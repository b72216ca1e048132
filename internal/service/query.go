package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/WanderLanka/review-service/internal/domain"
	"github.com/WanderLanka/review-service/internal/repository"
	apperrors "github.com/WanderLanka/review-service/pkg/errors"
	"github.com/WanderLanka/review-service/pkg/pagination"
)

// StatsView is the presentation shape of a stats snapshot, with the average
// rounded for display.
type StatsView struct {
	TargetID      string      `json:"target_id"`
	TotalReviews  int         `json:"total_reviews"`
	AverageRating float64     `json:"average_rating"`
	Distribution  map[int]int `json:"rating_distribution"`
}

// TargetReviewsResult combines a page of reviews with the target's statistics.
type TargetReviewsResult struct {
	Reviews pagination.Result[domain.Review] `json:"reviews"`
	Stats   *StatsView                       `json:"stats"`
}

// QueryService serves paginated review listings and statistics snapshots.
type QueryService struct {
	reviews repository.ReviewRepository
	stats   repository.StatsRepository
	cache   repository.StatsCache
	logger  *slog.Logger
}

// NewQueryService creates a new review query service.
func NewQueryService(
	reviews repository.ReviewRepository,
	stats repository.StatsRepository,
	cache repository.StatsCache,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		reviews: reviews,
		stats:   stats,
		cache:   cache,
		logger:  logger,
	}
}

// ListByTarget returns a page of a target's active reviews together with the
// target's current statistics.
func (s *QueryService) ListByTarget(ctx context.Context, targetID string, params pagination.Params, sort string) (*TargetReviewsResult, error) {
	if targetID == "" {
		return nil, apperrors.InvalidInput("target_id is required")
	}
	sort, err := normalizeSort(sort)
	if err != nil {
		return nil, err
	}

	filter := repository.ListFilter{Page: params.Page, PerPage: params.PerPage, Sort: sort}
	reviews, total, err := s.reviews.ListByTarget(ctx, targetID, filter)
	if err != nil {
		return nil, fmt.Errorf("list reviews by target: %w", err)
	}

	stats, err := s.GetStats(ctx, targetID)
	if err != nil {
		return nil, err
	}

	return &TargetReviewsResult{
		Reviews: pagination.NewResult(reviews, total, params),
		Stats:   stats,
	}, nil
}

// ListByAuthor returns a page of the author's own reviews across all targets.
func (s *QueryService) ListByAuthor(ctx context.Context, authorID string, params pagination.Params, sort string) (pagination.Result[domain.Review], error) {
	var zero pagination.Result[domain.Review]

	if authorID == "" {
		return zero, apperrors.InvalidInput("author_id is required")
	}
	sort, err := normalizeSort(sort)
	if err != nil {
		return zero, err
	}

	filter := repository.ListFilter{Page: params.Page, PerPage: params.PerPage, Sort: sort}
	reviews, total, err := s.reviews.ListByAuthor(ctx, authorID, filter)
	if err != nil {
		return zero, fmt.Errorf("list reviews by author: %w", err)
	}

	return pagination.NewResult(reviews, total, params), nil
}

// GetStats returns the statistics snapshot for a target, read through the
// cache. A cache miss or failure falls back to the database.
func (s *QueryService) GetStats(ctx context.Context, targetID string) (*StatsView, error) {
	if targetID == "" {
		return nil, apperrors.InvalidInput("target_id is required")
	}

	cached, err := s.cache.Get(ctx, targetID)
	if err == nil {
		return statsView(cached), nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.WarnContext(ctx, "stats cache read failed",
			slog.String("target_id", targetID),
			slog.String("error", err.Error()),
		)
	}

	// The generation is read before the database read. Set discards the
	// snapshot if a mutation invalidates the target in between, so the cache
	// never rewinds past a committed mutation.
	generation, genErr := s.cache.Generation(ctx, targetID)

	stats, err := s.stats.Get(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("get rating stats: %w", err)
	}

	if genErr != nil {
		s.logger.WarnContext(ctx, "stats cache generation read failed, skipping populate",
			slog.String("target_id", targetID),
			slog.String("error", genErr.Error()),
		)
	} else if err := s.cache.Set(ctx, stats, generation); err != nil {
		s.logger.WarnContext(ctx, "stats cache write failed",
			slog.String("target_id", targetID),
			slog.String("error", err.Error()),
		)
	}

	return statsView(stats), nil
}

func statsView(stats *domain.RatingStats) *StatsView {
	dist := make(map[int]int, 5)
	for rating := domain.MinRating; rating <= domain.MaxRating; rating++ {
		dist[rating] = stats.Distribution[rating]
	}
	return &StatsView{
		TargetID:      stats.TargetID,
		TotalReviews:  stats.TotalReviews,
		AverageRating: stats.AverageRating(),
		Distribution:  dist,
	}
}

func normalizeSort(sort string) (string, error) {
	if sort == "" {
		return domain.SortRecent, nil
	}
	if !domain.IsValidSort(sort) {
		return "", apperrors.InvalidInput(fmt.Sprintf("invalid sort %q", sort))
	}
	return sort, nil
}
