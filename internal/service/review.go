package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/WanderLanka/review-service/internal/domain"
	"github.com/WanderLanka/review-service/internal/event"
	"github.com/WanderLanka/review-service/internal/repository"
	apperrors "github.com/WanderLanka/review-service/pkg/errors"
)

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	TargetID   string
	TargetType string
	AuthorID   string
	Rating     int
	Comment    string
	Images     []domain.ReviewImage
}

// UpdateReviewInput holds the editable review fields. Nil fields are left
// unchanged; author and target are immutable.
type UpdateReviewInput struct {
	Rating  *int
	Comment *string
	Images  *[]domain.ReviewImage
}

// ReviewService implements the business logic for review mutations: create,
// edit, delete, owner responses, and moderation status changes.
type ReviewService struct {
	reviews  repository.ReviewRepository
	cache    repository.StatsCache
	producer *event.Producer
	logger   *slog.Logger
}

// NewReviewService creates a new review mutation service.
func NewReviewService(
	reviews repository.ReviewRepository,
	cache repository.StatsCache,
	producer *event.Producer,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		cache:    cache,
		producer: producer,
		logger:   logger,
	}
}

// CreateReview creates a new active review. An author may hold at most one
// non-deleted review per target; a second attempt fails as a duplicate.
func (s *ReviewService) CreateReview(ctx context.Context, input *CreateReviewInput) (*domain.Review, error) {
	if input.TargetID == "" {
		return nil, apperrors.InvalidInput("target_id is required")
	}
	if !domain.IsValidTargetType(input.TargetType) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid target type %q", input.TargetType))
	}
	if input.AuthorID == "" {
		return nil, apperrors.InvalidInput("author_id is required")
	}
	if err := validateContent(input.Rating, input.Comment, input.Images); err != nil {
		return nil, err
	}

	// Fast duplicate check; the partial unique index remains the authority
	// under concurrent creates.
	existing, err := s.reviews.GetByAuthorAndTarget(ctx, input.AuthorID, input.TargetID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check existing review: %w", err)
	}
	if existing != nil {
		return nil, apperrors.DuplicateReview(input.TargetID)
	}

	review := &domain.Review{
		ID:         uuid.New().String(),
		TargetID:   input.TargetID,
		TargetType: input.TargetType,
		AuthorID:   input.AuthorID,
		Rating:     input.Rating,
		Comment:    input.Comment,
		Images:     input.Images,
		Status:     domain.StatusActive,
		CreatedAt:  time.Now().UTC(),
	}
	if review.Images == nil {
		review.Images = []domain.ReviewImage{}
	}

	err = withSerializationRetry(ctx, s.logger, "create_review", func() error {
		return s.reviews.Create(ctx, review)
	})
	if err != nil {
		return nil, err
	}

	reviewMutations.WithLabelValues("create").Inc()
	s.invalidateStats(ctx, review.TargetID)

	if err := s.producer.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("target_id", review.TargetID),
		slog.String("author_id", review.AuthorID),
		slog.Int("rating", review.Rating),
	)

	return review, nil
}

// UpdateReview applies rating, comment, and image edits to the caller's own
// review. Edits by anyone other than the author are rejected.
func (s *ReviewService) UpdateReview(ctx context.Context, reviewID, authorID string, input *UpdateReviewInput) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.AuthorID != authorID {
		return nil, apperrors.NotAuthor(reviewID)
	}

	if input.Rating != nil {
		review.Rating = *input.Rating
	}
	if input.Comment != nil {
		review.Comment = *input.Comment
	}
	if input.Images != nil {
		review.Images = *input.Images
		if review.Images == nil {
			review.Images = []domain.ReviewImage{}
		}
	}
	if err := validateContent(review.Rating, review.Comment, review.Images); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	review.Edited = true
	review.EditedAt = &now

	// The repository reads the rating the row held at commit time under its
	// lock; that value drives the stats delta, the cache invalidation, and
	// the published event.
	var oldRating int
	err = withSerializationRetry(ctx, s.logger, "update_review", func() error {
		var updateErr error
		oldRating, updateErr = s.reviews.Update(ctx, review)
		return updateErr
	})
	if err != nil {
		return nil, err
	}

	reviewMutations.WithLabelValues("update").Inc()
	if review.IsActive() && review.Rating != oldRating {
		s.invalidateStats(ctx, review.TargetID)
	}

	if err := s.producer.PublishReviewUpdated(ctx, review, oldRating); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.updated event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review updated",
		slog.String("review_id", review.ID),
		slog.String("target_id", review.TargetID),
		slog.Int("old_rating", oldRating),
		slog.Int("new_rating", review.Rating),
	)

	return review, nil
}

// DeleteReview soft-deletes the caller's own review. The review's helpful
// votes are removed with it and the target's statistics drop the review if it
// was active.
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID, authorID string) error {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.AuthorID != authorID {
		return apperrors.NotAuthor(reviewID)
	}

	err = withSerializationRetry(ctx, s.logger, "delete_review", func() error {
		return s.reviews.SoftDelete(ctx, review)
	})
	if err != nil {
		return err
	}

	reviewMutations.WithLabelValues("delete").Inc()
	s.invalidateStats(ctx, review.TargetID)

	if err := s.producer.PublishReviewDeleted(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.deleted event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", review.ID),
		slog.String("target_id", review.TargetID),
		slog.String("author_id", review.AuthorID),
	)

	return nil
}

// AttachResponse sets or overwrites the single owner response on a review.
// Caller authorization (that the responder owns the target entity) is the
// responsibility of the upstream gateway.
func (s *ReviewService) AttachResponse(ctx context.Context, reviewID, responderID, comment string) (*domain.Review, error) {
	if responderID == "" {
		return nil, apperrors.InvalidInput("responder_id is required")
	}
	if comment == "" {
		return nil, apperrors.InvalidInput("comment is required")
	}
	if len([]rune(comment)) > domain.MaxCommentLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("comment must be at most %d characters", domain.MaxCommentLength))
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.Response != nil && review.Response.ResponderID != responderID {
		return nil, apperrors.Forbidden("response may only be overwritten by the original responder")
	}

	response := &domain.ReviewResponse{
		Comment:     comment,
		ResponderID: responderID,
		RespondedAt: time.Now().UTC(),
	}

	if err := s.reviews.AttachResponse(ctx, reviewID, response); err != nil {
		return nil, err
	}
	review.Response = response

	if err := s.producer.PublishReviewResponseAttached(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.response_attached event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "response attached",
		slog.String("review_id", review.ID),
		slog.String("responder_id", responderID),
	)

	return review, nil
}

// ModerateReview applies an externally triggered status change. Deletion goes
// through DeleteReview, not here.
func (s *ReviewService) ModerateReview(ctx context.Context, reviewID, newStatus string) (*domain.Review, error) {
	if newStatus == domain.StatusDeleted || !domain.IsValidStatus(newStatus) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid moderation status %q", newStatus))
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	oldStatus := review.Status
	if oldStatus == newStatus {
		return review, nil
	}
	if !domain.CanTransitionTo(oldStatus, newStatus) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot transition review from %q to %q", oldStatus, newStatus))
	}

	// The repository reports the status the row held at commit time; a
	// concurrent moderation may have moved it past the snapshot read above.
	err = withSerializationRetry(ctx, s.logger, "moderate_review", func() error {
		var statusErr error
		oldStatus, statusErr = s.reviews.UpdateStatus(ctx, review, newStatus)
		return statusErr
	})
	if err != nil {
		return nil, err
	}

	crossedActive := (oldStatus == domain.StatusActive) != (newStatus == domain.StatusActive)
	if crossedActive {
		s.invalidateStats(ctx, review.TargetID)
	}
	review.Status = newStatus

	if err := s.producer.PublishReviewModerated(ctx, review, oldStatus, newStatus); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.moderated event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review moderated",
		slog.String("review_id", review.ID),
		slog.String("old_status", oldStatus),
		slog.String("new_status", newStatus),
	)

	return review, nil
}

// invalidateStats drops the cached stats snapshot after a committed mutation.
// Cache failures are logged, not surfaced; the next read falls through to the
// database either way.
func (s *ReviewService) invalidateStats(ctx context.Context, targetID string) {
	if err := s.cache.Invalidate(ctx, targetID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate stats cache",
			slog.String("target_id", targetID),
			slog.String("error", err.Error()),
		)
	}
}

// validateContent checks the caller-editable review fields.
func validateContent(rating int, comment string, images []domain.ReviewImage) error {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}
	if comment == "" {
		return apperrors.InvalidInput("comment is required")
	}
	if len([]rune(comment)) > domain.MaxCommentLength {
		return apperrors.InvalidInput(fmt.Sprintf("comment must be at most %d characters", domain.MaxCommentLength))
	}
	if len(images) > domain.MaxImages {
		return apperrors.InvalidInput(fmt.Sprintf("at most %d images are allowed", domain.MaxImages))
	}
	for _, img := range images {
		if img.URL == "" {
			return apperrors.InvalidInput("image url is required")
		}
	}
	return nil
}
