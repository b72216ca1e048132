package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/WanderLanka/review-service/internal/domain"
	"github.com/WanderLanka/review-service/internal/repository"
	"github.com/WanderLanka/review-service/pkg/database"
	apperrors "github.com/WanderLanka/review-service/pkg/errors"
)

const reviewColumns = `id, target_id, target_type, author_id, rating, comment, images, status,
       helpful_count, response_comment, responder_id, responded_at, edited, edited_at, created_at`

// ReviewRepository implements review persistence operations using PostgreSQL.
// Mutations that change the active review set apply the matching rating_stats
// delta inside the same transaction.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new active review and increments the target's statistics
// atomically. The partial unique index on (target_id, author_id) rejects a
// second non-deleted review by the same author.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	images, err := marshalImages(review.Images)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reviews (id, target_id, target_type, author_id, rating, comment, images, status, helpful_count, edited, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, false, $9)`

	_, err = tx.Exec(ctx, query,
		review.ID,
		review.TargetID,
		review.TargetType,
		review.AuthorID,
		review.Rating,
		review.Comment,
		images,
		review.Status,
		review.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.DuplicateReview(review.TargetID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	if err := applyStatsDelta(ctx, tx, review.TargetID, domain.AddRatingDelta(review.Rating)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// lockReview reads the review's committed status and rating under a row lock.
// Stats deltas are always computed from these values, never from the caller's
// copy, which may predate a concurrently committed mutation.
func lockReview(ctx context.Context, tx pgx.Tx, id string) (status string, rating int, err error) {
	err = tx.QueryRow(ctx, `
		SELECT status, rating FROM reviews
		WHERE id = $1 AND status <> 'deleted'
		FOR UPDATE`, id).Scan(&status, &rating)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, apperrors.NotFound("review", id)
		}
		return "", 0, fmt.Errorf("lock review: %w", err)
	}
	return status, rating, nil
}

// GetByID retrieves a review by its unique identifier. Deleted reviews are
// treated as not found.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE id = $1 AND status <> 'deleted'`

	ctx, end := database.TraceQuery(ctx, "GetReview", query)
	review, err := scanReview(r.pool.QueryRow(ctx, query, id))
	end(err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review by id: %w", err)
	}

	return review, nil
}

// GetByAuthorAndTarget returns the author's non-deleted review for a target.
func (r *ReviewRepository) GetByAuthorAndTarget(ctx context.Context, authorID, targetID string) (*domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE author_id = $1 AND target_id = $2 AND status <> 'deleted'`

	review, err := scanReview(r.pool.QueryRow(ctx, query, authorID, targetID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get review by author and target: %w", err)
	}

	return review, nil
}

// Update persists edited rating, comment, and image fields. When the rating
// changes on an active review, the target's histogram and sum move with it in
// the same transaction. The review's prior rating is read under the row lock
// and returned.
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	images, err := marshalImages(review.Images)
	if err != nil {
		return 0, err
	}

	curStatus, curRating, err := lockReview(ctx, tx, review.ID)
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE reviews
		SET rating = $1, comment = $2, images = $3, edited = true, edited_at = $4
		WHERE id = $5 AND status <> 'deleted'`

	_, err = tx.Exec(ctx, query, review.Rating, review.Comment, images, review.EditedAt, review.ID)
	if err != nil {
		return 0, fmt.Errorf("update review: %w", err)
	}

	if curStatus == domain.StatusActive && review.Rating != curRating {
		if err := applyStatsDelta(ctx, tx, review.TargetID, domain.ChangeRatingDelta(curRating, review.Rating)); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return curRating, nil
}

// SoftDelete marks the review deleted, removes its helpful votes, and
// decrements the target's statistics if the committed row was still active.
func (r *ReviewRepository) SoftDelete(ctx context.Context, review *domain.Review) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	curStatus, curRating, err := lockReview(ctx, tx, review.ID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE reviews
		SET status = 'deleted'
		WHERE id = $1 AND status <> 'deleted'`, review.ID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM review_votes WHERE review_id = $1`, review.ID); err != nil {
		return fmt.Errorf("delete review votes: %w", err)
	}

	if curStatus == domain.StatusActive {
		if err := applyStatsDelta(ctx, tx, review.TargetID, domain.RemoveRatingDelta(curRating)); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// UpdateStatus applies a moderation status change. Transitions crossing the
// active boundary adjust the target's statistics in the same transaction; the
// crossing is decided from the committed row, not the caller's copy. Returns
// the status the row held before the change.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, review *domain.Review, newStatus string) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	curStatus, curRating, err := lockReview(ctx, tx, review.ID)
	if err != nil {
		return "", err
	}

	_, err = tx.Exec(ctx, `
		UPDATE reviews
		SET status = $1
		WHERE id = $2 AND status <> 'deleted'`, newStatus, review.ID)
	if err != nil {
		return "", fmt.Errorf("update review status: %w", err)
	}

	wasActive := curStatus == domain.StatusActive
	isActive := newStatus == domain.StatusActive
	switch {
	case wasActive && !isActive:
		err = applyStatsDelta(ctx, tx, review.TargetID, domain.RemoveRatingDelta(curRating))
	case !wasActive && isActive:
		err = applyStatsDelta(ctx, tx, review.TargetID, domain.AddRatingDelta(curRating))
	}
	if err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}

	return curStatus, nil
}

// AttachResponse sets or overwrites the owner response on a review.
func (r *ReviewRepository) AttachResponse(ctx context.Context, reviewID string, response *domain.ReviewResponse) error {
	query := `
		UPDATE reviews
		SET response_comment = $1, responder_id = $2, responded_at = $3
		WHERE id = $4 AND status <> 'deleted'`

	ct, err := r.pool.Exec(ctx, query, response.Comment, response.ResponderID, response.RespondedAt, reviewID)
	if err != nil {
		return fmt.Errorf("attach response: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", reviewID)
	}

	return nil
}

// ListByTarget returns paginated active reviews for a target along with the
// total count.
func (r *ReviewRepository) ListByTarget(ctx context.Context, targetID string, filter repository.ListFilter) ([]domain.Review, int, error) {
	query := `
		SELECT ` + reviewColumns + `,
		       count(*) OVER() AS total_count
		FROM reviews
		WHERE target_id = $1 AND status = 'active'
		ORDER BY ` + orderClause(filter.Sort) + `
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, targetID, filter)
}

// ListByAuthor returns the author's non-deleted reviews across all targets
// along with the total count.
func (r *ReviewRepository) ListByAuthor(ctx context.Context, authorID string, filter repository.ListFilter) ([]domain.Review, int, error) {
	query := `
		SELECT ` + reviewColumns + `,
		       count(*) OVER() AS total_count
		FROM reviews
		WHERE author_id = $1 AND status <> 'deleted'
		ORDER BY ` + orderClause(filter.Sort) + `
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, authorID, filter)
}

func (r *ReviewRepository) list(ctx context.Context, query, key string, filter repository.ListFilter) ([]domain.Review, int, error) {
	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	ctx, end := database.TraceQuery(ctx, "ListReviews", query)
	rows, err := r.pool.Query(ctx, query, key, limit, offset)
	end(err)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)

	for rows.Next() {
		review, err := scanReviewWithCount(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, *review)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, totalCount, nil
}

// orderClause maps a sort key to its ORDER BY expression. Unknown keys fall
// back to newest-first.
func orderClause(sort string) string {
	switch sort {
	case domain.SortOldest:
		return "created_at ASC"
	case domain.SortRatingHigh:
		return "rating DESC, created_at DESC"
	case domain.SortRatingLow:
		return "rating ASC, created_at DESC"
	case domain.SortHelpful:
		return "helpful_count DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

func marshalImages(images []domain.ReviewImage) ([]byte, error) {
	if images == nil {
		images = []domain.ReviewImage{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("marshal review images: %w", err)
	}
	return data, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (*domain.Review, error) {
	return scanReviewInto(row, nil)
}

func scanReviewWithCount(row rowScanner, totalCount *int) (*domain.Review, error) {
	return scanReviewInto(row, totalCount)
}

func scanReviewInto(row rowScanner, totalCount *int) (*domain.Review, error) {
	var (
		rv              domain.Review
		images          []byte
		responseComment *string
		responderID     *string
		respondedAt     *time.Time
	)

	dest := []any{
		&rv.ID,
		&rv.TargetID,
		&rv.TargetType,
		&rv.AuthorID,
		&rv.Rating,
		&rv.Comment,
		&images,
		&rv.Status,
		&rv.HelpfulCount,
		&responseComment,
		&responderID,
		&respondedAt,
		&rv.Edited,
		&rv.EditedAt,
		&rv.CreatedAt,
	}
	if totalCount != nil {
		dest = append(dest, totalCount)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if len(images) > 0 {
		if err := json.Unmarshal(images, &rv.Images); err != nil {
			return nil, fmt.Errorf("unmarshal review images: %w", err)
		}
	}
	if rv.Images == nil {
		rv.Images = []domain.ReviewImage{}
	}

	if responseComment != nil && responderID != nil && respondedAt != nil {
		rv.Response = &domain.ReviewResponse{
			Comment:     *responseComment,
			ResponderID: *responderID,
			RespondedAt: *respondedAt,
		}
	}

	return &rv, nil
}
