package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/WanderLanka/review-service/pkg/database"
	apperrors "github.com/WanderLanka/review-service/pkg/errors"
)

// VoteRepository implements helpful-vote persistence using PostgreSQL. The
// denormalized helpful_count on the review row moves with the vote records in
// the same transaction, so the counter never diverges from the vote set.
type VoteRepository struct {
	pool database.DBTX
}

// NewVoteRepository creates a new PostgreSQL-backed vote repository.
func NewVoteRepository(pool database.DBTX) *VoteRepository {
	return &VoteRepository{pool: pool}
}

// Toggle flips the (review, voter) vote and adjusts the review's helpful
// counter atomically. Votes by the review's author are rejected. Returns
// whether a vote exists after the call and the committed helpful count.
func (r *VoteRepository) Toggle(ctx context.Context, reviewID, voterID string) (bool, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var authorID string
	err = tx.QueryRow(ctx, `SELECT author_id FROM reviews WHERE id = $1 AND status <> 'deleted'`, reviewID).Scan(&authorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, apperrors.NotFound("review", reviewID)
		}
		return false, 0, fmt.Errorf("get review for vote: %w", err)
	}
	if authorID == voterID {
		return false, 0, apperrors.Forbidden("authors cannot vote on their own review")
	}

	ct, err := tx.Exec(ctx, `DELETE FROM review_votes WHERE review_id = $1 AND voter_id = $2`, reviewID, voterID)
	if err != nil {
		return false, 0, fmt.Errorf("remove helpful vote: %w", err)
	}

	voted := ct.RowsAffected() == 0
	delta := -1
	if voted {
		delta = 1
		_, err = tx.Exec(ctx, `
			INSERT INTO review_votes (review_id, voter_id, created_at)
			VALUES ($1, $2, NOW())`, reviewID, voterID)
		if err != nil {
			return false, 0, fmt.Errorf("insert helpful vote: %w", err)
		}
	}

	var helpfulCount int
	err = tx.QueryRow(ctx, `
		UPDATE reviews
		SET helpful_count = GREATEST(helpful_count + $1, 0)
		WHERE id = $2
		RETURNING helpful_count`, delta, reviewID).Scan(&helpfulCount)
	if err != nil {
		return false, 0, fmt.Errorf("update helpful count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("commit transaction: %w", err)
	}

	return voted, helpfulCount, nil
}

// HasVoted reports whether the voter currently has a helpful vote on the
// review.
func (r *VoteRepository) HasVoted(ctx context.Context, reviewID, voterID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM review_votes WHERE review_id = $1 AND voter_id = $2
		)`, reviewID, voterID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check helpful vote: %w", err)
	}

	return exists, nil
}
