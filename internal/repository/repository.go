package repository

import (
	"context"

	"github.com/WanderLanka/review-service/internal/domain"
)

// ListFilter holds pagination and ordering options for review listings.
type ListFilter struct {
	Page    int
	PerPage int
	Sort    string
}

// ReviewRepository defines the interface for review persistence operations.
// Mutations that change the set of active reviews apply the matching rating
// statistics delta in the same database transaction.
type ReviewRepository interface {
	// Create inserts a new active review and increments the target's
	// statistics atomically. Returns a duplicate-review error if the author
	// already has a non-deleted review for the target.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review by its unique identifier. Deleted reviews
	// are treated as not found.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// GetByAuthorAndTarget returns the author's non-deleted review for a
	// target, or a not-found error.
	GetByAuthorAndTarget(ctx context.Context, authorID, targetID string) (*domain.Review, error)

	// Update persists edited review fields. If the rating changed while the
	// review is active, the target's statistics are adjusted in the same
	// transaction. The prior rating is read under the row lock inside the
	// transaction and returned.
	Update(ctx context.Context, review *domain.Review) (int, error)

	// SoftDelete marks the review deleted, removes its helpful votes, and
	// decrements the target's statistics if the committed row was still
	// active, all in one transaction.
	SoftDelete(ctx context.Context, review *domain.Review) error

	// UpdateStatus applies a moderation status change, adjusting statistics
	// when the transition crosses the active boundary. The crossing is
	// decided from the committed row; the status it held before the change
	// is returned.
	UpdateStatus(ctx context.Context, review *domain.Review, newStatus string) (string, error)

	// AttachResponse sets or overwrites the owner response on a review.
	AttachResponse(ctx context.Context, reviewID string, response *domain.ReviewResponse) error

	// ListByTarget returns paginated active reviews for a target along with
	// the total count.
	ListByTarget(ctx context.Context, targetID string, filter ListFilter) ([]domain.Review, int, error)

	// ListByAuthor returns the author's non-deleted reviews across all
	// targets along with the total count.
	ListByAuthor(ctx context.Context, authorID string, filter ListFilter) ([]domain.Review, int, error)
}

// StatsRepository defines the interface for rating statistics reads and
// recovery operations.
type StatsRepository interface {
	// Get returns the statistics snapshot for a target. Targets with no
	// reviews yield empty statistics, not an error.
	Get(ctx context.Context, targetID string) (*domain.RatingStats, error)

	// Rebuild recomputes the target's statistics from its active reviews
	// and overwrites the maintained row atomically. Returns the rebuilt
	// snapshot.
	Rebuild(ctx context.Context, targetID string) (*domain.RatingStats, error)
}

// VoteRepository defines the interface for helpful-vote state.
type VoteRepository interface {
	// Toggle flips the (review, voter) vote and adjusts the review's
	// helpful counter in the same transaction. Votes by the review's
	// author are rejected. Returns whether a vote exists after the call
	// and the committed helpful count.
	Toggle(ctx context.Context, reviewID, voterID string) (bool, int, error)

	// HasVoted reports whether the voter currently has a helpful vote on
	// the review.
	HasVoted(ctx context.Context, reviewID, voterID string) (bool, error)
}

// StatsCache defines the read-through cache for statistics snapshots. The
// populate path is fenced by a per-target generation counter: callers read
// the generation before the database read and pass it to Set, which refuses
// to store a snapshot that predates a later invalidation.
type StatsCache interface {
	// Get returns the cached snapshot, or a not-found error on a miss.
	Get(ctx context.Context, targetID string) (*domain.RatingStats, error)

	// Generation returns the target's current invalidation counter.
	Generation(ctx context.Context, targetID string) (int64, error)

	// Set stores a snapshot with the configured TTL unless the target was
	// invalidated after the given generation was read.
	Set(ctx context.Context, stats *domain.RatingStats, generation int64) error

	// Invalidate drops the cached snapshot for a target and advances its
	// generation.
	Invalidate(ctx context.Context, targetID string) error
}
