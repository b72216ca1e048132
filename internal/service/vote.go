package service

import (
	"context"
	"log/slog"

	"github.com/WanderLanka/review-service/internal/repository"
	apperrors "github.com/WanderLanka/review-service/pkg/errors"
)

// ToggleResult is the committed vote state returned to the caller. Clients
// render from this, never from a locally predicted next state.
type ToggleResult struct {
	Voted        bool `json:"voted"`
	HelpfulCount int  `json:"helpful_count"`
}

// VoteService implements the helpful-vote toggle and lookups.
type VoteService struct {
	reviews repository.ReviewRepository
	votes   repository.VoteRepository
	logger  *slog.Logger
}

// NewVoteService creates a new helpful-vote service.
func NewVoteService(
	reviews repository.ReviewRepository,
	votes repository.VoteRepository,
	logger *slog.Logger,
) *VoteService {
	return &VoteService{
		reviews: reviews,
		votes:   votes,
		logger:  logger,
	}
}

// Toggle flips the voter's helpful vote on a review and returns the committed
// state. Authors cannot vote on their own reviews.
func (s *VoteService) Toggle(ctx context.Context, reviewID, voterID string) (*ToggleResult, error) {
	if voterID == "" {
		return nil, apperrors.InvalidInput("voter_id is required")
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.AuthorID == voterID {
		return nil, apperrors.Forbidden("authors cannot vote on their own review")
	}

	var (
		voted bool
		count int
	)
	err = withSerializationRetry(ctx, s.logger, "toggle_vote", func() error {
		var toggleErr error
		voted, count, toggleErr = s.votes.Toggle(ctx, reviewID, voterID)
		return toggleErr
	})
	if err != nil {
		return nil, err
	}

	votesToggled.Inc()
	s.logger.InfoContext(ctx, "helpful vote toggled",
		slog.String("review_id", reviewID),
		slog.String("voter_id", voterID),
		slog.Bool("voted", voted),
		slog.Int("helpful_count", count),
	)

	return &ToggleResult{Voted: voted, HelpfulCount: count}, nil
}

// HasVoted reports whether the voter currently has a helpful vote on the
// review. Unknown reviews yield false rather than an error, since deleting a
// review removes its votes.
func (s *VoteService) HasVoted(ctx context.Context, reviewID, voterID string) (bool, error) {
	return s.votes.HasVoted(ctx, reviewID, voterID)
}
