package domain

import (
	"math"
	"time"
)

// Review statuses.
const (
	StatusActive  = "active"
	StatusHidden  = "hidden"
	StatusFlagged = "flagged"
	StatusDeleted = "deleted"
)

// Target entity types that can be reviewed.
const (
	TargetTypeGuide   = "guide"
	TargetTypePlace   = "place"
	TargetTypeService = "service"
)

// Rating bounds and content limits.
const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 1000
	MaxImages        = 5
)

// Review represents a user-authored review attached to a target entity.
type Review struct {
	ID           string          `json:"id"`
	TargetID     string          `json:"target_id"`
	TargetType   string          `json:"target_type"`
	AuthorID     string          `json:"author_id"`
	Rating       int             `json:"rating"`
	Comment      string          `json:"comment"`
	Images       []ReviewImage   `json:"images"`
	Status       string          `json:"status"`
	HelpfulCount int             `json:"helpful_count"`
	Response     *ReviewResponse `json:"response,omitempty"`
	Edited       bool            `json:"edited"`
	EditedAt     *time.Time      `json:"edited_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ReviewImage is an opaque attachment reference with an optional caption.
type ReviewImage struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// ReviewResponse is the single reply attached by the target entity's owner.
type ReviewResponse struct {
	Comment     string    `json:"comment"`
	ResponderID string    `json:"responder_id"`
	RespondedAt time.Time `json:"responded_at"`
}

// IsActive reports whether the review counts toward listings and statistics.
func (r *Review) IsActive() bool {
	return r.Status == StatusActive
}

// ValidStatuses returns the set of valid review statuses.
func ValidStatuses() []string {
	return []string{StatusActive, StatusHidden, StatusFlagged, StatusDeleted}
}

// IsValidStatus checks whether the given status is a valid review status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ValidTargetTypes returns the set of reviewable target entity types.
func ValidTargetTypes() []string {
	return []string{TargetTypeGuide, TargetTypePlace, TargetTypeService}
}

// IsValidTargetType checks whether the given type is a reviewable entity type.
func IsValidTargetType(targetType string) bool {
	for _, t := range ValidTargetTypes() {
		if t == targetType {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether a moderation transition from the current
// status to the target status is allowed. Deleted is terminal; all other
// statuses may move freely between active, hidden, and flagged.
func CanTransitionTo(from, to string) bool {
	if from == StatusDeleted {
		return false
	}
	if to == StatusDeleted {
		return true
	}
	return IsValidStatus(to)
}

// RatingStats holds the derived statistics for one target entity. The average
// is kept as a sum/count pair so incremental updates never drift.
type RatingStats struct {
	TargetID     string      `json:"target_id"`
	TotalReviews int         `json:"total_reviews"`
	RatingSum    int         `json:"-"`
	Distribution map[int]int `json:"rating_distribution"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NewRatingStats returns empty statistics for a target with a zeroed histogram.
func NewRatingStats(targetID string) *RatingStats {
	return &RatingStats{
		TargetID:     targetID,
		Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
}

// AverageRating returns the mean rating rounded to one decimal place, or 0
// when the target has no active reviews.
func (s *RatingStats) AverageRating() float64 {
	if s.TotalReviews == 0 {
		return 0
	}
	avg := float64(s.RatingSum) / float64(s.TotalReviews)
	return math.Round(avg*10) / 10
}

// DistributionSum returns the total of all histogram buckets. A consistent
// stats row always has DistributionSum() == TotalReviews.
func (s *RatingStats) DistributionSum() int {
	sum := 0
	for _, c := range s.Distribution {
		sum += c
	}
	return sum
}

// Equal reports whether two stats snapshots describe the same review set.
func (s *RatingStats) Equal(other *RatingStats) bool {
	if other == nil {
		return false
	}
	if s.TotalReviews != other.TotalReviews || s.RatingSum != other.RatingSum {
		return false
	}
	for rating := MinRating; rating <= MaxRating; rating++ {
		if s.Distribution[rating] != other.Distribution[rating] {
			return false
		}
	}
	return true
}

// HelpfulVote marks that a voter found a review helpful. Existence of the
// record is the vote; there is no polarity flag.
type HelpfulVote struct {
	ReviewID  string    `json:"review_id"`
	VoterID   string    `json:"voter_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Sort orders accepted by review listings.
const (
	SortRecent     = "recent"
	SortOldest     = "oldest"
	SortRatingHigh = "rating_high"
	SortRatingLow  = "rating_low"
	SortHelpful    = "helpful"
)

// IsValidSort checks whether the given sort order is supported.
func IsValidSort(sort string) bool {
	switch sort {
	case SortRecent, SortOldest, SortRatingHigh, SortRatingLow, SortHelpful:
		return true
	}
	return false
}
