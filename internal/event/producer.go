package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WanderLanka/review-service/internal/domain"
	pkgkafka "github.com/WanderLanka/review-service/pkg/kafka"
	"github.com/WanderLanka/review-service/pkg/logger"
)

// Kafka topic constants for review domain events.
const (
	TopicReviewCreated          = "reviews.review.created"
	TopicReviewUpdated          = "reviews.review.updated"
	TopicReviewDeleted          = "reviews.review.deleted"
	TopicReviewModerated        = "reviews.review.moderated"
	TopicReviewResponseAttached = "reviews.review.response_attached"
)

// Aggregate type constant.
const AggregateTypeReview = "review"

// Source identifier for events originating from the review service.
const SourceReviewService = "review-service"

// ReviewCreatedData is the payload for a review.created event.
type ReviewCreatedData struct {
	ReviewID   string `json:"review_id"`
	TargetID   string `json:"target_id"`
	TargetType string `json:"target_type"`
	AuthorID   string `json:"author_id"`
	Rating     int    `json:"rating"`
}

// ReviewUpdatedData is the payload for a review.updated event.
type ReviewUpdatedData struct {
	ReviewID  string `json:"review_id"`
	TargetID  string `json:"target_id"`
	AuthorID  string `json:"author_id"`
	OldRating int    `json:"old_rating"`
	NewRating int    `json:"new_rating"`
}

// ReviewDeletedData is the payload for a review.deleted event.
type ReviewDeletedData struct {
	ReviewID string `json:"review_id"`
	TargetID string `json:"target_id"`
	AuthorID string `json:"author_id"`
}

// ReviewModeratedData is the payload for a review.moderated event.
type ReviewModeratedData struct {
	ReviewID  string `json:"review_id"`
	TargetID  string `json:"target_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// ReviewResponseAttachedData is the payload for a review.response_attached event.
type ReviewResponseAttachedData struct {
	ReviewID    string    `json:"review_id"`
	TargetID    string    `json:"target_id"`
	ResponderID string    `json:"responder_id"`
	RespondedAt time.Time `json:"responded_at"`
}

// Producer publishes review domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the review service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	data := ReviewCreatedData{
		ReviewID:   review.ID,
		TargetID:   review.TargetID,
		TargetType: review.TargetType,
		AuthorID:   review.AuthorID,
		Rating:     review.Rating,
	}

	return p.publish(ctx, TopicReviewCreated, review.ID, data)
}

// PublishReviewUpdated publishes a review.updated event.
func (p *Producer) PublishReviewUpdated(ctx context.Context, review *domain.Review, oldRating int) error {
	data := ReviewUpdatedData{
		ReviewID:  review.ID,
		TargetID:  review.TargetID,
		AuthorID:  review.AuthorID,
		OldRating: oldRating,
		NewRating: review.Rating,
	}

	return p.publish(ctx, TopicReviewUpdated, review.ID, data)
}

// PublishReviewDeleted publishes a review.deleted event.
func (p *Producer) PublishReviewDeleted(ctx context.Context, review *domain.Review) error {
	data := ReviewDeletedData{
		ReviewID: review.ID,
		TargetID: review.TargetID,
		AuthorID: review.AuthorID,
	}

	return p.publish(ctx, TopicReviewDeleted, review.ID, data)
}

// PublishReviewModerated publishes a review.moderated event.
func (p *Producer) PublishReviewModerated(ctx context.Context, review *domain.Review, oldStatus, newStatus string) error {
	data := ReviewModeratedData{
		ReviewID:  review.ID,
		TargetID:  review.TargetID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}

	return p.publish(ctx, TopicReviewModerated, review.ID, data)
}

// PublishReviewResponseAttached publishes a review.response_attached event.
func (p *Producer) PublishReviewResponseAttached(ctx context.Context, review *domain.Review) error {
	data := ReviewResponseAttachedData{
		ReviewID:    review.ID,
		TargetID:    review.TargetID,
		ResponderID: review.Response.ResponderID,
		RespondedAt: review.Response.RespondedAt,
	}

	return p.publish(ctx, TopicReviewResponseAttached, review.ID, data)
}

func (p *Producer) publish(ctx context.Context, topic, reviewID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, reviewID, AggregateTypeReview, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		event.WithCorrelationID(correlationID)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published review event",
		slog.String("topic", topic),
		slog.String("review_id", reviewID),
	)

	return nil
}
