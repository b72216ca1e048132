package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/WanderLanka/review-service/internal/domain"
	"github.com/WanderLanka/review-service/internal/service"
	"github.com/WanderLanka/review-service/pkg/httputil"
	"github.com/WanderLanka/review-service/pkg/pagination"
	"github.com/WanderLanka/review-service/pkg/validator"
)

// ReviewHandler handles HTTP requests for review, vote, and stats endpoints.
type ReviewHandler struct {
	reviews *service.ReviewService
	queries *service.QueryService
	votes   *service.VoteService
	stats   *service.StatsService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(
	reviews *service.ReviewService,
	queries *service.QueryService,
	votes *service.VoteService,
	stats *service.StatsService,
	logger *slog.Logger,
) *ReviewHandler {
	return &ReviewHandler{
		reviews: reviews,
		queries: queries,
		votes:   votes,
		stats:   stats,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ReviewImageRequest is a single attachment reference in a review payload.
type ReviewImageRequest struct {
	URL     string `json:"url" validate:"required,url"`
	Caption string `json:"caption" validate:"omitempty,max=255"`
}

// CreateReviewRequest is the JSON request body for creating a review.
type CreateReviewRequest struct {
	TargetType string               `json:"target_type" validate:"required,oneof=guide place service"`
	Rating     int                  `json:"rating" validate:"required,min=1,max=5"`
	Comment    string               `json:"comment" validate:"required,max=1000"`
	Images     []ReviewImageRequest `json:"images" validate:"omitempty,max=5,dive"`
}

// UpdateReviewRequest is the JSON request body for editing a review. Absent
// fields are left unchanged.
type UpdateReviewRequest struct {
	Rating  *int                  `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment *string               `json:"comment" validate:"omitempty,min=1,max=1000"`
	Images  *[]ReviewImageRequest `json:"images" validate:"omitempty,max=5,dive"`
}

// AttachResponseRequest is the JSON request body for an owner response.
type AttachResponseRequest struct {
	Comment string `json:"comment" validate:"required,max=1000"`
}

// ModerateReviewRequest is the JSON request body for a moderation status change.
type ModerateReviewRequest struct {
	Status string `json:"status" validate:"required,oneof=active hidden flagged"`
}

func imagesFromRequest(reqs []ReviewImageRequest) []domain.ReviewImage {
	images := make([]domain.ReviewImage, 0, len(reqs))
	for _, img := range reqs {
		images = append(images, domain.ReviewImage{URL: img.URL, Caption: img.Caption})
	}
	return images
}

// --- Handlers ---

// ListTargetReviews handles GET /api/v1/targets/{targetId}/reviews
func (h *ReviewHandler) ListTargetReviews(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetId")
	params := pagination.FromRequest(r)
	sort := r.URL.Query().Get("sort")

	result, err := h.queries.ListByTarget(r.Context(), targetID, params, sort)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// CreateReview handles POST /api/v1/targets/{targetId}/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetId")
	authorID, _ := userIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := &service.CreateReviewInput{
		TargetID:   targetID,
		TargetType: req.TargetType,
		AuthorID:   authorID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		Images:     imagesFromRequest(req.Images),
	}

	review, err := h.reviews.CreateReview(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: review})
}

// GetTargetStats handles GET /api/v1/targets/{targetId}/stats
func (h *ReviewHandler) GetTargetStats(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetId")

	stats, err := h.queries.GetStats(r.Context(), targetID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: stats})
}

// ListUserReviews handles GET /api/v1/users/{userId}/reviews
func (h *ReviewHandler) ListUserReviews(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	params := pagination.FromRequest(r)
	sort := r.URL.Query().Get("sort")

	result, err := h.queries.ListByAuthor(r.Context(), userID, params, sort)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// UpdateReview handles PUT /api/v1/reviews/{reviewId}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}
	authorID, _ := userIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := &service.UpdateReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	}
	if req.Images != nil {
		images := imagesFromRequest(*req.Images)
		input.Images = &images
	}

	review, err := h.reviews.UpdateReview(r.Context(), reviewID.String(), authorID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// DeleteReview handles DELETE /api/v1/reviews/{reviewId}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}
	authorID, _ := userIDFromContext(r.Context())

	if err := h.reviews.DeleteReview(r.Context(), reviewID.String(), authorID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleHelpful handles POST /api/v1/reviews/{reviewId}/helpful
func (h *ReviewHandler) ToggleHelpful(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}
	voterID, _ := userIDFromContext(r.Context())

	result, err := h.votes.Toggle(r.Context(), reviewID.String(), voterID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// AttachResponse handles POST /api/v1/reviews/{reviewId}/response
func (h *ReviewHandler) AttachResponse(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}
	responderID, _ := userIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req AttachResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.reviews.AttachResponse(r.Context(), reviewID.String(), responderID, req.Comment)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// ModerateReview handles PATCH /api/v1/reviews/{reviewId}/status
func (h *ReviewHandler) ModerateReview(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ModerateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.reviews.ModerateReview(r.Context(), reviewID.String(), req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// RebuildStats handles POST /internal/v1/targets/{targetId}/stats/rebuild
func (h *ReviewHandler) RebuildStats(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetId")

	stats, err := h.stats.Rebuild(r.Context(), targetID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: stats})
}
