package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/WanderLanka/review-service/internal/domain"
	"github.com/WanderLanka/review-service/internal/event"
	"github.com/WanderLanka/review-service/internal/repository"
	"github.com/WanderLanka/review-service/internal/service"
	apperrors "github.com/WanderLanka/review-service/pkg/errors"
	"github.com/WanderLanka/review-service/pkg/httputil"
	pkgkafka "github.com/WanderLanka/review-service/pkg/kafka"
)

// --- Mock repositories ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) GetByAuthorAndTarget(ctx context.Context, authorID, targetID string) (*domain.Review, error) {
	args := m.Called(ctx, authorID, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) Update(ctx context.Context, review *domain.Review) (int, error) {
	args := m.Called(ctx, review)
	return args.Int(0), args.Error(1)
}

func (m *mockReviewRepository) SoftDelete(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) UpdateStatus(ctx context.Context, review *domain.Review, newStatus string) (string, error) {
	args := m.Called(ctx, review, newStatus)
	return args.String(0), args.Error(1)
}

func (m *mockReviewRepository) AttachResponse(ctx context.Context, reviewID string, response *domain.ReviewResponse) error {
	args := m.Called(ctx, reviewID, response)
	return args.Error(0)
}

func (m *mockReviewRepository) ListByTarget(ctx context.Context, targetID string, filter repository.ListFilter) ([]domain.Review, int, error) {
	args := m.Called(ctx, targetID, filter)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) ListByAuthor(ctx context.Context, authorID string, filter repository.ListFilter) ([]domain.Review, int, error) {
	args := m.Called(ctx, authorID, filter)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

type mockStatsRepository struct {
	mock.Mock
}

func (m *mockStatsRepository) Get(ctx context.Context, targetID string) (*domain.RatingStats, error) {
	args := m.Called(ctx, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RatingStats), args.Error(1)
}

func (m *mockStatsRepository) Rebuild(ctx context.Context, targetID string) (*domain.RatingStats, error) {
	args := m.Called(ctx, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RatingStats), args.Error(1)
}

type mockVoteRepository struct {
	mock.Mock
}

func (m *mockVoteRepository) Toggle(ctx context.Context, reviewID, voterID string) (bool, int, error) {
	args := m.Called(ctx, reviewID, voterID)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *mockVoteRepository) HasVoted(ctx context.Context, reviewID, voterID string) (bool, error) {
	args := m.Called(ctx, reviewID, voterID)
	return args.Bool(0), args.Error(1)
}

type mockStatsCache struct {
	mock.Mock
}

func (m *mockStatsCache) Get(ctx context.Context, targetID string) (*domain.RatingStats, error) {
	args := m.Called(ctx, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RatingStats), args.Error(1)
}

func (m *mockStatsCache) Generation(ctx context.Context, targetID string) (int64, error) {
	args := m.Called(ctx, targetID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStatsCache) Set(ctx context.Context, stats *domain.RatingStats, generation int64) error {
	args := m.Called(ctx, stats, generation)
	return args.Error(0)
}

func (m *mockStatsCache) Invalidate(ctx context.Context, targetID string) error {
	args := m.Called(ctx, targetID)
	return args.Error(0)
}

// --- Test fixtures ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEventProducer points at a broker that is not running; publish failures
// are logged and ignored by the services.
func testEventProducer() *event.Producer {
	kp := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig([]string{"localhost:9092"}), testLogger())
	return event.NewProducer(kp, testLogger())
}

type handlerMocks struct {
	reviews *mockReviewRepository
	stats   *mockStatsRepository
	votes   *mockVoteRepository
	cache   *mockStatsCache
}

func newHandlerMocks() *handlerMocks {
	return &handlerMocks{
		reviews: new(mockReviewRepository),
		stats:   new(mockStatsRepository),
		votes:   new(mockVoteRepository),
		cache:   new(mockStatsCache),
	}
}

func testHandler(m *handlerMocks) *ReviewHandler {
	logger := testLogger()
	producer := testEventProducer()
	reviewSvc := service.NewReviewService(m.reviews, m.cache, producer, logger)
	querySvc := service.NewQueryService(m.reviews, m.stats, m.cache, logger)
	voteSvc := service.NewVoteService(m.reviews, m.votes, logger)
	statsSvc := service.NewStatsService(m.stats, m.cache, logger)
	return NewReviewHandler(reviewSvc, querySvc, voteSvc, statsSvc, logger)
}

// setupRouter creates a chi router matching the production route layout.
func setupRouter(handler *ReviewHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/targets/{targetId}/reviews", handler.ListTargetReviews)
		r.Get("/targets/{targetId}/stats", handler.GetTargetStats)
		r.Get("/users/{userId}/reviews", handler.ListUserReviews)

		r.Group(func(r chi.Router) {
			r.Use(UserIDFromHeader)

			r.Post("/targets/{targetId}/reviews", handler.CreateReview)
			r.Put("/reviews/{reviewId}", handler.UpdateReview)
			r.Delete("/reviews/{reviewId}", handler.DeleteReview)
			r.Post("/reviews/{reviewId}/helpful", handler.ToggleHelpful)
			r.Post("/reviews/{reviewId}/response", handler.AttachResponse)
		})

		r.Patch("/reviews/{reviewId}/status", handler.ModerateReview)
	})
	r.Route("/internal/v1", func(r chi.Router) {
		r.Post("/targets/{targetId}/stats/rebuild", handler.RebuildStats)
	})
	return r
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

func jsonRequest(method, path string, body any, userID string) *http.Request {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	return req
}

const validReviewID = "550e8400-e29b-41d4-a716-446655440001"

func sampleReview() *domain.Review {
	return &domain.Review{
		ID:           validReviewID,
		TargetID:     "guide-1",
		TargetType:   domain.TargetTypeGuide,
		AuthorID:     "user-1",
		Rating:       5,
		Comment:      "Outstanding local knowledge",
		Images:       []domain.ReviewImage{},
		Status:       domain.StatusActive,
		HelpfulCount: 2,
		CreatedAt:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleStats() *domain.RatingStats {
	stats := domain.NewRatingStats("guide-1")
	stats.TotalReviews = 2
	stats.RatingSum = 8
	stats.Distribution[3] = 1
	stats.Distribution[5] = 1
	stats.UpdatedAt = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return stats
}

// ============================================================================
// POST /api/v1/targets/{targetId}/reviews - CreateReview
// ============================================================================

func TestCreateReview_Success(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("GetByAuthorAndTarget", mock.Anything, "user-1", "guide-1").
		Return(nil, apperrors.ErrNotFound)
	m.reviews.On("Create", mock.Anything, mock.AnythingOfType("*domain.Review")).
		Return(nil)
	m.cache.On("Invalidate", mock.Anything, "guide-1").Return(nil)

	req := jsonRequest(http.MethodPost, "/api/v1/targets/guide-1/reviews", CreateReviewRequest{
		TargetType: "guide",
		Rating:     5,
		Comment:    "Outstanding local knowledge",
	}, "user-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	m.reviews.AssertExpectations(t)
}

func TestCreateReview_MissingUserHeader(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	req := jsonRequest(http.MethodPost, "/api/v1/targets/guide-1/reviews", CreateReviewRequest{
		TargetType: "guide",
		Rating:     5,
		Comment:    "Outstanding local knowledge",
	}, "")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
	m.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateReview_InvalidJSON(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/targets/guide-1/reviews", bytes.NewReader([]byte(`{invalid`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateReview_ValidationError(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	req := jsonRequest(http.MethodPost, "/api/v1/targets/guide-1/reviews", CreateReviewRequest{
		TargetType: "guide",
		Rating:     6,
		Comment:    "too good",
	}, "user-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "rating")
	m.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateReview_Duplicate(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("GetByAuthorAndTarget", mock.Anything, "user-1", "guide-1").
		Return(sampleReview(), nil)

	req := jsonRequest(http.MethodPost, "/api/v1/targets/guide-1/reviews", CreateReviewRequest{
		TargetType: "guide",
		Rating:     4,
		Comment:    "Trying to review again",
	}, "user-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "DUPLICATE_REVIEW", resp.Error.Code)
	m.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateReview_UnsupportedMediaType(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/targets/guide-1/reviews", bytes.NewReader([]byte(`rating=5`)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// ============================================================================
// GET /api/v1/targets/{targetId}/reviews - ListTargetReviews
// ============================================================================

func TestListTargetReviews_Success(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("ListByTarget", mock.Anything, "guide-1",
		repository.ListFilter{Page: 1, PerPage: 20, Sort: domain.SortRecent}).
		Return([]domain.Review{*sampleReview()}, 1, nil)
	m.cache.On("Get", mock.Anything, "guide-1").Return(nil, apperrors.ErrNotFound)
	m.cache.On("Generation", mock.Anything, "guide-1").Return(int64(0), nil)
	m.stats.On("Get", mock.Anything, "guide-1").Return(sampleStats(), nil)
	m.cache.On("Set", mock.Anything, mock.AnythingOfType("*domain.RatingStats"), int64(0)).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/targets/guide-1/reviews", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var result service.TargetReviewsResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Len(t, result.Reviews.Data, 1)
	assert.Equal(t, 1, result.Reviews.TotalCount)
	require.NotNil(t, result.Stats)
	assert.Equal(t, 4.0, result.Stats.AverageRating)
	m.reviews.AssertExpectations(t)
}

func TestListTargetReviews_SortPassedThrough(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("ListByTarget", mock.Anything, "guide-1",
		repository.ListFilter{Page: 2, PerPage: 10, Sort: domain.SortHelpful}).
		Return([]domain.Review{}, 0, nil)
	m.cache.On("Get", mock.Anything, "guide-1").Return(sampleStats(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/targets/guide-1/reviews?page=2&per_page=10&sort=helpful", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	m.reviews.AssertExpectations(t)
}

func TestListTargetReviews_InvalidSort(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/targets/guide-1/reviews?sort=sideways", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

// ============================================================================
// GET /api/v1/targets/{targetId}/stats - GetTargetStats
// ============================================================================

func TestGetTargetStats_CacheHit(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.cache.On("Get", mock.Anything, "guide-1").Return(sampleStats(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/targets/guide-1/stats", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(2), data["total_reviews"])
	assert.Equal(t, 4.0, data["average_rating"])
	m.stats.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestGetTargetStats_NoReviews(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.cache.On("Get", mock.Anything, "guide-x").Return(nil, apperrors.ErrNotFound)
	m.cache.On("Generation", mock.Anything, "guide-x").Return(int64(0), nil)
	m.stats.On("Get", mock.Anything, "guide-x").Return(domain.NewRatingStats("guide-x"), nil)
	m.cache.On("Set", mock.Anything, mock.AnythingOfType("*domain.RatingStats"), int64(0)).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/targets/guide-x/stats", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(0), data["total_reviews"])
	assert.Equal(t, 0.0, data["average_rating"])
}

// ============================================================================
// GET /api/v1/users/{userId}/reviews - ListUserReviews
// ============================================================================

func TestListUserReviews_Success(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("ListByAuthor", mock.Anything, "user-1",
		repository.ListFilter{Page: 1, PerPage: 20, Sort: domain.SortRecent}).
		Return([]domain.Review{*sampleReview()}, 1, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/reviews", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	m.reviews.AssertExpectations(t)
}

// ============================================================================
// PUT /api/v1/reviews/{reviewId} - UpdateReview
// ============================================================================

func TestUpdateReview_Success(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("GetByID", mock.Anything, validReviewID).Return(sampleReview(), nil)
	m.reviews.On("Update", mock.Anything, mock.AnythingOfType("*domain.Review")).Return(5, nil)
	m.cache.On("Invalidate", mock.Anything, "guide-1").Return(nil)

	rating := 3
	req := jsonRequest(http.MethodPut, "/api/v1/reviews/"+validReviewID, UpdateReviewRequest{
		Rating: &rating,
	}, "user-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(3), data["rating"])
	assert.Equal(t, true, data["edited"])
	m.reviews.AssertExpectations(t)
}

func TestUpdateReview_NotAuthor(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("GetByID", mock.Anything, validReviewID).Return(sampleReview(), nil)

	comment := "Not my review"
	req := jsonRequest(http.MethodPut, "/api/v1/reviews/"+validReviewID, UpdateReviewRequest{
		Comment: &comment,
	}, "user-2")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)
	m.reviews.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateReview_InvalidReviewID(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	comment := "whatever"
	req := jsonRequest(http.MethodPut, "/api/v1/reviews/not-a-uuid", UpdateReviewRequest{
		Comment: &comment,
	}, "user-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateReview_NotFound(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("GetByID", mock.Anything, validReviewID).Return(nil, apperrors.NotFound("review", validReviewID))

	comment := "ghost"
	req := jsonRequest(http.MethodPut, "/api/v1/reviews/"+validReviewID, UpdateReviewRequest{
		Comment: &comment,
	}, "user-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// DELETE /api/v1/reviews/{reviewId} - DeleteReview
// ============================================================================

func TestDeleteReview_Success(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("GetByID", mock.Anything, validReviewID).Return(sampleReview(), nil)
	m.reviews.On("SoftDelete", mock.Anything, mock.AnythingOfType("*domain.Review")).Return(nil)
	m.cache.On("Invalidate", mock.Anything, "guide-1").Return(nil)

	req := jsonRequest(http.MethodDelete, "/api/v1/reviews/"+validReviewID, nil, "user-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
	m.reviews.AssertExpectations(t)
}

func TestDeleteReview_NotAuthor(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("GetByID", mock.Anything, validReviewID).Return(sampleReview(), nil)

	req := jsonRequest(http.MethodDelete, "/api/v1/reviews/"+validReviewID, nil, "user-2")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	m.reviews.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

// ============================================================================
// POST /api/v1/reviews/{reviewId}/helpful - ToggleHelpful
// ============================================================================

func TestToggleHelpful_Success(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("GetByID", mock.Anything, validReviewID).Return(sampleReview(), nil)
	m.votes.On("Toggle", mock.Anything, validReviewID, "voter-1").Return(true, 3, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/reviews/"+validReviewID+"/helpful", nil, "voter-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["voted"])
	assert.Equal(t, float64(3), data["helpful_count"])
	m.votes.AssertExpectations(t)
}

func TestToggleHelpful_SelfVote(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("GetByID", mock.Anything, validReviewID).Return(sampleReview(), nil)

	req := jsonRequest(http.MethodPost, "/api/v1/reviews/"+validReviewID+"/helpful", nil, "user-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	m.votes.AssertNotCalled(t, "Toggle", mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================================
// POST /api/v1/reviews/{reviewId}/response - AttachResponse
// ============================================================================

func TestAttachResponse_Success(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("GetByID", mock.Anything, validReviewID).Return(sampleReview(), nil)
	m.reviews.On("AttachResponse", mock.Anything, validReviewID, mock.AnythingOfType("*domain.ReviewResponse")).
		Return(nil)

	req := jsonRequest(http.MethodPost, "/api/v1/reviews/"+validReviewID+"/response", AttachResponseRequest{
		Comment: "Thank you for the kind words",
	}, "owner-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	require.NotNil(t, data["response"])
	response := data["response"].(map[string]any)
	assert.Equal(t, "owner-1", response["responder_id"])
	m.reviews.AssertExpectations(t)
}

func TestAttachResponse_OverwriteByDifferentResponder(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	rv := sampleReview()
	rv.Response = &domain.ReviewResponse{
		Comment:     "Earlier reply",
		ResponderID: "owner-1",
		RespondedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	m.reviews.On("GetByID", mock.Anything, validReviewID).Return(rv, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/reviews/"+validReviewID+"/response", AttachResponseRequest{
		Comment: "Taking over this reply",
	}, "owner-2")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	m.reviews.AssertNotCalled(t, "AttachResponse", mock.Anything, mock.Anything, mock.Anything)
}

func TestAttachResponse_MissingComment(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	req := jsonRequest(http.MethodPost, "/api/v1/reviews/"+validReviewID+"/response", AttachResponseRequest{}, "owner-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

// ============================================================================
// PATCH /api/v1/reviews/{reviewId}/status - ModerateReview
// ============================================================================

func TestModerateReview_Success(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.reviews.On("GetByID", mock.Anything, validReviewID).Return(sampleReview(), nil)
	m.reviews.On("UpdateStatus", mock.Anything, mock.AnythingOfType("*domain.Review"), domain.StatusHidden).
		Return(domain.StatusActive, nil)
	m.cache.On("Invalidate", mock.Anything, "guide-1").Return(nil)

	req := jsonRequest(http.MethodPatch, "/api/v1/reviews/"+validReviewID+"/status", ModerateReviewRequest{
		Status: "hidden",
	}, "")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "hidden", data["status"])
	m.reviews.AssertExpectations(t)
}

func TestModerateReview_DeletedStatusRejected(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	req := jsonRequest(http.MethodPatch, "/api/v1/reviews/"+validReviewID+"/status", ModerateReviewRequest{
		Status: "deleted",
	}, "")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m.reviews.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================================
// POST /internal/v1/targets/{targetId}/stats/rebuild - RebuildStats
// ============================================================================

func TestRebuildStats_Success(t *testing.T) {
	m := newHandlerMocks()
	router := setupRouter(testHandler(m))

	m.stats.On("Get", mock.Anything, "guide-1").Return(sampleStats(), nil)
	m.stats.On("Rebuild", mock.Anything, "guide-1").Return(sampleStats(), nil)
	m.cache.On("Invalidate", mock.Anything, "guide-1").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/internal/v1/targets/guide-1/stats/rebuild", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(2), data["total_reviews"])
	assert.Equal(t, 4.0, data["average_rating"])
	m.stats.AssertExpectations(t)
}
