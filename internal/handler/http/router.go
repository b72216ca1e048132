package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WanderLanka/review-service/internal/service"
	"github.com/WanderLanka/review-service/pkg/health"
	"github.com/WanderLanka/review-service/pkg/middleware"
)

// NewRouter creates a chi router with all review service routes registered.
func NewRouter(
	reviewService *service.ReviewService,
	queryService *service.QueryService,
	voteService *service.VoteService,
	statsService *service.StatsService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("reviews"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	reviewHandler := NewReviewHandler(reviewService, queryService, voteService, statsService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public read endpoints
		r.Get("/targets/{targetId}/reviews", reviewHandler.ListTargetReviews)
		r.Get("/targets/{targetId}/stats", reviewHandler.GetTargetStats)
		r.Get("/users/{userId}/reviews", reviewHandler.ListUserReviews)

		// Authenticated mutation endpoints
		r.Group(func(r chi.Router) {
			r.Use(UserIDFromHeader)

			r.Post("/targets/{targetId}/reviews", reviewHandler.CreateReview)
			r.Put("/reviews/{reviewId}", reviewHandler.UpdateReview)
			r.Delete("/reviews/{reviewId}", reviewHandler.DeleteReview)
			r.Post("/reviews/{reviewId}/helpful", reviewHandler.ToggleHelpful)
			r.Post("/reviews/{reviewId}/response", reviewHandler.AttachResponse)
		})

		// Moderation endpoint; transition authority sits with the upstream
		// moderation tooling.
		r.Patch("/reviews/{reviewId}/status", reviewHandler.ModerateReview)
	})

	// Operational endpoints, not exposed through the gateway.
	r.Route("/internal/v1", func(r chi.Router) {
		r.Post("/targets/{targetId}/stats/rebuild", reviewHandler.RebuildStats)
	})

	return r
}
