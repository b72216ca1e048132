package middleware

import (
	"log/slog"
	"net/http"

	"github.com/WanderLanka/review-service/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// the correlation ID, the caller's user ID from the X-User-ID header, and the
// current trace span. Handlers retrieve it with logger.FromContext.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if userID := r.Header.Get("X-User-ID"); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}

			l := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, l)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
