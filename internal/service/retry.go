package service

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/WanderLanka/review-service/pkg/database"
	apperrors "github.com/WanderLanka/review-service/pkg/errors"
)

const (
	maxMutationAttempts = 3
	mutationRetryBase   = 10 * time.Millisecond
)

// withSerializationRetry runs fn, retrying on Postgres serialization failures
// and deadlocks with jittered backoff. Validation and authorization errors
// pass through on the first attempt. After the attempt budget is exhausted a
// concurrency conflict is surfaced to the caller.
func withSerializationRetry(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxMutationAttempts; attempt++ {
		err = fn()
		if err == nil || !database.IsSerializationFailure(err) {
			return err
		}

		logger.WarnContext(ctx, "serialization conflict, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)

		wait := mutationRetryBase << attempt
		jitter := time.Duration(rand.Int63n(int64(wait) / 2)) // #nosec G404 -- jitter does not need crypto randomness
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait + jitter):
		}
	}

	return apperrors.ConcurrencyConflict("concurrent update conflict, retries exhausted")
}
