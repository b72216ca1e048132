package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/WanderLanka/review-service/internal/domain"
	apperrors "github.com/WanderLanka/review-service/pkg/errors"
)

const (
	keyPrefix = "rating_stats:"
	genPrefix = "rating_stats_gen:"
)

// StatsCache implements repository.StatsCache using Redis. Snapshots are
// cached read-through and invalidated on every committed mutation. Each
// invalidation also advances a per-target generation counter; the populate
// path watches that counter, so a snapshot read before an invalidation is
// never written back after it.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache creates a new Redis-backed stats cache.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{
		client: client,
		ttl:    ttl,
	}
}

// cachedStats carries the full snapshot including the rating sum, which the
// domain type does not expose over JSON.
type cachedStats struct {
	TargetID     string      `json:"target_id"`
	TotalReviews int         `json:"total_reviews"`
	RatingSum    int         `json:"rating_sum"`
	Distribution map[int]int `json:"distribution"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Get retrieves a cached stats snapshot, or a not-found error on a miss.
func (c *StatsCache) Get(ctx context.Context, targetID string) (*domain.RatingStats, error) {
	key := keyPrefix + targetID

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("rating stats", targetID)
		}
		return nil, fmt.Errorf("redis get stats: %w", err)
	}

	var cached cachedStats
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}

	return &domain.RatingStats{
		TargetID:     cached.TargetID,
		TotalReviews: cached.TotalReviews,
		RatingSum:    cached.RatingSum,
		Distribution: cached.Distribution,
		UpdatedAt:    cached.UpdatedAt,
	}, nil
}

// Generation returns the target's current invalidation counter. A target that
// was never invalidated, or whose counter expired, reads as zero.
func (c *StatsCache) Generation(ctx context.Context, targetID string) (int64, error) {
	gen, err := c.client.Get(ctx, genPrefix+targetID).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get stats generation: %w", err)
	}
	return gen, nil
}

// Set stores a stats snapshot with the configured TTL, unless the target was
// invalidated after the given generation was read. A discarded write is not
// an error; the next miss repopulates from the database.
func (c *StatsCache) Set(ctx context.Context, stats *domain.RatingStats, generation int64) error {
	key := keyPrefix + stats.TargetID
	genKey := genPrefix + stats.TargetID

	data, err := json.Marshal(cachedStats{
		TargetID:     stats.TargetID,
		TotalReviews: stats.TotalReviews,
		RatingSum:    stats.RatingSum,
		Distribution: stats.Distribution,
		UpdatedAt:    stats.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}
			current = 0
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if err != nil {
		// A watched-key change means an invalidation won the race.
		if errors.Is(err, redis.TxFailedErr) {
			return nil
		}
		return fmt.Errorf("redis set stats: %w", err)
	}

	return nil
}

// Invalidate drops the cached snapshot for a target and advances its
// generation counter.
func (c *StatsCache) Invalidate(ctx context.Context, targetID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyPrefix+targetID)
		pipe.Incr(ctx, genPrefix+targetID)
		pipe.Expire(ctx, genPrefix+targetID, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate stats: %w", err)
	}

	return nil
}
