package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WanderLanka/review-service/pkg/database"
)

func setupStatsRepo(t *testing.T) (*StatsRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewStatsRepository(mock)
	return repo, mock
}

var statsCols = []string{
	"target_id", "total_reviews", "rating_sum",
	"rating_1", "rating_2", "rating_3", "rating_4", "rating_5", "updated_at",
}

func TestStatsRepository_Get_Success(t *testing.T) {
	repo, mock := setupStatsRepo(t)
	defer mock.Close()

	updatedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .+ FROM rating_stats").
		WithArgs("guide-1").
		WillReturnRows(pgxmock.NewRows(statsCols).
			AddRow("guide-1", 2, 8, 0, 0, 1, 0, 1, updatedAt))

	stats, err := repo.Get(context.Background(), "guide-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalReviews)
	assert.Equal(t, 4.0, stats.AverageRating())
	assert.Equal(t, 1, stats.Distribution[3])
	assert.Equal(t, 1, stats.Distribution[5])
	assert.Equal(t, stats.TotalReviews, stats.DistributionSum())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepository_Get_NoRow_ReturnsEmpty(t *testing.T) {
	repo, mock := setupStatsRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM rating_stats").
		WithArgs("guide-x").
		WillReturnError(pgx.ErrNoRows)

	stats, err := repo.Get(context.Background(), "guide-x")
	require.NoError(t, err)
	assert.Equal(t, "guide-x", stats.TargetID)
	assert.Equal(t, 0, stats.TotalReviews)
	assert.Equal(t, 0.0, stats.AverageRating())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepository_Rebuild_Success(t *testing.T) {
	repo, mock := setupStatsRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("guide-1").
		WillReturnRows(pgxmock.NewRows([]string{"count", "sum", "r1", "r2", "r3", "r4", "r5"}).
			AddRow(3, 11, 0, 0, 1, 1, 1))
	mock.ExpectExec("INSERT INTO rating_stats").
		WithArgs("guide-1", 3, 11, 0, 0, 1, 1, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	stats, err := repo.Rebuild(context.Background(), "guide-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalReviews)
	assert.Equal(t, 11, stats.RatingSum)
	assert.Equal(t, 3.7, stats.AverageRating())
	assert.Equal(t, stats.TotalReviews, stats.DistributionSum())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepository_Rebuild_RecomputeError(t *testing.T) {
	repo, mock := setupStatsRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("guide-1").
		WillReturnError(errors.New("recompute failed"))
	mock.ExpectRollback()

	stats, err := repo.Rebuild(context.Background(), "guide-1")
	assert.Nil(t, stats)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "recompute rating stats")
	assert.NoError(t, mock.ExpectationsWereMet())
}
