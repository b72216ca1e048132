package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WanderLanka/review-service/pkg/database"
	apperrors "github.com/WanderLanka/review-service/pkg/errors"
)

func setupVoteRepo(t *testing.T) (*VoteRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewVoteRepository(mock)
	return repo, mock
}

func TestVoteRepository_Toggle_AddVote(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT author_id FROM reviews").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).AddRow("user-1"))
	mock.ExpectExec("DELETE FROM review_votes").
		WithArgs("rev-1", "voter-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO review_votes").
		WithArgs("rev-1", "voter-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("UPDATE reviews").
		WithArgs(1, "rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"helpful_count"}).AddRow(3))
	mock.ExpectCommit()

	voted, count, err := repo.Toggle(context.Background(), "rev-1", "voter-1")
	require.NoError(t, err)
	assert.True(t, voted)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Toggle_RemoveVote(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT author_id FROM reviews").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).AddRow("user-1"))
	mock.ExpectExec("DELETE FROM review_votes").
		WithArgs("rev-1", "voter-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery("UPDATE reviews").
		WithArgs(-1, "rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"helpful_count"}).AddRow(2))
	mock.ExpectCommit()

	voted, count, err := repo.Toggle(context.Background(), "rev-1", "voter-1")
	require.NoError(t, err)
	assert.False(t, voted)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Toggle_ReviewNotFound(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT author_id FROM reviews").
		WithArgs("rev-x").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	voted, count, err := repo.Toggle(context.Background(), "rev-x", "voter-1")
	assert.False(t, voted)
	assert.Zero(t, count)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Toggle_AuthorSelfVote(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT author_id FROM reviews").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).AddRow("user-1"))
	mock.ExpectRollback()

	voted, count, err := repo.Toggle(context.Background(), "rev-1", "user-1")
	assert.False(t, voted)
	assert.Zero(t, count)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_HasVoted(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("rev-1", "voter-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	voted, err := repo.HasVoted(context.Background(), "rev-1", "voter-1")
	require.NoError(t, err)
	assert.True(t, voted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
