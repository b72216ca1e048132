package database

import (
	"fmt"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool creates a pgxmock pool that satisfies DBTX, so repositories can
// be constructed against it in tests. Callers should finish each test with
// ExpectationsWereMet().
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	pool, err := pgxmock.NewPool()
	if err != nil {
		return nil, fmt.Errorf("create mock pool: %w", err)
	}
	return pool, nil
}
