package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the service reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func matchesCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	// Fall back to string matching for drivers/mocks that return plain
	// errors (pgxmock does).
	return strings.Contains(err.Error(), code)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return matchesCode(err, codeUniqueViolation)
}

// IsSerializationFailure reports whether err is a serialization failure or a
// deadlock, both of which are safe to retry.
func IsSerializationFailure(err error) bool {
	return matchesCode(err, codeSerializationFailure) || matchesCode(err, codeDeadlockDetected)
}
