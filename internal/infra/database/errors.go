package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	sqlStateInvalidText = "22P02"
	sqlStateCheckFailed = "23514"
)

// sqlState extracts the SQLSTATE code from either driver's error type.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// isInvalidInput is true when Postgres rejected a value's text form, such as a
// malformed uuid in a WHERE clause.
func isInvalidInput(err error) bool {
	return sqlState(err) == sqlStateInvalidText
}

func isCheckViolation(err error) bool {
	return sqlState(err) == sqlStateCheckFailed
}
