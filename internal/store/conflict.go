package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// InsertAttempts bounds retries of an insert whose max+1 id was taken by a
// concurrent insert.
const InsertAttempts = 5

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// PrimaryKeyConflict reports a duplicate primary key from either driver.
// Other unique constraints do not count.
func PrimaryKeyConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation && strings.HasSuffix(pgErr.ConstraintName, "_pkey")
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
