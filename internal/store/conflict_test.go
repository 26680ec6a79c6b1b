package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroll/internal/apperr"
)

func TestPrimaryKeyConflict(t *testing.T) {
	assert.True(t, PrimaryKeyConflict(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "attendance_records_pkey"}))
	assert.True(t, PrimaryKeyConflict(apperr.Unavailable("create user", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_pkey"})))
	assert.False(t, PrimaryKeyConflict(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "attendance_records_student_id_class_id_attend_date_key"}))
	assert.False(t, PrimaryKeyConflict(assert.AnError))

	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "conflict.db"))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	insert := `INSERT INTO attendance_records (id, student_id, class_id, attend_date, status, marked_at)
		VALUES (1, $1, 1, '2024-01-05', 'present', CURRENT_TIMESTAMP)`
	_, err = db.Client.ExecContext(ctx, insert, 1)
	require.NoError(t, err)

	_, err = db.Client.ExecContext(ctx, insert, 2)
	require.Error(t, err)
	assert.True(t, PrimaryKeyConflict(err), "same id, different key")

	_, err = db.Client.ExecContext(ctx, `INSERT INTO attendance_records (id, student_id, class_id, attend_date, status, marked_at)
		VALUES (2, 1, 1, '2024-01-05', 'present', CURRENT_TIMESTAMP)`)
	require.Error(t, err)
	assert.False(t, PrimaryKeyConflict(err), "natural key clash is not an id clash")
}
