package store

import (
	"context"
	"fmt"
)

// Statements run one at a time so both drivers accept them. Ids are assigned
// by the application (max+1), never by a sequence.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		email       TEXT NOT NULL DEFAULT '',
		phone       TEXT NOT NULL DEFAULT '',
		role        TEXT NOT NULL,
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_role ON users (role)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id          INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		grade       TEXT NOT NULL DEFAULT '',
		subject     TEXT NOT NULL DEFAULT '',
		room        TEXT NOT NULL DEFAULT '',
		schedule    TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS class_members (
		class_id     INTEGER NOT NULL REFERENCES classes (id) ON DELETE CASCADE,
		user_id      INTEGER NOT NULL,
		member_role  TEXT NOT NULL,
		position     INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (class_id, user_id, member_role)
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		id           INTEGER PRIMARY KEY,
		student_id   INTEGER NOT NULL,
		class_id     INTEGER NOT NULL,
		attend_date  TEXT NOT NULL,
		status       TEXT NOT NULL,
		marked_by    TEXT NOT NULL DEFAULT '',
		marked_at    TIMESTAMP NOT NULL,
		UNIQUE (student_id, class_id, attend_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_class_date ON attendance_records (class_id, attend_date)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance_records (attend_date)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id            INTEGER PRIMARY KEY,
		type          TEXT NOT NULL,
		message       TEXT NOT NULL,
		student_id    INTEGER NOT NULL DEFAULT 0,
		class_id      INTEGER NOT NULL DEFAULT 0,
		attend_date   TEXT NOT NULL DEFAULT '',
		student_name  TEXT NOT NULL DEFAULT '',
		class_name    TEXT NOT NULL DEFAULT '',
		recipient_id  INTEGER NOT NULL DEFAULT 0,
		is_read       BOOLEAN NOT NULL DEFAULT FALSE,
		sent_at       TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_type ON notifications (type)`,
}

// Migrate creates the tables and indexes if they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
