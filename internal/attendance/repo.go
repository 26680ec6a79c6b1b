package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"classroll/internal/apperr"
	"classroll/internal/store"
)

// Repository persists attendance records in Postgres or SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, student_id, class_id, attend_date, status, marked_by, marked_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var status string
	if err := row.Scan(&r.ID, &r.StudentID, &r.ClassID, &r.Date, &status, &r.MarkedBy, &r.Timestamp); err != nil {
		return Record{}, err
	}
	r.Status = Status(status)
	r.Timestamp = r.Timestamp.UTC()
	return r, nil
}

// Get returns a single record by id.
func (r *Repository) Get(ctx context.Context, id int) (Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, apperr.ErrNotFound
		}
		return Record{}, apperr.Unavailable("get attendance", err)
	}
	return rec, nil
}

// ByClassAndDate returns the records of one class on one date.
func (r *Repository) ByClassAndDate(ctx context.Context, classID int, date string) ([]Record, error) {
	return r.List(ctx, Filter{ClassID: classID, Date: date})
}

// ByStudent returns every record of a student.
func (r *Repository) ByStudent(ctx context.Context, studentID int) ([]Record, error) {
	return r.List(ctx, Filter{StudentID: studentID})
}

// List returns records with basic filters.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	args := []any{}
	clauses := []string{}
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, clause+" $"+strconv.Itoa(len(args)))
	}
	if f.ClassID != 0 {
		add("class_id =", f.ClassID)
	}
	if f.StudentID != 0 {
		add("student_id =", f.StudentID)
	}
	if f.Date != "" {
		add("attend_date =", f.Date)
	}
	if f.From != "" {
		add("attend_date >=", f.From)
	}
	if f.Status != "" {
		add("status =", string(f.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if f.Newest {
		query += " ORDER BY marked_at DESC, id DESC"
	} else {
		query += " ORDER BY attend_date, class_id, student_id, id"
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Unavailable("list attendance", err)
	}
	defer rows.Close()
	res := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.Unavailable("list attendance", err)
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("list attendance", err)
	}
	return res, nil
}

// FindByKey looks a record up by its natural key.
func (r *Repository) FindByKey(ctx context.Context, k Key) (Record, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE student_id = $1 AND class_id = $2 AND attend_date = $3
	`, k.StudentID, k.ClassID, k.Date)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, apperr.Unavailable("find attendance", err)
	}
	return rec, true, nil
}

// MaxID returns the highest record id, 0 for an empty table.
func (r *Repository) MaxID(ctx context.Context) (int, error) {
	var max int
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM attendance_records`).Scan(&max); err != nil {
		return 0, apperr.Unavailable("max attendance id", err)
	}
	return max, nil
}

// Upsert writes rec keyed by (student_id, class_id, attend_date). On conflict
// the existing row keeps its id and only status, marker and time change.
// A new row with ID 0 gets max+1 computed inside the INSERT; a concurrent
// insert that took the same id makes the statement fail on the primary key,
// and it is retried against the new max.
func (r *Repository) Upsert(ctx context.Context, rec Record) (Record, error) {
	var err error
	for attempt := 0; attempt < store.InsertAttempts; attempt++ {
		row := r.db.QueryRowContext(ctx, `
			INSERT INTO attendance_records (id, student_id, class_id, attend_date, status, marked_by, marked_at)
			VALUES (
				COALESCE(NULLIF($1, 0), (SELECT COALESCE(MAX(id), 0) + 1 FROM attendance_records)),
				$2, $3, $4, $5, $6, $7
			)
			ON CONFLICT (student_id, class_id, attend_date) DO UPDATE SET
				status = EXCLUDED.status,
				marked_by = EXCLUDED.marked_by,
				marked_at = EXCLUDED.marked_at
			RETURNING id
		`, rec.ID, rec.StudentID, rec.ClassID, rec.Date, string(rec.Status), rec.MarkedBy, rec.Timestamp)
		var id int
		if err = row.Scan(&id); err == nil {
			rec.ID = id
			return rec, nil
		}
		if rec.ID != 0 || !store.PrimaryKeyConflict(err) {
			break
		}
	}
	return Record{}, apperr.Unavailable("upsert attendance", err)
}
