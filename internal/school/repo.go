package school

import (
	"context"
	"database/sql"
	"errors"

	"classroll/internal/apperr"
	"classroll/internal/store"
)

const (
	memberStudent = "student"
	memberTeacher = "teacher"
)

// Repository persists users and classes in Postgres or SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListUsers returns users ordered by id, optionally restricted to one role.
func (r *Repository) ListUsers(ctx context.Context, role Role) ([]User, error) {
	query := `SELECT id, name, email, phone, role, created_at FROM users`
	args := []any{}
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, string(role))
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Unavailable("list users", err)
	}
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Unavailable("list users", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("list users", err)
	}
	return users, nil
}

// GetUser returns a single user by id.
func (r *Repository) GetUser(ctx context.Context, id int) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, email, phone, role, created_at FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.ErrNotFound
		}
		return User{}, apperr.Unavailable("get user", err)
	}
	return u, nil
}

// CreateUser inserts u with the next free id.
func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	err := r.insertTx(ctx, "create user", func(tx *sql.Tx) error {
		id, err := nextID(ctx, tx, "users")
		if err != nil {
			return err
		}
		u.ID = id
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, name, email, phone, role, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, u.ID, u.Name, u.Email, u.Phone, string(u.Role), u.CreatedAt)
		return err
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateUser replaces name, email, phone and role of an existing user.
func (r *Repository) UpdateUser(ctx context.Context, u User) (User, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET name = $1, email = $2, phone = $3, role = $4
		WHERE id = $5
	`, u.Name, u.Email, u.Phone, string(u.Role), u.ID)
	if err := checkAffected(res, err, "update user"); err != nil {
		return User{}, err
	}
	return r.GetUser(ctx, u.ID)
}

// DeleteUser removes a user and its class memberships.
func (r *Repository) DeleteUser(ctx context.Context, id int) error {
	return r.inTx(ctx, "delete user", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err := checkAffected(res, err, "delete user"); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM class_members WHERE user_id = $1`, id)
		return err
	})
}

// ListClasses returns classes ordered by id with their members.
func (r *Repository) ListClasses(ctx context.Context) ([]Class, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, grade, subject, room, schedule, created_at
		FROM classes ORDER BY id
	`)
	if err != nil {
		return nil, apperr.Unavailable("list classes", err)
	}
	classes := make([]Class, 0)
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			rows.Close()
			return nil, apperr.Unavailable("list classes", err)
		}
		classes = append(classes, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("list classes", err)
	}

	members, err := r.members(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i := range classes {
		m := members[classes[i].ID]
		classes[i].StudentIDs = append(classes[i].StudentIDs, m.StudentIDs...)
		classes[i].TeacherIDs = append(classes[i].TeacherIDs, m.TeacherIDs...)
	}
	return classes, nil
}

// GetClass returns a single class by id.
func (r *Repository) GetClass(ctx context.Context, id int) (Class, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, grade, subject, room, schedule, created_at
		FROM classes WHERE id = $1
	`, id)
	c, err := scanClass(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Class{}, apperr.ErrNotFound
		}
		return Class{}, apperr.Unavailable("get class", err)
	}
	members, err := r.members(ctx, id)
	if err != nil {
		return Class{}, err
	}
	c.StudentIDs = append(c.StudentIDs, members[id].StudentIDs...)
	c.TeacherIDs = append(c.TeacherIDs, members[id].TeacherIDs...)
	return c, nil
}

// CreateClass inserts c and its members with the next free id.
func (r *Repository) CreateClass(ctx context.Context, c Class) (Class, error) {
	err := r.insertTx(ctx, "create class", func(tx *sql.Tx) error {
		id, err := nextID(ctx, tx, "classes")
		if err != nil {
			return err
		}
		c.ID = id
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO classes (id, name, grade, subject, room, schedule, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, c.ID, c.Name, c.Grade, c.Subject, c.Room, c.Schedule, c.CreatedAt); err != nil {
			return err
		}
		return writeMembers(ctx, tx, c)
	})
	if err != nil {
		return Class{}, err
	}
	return c, nil
}

// UpdateClass replaces the fields and members of an existing class.
func (r *Repository) UpdateClass(ctx context.Context, c Class) (Class, error) {
	err := r.inTx(ctx, "update class", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE classes SET name = $1, grade = $2, subject = $3, room = $4, schedule = $5
			WHERE id = $6
		`, c.Name, c.Grade, c.Subject, c.Room, c.Schedule, c.ID)
		if err := checkAffected(res, err, "update class"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM class_members WHERE class_id = $1`, c.ID); err != nil {
			return err
		}
		return writeMembers(ctx, tx, c)
	})
	if err != nil {
		return Class{}, err
	}
	return r.GetClass(ctx, c.ID)
}

// DeleteClass removes a class and its members.
func (r *Repository) DeleteClass(ctx context.Context, id int) error {
	return r.inTx(ctx, "delete class", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM class_members WHERE class_id = $1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
		return checkAffected(res, err, "delete class")
	})
}

// members loads class membership, for one class or all when classID is 0.
func (r *Repository) members(ctx context.Context, classID int) (map[int]Roster, error) {
	query := `SELECT class_id, user_id, member_role FROM class_members`
	args := []any{}
	if classID != 0 {
		query += ` WHERE class_id = $1`
		args = append(args, classID)
	}
	query += ` ORDER BY class_id, member_role, position`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Unavailable("list class members", err)
	}
	defer rows.Close()
	out := make(map[int]Roster)
	for rows.Next() {
		var cid, uid int
		var role string
		if err := rows.Scan(&cid, &uid, &role); err != nil {
			return nil, apperr.Unavailable("list class members", err)
		}
		m := out[cid]
		m.ClassID = cid
		if role == memberTeacher {
			m.TeacherIDs = append(m.TeacherIDs, uid)
		} else {
			m.StudentIDs = append(m.StudentIDs, uid)
		}
		out[cid] = m
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("list class members", err)
	}
	return out, nil
}

func writeMembers(ctx context.Context, tx *sql.Tx, c Class) error {
	insert := func(ids []int, role string) error {
		seen := make(map[int]bool, len(ids))
		for pos, uid := range ids {
			if seen[uid] {
				continue
			}
			seen[uid] = true
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO class_members (class_id, user_id, member_role, position)
				VALUES ($1, $2, $3, $4)
			`, c.ID, uid, role, pos); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert(c.StudentIDs, memberStudent); err != nil {
		return err
	}
	return insert(c.TeacherIDs, memberTeacher)
}

func (r *Repository) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrStoreUnavailable) {
			return err
		}
		return apperr.Unavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Unavailable(op, err)
	}
	return nil
}

// insertTx runs an insert transaction that takes nextID, again when a
// concurrent insert committed the same id first.
func (r *Repository) insertTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < store.InsertAttempts; attempt++ {
		if err = r.inTx(ctx, op, fn); err == nil || !store.PrimaryKeyConflict(err) {
			return err
		}
	}
	return err
}

func nextID(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	var max int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM `+table).Scan(&max); err != nil {
		return 0, err
	}
	return max + 1, nil
}

func checkAffected(res sql.Result, err error, op string) error {
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.CreatedAt); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func scanClass(row scanner) (Class, error) {
	c := Class{StudentIDs: []int{}, TeacherIDs: []int{}}
	if err := row.Scan(&c.ID, &c.Name, &c.Grade, &c.Subject, &c.Room, &c.Schedule, &c.CreatedAt); err != nil {
		return Class{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}
