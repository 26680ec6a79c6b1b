package notify

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"classroll/internal/apperr"
	"classroll/internal/store"
)

// TypeAbsenceAlert marks notifications created for absent students.
const TypeAbsenceAlert = "absence_alert"

// Notification is a message shown on the dashboard and sent to a recipient.
type Notification struct {
	ID          int       `json:"id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	StudentID   int       `json:"student_id,omitempty"`
	ClassID     int       `json:"class_id,omitempty"`
	Date        string    `json:"date,omitempty"`
	StudentName string    `json:"student_name,omitempty"`
	ClassName   string    `json:"class_name,omitempty"`
	RecipientID int       `json:"recipient_id"`
	Read        bool      `json:"read"`
	SentAt      time.Time `json:"sent_at"`
}

// Store persists notifications. List returns newest first.
type Store interface {
	List(ctx context.Context, typ string) ([]Notification, error)
	Create(ctx context.Context, n Notification) (Notification, error)
	MarkRead(ctx context.Context, id int) error
}

// MemStore keeps notifications in memory.
type MemStore struct {
	mu    sync.Mutex
	items []Notification
}

// NewMemStore creates a store seeded with items.
func NewMemStore(seed ...Notification) *MemStore {
	return &MemStore{items: append([]Notification(nil), seed...)}
}

func (s *MemStore) List(_ context.Context, typ string) ([]Notification, error) {
	s.mu.Lock()
	out := make([]Notification, 0, len(s.items))
	for _, n := range s.items {
		if typ == "" || n.Type == typ {
			out = append(out, n)
		}
	}
	s.mu.Unlock()
	sortNewestFirst(out)
	return out, nil
}

func (s *MemStore) Create(_ context.Context, n Notification) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = 1
	for _, it := range s.items {
		if it.ID >= n.ID {
			n.ID = it.ID + 1
		}
	}
	s.items = append(s.items, n)
	return n, nil
}

func (s *MemStore) MarkRead(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Read = true
			return nil
		}
	}
	return apperr.ErrNotFound
}

// Repository persists notifications in Postgres or SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns notifications of one type (all when typ is empty), newest first.
func (r *Repository) List(ctx context.Context, typ string) ([]Notification, error) {
	query := `SELECT id, type, message, student_id, class_id, attend_date, student_name, class_name, recipient_id, is_read, sent_at FROM notifications`
	args := []any{}
	if typ != "" {
		query += ` WHERE type = $1`
		args = append(args, typ)
	}
	query += ` ORDER BY sent_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Unavailable("list notifications", err)
	}
	defer rows.Close()
	out := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.Message, &n.StudentID, &n.ClassID, &n.Date, &n.StudentName, &n.ClassName, &n.RecipientID, &n.Read, &n.SentAt); err != nil {
			return nil, apperr.Unavailable("list notifications", err)
		}
		n.SentAt = n.SentAt.UTC()
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("list notifications", err)
	}
	return out, nil
}

// Create inserts n with the next free id, computed inside the INSERT and
// retried when a concurrent insert took it first.
func (r *Repository) Create(ctx context.Context, n Notification) (Notification, error) {
	var err error
	for attempt := 0; attempt < store.InsertAttempts; attempt++ {
		err = r.db.QueryRowContext(ctx, `
			INSERT INTO notifications (id, type, message, student_id, class_id, attend_date, student_name, class_name, recipient_id, is_read, sent_at)
			VALUES ((SELECT COALESCE(MAX(id), 0) + 1 FROM notifications), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, n.Type, n.Message, n.StudentID, n.ClassID, n.Date, n.StudentName, n.ClassName, n.RecipientID, n.Read, n.SentAt).Scan(&n.ID)
		if err == nil {
			return n, nil
		}
		if !store.PrimaryKeyConflict(err) {
			break
		}
	}
	return Notification{}, apperr.Unavailable("create notification", err)
}

// MarkRead flags a notification as read.
func (r *Repository) MarkRead(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return apperr.Unavailable("mark notification read", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Unavailable("mark notification read", err)
	} else if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func sortNewestFirst(items []Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].SentAt.Equal(items[j].SentAt) {
			return items[i].SentAt.After(items[j].SentAt)
		}
		return items[i].ID > items[j].ID
	})
}
