package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"classroll/internal/apperr"
	"classroll/internal/attendance"
	"classroll/internal/metrics"
	"classroll/internal/school"
)

// RecordSource reads one roster day of attendance.
type RecordSource interface {
	ByClassAndDate(ctx context.Context, classID int, date string) ([]attendance.Record, error)
}

// People resolves the names used in alert messages.
type People interface {
	GetUser(ctx context.Context, id int) (school.User, error)
	GetClass(ctx context.Context, id int) (school.Class, error)
}

// Alerter creates absence alerts after a roster is saved.
type Alerter struct {
	records RecordSource
	people  People
	store   Store
	now     func() time.Time
}

// NewAlerter creates an alerter.
func NewAlerter(records RecordSource, people People, store Store) *Alerter {
	return &Alerter{records: records, people: people, store: store, now: time.Now}
}

// AlertOnAbsences creates one absence alert per absent student of the roster
// day, skipping students already alerted for that class and date. It returns
// the alerts it created.
func (a *Alerter) AlertOnAbsences(ctx context.Context, classID int, date string) ([]Notification, error) {
	records, err := a.records.ByClassAndDate(ctx, classID, date)
	if err != nil {
		return nil, err
	}
	existing, err := a.store.List(ctx, TypeAbsenceAlert)
	if err != nil {
		return nil, err
	}
	alerted := make(map[int]bool)
	for _, n := range existing {
		if n.ClassID == classID && n.Date == date {
			alerted[n.StudentID] = true
		}
	}

	className := fmt.Sprintf("class %d", classID)
	if c, err := a.people.GetClass(ctx, classID); err == nil {
		className = c.Name
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	var created []Notification
	for _, r := range records {
		if r.Status != attendance.StatusAbsent || alerted[r.StudentID] {
			continue
		}
		studentName := fmt.Sprintf("student %d", r.StudentID)
		if u, err := a.people.GetUser(ctx, r.StudentID); err == nil {
			studentName = u.Name
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return created, err
		}

		n, err := a.store.Create(ctx, Notification{
			Type:        TypeAbsenceAlert,
			Message:     fmt.Sprintf("%s was marked absent from %s on %s", studentName, className, date),
			StudentID:   r.StudentID,
			ClassID:     classID,
			Date:        date,
			StudentName: studentName,
			ClassName:   className,
			RecipientID: r.StudentID,
			SentAt:      a.now().UTC(),
		})
		if err != nil {
			return created, err
		}
		metrics.AlertsCreated.Inc()
		slog.Info("absence alert created", "notification", n.ID, "student", r.StudentID, "class", classID, "date", date)
		created = append(created, n)
	}
	return created, nil
}
