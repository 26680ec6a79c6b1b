package attendance

import (
	"context"
	"fmt"
	"time"

	"classroll/internal/apperr"
	"classroll/internal/metrics"
)

// RosterFunc returns the ids of students enrolled in a class.
type RosterFunc func(ctx context.Context, classID int) ([]int, error)

// Reconciler merges roster submissions into a Store by natural key.
// Calls for the same (class, date) must be serialised by the caller.
type Reconciler struct {
	store  Store
	roster RosterFunc
	now    func() time.Time
}

// NewReconciler creates a reconciler. roster may be nil to skip enrolment checks.
func NewReconciler(store Store, roster RosterFunc) *Reconciler {
	return &Reconciler{store: store, roster: roster, now: time.Now}
}

// Reconcile applies sub entry by entry, in order, and returns the applied
// records in the same order. Entries are independent writes: when an entry
// fails, the ones before it stay committed and are returned with the error.
func (r *Reconciler) Reconcile(ctx context.Context, sub Submission) ([]Record, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}

	var enrolled map[int]bool
	if r.roster != nil {
		ids, err := r.roster(ctx, sub.ClassID)
		if err != nil {
			return nil, fmt.Errorf("class %d roster: %w", sub.ClassID, err)
		}
		enrolled = make(map[int]bool, len(ids))
		for _, id := range ids {
			enrolled[id] = true
		}
	}

	now := r.now().UTC()
	applied := make([]Record, 0, len(sub.Entries))
	for i, e := range sub.Entries {
		if e.StudentID <= 0 || (enrolled != nil && !enrolled[e.StudentID]) {
			return applied, fmt.Errorf("entry %d: student %d in class %d: %w", i, e.StudentID, sub.ClassID, apperr.ErrNotFound)
		}

		rec, found, err := r.store.FindByKey(ctx, Key{StudentID: e.StudentID, ClassID: sub.ClassID, Date: sub.Date})
		if err != nil {
			return applied, err
		}
		op := "updated"
		if !found {
			// ID 0: the store assigns max+1 atomically with the insert.
			rec = Record{StudentID: e.StudentID, ClassID: sub.ClassID, Date: sub.Date}
			op = "created"
		}
		rec.Status = NormalizeStatus(e.Status)
		rec.MarkedBy = sub.MarkedBy
		rec.Timestamp = now

		rec, err = r.store.Upsert(ctx, rec)
		if err != nil {
			return applied, err
		}
		metrics.RecordsUpserted.WithLabelValues(op).Inc()
		applied = append(applied, rec)
	}
	return applied, nil
}
