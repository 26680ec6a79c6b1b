package attendance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"classroll/internal/metrics"
)

// SummaryCache stores computed summaries keyed by window start date.
type SummaryCache interface {
	Get(ctx context.Context, from string) (Summary, bool, error)
	Set(ctx context.Context, from string, s Summary) error
	Invalidate(ctx context.Context) error
}

// Service is the entry point used by the HTTP layer, the worker and the CLI.
type Service struct {
	store      Store
	reconciler *Reconciler
	locks      *rosterLocks
	cache      SummaryCache
	now        func() time.Time
}

// NewService creates a service backed by store. cache may be nil.
func NewService(store Store, roster RosterFunc, cache SummaryCache) *Service {
	return &Service{
		store:      store,
		reconciler: NewReconciler(store, roster),
		locks:      newRosterLocks(),
		cache:      cache,
		now:        time.Now,
	}
}

// ReconcileRoster saves one class's attendance for date. Saves of the same
// roster are serialised in-process; the batch is still not atomic.
func (s *Service) ReconcileRoster(ctx context.Context, classID int, date, markedBy string, entries []Entry) ([]Record, error) {
	unlock := s.locks.lock(classID, date)
	defer unlock()

	start := time.Now()
	applied, err := s.reconciler.Reconcile(ctx, Submission{
		ClassID:  classID,
		Date:     date,
		MarkedBy: markedBy,
		Entries:  entries,
	})
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())

	if len(applied) > 0 && s.cache != nil {
		if cerr := s.cache.Invalidate(ctx); cerr != nil {
			slog.Warn("summary cache invalidate failed", "err", cerr)
		}
	}
	if err != nil {
		metrics.RosterSaves.WithLabelValues("error").Inc()
		return applied, err
	}
	metrics.RosterSaves.WithLabelValues("ok").Inc()
	return applied, nil
}

// Summary aggregates all records dated on or after windowStart.
func (s *Service) Summary(ctx context.Context, windowStart time.Time) (Summary, error) {
	from := windowStart.Format(DateLayout)
	if s.cache != nil {
		if sum, ok, err := s.cache.Get(ctx, from); err != nil {
			metrics.SummaryCache.WithLabelValues("error").Inc()
			slog.Warn("summary cache get failed", "from", from, "err", err)
		} else if ok {
			metrics.SummaryCache.WithLabelValues("hit").Inc()
			return sum, nil
		} else {
			metrics.SummaryCache.WithLabelValues("miss").Inc()
		}
	}

	records, err := s.store.List(ctx, Filter{From: from})
	if err != nil {
		return Summary{}, err
	}
	sum := Aggregate(records, windowStart)

	if s.cache != nil {
		if err := s.cache.Set(ctx, from, sum); err != nil {
			slog.Warn("summary cache set failed", "from", from, "err", err)
		}
	}
	return sum, nil
}

// SummaryForRange is Summary over a named window (week, month, quarter).
func (s *Service) SummaryForRange(ctx context.Context, rangeName string) (Summary, error) {
	return s.Summary(ctx, WindowStart(s.now(), rangeName))
}

// Get returns a record by id.
func (s *Service) Get(ctx context.Context, id int) (Record, error) {
	return s.store.Get(ctx, id)
}

// ByClassAndDate returns the records of one roster day.
func (s *Service) ByClassAndDate(ctx context.Context, classID int, date string) ([]Record, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	return s.store.ByClassAndDate(ctx, classID, date)
}

// ByStudent returns every record of a student.
func (s *Service) ByStudent(ctx context.Context, studentID int) ([]Record, error) {
	return s.store.ByStudent(ctx, studentID)
}

// List returns records matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	return s.store.List(ctx, f)
}

type rosterKey struct {
	classID int
	date    string
}

type rosterLock struct {
	mu   sync.Mutex
	refs int
}

// rosterLocks hands out one mutex per (class, date) and drops it when unused.
type rosterLocks struct {
	mu    sync.Mutex
	locks map[rosterKey]*rosterLock
}

func newRosterLocks() *rosterLocks {
	return &rosterLocks{locks: make(map[rosterKey]*rosterLock)}
}

func (l *rosterLocks) lock(classID int, date string) func() {
	k := rosterKey{classID: classID, date: date}

	l.mu.Lock()
	rl, ok := l.locks[k]
	if !ok {
		rl = &rosterLock{}
		l.locks[k] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, k)
		}
		l.mu.Unlock()
	}
}
