package attendance

import (
	"context"
	"sync"

	"classroll/internal/apperr"
)

// Store is the authoritative collection of attendance records.
//
// Read methods return an empty slice, never ErrNotFound, when nothing matches.
// Upsert is reserved for the Reconciler, which keeps one record per natural key.
// A new record with ID 0 gets max+1 assigned by the store in the same step
// as the insert, so concurrent saves of different rosters never share an id.
type Store interface {
	Get(ctx context.Context, id int) (Record, error)
	ByClassAndDate(ctx context.Context, classID int, date string) ([]Record, error)
	ByStudent(ctx context.Context, studentID int) ([]Record, error)
	List(ctx context.Context, f Filter) ([]Record, error)
	FindByKey(ctx context.Context, k Key) (Record, bool, error)
	MaxID(ctx context.Context) (int, error)
	Upsert(ctx context.Context, r Record) (Record, error)
}

// MemStore keeps records in process memory.
type MemStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemStore creates a store seeded with records.
func NewMemStore(seed ...Record) *MemStore {
	return &MemStore{records: append([]Record(nil), seed...)}
}

func (s *MemStore) Get(_ context.Context, id int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, apperr.ErrNotFound
}

func (s *MemStore) ByClassAndDate(ctx context.Context, classID int, date string) ([]Record, error) {
	return s.List(ctx, Filter{ClassID: classID, Date: date})
}

func (s *MemStore) ByStudent(ctx context.Context, studentID int) ([]Record, error) {
	return s.List(ctx, Filter{StudentID: studentID})
}

// List returns matches in f's order.
func (s *MemStore) List(_ context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0)
	for _, r := range s.records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	return f.Arrange(out), nil
}

func (s *MemStore) FindByKey(_ context.Context, k Key) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(k); i >= 0 {
		return s.records[i], true, nil
	}
	return Record{}, false, nil
}

func (s *MemStore) MaxID(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxID(), nil
}

func (s *MemStore) maxID() int {
	max := 0
	for _, r := range s.records {
		if r.ID > max {
			max = r.ID
		}
	}
	return max
}

// Upsert overwrites status, marker and timestamp of the record sharing r's
// natural key, or appends r when there is none. An appended record with ID 0
// takes max+1 under the write lock.
func (s *MemStore) Upsert(_ context.Context, r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(r.Key()); i >= 0 {
		cur := &s.records[i]
		cur.Status = r.Status
		cur.MarkedBy = r.MarkedBy
		cur.Timestamp = r.Timestamp
		return *cur, nil
	}
	if r.ID == 0 {
		r.ID = s.maxID() + 1
	}
	s.records = append(s.records, r)
	return r, nil
}

func (s *MemStore) index(k Key) int {
	for i, r := range s.records {
		if r.Key() == k {
			return i
		}
	}
	return -1
}
