package attendance

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu          sync.Mutex
	data        map[string]Summary
	invalidated int
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string]Summary)} }

func (c *fakeCache) Get(_ context.Context, from string) (Summary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.data[from]
	return s, ok, nil
}

func (c *fakeCache) Set(_ context.Context, from string, s Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[from] = s
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]Summary)
	c.invalidated++
	return nil
}

func newTestService(s Store, cache SummaryCache) *Service {
	svc := NewService(s, nil, cache)
	svc.now = func() time.Time { return fixedNow }
	svc.reconciler.now = func() time.Time { return fixedNow }
	return svc
}

func TestService_SummaryUsesCacheUntilRosterSaved(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(NewMemStore(), cache)
	ctx := context.Background()

	_, err := svc.ReconcileRoster(ctx, 10, "2024-01-04", "7", []Entry{{StudentID: 1, Status: "present"}, {StudentID: 2, Status: "absent"}})
	require.NoError(t, err)

	sum, err := svc.SummaryForRange(ctx, RangeWeek)
	require.NoError(t, err)
	assert.Equal(t, Summary{TotalRecords: 2, PresentCount: 1, AbsentCount: 1, AttendanceRate: 50}, sum)
	assert.Len(t, cache.data, 1)

	_, err = svc.ReconcileRoster(ctx, 10, "2024-01-04", "7", []Entry{{StudentID: 2, Status: "present"}})
	require.NoError(t, err)
	assert.Empty(t, cache.data)

	sum, err = svc.SummaryForRange(ctx, RangeWeek)
	require.NoError(t, err)
	assert.Equal(t, 100, sum.AttendanceRate)
}

func TestService_SummaryWithoutCache(t *testing.T) {
	s := NewMemStore(
		Record{ID: 1, StudentID: 1, ClassID: 10, Date: "2023-12-01", Status: StatusPresent},
		Record{ID: 2, StudentID: 1, ClassID: 10, Date: "2024-01-03", Status: StatusLate},
	)
	sum, err := newTestService(s, nil).Summary(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, Summary{TotalRecords: 1, LateCount: 1}, sum)
}

func TestService_ConcurrentSavesOfSameRosterKeepKeysUnique(t *testing.T) {
	s := NewMemStore()
	svc := newTestService(s, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries := make([]Entry, 0, 5)
			for st := 1; st <= 5; st++ {
				entries = append(entries, Entry{StudentID: st, Status: []string{"present", "late"}[i%2]})
			}
			_, err := svc.ReconcileRoster(context.Background(), 10, "2024-01-05", fmt.Sprint(i), entries)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	recs, err := s.ByClassAndDate(context.Background(), 10, "2024-01-05")
	require.NoError(t, err)
	assert.Len(t, recs, 5)
	for k, n := range countByKey(t, s) {
		assert.Equal(t, 1, n, "key %+v", k)
	}
	assert.Empty(t, svc.locks.locks, "roster locks are released")
}

func TestService_ConcurrentSavesOfDifferentRostersGetDistinctIDs(t *testing.T) {
	const classes, students = 8, 120
	for _, sf := range storeFactories() {
		t.Run(sf.name, func(t *testing.T) {
			s := sf.open(t)
			svc := newTestService(s, nil)

			var wg sync.WaitGroup
			for class := 1; class <= classes; class++ {
				wg.Add(1)
				go func(class int) {
					defer wg.Done()
					entries := make([]Entry, 0, students)
					for st := 1; st <= students; st++ {
						entries = append(entries, Entry{StudentID: st, Status: "present"})
					}
					applied, err := svc.ReconcileRoster(context.Background(), class, "2024-01-05", "7", entries)
					assert.NoError(t, err)
					assert.Len(t, applied, students)
				}(class)
			}
			wg.Wait()

			all, err := s.List(context.Background(), Filter{})
			require.NoError(t, err)
			require.Len(t, all, classes*students)
			seen := make(map[int]Key, len(all))
			for _, r := range all {
				if prev, dup := seen[r.ID]; dup {
					t.Fatalf("id %d assigned to %+v and %+v", r.ID, prev, r.Key())
				}
				seen[r.ID] = r.Key()
			}
			max, err := s.MaxID(context.Background())
			require.NoError(t, err)
			assert.Equal(t, classes*students, max, "ids stay dense: 1..n")
		})
	}
}

func TestService_ByClassAndDateValidatesDate(t *testing.T) {
	_, err := newTestService(NewMemStore(), nil).ByClassAndDate(context.Background(), 10, "yesterday")
	require.Error(t, err)

	recs, err := newTestService(NewMemStore(), nil).ByClassAndDate(context.Background(), 10, "2024-01-05")
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NotNil(t, recs)
}
