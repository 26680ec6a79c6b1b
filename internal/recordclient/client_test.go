package recordclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroll/internal/apperr"
	"classroll/internal/attendance"
	"classroll/internal/notify"
	"classroll/internal/school"
)

// fakePlatform serves the record endpoints from memory.
type fakePlatform struct {
	mu      sync.Mutex
	rows    map[string][]map[string]any
	nextID  map[string]int
	fetches map[string]int // by entity; unfiltered ones also count under entity+"*"
	lastPut map[string]any
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{rows: map[string][]map[string]any{}, nextID: map[string]int{}, fetches: map[string]int{}}
}

func (p *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Project-Id") != "proj" || r.Header.Get("X-Public-Key") != "key" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/records/"), "/")
	entity := parts[0]

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "fetch":
		var body struct {
			Where []Condition `json:"where"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		p.fetches[entity]++
		if len(body.Where) == 0 {
			p.fetches[entity+"*"]++
		}
		out := []map[string]any{}
		for _, row := range p.rows[entity] {
			if matches(row, body.Where) {
				out = append(out, row)
			}
		}
		reply(w, map[string]any{"success": true, "data": out})
	case r.Method == http.MethodGet && len(parts) == 2:
		id, _ := strconv.Atoi(parts[1])
		reply(w, map[string]any{"success": true, "data": p.find(entity, id)})
	case r.Method == http.MethodPost:
		rec := decodeOne(r)
		if name, _ := rec["Name"].(string); name == "" {
			reply(w, map[string]any{"success": true, "results": []any{map[string]any{
				"success": false,
				"errors":  []any{map[string]any{"fieldLabel": "Name", "message": "is required"}},
			}}})
			return
		}
		p.nextID[entity]++
		rec["Id"] = p.nextID[entity]
		rec["CreatedOn"] = "2024-01-02T09:00:00Z"
		p.rows[entity] = append(p.rows[entity], rec)
		reply(w, map[string]any{"success": true, "results": []any{map[string]any{"success": true, "data": rec}}})
	case r.Method == http.MethodPut:
		rec := decodeOne(r)
		p.lastPut = rec
		cur := p.find(entity, int(rec["Id"].(float64)))
		if cur == nil {
			reply(w, map[string]any{"success": true, "results": []any{map[string]any{"success": false, "message": "no such record"}}})
			return
		}
		for k, v := range rec {
			if k != "Id" {
				cur[k] = v
			}
		}
		reply(w, map[string]any{"success": true, "results": []any{map[string]any{"success": true, "data": cur}}})
	case r.Method == http.MethodDelete:
		var body struct {
			RecordIds []int `json:"RecordIds"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		kept := p.rows[entity][:0]
		for _, row := range p.rows[entity] {
			if fmt.Sprint(row["Id"]) != strconv.Itoa(body.RecordIds[0]) {
				kept = append(kept, row)
			}
		}
		p.rows[entity] = kept
		reply(w, map[string]any{"success": true, "results": []any{map[string]any{"success": true}}})
	default:
		http.NotFound(w, r)
	}
}

func (p *fakePlatform) fetchCount(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches[key]
}

func (p *fakePlatform) lastUpdate() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPut
}

func (p *fakePlatform) find(entity string, id int) map[string]any {
	for _, row := range p.rows[entity] {
		if fmt.Sprint(row["Id"]) == strconv.Itoa(id) {
			return row
		}
	}
	return nil
}

func matches(row map[string]any, where []Condition) bool {
	for _, c := range where {
		v := fmt.Sprint(row[c.FieldName])
		switch c.Operator {
		case "EqualTo":
			if v != c.Values[0] {
				return false
			}
		case "GreaterThanOrEqualTo":
			if v < c.Values[0] {
				return false
			}
		}
	}
	return true
}

func decodeOne(r *http.Request) map[string]any {
	var body struct {
		Records []map[string]any `json:"records"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body.Records[0]
}

func reply(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakePlatform) {
	t.Helper()
	p := newFakePlatform()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	return New(srv.URL, "proj", "key"), p
}

func TestAttendanceStore_Reconcile(t *testing.T) {
	c, _ := newTestClient(t)
	s := NewAttendanceStore(c)
	rec := attendance.NewReconciler(s, nil)
	ctx := context.Background()

	first, err := rec.Reconcile(ctx, attendance.Submission{
		ClassID:  10,
		Date:     "2024-01-05",
		MarkedBy: "teacher-1",
		Entries:  []attendance.Entry{{StudentID: 3, Status: "present"}, {StudentID: 2, Status: "late"}},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := rec.Reconcile(ctx, attendance.Submission{
		ClassID:  10,
		Date:     "2024-01-05",
		MarkedBy: "teacher-2",
		Entries:  []attendance.Entry{{StudentID: 3, Status: "absent"}},
	})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)

	roster, err := s.ByClassAndDate(ctx, 10, "2024-01-05")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, 2, roster[0].StudentID)
	assert.Equal(t, attendance.StatusLate, roster[0].Status)
	assert.Equal(t, 3, roster[1].StudentID)
	assert.Equal(t, attendance.StatusAbsent, roster[1].Status)
	assert.Equal(t, "teacher-2", roster[1].MarkedBy)

	max, err := s.MaxID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, max)

	got, err := s.Get(ctx, first[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.StudentID)
}

func TestAttendanceStore_SaveRoundTrips(t *testing.T) {
	c, p := newTestClient(t)
	rec := attendance.NewReconciler(NewAttendanceStore(c), nil)
	ctx := context.Background()
	sub := attendance.Submission{
		ClassID: 10, Date: "2024-01-05", MarkedBy: "teacher-1",
		Entries: []attendance.Entry{{StudentID: 1, Status: "present"}, {StudentID: 2, Status: "absent"}},
	}

	_, err := rec.Reconcile(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, 4, p.fetchCount(EntityAttendance), "new entries: one key lookup each in reconcile and in upsert")

	_, err = rec.Reconcile(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, 6, p.fetchCount(EntityAttendance), "existing entries: the reconcile lookup only")
	assert.Zero(t, p.fetchCount(EntityAttendance+"*"), "saves never scan the whole entity")
}

func TestAttendanceStore_DecodesLookups(t *testing.T) {
	c, p := newTestClient(t)
	p.rows[EntityAttendance] = []map[string]any{{
		"Id":        7,
		"studentId": map[string]any{"Id": 4, "Name": "Ana"},
		"classId":   "10",
		"date":      "2024-01-05T00:00:00Z",
		"status":    "PRESENT",
		"markedBy":  map[string]any{"Id": 1, "Name": "teacher-1"},
		"timestamp": "2024-01-05T08:30:00Z",
	}}

	got, err := NewAttendanceStore(c).Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 4, got.StudentID)
	assert.Equal(t, 10, got.ClassID)
	assert.Equal(t, "2024-01-05", got.Date)
	assert.Equal(t, attendance.StatusPresent, got.Status)
	assert.Equal(t, "teacher-1", got.MarkedBy)
}

func TestAttendanceStore_GetMissing(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := NewAttendanceStore(c).Get(context.Background(), 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDirectory_UsersAndClasses(t *testing.T) {
	c, _ := newTestClient(t)
	d := NewDirectory(c)
	ctx := context.Background()

	ana, err := d.CreateUser(ctx, school.User{Name: "Ana", Email: "ana@school.test", Role: school.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, 1, ana.ID)
	_, err = d.CreateUser(ctx, school.User{Name: "Mr. Okafor", Role: school.RoleTeacher})
	require.NoError(t, err)

	students, err := d.ListUsers(ctx, school.RoleStudent)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Ana", students[0].Name)

	ana.Phone = "555-0101"
	_, err = d.UpdateUser(ctx, ana)
	require.NoError(t, err)
	got, err := d.GetUser(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0101", got.Phone)

	class, err := d.CreateClass(ctx, school.Class{Name: "Biology", StudentIDs: []int{1, 5}, TeacherIDs: []int{2}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5}, class.StudentIDs)
	assert.Equal(t, []int{2}, class.TeacherIDs)

	require.NoError(t, d.DeleteClass(ctx, class.ID))
	_, err = d.GetClass(ctx, class.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, d.DeleteUser(ctx, 99), apperr.ErrNotFound)
}

func TestDirectory_FieldErrors(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := NewDirectory(c).CreateUser(context.Background(), school.User{Role: school.RoleAdmin})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestNotifications(t *testing.T) {
	c, p := newTestClient(t)
	n := NewNotifications(c)
	ctx := context.Background()
	base := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)

	first, err := n.Create(ctx, notify.Notification{Type: notify.TypeAbsenceAlert, Message: "Ana absent", StudentID: 3, ClassID: 10, RecipientID: 3, SentAt: base})
	require.NoError(t, err)
	assert.Equal(t, 3, first.StudentID)
	_, err = n.Create(ctx, notify.Notification{Type: "announcement", Message: "assembly", SentAt: base.Add(time.Hour)})
	require.NoError(t, err)
	_, err = n.Create(ctx, notify.Notification{Type: notify.TypeAbsenceAlert, Message: "Ben absent", SentAt: base.Add(2 * time.Hour)})
	require.NoError(t, err)

	alerts, err := n.List(ctx, notify.TypeAbsenceAlert)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "Ben absent", alerts[0].Message)

	require.NoError(t, n.MarkRead(ctx, first.ID))
	put := p.lastUpdate()
	assert.Equal(t, "Ana absent", put["message"], "mark read sends the whole record")
	assert.Equal(t, notify.TypeAbsenceAlert, put["type"])
	assert.Equal(t, true, put["read"])
	alerts, err = n.List(ctx, notify.TypeAbsenceAlert)
	require.NoError(t, err)
	assert.True(t, alerts[1].Read)
	assert.Equal(t, "Ana absent", alerts[1].Message, "partial update keeps other fields")
	assert.ErrorIs(t, n.MarkRead(ctx, 99), apperr.ErrNotFound)
}

func TestClient_Failures(t *testing.T) {
	t.Run("bad credentials", func(t *testing.T) {
		c, _ := newTestClient(t)
		c.PublicKey = "wrong"
		_, err := c.Fetch(context.Background(), EntityUser)
		assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	})

	t.Run("platform reports failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			reply(w, map[string]any{"success": false, "message": "quota exceeded"})
		}))
		defer srv.Close()
		_, err := New(srv.URL, "proj", "key").Fetch(context.Background(), EntityClass)
		assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		err := New(url, "proj", "key").Health(context.Background())
		assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	})
}
