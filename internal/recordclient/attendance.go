package recordclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classroll/internal/apperr"
	"classroll/internal/attendance"
	"classroll/internal/school"
)

type rawAttendance struct {
	ID        json.RawMessage `json:"Id"`
	StudentID json.RawMessage `json:"studentId"`
	ClassID   json.RawMessage `json:"classId"`
	Date      string          `json:"date"`
	Status    string          `json:"status"`
	MarkedBy  json.RawMessage `json:"markedBy"`
	Timestamp string          `json:"timestamp"`
}

type attendanceFields struct {
	ID        int    `json:"Id,omitempty"`
	Name      string `json:"Name"`
	StudentID int    `json:"studentId"`
	ClassID   int    `json:"classId"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	MarkedBy  string `json:"markedBy"`
	Timestamp string `json:"timestamp"`
}

// AttendanceStore keeps attendance records on the record platform. Ids of new
// records are assigned by the platform.
type AttendanceStore struct {
	c *Client
}

// NewAttendanceStore creates a store backed by c.
func NewAttendanceStore(c *Client) *AttendanceStore {
	return &AttendanceStore{c: c}
}

func (s *AttendanceStore) Get(ctx context.Context, id int) (attendance.Record, error) {
	raw, err := s.c.GetByID(ctx, EntityAttendance, id)
	if err != nil {
		return attendance.Record{}, err
	}
	return decodeRecord(raw)
}

func (s *AttendanceStore) ByClassAndDate(ctx context.Context, classID int, date string) ([]attendance.Record, error) {
	return s.List(ctx, attendance.Filter{ClassID: classID, Date: date})
}

func (s *AttendanceStore) ByStudent(ctx context.Context, studentID int) ([]attendance.Record, error) {
	return s.List(ctx, attendance.Filter{StudentID: studentID})
}

// List pushes the filter to the platform, then re-checks, orders and limits
// the result locally.
func (s *AttendanceStore) List(ctx context.Context, f attendance.Filter) ([]attendance.Record, error) {
	var where []Condition
	if f.ClassID != 0 {
		where = append(where, Eq("classId", f.ClassID))
	}
	if f.StudentID != 0 {
		where = append(where, Eq("studentId", f.StudentID))
	}
	if f.Date != "" {
		where = append(where, Eq("date", f.Date))
	}
	if f.From != "" {
		where = append(where, Condition{FieldName: "date", Operator: "GreaterThanOrEqualTo", Values: []string{f.From}})
	}
	if f.Status != "" {
		where = append(where, Eq("status", f.Status))
	}

	items, err := s.c.Fetch(ctx, EntityAttendance, where...)
	if err != nil {
		return nil, err
	}
	out := make([]attendance.Record, 0, len(items))
	for _, it := range items {
		r, err := decodeRecord(it)
		if err != nil {
			return nil, err
		}
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return f.Arrange(out), nil
}

func (s *AttendanceStore) FindByKey(ctx context.Context, k attendance.Key) (attendance.Record, bool, error) {
	found, err := s.List(ctx, attendance.Filter{StudentID: k.StudentID, ClassID: k.ClassID, Date: k.Date})
	if err != nil {
		return attendance.Record{}, false, err
	}
	if len(found) == 0 {
		return attendance.Record{}, false, nil
	}
	return found[0], true, nil
}

// MaxID scans the whole entity. Saves never call it: the platform assigns ids.
func (s *AttendanceStore) MaxID(ctx context.Context) (int, error) {
	all, err := s.List(ctx, attendance.Filter{})
	if err != nil {
		return 0, err
	}
	max := 0
	for _, r := range all {
		if r.ID > max {
			max = r.ID
		}
	}
	return max, nil
}

// Upsert updates the platform record sharing r's natural key, or creates one.
// A record carrying an id was already found by key, so it is updated without
// another lookup.
func (s *AttendanceStore) Upsert(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	var err error
	cur, found := r, r.ID != 0
	if !found {
		if cur, found, err = s.FindByKey(ctx, r.Key()); err != nil {
			return attendance.Record{}, err
		}
	}
	fields := attendanceFields{
		Name:      fmt.Sprintf("%d-%d-%s", r.StudentID, r.ClassID, r.Date),
		StudentID: r.StudentID,
		ClassID:   r.ClassID,
		Date:      r.Date,
		Status:    string(r.Status),
		MarkedBy:  r.MarkedBy,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
	}
	var raw json.RawMessage
	if found {
		fields.ID = cur.ID
		raw, err = s.c.Update(ctx, EntityAttendance, fields)
	} else {
		raw, err = s.c.Create(ctx, EntityAttendance, fields)
	}
	if err != nil {
		return attendance.Record{}, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		if found {
			r.ID = cur.ID
		}
		return r, nil
	}
	return decodeRecord(raw)
}

func decodeRecord(raw json.RawMessage) (attendance.Record, error) {
	var ra rawAttendance
	if err := json.Unmarshal(raw, &ra); err != nil {
		return attendance.Record{}, apperr.Unavailable("decode attendance", err)
	}
	id, err := school.FlexInt(ra.ID)
	if err != nil {
		return attendance.Record{}, apperr.Unavailable("decode attendance", fmt.Errorf("id: %w", err))
	}
	studentID, err := school.FlexInt(ra.StudentID)
	if err != nil {
		return attendance.Record{}, apperr.Unavailable("decode attendance", fmt.Errorf("record %d student: %w", id, err))
	}
	classID, err := school.FlexInt(ra.ClassID)
	if err != nil {
		return attendance.Record{}, apperr.Unavailable("decode attendance", fmt.Errorf("record %d class: %w", id, err))
	}
	markedBy, err := school.LookupString(ra.MarkedBy)
	if err != nil {
		return attendance.Record{}, apperr.Unavailable("decode attendance", fmt.Errorf("record %d marked by: %w", id, err))
	}
	date := ra.Date
	if len(date) > len(attendance.DateLayout) {
		date = date[:len(attendance.DateLayout)]
	}
	r := attendance.Record{
		ID:        id,
		StudentID: studentID,
		ClassID:   classID,
		Date:      date,
		Status:    attendance.NormalizeStatus(ra.Status),
		MarkedBy:  markedBy,
	}
	if ts, err := time.Parse(time.RFC3339, ra.Timestamp); err == nil {
		r.Timestamp = ts.UTC()
	}
	return r, nil
}
