package attendance

import (
	"sort"
	"strings"
	"time"

	"classroll/internal/apperr"
)

// DateLayout is the calendar-day format used for attendance dates.
const DateLayout = "2006-01-02"

// Status is the recorded attendance state of a student for one class day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// ParseStatus returns the status named by s and whether it was recognised.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPresent:
		return StatusPresent, true
	case StatusAbsent:
		return StatusAbsent, true
	case StatusLate:
		return StatusLate, true
	}
	return "", false
}

// NormalizeStatus maps a missing or unrecognised status to absent.
func NormalizeStatus(s string) Status {
	if st, ok := ParseStatus(s); ok {
		return st
	}
	return StatusAbsent
}

// Record is one attendance fact. (StudentID, ClassID, Date) is unique in a store.
type Record struct {
	ID        int       `json:"id"`
	StudentID int       `json:"student_id"`
	ClassID   int       `json:"class_id"`
	Date      string    `json:"date"`
	Status    Status    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
	Timestamp time.Time `json:"timestamp"`
}

// Key is the natural key of a record.
type Key struct {
	StudentID int
	ClassID   int
	Date      string
}

// Key returns the natural key of r.
func (r Record) Key() Key {
	return Key{StudentID: r.StudentID, ClassID: r.ClassID, Date: r.Date}
}

// Entry is one per-student status selection in a roster submission.
type Entry struct {
	StudentID int    `json:"student_id" yaml:"student_id"`
	Status    string `json:"status" yaml:"status"`
}

// Submission is a roster of entries for one class on one date.
type Submission struct {
	ClassID  int
	Date     string
	MarkedBy string
	Entries  []Entry
}

func (s Submission) validate() error {
	var flds []apperr.FieldError
	if s.ClassID <= 0 {
		flds = append(flds, apperr.FieldError{Field: "class_id", Error: "must be positive"})
	}
	if err := ValidateDate(s.Date); err != nil {
		flds = append(flds, apperr.FieldError{Field: "date", Error: "must be YYYY-MM-DD"})
	}
	if len(flds) > 0 {
		return apperr.NewValidationError(flds...)
	}
	return nil
}

// ValidateDate checks that s is a calendar day in DateLayout.
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return apperr.Invalid("date", "must be YYYY-MM-DD")
	}
	return nil
}

// Filter narrows List results. Zero-valued fields are ignored.
type Filter struct {
	ClassID   int
	StudentID int
	Date      string
	From      string
	Status    Status
	Limit     int
	// Newest orders by marking time, latest first, instead of by date,
	// class and student.
	Newest bool
}

// Match reports whether r satisfies every set field of f. Limit is not applied.
func (f Filter) Match(r Record) bool {
	if f.ClassID != 0 && r.ClassID != f.ClassID {
		return false
	}
	if f.StudentID != 0 && r.StudentID != f.StudentID {
		return false
	}
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	if f.From != "" && r.Date < f.From {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// Arrange sorts matched records in f's order and applies Limit.
func (f Filter) Arrange(out []Record) []Record {
	if f.Newest {
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].Timestamp.Equal(out[j].Timestamp) {
				return out[i].Timestamp.After(out[j].Timestamp)
			}
			return out[i].ID > out[j].ID
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func less(a, b Record) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.ClassID != b.ClassID {
		return a.ClassID < b.ClassID
	}
	if a.StudentID != b.StudentID {
		return a.StudentID < b.StudentID
	}
	return a.ID < b.ID
}
