package attendance

import (
	"math"
	"time"
)

// Summary holds attendance counts over a date window.
type Summary struct {
	TotalRecords   int `json:"total_records"`
	PresentCount   int `json:"present_count"`
	AbsentCount    int `json:"absent_count"`
	LateCount      int `json:"late_count"`
	AttendanceRate int `json:"attendance_rate"`
}

// Aggregate counts records dated on or after windowStart's calendar day.
// AttendanceRate is the rounded present percentage, 0 for an empty window.
func Aggregate(records []Record, windowStart time.Time) Summary {
	from := windowStart.Format(DateLayout)
	var s Summary
	for _, r := range records {
		if r.Date < from {
			continue
		}
		s.TotalRecords++
		switch r.Status {
		case StatusPresent:
			s.PresentCount++
		case StatusAbsent:
			s.AbsentCount++
		case StatusLate:
			s.LateCount++
		}
	}
	s.AttendanceRate = Rate(s.PresentCount, s.TotalRecords)
	return s
}

// Rate returns round(part/total*100), or 0 when total is 0.
func Rate(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// Range names accepted by WindowStart.
const (
	RangeWeek    = "week"
	RangeMonth   = "month"
	RangeQuarter = "quarter"
)

// WindowStart returns the start of a named look-back window ending at now.
// Unknown names fall back to a week.
func WindowStart(now time.Time, rangeName string) time.Time {
	switch rangeName {
	case RangeMonth:
		return now.AddDate(0, 0, -30)
	case RangeQuarter:
		return now.AddDate(0, 0, -90)
	default:
		return now.AddDate(0, 0, -7)
	}
}
