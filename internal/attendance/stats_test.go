package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	window := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	rec := func(date string, st Status) Record { return Record{Date: date, Status: st} }

	tests := []struct {
		name    string
		records []Record
		want    Summary
	}{
		{
			name: "mixed statuses",
			records: []Record{
				rec("2024-01-02", StatusPresent),
				rec("2024-01-03", StatusPresent),
				rec("2024-01-03", StatusAbsent),
				rec("2024-01-04", StatusLate),
			},
			want: Summary{TotalRecords: 4, PresentCount: 2, AbsentCount: 1, LateCount: 1, AttendanceRate: 50},
		},
		{
			name: "empty window",
			want: Summary{},
		},
		{
			name: "records before window are dropped",
			records: []Record{
				rec("2023-12-31", StatusPresent),
				rec("2024-01-01", StatusAbsent),
			},
			want: Summary{TotalRecords: 1, AbsentCount: 1, AttendanceRate: 0},
		},
		{
			name: "rate rounds half up",
			records: []Record{
				rec("2024-01-05", StatusPresent),
				rec("2024-01-05", StatusLate),
				rec("2024-01-05", StatusLate),
				rec("2024-01-05", StatusPresent),
				rec("2024-01-05", StatusPresent),
				rec("2024-01-05", StatusAbsent),
				rec("2024-01-05", StatusAbsent),
				rec("2024-01-05", StatusAbsent),
			},
			want: Summary{TotalRecords: 8, PresentCount: 3, AbsentCount: 3, LateCount: 2, AttendanceRate: 38},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.records, window))
		})
	}
}

func TestAggregate_IsPure(t *testing.T) {
	records := []Record{{Date: "2024-01-02", Status: StatusPresent}, {Date: "2024-01-02", Status: StatusAbsent}}
	window := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := Aggregate(records, window)
	assert.Equal(t, first, Aggregate(records, window))
	assert.Equal(t, StatusPresent, records[0].Status)
}

func TestRate(t *testing.T) {
	assert.Equal(t, 0, Rate(0, 0))
	assert.Equal(t, 100, Rate(3, 3))
	assert.Equal(t, 67, Rate(2, 3))
	assert.Equal(t, 50, Rate(1, 2))
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-04-03", WindowStart(now, RangeWeek).Format(DateLayout))
	assert.Equal(t, "2024-03-11", WindowStart(now, RangeMonth).Format(DateLayout))
	assert.Equal(t, "2024-01-11", WindowStart(now, RangeQuarter).Format(DateLayout))
	assert.Equal(t, "2024-04-03", WindowStart(now, "decade").Format(DateLayout))
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus("PRESENT")
	assert.True(t, ok)
	assert.Equal(t, StatusPresent, st)

	_, ok = ParseStatus("excused")
	assert.False(t, ok)
	assert.Equal(t, StatusAbsent, NormalizeStatus("excused"))
	assert.Equal(t, StatusAbsent, NormalizeStatus(""))
}
