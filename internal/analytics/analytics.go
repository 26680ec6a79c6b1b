package analytics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"classroll/internal/attendance"
	"classroll/internal/notify"
	"classroll/internal/school"
)

// Records is the read side of the attendance service.
type Records interface {
	List(ctx context.Context, f attendance.Filter) ([]attendance.Record, error)
	SummaryForRange(ctx context.Context, rangeName string) (attendance.Summary, error)
}

// Directory is the read side of the school service.
type Directory interface {
	ListUsers(ctx context.Context, role string) ([]school.User, error)
	ListClasses(ctx context.Context) ([]school.Class, error)
}

// Notifications lists stored notifications.
type Notifications interface {
	List(ctx context.Context, typ string) ([]notify.Notification, error)
}

// TrendPoint is one day of the attendance trend chart.
type TrendPoint struct {
	Date    string `json:"date"`
	Day     string `json:"day"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
}

// ClassRate is one bar of the class comparison chart.
type ClassRate struct {
	ClassID        int    `json:"class_id"`
	ClassName      string `json:"class_name"`
	AttendanceRate int    `json:"attendance_rate"`
	TotalRecords   int    `json:"total_records"`
}

// DailyStats is the status distribution of one day.
type DailyStats struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
}

// Report feeds the analytics page.
type Report struct {
	Range           string       `json:"range"`
	AttendanceTrend []TrendPoint `json:"attendance_trend"`
	ClassComparison []ClassRate  `json:"class_comparison"`
	DailyStats      DailyStats   `json:"daily_stats"`
}

// DashboardStats are the headline numbers of the dashboard.
type DashboardStats struct {
	TotalStudents     int `json:"total_students"`
	PresentToday      int `json:"present_today"`
	AbsentToday       int `json:"absent_today"`
	LateToday         int `json:"late_today"`
	ActiveClasses     int `json:"active_classes"`
	AttendanceRate    int `json:"attendance_rate"`
	TotalClassesToday int `json:"total_classes_today"`
	NotificationsSent int `json:"notifications_sent"`
}

// Dashboard feeds the dashboard page.
type Dashboard struct {
	Stats            DashboardStats        `json:"stats"`
	RecentAlerts     []notify.Notification `json:"recent_alerts"`
	RecentAttendance []attendance.Record   `json:"recent_attendance"`
	UpcomingClasses  []school.Class        `json:"upcoming_classes"`
}

const (
	trendDays        = 7
	recentAlerts     = 5
	recentAttendance = 10
	upcomingClasses  = 3
)

// Service computes analytics and dashboard views. Days with no data report
// zero counts.
type Service struct {
	records Records
	dir     Directory
	notes   Notifications
	now     func() time.Time
}

// NewService creates an analytics service.
func NewService(records Records, dir Directory, notes Notifications) *Service {
	return &Service{records: records, dir: dir, notes: notes, now: time.Now}
}

// Analytics builds the trend of the last seven days, per-class rates over the
// named range, and today's distribution.
func (s *Service) Analytics(ctx context.Context, rangeName string) (Report, error) {
	now := s.now().UTC()
	switch rangeName {
	case attendance.RangeWeek, attendance.RangeMonth, attendance.RangeQuarter:
	default:
		rangeName = attendance.RangeWeek
	}
	windowStart := attendance.WindowStart(now, rangeName)
	trendStart := now.AddDate(0, 0, -(trendDays - 1))
	from := windowStart
	if trendStart.Before(from) {
		from = trendStart
	}

	var (
		records []attendance.Record
		classes []school.Class
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.records.List(gctx, attendance.Filter{From: from.Format(attendance.DateLayout)})
		return err
	})
	g.Go(func() error {
		var err error
		classes, err = s.dir.ListClasses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	byDate := make(map[string][]attendance.Record)
	for _, r := range records {
		byDate[r.Date] = append(byDate[r.Date], r)
	}

	rep := Report{Range: rangeName}
	for i := trendDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		ds := countDay(byDate[day.Format(attendance.DateLayout)])
		rep.AttendanceTrend = append(rep.AttendanceTrend, TrendPoint{
			Date:    day.Format(attendance.DateLayout),
			Day:     day.Format("Jan 2"),
			Present: ds.Present,
			Absent:  ds.Absent,
		})
	}

	windowFrom := windowStart.Format(attendance.DateLayout)
	rep.ClassComparison = make([]ClassRate, 0, len(classes))
	for _, c := range classes {
		var total, present int
		for _, r := range records {
			if r.ClassID == c.ID && r.Date >= windowFrom {
				total++
				if r.Status == attendance.StatusPresent {
					present++
				}
			}
		}
		rep.ClassComparison = append(rep.ClassComparison, ClassRate{
			ClassID:        c.ID,
			ClassName:      c.Name,
			AttendanceRate: attendance.Rate(present, total),
			TotalRecords:   total,
		})
	}

	rep.DailyStats = countDay(byDate[now.Format(attendance.DateLayout)])
	return rep, nil
}

// Dashboard gathers users, classes, the weekly summary and notifications
// concurrently, then derives today's numbers.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	today := s.now().UTC().Format(attendance.DateLayout)

	var (
		students []school.User
		classes  []school.Class
		summary  attendance.Summary
		notes    []notify.Notification
		todays   []attendance.Record
		recent   []attendance.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		students, err = s.dir.ListUsers(gctx, string(school.RoleStudent))
		return err
	})
	g.Go(func() error {
		var err error
		classes, err = s.dir.ListClasses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = s.records.SummaryForRange(gctx, attendance.RangeWeek)
		return err
	})
	g.Go(func() error {
		var err error
		notes, err = s.notes.List(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		todays, err = s.records.List(gctx, attendance.Filter{Date: today})
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.records.List(gctx, attendance.Filter{Newest: true, Limit: recentAttendance})
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	ds := countDay(todays)
	d := Dashboard{
		Stats: DashboardStats{
			TotalStudents:     len(students),
			PresentToday:      ds.Present,
			AbsentToday:       ds.Absent,
			LateToday:         ds.Late,
			ActiveClasses:     len(classes),
			AttendanceRate:    summary.AttendanceRate,
			TotalClassesToday: len(classes),
			NotificationsSent: len(notes),
		},
		RecentAlerts:     make([]notify.Notification, 0, recentAlerts),
		RecentAttendance: recent,
		UpcomingClasses:  classes,
	}

	for _, n := range notes {
		if n.Type == notify.TypeAbsenceAlert && len(d.RecentAlerts) < recentAlerts {
			d.RecentAlerts = append(d.RecentAlerts, n)
		}
	}
	if len(d.UpcomingClasses) > upcomingClasses {
		d.UpcomingClasses = d.UpcomingClasses[:upcomingClasses]
	}
	return d, nil
}

func countDay(records []attendance.Record) DailyStats {
	var ds DailyStats
	for _, r := range records {
		switch r.Status {
		case attendance.StatusPresent:
			ds.Present++
		case attendance.StatusAbsent:
			ds.Absent++
		case attendance.StatusLate:
			ds.Late++
		}
	}
	return ds
}
