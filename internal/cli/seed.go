package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"classroll/internal/app"
	"classroll/internal/attendance"
	"classroll/internal/school"
)

// Fixture is a seed file. Classes and attendance refer to users and classes
// by name; ids are whatever the store assigns.
type Fixture struct {
	Users      []school.UserInput `yaml:"users"`
	Classes    []FixtureClass     `yaml:"classes"`
	Attendance []FixtureDay       `yaml:"attendance"`
}

type FixtureClass struct {
	school.ClassInput `yaml:",inline"`
	Students          []string `yaml:"students"`
	Teachers          []string `yaml:"teachers"`
}

type FixtureDay struct {
	Class    string         `yaml:"class"`
	Date     string         `yaml:"date"`
	MarkedBy string         `yaml:"marked_by"`
	Entries  []FixtureEntry `yaml:"entries"`
}

type FixtureEntry struct {
	Student string `yaml:"student"`
	Status  string `yaml:"status"`
}

// SeedResult counts what a seed run created.
type SeedResult struct {
	Users   int `json:"users"`
	Classes int `json:"classes"`
	Records int `json:"records"`
	Alerts  int `json:"alerts"`
}

// LoadFixture reads and decodes a YAML seed file.
func LoadFixture(path string) (Fixture, error) {
	var f Fixture
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read fixture: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	var (
		file   string
		alerts bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, classes and attendance from a YAML fixture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := LoadFixture(file)
			if err != nil {
				return err
			}
			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := Seed(cmd.Context(), a, f, alerts)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "seeded %d users, %d classes, %d attendance records, %d alerts\n",
					res.Users, res.Classes, res.Records, res.Alerts)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file (required)")
	cmd.Flags().BoolVar(&alerts, "alerts", true, "create absence alerts for seeded absences")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// Seed writes the fixture through the app's services, so validation and
// roster checks apply exactly as they do for API calls.
func Seed(ctx context.Context, a *app.App, f Fixture, alerts bool) (SeedResult, error) {
	var res SeedResult
	users := make(map[string]int, len(f.Users))
	for _, in := range f.Users {
		u, err := a.School.CreateUser(ctx, in)
		if err != nil {
			return res, fmt.Errorf("user %q: %w", in.Name, err)
		}
		users[u.Name] = u.ID
		res.Users++
	}

	classes := make(map[string]int, len(f.Classes))
	for _, fc := range f.Classes {
		in := fc.ClassInput
		var err error
		if in.StudentIDs, err = resolve(users, fc.Students); err != nil {
			return res, fmt.Errorf("class %q: %w", in.Name, err)
		}
		if in.TeacherIDs, err = resolve(users, fc.Teachers); err != nil {
			return res, fmt.Errorf("class %q: %w", in.Name, err)
		}
		c, err := a.School.CreateClass(ctx, in)
		if err != nil {
			return res, fmt.Errorf("class %q: %w", in.Name, err)
		}
		classes[c.Name] = c.ID
		res.Classes++
	}

	for _, day := range f.Attendance {
		classID, ok := classes[day.Class]
		if !ok {
			return res, fmt.Errorf("attendance %s: unknown class %q", day.Date, day.Class)
		}
		entries := make([]attendance.Entry, 0, len(day.Entries))
		for _, e := range day.Entries {
			id, ok := users[e.Student]
			if !ok {
				return res, fmt.Errorf("attendance %s %s: unknown student %q", day.Class, day.Date, e.Student)
			}
			entries = append(entries, attendance.Entry{StudentID: id, Status: e.Status})
		}
		applied, err := a.Attendance.ReconcileRoster(ctx, classID, day.Date, day.MarkedBy, entries)
		res.Records += len(applied)
		if err != nil {
			return res, fmt.Errorf("attendance %s %s: %w", day.Class, day.Date, err)
		}
		if alerts {
			created, err := a.Alerter.AlertOnAbsences(ctx, classID, day.Date)
			res.Alerts += len(created)
			if err != nil {
				return res, fmt.Errorf("alerts %s %s: %w", day.Class, day.Date, err)
			}
		}
	}
	return res, nil
}

func resolve(ids map[string]int, names []string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, n := range names {
		id, ok := ids[n]
		if !ok {
			return nil, fmt.Errorf("unknown user %q", n)
		}
		out = append(out, id)
	}
	return out, nil
}
