package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"classroll/internal/attendance"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the SQL schema",
		Long:  "Create tables and indexes for the postgres or sqlite store. Running it twice is harmless.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.DB == nil {
				return fmt.Errorf("STORE_BACKEND=%s has no schema to migrate", a.Config.StoreBackend)
			}
			// app.New already migrated; report what was done.
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", a.DB.Driver)
			return nil
		},
	}
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	var markedBy string
	cmd := &cobra.Command{
		Use:   "reconcile <class-id> <date> <student:status>...",
		Short: "Save a class roster for one day",
		Long: `Save attendance for a class on a date. Each entry is student-id:status,
for example 12:present 13:absent. Existing records for the day are updated.`,
		Example: "  attendctl reconcile 3 2024-01-05 12:present 13:late 14:absent",
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			classID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("class id %q: %w", args[0], err)
			}
			entries, err := parseEntries(args[2:])
			if err != nil {
				return err
			}

			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			applied, rerr := a.Attendance.ReconcileRoster(cmd.Context(), classID, args[1], markedBy, entries)
			if perr := opts.print(cmd.OutOrStdout(), applied, func(w io.Writer) {
				for _, r := range applied {
					fmt.Fprintf(w, "%d\tstudent %d\t%s\n", r.ID, r.StudentID, r.Status)
				}
			}); perr != nil {
				return perr
			}
			if rerr != nil {
				return fmt.Errorf("saved %d of %d entries: %w", len(applied), len(entries), rerr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&markedBy, "marked-by", "attendctl", "recorded as the marking user")
	return cmd
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(opts *RootOptions) *cobra.Command {
	var rangeName, from string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print attendance counts for a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var sum attendance.Summary
			if from != "" {
				start, perr := time.Parse(attendance.DateLayout, from)
				if perr != nil {
					return fmt.Errorf("--from %q: want YYYY-MM-DD", from)
				}
				sum, err = a.Attendance.Summary(cmd.Context(), start)
			} else {
				sum, err = a.Attendance.SummaryForRange(cmd.Context(), rangeName)
			}
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), sum, func(w io.Writer) {
				fmt.Fprintf(w, "total %d  present %d  absent %d  late %d  rate %d%%\n",
					sum.TotalRecords, sum.PresentCount, sum.AbsentCount, sum.LateCount, sum.AttendanceRate)
			})
		},
	}
	cmd.Flags().StringVar(&rangeName, "range", "week", "window: week, month or quarter")
	cmd.Flags().StringVar(&from, "from", "", "window start date (YYYY-MM-DD), overrides --range")
	return cmd
}

func parseEntries(args []string) ([]attendance.Entry, error) {
	entries := make([]attendance.Entry, 0, len(args))
	for _, arg := range args {
		id, status, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q: want student-id:status", arg)
		}
		studentID, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", arg, err)
		}
		entries = append(entries, attendance.Entry{StudentID: studentID, Status: status})
	}
	return entries, nil
}
