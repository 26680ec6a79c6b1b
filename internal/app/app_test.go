package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroll/internal/attendance"
	"classroll/internal/config"
	"classroll/internal/school"
)

func testConfig(backend string) config.App {
	return config.App{
		StoreBackend:     backend,
		QueueBackend:     config.BackendMemory,
		RateLimitBackend: config.BackendMemory,
		RateLimitPerMin:  60,
		JWTIssuer:        "classroll-test",
		JWTSigningKey:    "secret",
		AccessTTL:        time.Minute,
		RefreshTTL:       time.Hour,
	}
}

func TestNew_Backends(t *testing.T) {
	sqlite := testConfig(config.BackendSQLite)
	sqlite.SQLitePath = filepath.Join(t.TempDir(), "app.db")

	for name, cfg := range map[string]config.App{
		"memory": testConfig(config.BackendMemory),
		"sqlite": sqlite,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, err := New(ctx, cfg)
			require.NoError(t, err)
			t.Cleanup(func() { a.Close() })

			_, err = a.School.CreateClass(ctx, school.ClassInput{Name: "Biology"})
			require.NoError(t, err)
			student, err := a.School.CreateUser(ctx, school.UserInput{Name: "Ana", Role: "student"})
			require.NoError(t, err)
			_, err = a.School.UpdateClass(ctx, 1, school.ClassInput{Name: "Biology", StudentIDs: []int{student.ID}})
			require.NoError(t, err)

			applied, err := a.Attendance.ReconcileRoster(ctx, 1, "2024-01-05", "user-1", []attendance.Entry{{StudentID: student.ID, Status: "absent"}})
			require.NoError(t, err)
			require.Len(t, applied, 1)

			alerts, err := a.Alerter.AlertOnAbsences(ctx, 1, "2024-01-05")
			require.NoError(t, err)
			require.Len(t, alerts, 1)
			assert.Equal(t, "Ana", alerts[0].StudentName)

			assert.NotNil(t, a.Handler())
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), testConfig(config.BackendRemote))
	assert.Error(t, err)
}

func TestHealthChecks(t *testing.T) {
	cfg := testConfig(config.BackendSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "health.db")
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	checks := a.HealthChecks()
	require.Contains(t, checks, "db")
	assert.True(t, checks["db"](context.Background()))
	assert.NotContains(t, checks, "redis")
}
