package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"classroll/internal/analytics"
	"classroll/internal/attendance"
	"classroll/internal/auth"
	"classroll/internal/cache"
	"classroll/internal/config"
	"classroll/internal/handler"
	"classroll/internal/httpmiddleware"
	"classroll/internal/notify"
	"classroll/internal/queue"
	"classroll/internal/recordclient"
	"classroll/internal/school"
	"classroll/internal/store"
)

const queueKey = "classroll:events"

// App is the set of services built from one configuration. Every process
// (API, worker, CLI) builds its dependencies through New.
type App struct {
	Config        config.App
	DB            *store.DB
	Redis         *store.Redis
	Records       *recordclient.Client
	Attendance    *attendance.Service
	School        *school.Service
	Analytics     *analytics.Service
	Notifications notify.Store
	Alerter       *notify.Alerter
	Queue         queue.Queue
	Cache         attendance.SummaryCache
	Limiter       httpmiddleware.Limiter
	Issuer        auth.Issuer
}

// New connects the configured backends. Schema migrations run for SQL
// backends so a fresh database is usable immediately.
func New(ctx context.Context, cfg config.App) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		Config: cfg,
		Issuer: auth.Issuer{Name: cfg.JWTIssuer, Key: cfg.JWTSigningKey, AccessTTL: cfg.AccessTTL, RefreshTTL: cfg.RefreshTTL},
	}

	var (
		records attendance.Store
		dir     school.Directory
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		records = attendance.NewMemStore()
		dir = school.NewMemDirectory(nil, nil)
		a.Notifications = notify.NewMemStore()
	case config.BackendPostgres, config.BackendSQLite:
		var err error
		if cfg.StoreBackend == config.BackendPostgres {
			a.DB, err = store.NewDB(cfg.DatabaseURL)
		} else {
			a.DB, err = store.NewSQLiteDB(cfg.SQLitePath)
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.StoreBackend, err)
		}
		if err := a.DB.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		records = attendance.NewRepository(a.DB.Client)
		dir = school.NewRepository(a.DB.Client)
		a.Notifications = notify.NewRepository(a.DB.Client)
	case config.BackendRemote:
		a.Records = recordclient.New(cfg.RecordServiceURL, cfg.RecordProjectID, cfg.RecordPublicKey)
		records = recordclient.NewAttendanceStore(a.Records)
		dir = recordclient.NewDirectory(a.Records)
		a.Notifications = recordclient.NewNotifications(a.Records)
	}

	if cfg.RedisAddr != "" {
		var err error
		if a.Redis, err = store.NewRedis(cfg.RedisAddr); err != nil {
			a.Close()
			return nil, err
		}
		if !a.Redis.Healthy(ctx) {
			log.Printf("warning: redis not reachable at %s", cfg.RedisAddr)
		}
		a.Cache = cache.NewSummaries(a.Redis.Client, "", cfg.SummaryCacheTTL)
	}

	if cfg.QueueBackend == config.BackendRedis {
		a.Queue = queue.NewRedisQueue(a.Redis.Client, queueKey)
	} else {
		a.Queue = queue.NewInMemory(64)
	}
	if cfg.RateLimitBackend == config.BackendRedis {
		a.Limiter = httpmiddleware.NewRedisWindow(a.Redis.Client, cfg.RateLimitPerMin)
	} else {
		a.Limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	a.School = school.NewService(dir)
	a.Attendance = attendance.NewService(records, a.School.RosterStudentIDs, a.Cache)
	a.Analytics = analytics.NewService(a.Attendance, a.School, a.Notifications)
	a.Alerter = notify.NewAlerter(records, a.School, a.Notifications)
	return a, nil
}

// HealthChecks reports the backends the API depends on.
func (a *App) HealthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{}
	if a.DB != nil {
		checks["db"] = a.DB.Healthy
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Healthy
	}
	if a.Records != nil {
		checks["records"] = func(ctx context.Context) bool { return a.Records.Health(ctx) == nil }
	}
	return checks
}

// Handler builds the HTTP handlers over the app's services.
func (a *App) Handler() *handler.Handler {
	return handler.New(handler.Deps{
		Attendance:    a.Attendance,
		School:        a.School,
		Analytics:     a.Analytics,
		Notifications: a.Notifications,
		Queue:         a.Queue,
		Issuer:        a.Issuer,
		DevTokens:     !a.Config.Production(),
		Checks:        a.HealthChecks(),
	})
}

// Close releases connections.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
