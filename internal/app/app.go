// Package app wires configuration into a ready-to-serve router. cmd/api and
// the integration tests share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/db"
	"github.com/geocoder89/taskhub/internal/domain/user"
	httpx "github.com/geocoder89/taskhub/internal/http"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/redisclient"
	"github.com/geocoder89/taskhub/internal/repo/memory"
	"github.com/geocoder89/taskhub/internal/repo/postgres"
	"github.com/geocoder89/taskhub/internal/repo/sqlite"
	"github.com/geocoder89/taskhub/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// userStore is what auth and admin seeding both need from the user store.
type userStore interface {
	service.UserStore
	db.UserStore
}

type stores struct {
	users userStore
	tasks service.TaskStore
	ping  handlers.Pinger
	close func()
}

type App struct {
	Router *gin.Engine
	Tokens *auth.Manager

	draining atomic.Bool
	closers  []func()
}

// New opens the configured store, seeds the admin account and builds the
// router. Close releases whatever New opened.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	a := &App{}

	st, err := openStores(ctx, cfg, prom, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.close)

	created, err := db.EnsureAdminUser(ctx, st.users, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.Info("admin user created", "email", user.NormalizeEmail(cfg.AdminEmail))
	}

	health := map[string]handlers.Pinger{}
	if st.ping != nil {
		health["db"] = st.ping
	}

	var limiter middlewares.Limiter
	if cfg.AuthRateLimit > 0 {
		limiter = middlewares.NewRateLimiter(cfg.AuthRateLimit, time.Minute)
	}

	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = rc.Close() })
		health["redis"] = rc

		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rc.Ping(pctx); err != nil {
			// limiter fails open until redis answers
			log.Warn("redis not reachable", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()

		if cfg.AuthRateLimit > 0 {
			limiter = middlewares.NewRedisRateLimiter(rc.Raw(), cfg.AuthRateLimit, time.Minute)
		}
	}

	a.Tokens = auth.NewManager(cfg.JWTSecret, cfg.JWTExpiry)
	profiles := cache.New[user.Profile](cfg.ProfileCacheTTL)

	a.Router = httpx.NewRouter(httpx.Deps{
		Config:      cfg,
		Log:         log,
		Prom:        prom,
		Gatherer:    reg,
		Auth:        service.NewAuthService(st.users, a.Tokens, profiles, log),
		Tasks:       service.NewTaskService(st.tasks, log),
		Tokens:      a.Tokens,
		AuthLimiter: limiter,
		Health:      health,

		ShuttingDown: a.draining.Load,
	})

	return a, nil
}

// Drain marks the app as shutting down; /readyz answers 503 from now on.
func (a *App) Drain() {
	a.draining.Store(true)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if cfg.DBMigrate {
			if err := db.Migrate(cfg.DBURL, log); err != nil {
				return stores{}, err
			}
		}

		pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			return stores{}, fmt.Errorf("connect postgres: %w", err)
		}

		return stores{
			users: postgres.NewUsersRepo(pool, prom),
			tasks: postgres.NewTasksRepo(pool, prom),
			ping:  handlers.PingFunc(pool.Ping),
			close: pool.Close,
		}, nil

	case config.DriverSQLite:
		gdb, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return stores{}, err
		}

		sqlDB, err := gdb.DB()
		if err != nil {
			return stores{}, err
		}

		return stores{
			users: sqlite.NewUsersRepo(gdb, prom),
			tasks: sqlite.NewTasksRepo(gdb, prom),
			ping:  handlers.PingFunc(sqlDB.PingContext),
			close: func() { _ = sqlite.Close(gdb) },
		}, nil

	case config.DriverMemory:
		users := memory.NewUsersRepo()
		return stores{
			users: users,
			tasks: memory.NewTasksRepo(users),
			close: func() {},
		}, nil
	}

	return stores{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
