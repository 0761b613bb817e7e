package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/custodian-sh/custodian"
	"github.com/custodian-sh/custodian/api"
	"github.com/custodian-sh/custodian/config"
	"github.com/custodian-sh/custodian/core/health"
	"github.com/custodian-sh/custodian/core/reconcile"
	"github.com/custodian-sh/custodian/logger"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	app, err := custodian.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}
	defer logger.Log.Sync()

	logger.Log.Info("Starting Custodian Visibility Service",
		zap.Int("port", cfg.Port),
		zap.String("tuple_store", cfg.TupleStoreURL),
	)

	go runBackgroundPasses(app)

	h := api.NewHandler(app.Machine, app.Catalog, app.Engine, app.Repo.Users())

	hm := health.NewManager(Version)
	hm.Register(health.NewDatabaseChecker(cfg.DBType, func(ctx context.Context) error {
		sqlDB, err := app.Repo.DB().DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}))
	hm.Register(health.NewTupleStoreChecker(app.Tuples))
	if app.Redis != nil {
		hm.Register(health.NewRedisChecker(func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}))
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", echo.WrapHandler(hm.LiveHandler()))
	e.GET("/ready", echo.WrapHandler(hm.ReadyHandler()))
	e.GET("/health", echo.WrapHandler(hm.FullHandler()))

	g := e.Group("/api/v1")
	h.RegisterRoutes(g)

	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server failed to start", zap.Error(err))
	}
}

// runBackgroundPasses drives the periodic maintenance work: expiring stale
// conversational workflows and re-converging tuples so flag flips and user
// removals that missed their targeted convergence heal within one interval.
func runBackgroundPasses(app *custodian.App) {
	interval := app.Config.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), interval)

		if removed, err := app.Pending.Sweep(ctx); err != nil {
			app.Log.Warn("pending sweep failed", zap.Error(err))
		} else if removed > 0 {
			app.Log.Info("expired pending workflows", zap.Int("removed", removed))
		}

		if report, err := app.Engine.Reconcile(ctx, reconcile.Options{}); err != nil {
			app.Log.Warn("background reconciliation aborted", zap.Error(err))
		} else if report.Added > 0 || report.Deleted > 0 {
			app.Log.Info("background reconciliation converged",
				zap.Int("added", report.Added),
				zap.Int("deleted", report.Deleted),
			)
		}

		if report, err := app.Engine.SweepGhosts(ctx); err != nil {
			app.Log.Warn("ghost sweep aborted", zap.Error(err))
		} else if report.Deleted > 0 {
			app.Log.Info("ghost tuples removed", zap.Int("deleted", report.Deleted))
		}

		cancel()
	}
}
