package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cmlabs-hris/attendance-engine-go/internal/config"
	appHTTP "github.com/cmlabs-hris/attendance-engine-go/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/cache"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine-go/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/attendance-engine-go/internal/service/attendance"
	calendarService "github.com/cmlabs-hris/attendance-engine-go/internal/service/calendar"
	reportService "github.com/cmlabs-hris/attendance-engine-go/internal/service/report"
	statsService "github.com/cmlabs-hris/attendance-engine-go/internal/service/stats"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	resolver := clock.NewResolver(cfg.Attendance.RegionOffsetMinutes)

	attendanceRepo := postgresql.NewAttendanceRepository(db)
	configRepo := postgresql.NewConfigRepository(db)
	calendarRepo := postgresql.NewCalendarRepository(db)
	statsRepo := postgresql.NewStatsRepository(db)
	leaveRequestRepo := postgresql.NewLeaveRequestRepository(db)
	reportRepo := postgresql.NewReportRepository(db, resolver.Location)
	txManager := postgresql.NewTxManager(db)

	calendarSvc := calendarService.NewCalendarService(calendarRepo)
	statsSvc := statsService.NewStatsService(statsRepo, calendarSvc, resolver, cfg.Attendance.StreakLookbackDays)
	reportSvc := reportService.NewReportService(
		reportRepo,
		leaveRequestRepo,
		statsSvc,
		cache.NewSchoolCache(cfg.Attendance.ReportCacheTTL),
		resolver,
	)
	hub := sse.NewHub()
	attendanceSvc := attendanceService.NewAttendanceService(
		txManager,
		attendanceRepo,
		configRepo,
		calendarSvc,
		resolver,
		reportSvc,
		hub,
	)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	router := appHTTP.NewRouter(
		appHTTP.RouterOptions{
			AllowedOrigins: cfg.App.AllowedOrigins,
			Env:            cfg.App.Env,
			LogLevel:       cfg.SlogLevel(),
		},
		JWTService,
		appHTTP.NewAttendanceHandler(attendanceSvc, JWTService, hub),
		appHTTP.NewStatsHandler(statsSvc, resolver),
		appHTTP.NewReportHandler(reportSvc),
	)

	if cfg.Cron.Enabled {
		scheduler := cron.NewScheduler(resolver.Location)
		jobs := cron.NewAttendanceJobs(configRepo, attendanceRepo, calendarSvc, statsSvc, reportSvc, resolver)
		if err := jobs.RegisterJobs(scheduler, cfg.Cron.MarkAbsentSpec, cfg.Cron.StatsRollupSpec); err != nil {
			return fmt.Errorf("register cron jobs: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Open SSE streams end when the signal context is cancelled.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
