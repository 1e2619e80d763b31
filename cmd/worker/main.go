// Package main - точка входа фоновых задач сервиса рейтинга.
//
// Worker выполняет периодические задачи:
// - Публикация недельного рейтинга в webhook канала
// - Резервные снимки истории партий
//
// При включённом Redis задачи берут распределённую блокировку, поэтому
// несколько реплик worker не публикуют рейтинг дважды.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/tabletop-league/ranking-bot/config"
	"github.com/tabletop-league/ranking-bot/internal/application/query"
	"github.com/tabletop-league/ranking-bot/internal/bootstrap"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/external/webhook"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/messaging"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/metrics"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/scheduler"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/scheduler/jobs"
	"github.com/tabletop-league/ranking-bot/internal/interface/http/handlers"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
	"github.com/tabletop-league/ranking-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rule, err := cfg.Scoring.BuildScoringRule()
	if err != nil {
		return fmt.Errorf("failed to build scoring rule: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.NewLogger(cfg, cfg.App.Name+"-worker")
	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled (SCHEDULER_ENABLED=false), nothing to do")
		return nil
	}
	log.Info("starting ranking worker",
		logger.String("broadcast_cron", cfg.Scheduler.BroadcastCron),
		logger.Duration("backup_interval", cfg.Scheduler.BackupInterval),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ И REDIS
	// ─────────────────────────────────────────────────────────────────────────
	storage, err := bootstrap.OpenStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer storage.Close()

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("storage", storage.HealthCheck())

	m := metrics.New()
	schedCfg := scheduler.Config{
		Logger:     log,
		Location:   cfg.App.Location,
		JobTimeout: cfg.Scheduler.JobTimeout,
		Observer:   m,
		Owner:      instanceID(),
	}

	cache, err := bootstrap.OpenCache(cfg, log)
	if err != nil {
		log.Warn("failed to connect to redis, running without job locks", logger.Err(err))
	}
	if cache != nil {
		defer cache.Close()
		schedCfg.Locker = cache
		health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
	}

	eventBus := messaging.NewInMemoryEventBus(messaging.Config{Logger: log})
	eventBus.Use(messaging.ObserverMiddleware(m))
	defer func() { _ = eventBus.Close() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. РЕГИСТРАЦИЯ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}
	sched := scheduler.New(schedCfg)

	if cfg.Broadcast.WebhookURL != "" {
		schedule, err := scheduler.ParseCronExpression(cfg.Scheduler.BroadcastCron)
		if err != nil {
			return fmt.Errorf("invalid SCHEDULER_BROADCAST_CRON: %w", err)
		}

		standings := query.NewStandingsService(storage.Store, rule,
			query.WithClock(clock),
			query.WithObserver(m),
			query.WithLogger(log),
		)
		poster := webhook.NewClient(webhook.Config{
			URL:      cfg.Broadcast.WebhookURL,
			Username: cfg.App.Name,
			Timeout:  cfg.Broadcast.Timeout,
		}, webhook.WithLogger(log), webhook.WithObserver(m))

		job := jobs.NewBroadcastRankingJob(
			query.NewGetLeaderboardHandler(standings, storage.Resolver),
			poster, eventBus, clock, log,
			jobs.BroadcastRankingConfig{
				Window: cfg.Scheduler.BroadcastWindow,
				Game:   cfg.Scheduler.BroadcastGame,
				TopN:   cfg.Broadcast.TopN,
			},
		)
		if err := sched.Register(job, schedule); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
	} else {
		log.Info("BROADCAST_WEBHOOK_URL not set, ranking broadcast disabled")
	}

	if cfg.Scheduler.BackupInterval > 0 {
		schedule, err := scheduler.NewIntervalSchedule(cfg.Scheduler.BackupInterval)
		if err != nil {
			return fmt.Errorf("invalid SCHEDULER_BACKUP_INTERVAL: %w", err)
		}
		job := jobs.NewBackupHistoryJob(storage.Store, clock, log, jobs.BackupHistoryConfig{
			Dir:       cfg.Scheduler.BackupDir,
			Retention: cfg.Scheduler.BackupRetention,
		})
		if err := sched.Register(job, schedule); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
	}

	for _, info := range sched.ListJobs() {
		log.Info("job registered",
			logger.String("job", info.Name),
			logger.String("schedule", info.Schedule),
			logger.Time("next_run", info.NextRun),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	if cfg.Observability.MetricsEnabled && cfg.Observability.WorkerMetricsAddr != "" {
		g.Go(func() error {
			return serveOps(gctx, cfg.Observability.WorkerMetricsAddr, cfg.App.ShutdownTimeout, m, health, log)
		})
	}

	log.Info("ranking worker is running")
	err = g.Wait()
	log.Info("worker stopped")
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// serveOps отдаёт /metrics и /health до отмены ctx.
func serveOps(ctx context.Context, addr string, shutdownTimeout time.Duration, m *metrics.Metrics, health handlers.HealthChecker, log *logger.Logger) error {
	mux := chi.NewRouter()
	mux.Handle("/metrics", m.Handler())
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := health.Check(r.Context())
		code, body := http.StatusOK, "ok"
		if !status.Healthy {
			code, body = http.StatusServiceUnavailable, status.Message
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving worker metrics", logger.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// instanceID идентифицирует реплику в распределённых блокировках.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return host + ":" + strconv.Itoa(os.Getpid())
}
