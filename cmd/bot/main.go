// Package main - точка входа API сервера рейтинга настольных партий.
//
// Сервер принимает результаты партий (порядок мест участников), хранит
// историю и отдаёт таблицы за окна день/неделя/месяц/всё время.
//
// Архитектура:
// - Domain: правила очков, запись партии, агрегатор таблиц
// - Application: команды (регистрация, исправление, удаление, сброс) и запросы
// - Infrastructure: хранилища истории (json/sqlite/postgres), Redis, метрики
// - Interface: REST API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tabletop-league/ranking-bot/config"
	"github.com/tabletop-league/ranking-bot/internal/application/command"
	"github.com/tabletop-league/ranking-bot/internal/application/eventhandler"
	"github.com/tabletop-league/ranking-bot/internal/application/query"
	"github.com/tabletop-league/ranking-bot/internal/bootstrap"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/messaging"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/metrics"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/persistence/redis"
	httpserver "github.com/tabletop-league/ranking-bot/internal/interface/http"
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
	log := bootstrap.NewLogger(cfg, cfg.App.Name)
	log.Info("starting ranking api",
		logger.String("storage", string(cfg.Storage.Driver)),
		logger.String("rule", rule.Name()),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ ИСТОРИИ
	// ─────────────────────────────────────────────────────────────────────────
	storage, err := bootstrap.OpenStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		log.Info("closing storage...")
		storage.Close()
	}()

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("storage", storage.HealthCheck())

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально, кеш таблиц)
	// ─────────────────────────────────────────────────────────────────────────
	cache, err := bootstrap.OpenCache(cfg, log)
	if err != nil {
		// Без кеша сервер работает, таблицы считаются на каждый запрос.
		log.Warn("failed to connect to redis, caching disabled", logger.Err(err))
	}
	var standingsCache *redis.StandingsCache
	if cache != nil {
		defer cache.Close()
		standingsCache = redis.NewStandingsCache(cache, cfg.Redis.StandingsTTL)
		health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. МЕТРИКИ И EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	m := metrics.New()

	eventBus := messaging.NewInMemoryEventBus(messaging.Config{Logger: log})
	eventBus.Use(messaging.ObserverMiddleware(m))
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	if standingsCache != nil {
		if err := eventhandler.NewOnHistoryChangedHandler(standingsCache, log).Register(eventBus); err != nil {
			return fmt.Errorf("failed to register event handlers: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}
	policy := bootstrap.RegistrationPolicy(cfg)

	standingsOpts := []query.StandingsOption{
		query.WithClock(clock),
		query.WithObserver(m),
		query.WithLogger(log),
	}
	if standingsCache != nil {
		standingsOpts = append(standingsOpts, query.WithCache(standingsCache))
	}
	standings := query.NewStandingsService(storage.Store, rule, standingsOpts...)

	deps := httpserver.Dependencies{
		RegisterMatchHandler: command.NewRegisterMatchHandler(storage.Store, eventBus, rule, policy, clock, log),
		CorrectMatchHandler:  command.NewCorrectMatchHandler(storage.Store, eventBus, rule, policy, clock, log),
		DeleteMatchHandler:   command.NewDeleteMatchHandler(storage.Store, eventBus, clock, log),
		ResetHistoryHandler:  command.NewResetHistoryHandler(storage.Store, eventBus, clock, log),

		GetLeaderboardHandler:    query.NewGetLeaderboardHandler(standings, storage.Resolver),
		GetPlayerStandingHandler: query.NewGetPlayerStandingHandler(standings, storage.Resolver),
		ListMatchesHandler:       query.NewListMatchesHandler(storage.Store, storage.Resolver),

		Logger:        log,
		HealthChecker: health,
		Observer:      m,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = m.Handler()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimit = cfg.HTTP.RateLimit
	httpConfig.RateLimitBurst = cfg.HTTP.RateLimitBurst

	server := httpserver.NewServer(httpConfig, deps)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.HTTP.ShutdownTimeout)
	})

	log.Info("ranking api is running", logger.String("http_address", server.Address()))

	started := time.Now()
	err = g.Wait()
	log.Info("shutdown completed", logger.Duration("uptime", time.Since(started).Round(time.Second)))
	return err
}
