// Package bootstrap assembles infrastructure shared by the process entry
// points: logger, history store, display-name resolver and the optional
// Redis layer.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tabletop-league/ranking-bot/config"
	"github.com/tabletop-league/ranking-bot/internal/domain/leaderboard"
	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/persistence/jsonfile"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/persistence/postgres"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/persistence/redis"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/persistence/sqlite"
	"github.com/tabletop-league/ranking-bot/internal/interface/http/handlers"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ══════════════════════════════════════════════════════════════════════════════

// NewLogger builds the process logger from the observability settings.
func NewLogger(cfg *config.Config, service string) *logger.Logger {
	format := logger.FormatJSON
	if cfg.Observability.LogFormat == string(logger.FormatConsole) {
		format = logger.FormatConsole
	}
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    format,
		AddCaller: cfg.App.Debug,
		Service:   service,
	}).With(
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// Storage is the opened history backend with its resolver.
type Storage struct {
	Driver   config.StorageDriver
	Store    match.HistoryStore
	Resolver leaderboard.Resolver

	// Set only for the corresponding driver.
	Postgres *postgres.Connection
	SQLite   *sql.DB

	jsonDir string
}

// OpenStorage opens the history store selected by cfg.Storage.Driver.
// Postgres resolves names through the players table; the other drivers use
// the static PLAYER_NAMES map.
func OpenStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Storage, error) {
	s := &Storage{
		Driver:   cfg.Storage.Driver,
		Resolver: StaticResolver(cfg.Players),
	}

	switch cfg.Storage.Driver {
	case config.StorageJSON:
		s.jsonDir = filepath.Dir(cfg.Storage.JSONPath)
		if err := os.MkdirAll(s.jsonDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		s.Store = jsonfile.NewHistoryStore(cfg.Storage.JSONPath)

	case config.StorageSQLite:
		if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		s.SQLite = db
		s.Store = sqlite.NewHistoryStore(db)

	case config.StoragePostgres:
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Storage.DatabaseURL, postgres.PoolOptions{
			MaxConns:        int32(cfg.Storage.MaxOpenConns),
			MinConns:        int32(cfg.Storage.MaxIdleConns),
			MaxConnLifetime: cfg.Storage.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Storage.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Storage.AutoMigrate {
			applied, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				conn.Close()
				return nil, err
			}
			log.Info("postgres migrations applied", logger.Int("count", applied))
		}
		s.Postgres = conn
		s.Store = postgres.NewHistoryStore(conn)
		s.Resolver = postgres.NewPlayerDirectory(conn)

	default:
		return nil, shared.NewDomainError("bootstrap", "OpenStorage", shared.ErrInvalidInput,
			"unknown storage driver "+string(cfg.Storage.Driver))
	}

	log.Info("history store ready", logger.String("driver", string(s.Driver)))
	return s, nil
}

// HealthCheck returns the readiness probe of the opened backend.
func (s *Storage) HealthCheck() handlers.HealthCheckFunc {
	switch {
	case s.Postgres != nil:
		return handlers.NewPingCheck(s.Postgres)
	case s.SQLite != nil:
		return handlers.NewSQLCheck(s.SQLite)
	default:
		return handlers.NewDirCheck(s.jsonDir)
	}
}

// Close releases database handles. Safe to call on a JSON store.
func (s *Storage) Close() {
	if s.Postgres != nil {
		s.Postgres.Close()
	}
	if s.SQLite != nil {
		_ = s.SQLite.Close()
	}
}

// StaticResolver builds a resolver from configured display names.
func StaticResolver(cfg config.PlayersConfig) leaderboard.StaticResolver {
	r := make(leaderboard.StaticResolver, len(cfg.Names))
	for id, name := range cfg.Names {
		r[shared.PlayerID(id)] = name
	}
	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS
// ══════════════════════════════════════════════════════════════════════════════

// OpenCache connects to Redis unless it is disabled. A nil cache with a nil
// error means Redis is off and callers run without cache and locks.
func OpenCache(cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	if cfg.Redis.Disabled {
		log.Info("redis disabled, standings are computed on every request")
		return nil, nil
	}

	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout

	cache, err := redis.NewCache(rc)
	if err != nil {
		return nil, err
	}
	log.Info("redis connected", logger.String("addr", rc.Addr()))
	return cache, nil
}

// RegistrationPolicy converts the configured participant bounds.
func RegistrationPolicy(cfg *config.Config) match.RegistrationPolicy {
	return match.RegistrationPolicy{
		MinParticipants: cfg.Registration.MinParticipants,
		MaxParticipants: cfg.Registration.MaxParticipants,
	}
}
