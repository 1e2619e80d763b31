// Package sqlite хранит историю партий во встроенной базе SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/tabletop-league/ranking-bot/pkg/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

// Open открывает базу, выставляет pragma и применяет миграции.
// path ":memory:" даёт базу в памяти (одно соединение).
func Open(ctx context.Context, path string, log *logger.Logger) (*sql.DB, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("sqlite"))
	log.Info("opening database", logger.String("path", path))

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Один писатель; для :memory: это ещё и единственная копия базы.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db, log); err != nil {
		db.Close()
		return nil, err
	}
	if err := Migrate(ctx, db, "up"); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("database ready")
	return db, nil
}

func applyPragmas(ctx context.Context, db *sql.DB, log *logger.Logger) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "ON"},
		{"temp_store", "MEMORY"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("set PRAGMA %s: %w", p.name, err)
		}
		log.Debug("pragma set", logger.String("pragma", p.name), logger.String("value", p.value))
	}
	return nil
}

// Migrate выполняет команду goose: up, down или status.
func Migrate(ctx context.Context, db *sql.DB, command string) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, migrationsDir)
	case "down":
		err = goose.DownContext(ctx, db, migrationsDir)
	case "status":
		err = goose.StatusContext(ctx, db, migrationsDir)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
