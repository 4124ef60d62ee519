// Package store owns durable, deduplicated persistence of posts and report
// summaries in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // Required by the library implementation.
)

type Store struct {
	db  *sql.DB
	log *slog.Logger
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// New opens (creating if needed) the SQLite database at dbPath and brings the
// schema up to date. Any failure here means storage is unavailable and the
// caller must abort the current run.
func New(ctx context.Context, dbPath string, log *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrateSchema(ctx, db, dbPath, log); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return &Store{db: db, log: log}, nil
}

func migrateSchema(ctx context.Context, db *sql.DB, dbPath string, log *slog.Logger) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("init sqlite migrate driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.InfoContext(ctx, "Schema is up to date",
			"dbPath", dbPath)
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	default:
		version, dirty, verr := m.Version()
		if verr != nil {
			log.WarnContext(ctx, "Schema migrated, version unreadable",
				"error", verr,
				"dbPath", dbPath)
			break
		}

		log.InfoContext(ctx, "Schema migrated",
			"dbPath", dbPath,
			"version", version,
			"dirty", dirty)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
