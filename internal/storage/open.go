package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"sjsage522/pricetracker/migrations"
)

// Options select and locate the database.
type Options struct {
	Driver string // "sqlite" or "postgres"
	Path   string // SQLite file, ":memory:" for an in-memory database
	DSN    string // PostgreSQL connection URL

	MaxOpenConns   int
	SkipMigrations bool
}

// PostgresDSN builds a URL-encoded PostgreSQL DSN from DB_* settings.
func PostgresDSN(host, port, user, password, name, sslmode string) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   host + ":" + port,
		Path:   "/" + name,
	}
	q := u.Query()
	if sslmode == "" {
		sslmode = "disable"
	}
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// OpenDB opens and pings the database without running migrations.
func OpenDB(ctx context.Context, opts Options) (*sql.DB, Dialect, error) {
	switch Dialect(opts.Driver) {
	case SQLite, "":
		db, err := openSQLite(ctx, opts.Path)
		return db, SQLite, err
	case Postgres:
		db, err := openPostgres(ctx, opts.DSN, opts.MaxOpenConns)
		return db, Postgres, err
	}
	return nil, "", fmt.Errorf("unsupported database driver %q", opts.Driver)
}

// Open opens the database, applies pending migrations and returns the store.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	db, dialect, err := OpenDB(ctx, opts)
	if err != nil {
		return nil, err
	}

	if !opts.SkipMigrations {
		if err := migrations.Run(ctx, db, string(dialect)); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return NewSQLStore(db, dialect), nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: writers serialize, and :memory: stays a single database
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

func openPostgres(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	db, err := sql.Open("pgx", stdlib.RegisterConnConfig(connConfig))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database is unavailable: %w", err)
	}
	return db, nil
}
