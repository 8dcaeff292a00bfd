package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"certledger/internal/platform/config"
)

// Dialect names the SQL flavour behind a DB handle.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB wraps a database connection together with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the database named by cfg.URL. It returns nil when no URL
// is configured so callers can fall back to in-memory storage.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	switch {
	case cfg.URL == "":
		return nil, nil
	case strings.HasPrefix(cfg.URL, "postgres://"), strings.HasPrefix(cfg.URL, "postgresql://"):
		return openPostgres(ctx, cfg)
	case strings.HasPrefix(cfg.URL, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(cfg.URL, "sqlite://"))
	default:
		return nil, fmt.Errorf("unsupported database url %q", cfg.URL)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: db, Dialect: Postgres}, nil
}

// OpenSQLite opens (creating if needed) the SQLite file at path. ":memory:"
// opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "/" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &DB{DB: db, Dialect: SQLite}, nil
}

// Health pings the database.
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Rebind rewrites '?' placeholders into the dialect's form.
func (db *DB) Rebind(query string) string {
	return Rebind(db.Dialect, query)
}

func Rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
