package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type Config struct {
	Dialect Dialect
	// DSN is a file path for sqlite and the full URI for postgres.
	DSN string
}

// DB is an open connection pool together with the dialect it speaks.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// ParseURI maps a DATABASE_URI (sqlite://path or postgres://...) to a Config.
func ParseURI(uri string) (Config, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Config{}, fmt.Errorf("parse database uri: %w", err)
	}

	switch u.Scheme {
	case "sqlite":
		path := strings.TrimPrefix(uri, "sqlite://")
		if path == "" {
			return Config{}, fmt.Errorf("parse database uri: empty sqlite path")
		}
		return Config{Dialect: DialectSQLite, DSN: path}, nil
	case "postgres", "postgresql":
		return Config{Dialect: DialectPostgres, DSN: uri}, nil
	default:
		return Config{}, fmt.Errorf("parse database uri: unsupported scheme %q", u.Scheme)
	}
}

func EnsureDataDir(cfg Config) error {
	return os.MkdirAll(filepath.Dir(cfg.DSN), 0o755)
}

func Open(ctx context.Context, cfg Config) (*DB, error) {
	switch cfg.Dialect {
	case DialectSQLite:
		return openSQLite(ctx, cfg)
	case DialectPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("open database: unsupported dialect %q", cfg.Dialect)
	}
}

func openSQLite(ctx context.Context, cfg Config) (*DB, error) {
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// pragmas below are per connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &DB{DB: db, Dialect: DialectSQLite}, nil
}

func openPostgres(ctx context.Context, cfg Config) (*DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{DB: db, Dialect: DialectPostgres}, nil
}

// Rebind rewrites ? placeholders to the dialect's bind syntax.
func (d *DB) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
