package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"billboard/internal/config"
	"billboard/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// DB is the booking store over one of the supported backends.
type DB struct {
	conn      *Conn
	logger    *zerolog.Logger
	mobileCap int
}

// Open connects to the configured backend and makes sure the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var dsn string
	switch dialect {
	case SQLite:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = cfg.Path
	case MySQL:
		dsn = MySQLDSN(cfg.MySQL)
	case Postgres:
		dsn = PostgresDSN(cfg.Postgres)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout == 0 {
		pingTimeout = 5 * time.Second
	}

	opener := func(ctx context.Context) (*sqlx.DB, error) {
		db, err := sqlx.Open(dialect.Name, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if dialect == SQLite {
			// one connection serializes writers and keeps :memory: a single database
			db.SetMaxOpenConns(1)
		} else if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := migrate(ctx, db, dialect); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
		return db, nil
	}

	conn, err := NewConn(ctx, dialect, opener, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("driver", dialect.Name).Msg("Database initialized")
	return &DB{conn: conn, logger: logger, mobileCap: models.DefaultMaxMobileUnits}, nil
}

// NewDB opens a SQLite database at path.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	return Open(context.Background(), config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}, logger)
}

// OpenExisting opens a SQLite database that must already exist. NewDB would
// create a missing file with an empty schema.
func OpenExisting(path string, logger *zerolog.Logger) (*DB, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceMissing, path)
	}
	return NewDB(path, logger)
}

// SetMobileCapacity sets how many children of one template may be rented over
// any range. Values below one are ignored.
func (db *DB) SetMobileCapacity(n int) {
	if n > 0 {
		db.mobileCap = n
	}
}

func (db *DB) MobileCapacity() int { return db.mobileCap }

// Conn exposes the resilient executor, e.g. for the migration tool.
func (db *DB) Conn() *Conn { return db.conn }

func (db *DB) Dialect() *Dialect { return db.conn.Dialect() }

func (db *DB) Ping(ctx context.Context) error {
	var one int
	return db.conn.GetContext(ctx, &one, "SELECT 1")
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func validateRange(start, end models.Date) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
