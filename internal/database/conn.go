package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"billboard/internal/metrics"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Executor is the statement surface shared by a connection and a transaction.
// Queries use '?' placeholders; implementations rebind them for the backend.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	// InsertContext runs an INSERT and returns the generated id.
	InsertContext(ctx context.Context, query string, args ...any) (int64, error)
	Dialect() *Dialect
}

// Opener produces a fresh, ready-to-use handle. It is called at start-up and
// again whenever the connection is found to be lost.
type Opener func(ctx context.Context) (*sqlx.DB, error)

// Conn is an Executor over a pool that reconnects once and replays the failed
// statement when the backend reports a lost connection.
type Conn struct {
	mu      sync.RWMutex
	db      *sqlx.DB
	open    Opener
	dialect *Dialect
	logger  *zerolog.Logger
	closed  bool
}

func NewConn(ctx context.Context, dialect *Dialect, open Opener, logger *zerolog.Logger) (*Conn, error) {
	db, err := open(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{db: db, open: open, dialect: dialect, logger: logger}, nil
}

func (c *Conn) Dialect() *Dialect { return c.dialect }

// Handle returns the current pool. It may be replaced after a reconnect.
func (c *Conn) Handle() *sqlx.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.db.Close()
}

func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = c.dialect.Rebind(query)
	var res sql.Result
	err := c.do(ctx, func(db *sqlx.DB) error {
		var err error
		res, err = db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

func (c *Conn) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	query = c.dialect.Rebind(query)
	return c.do(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, dest, query, args...)
	})
}

func (c *Conn) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	query = c.dialect.Rebind(query)
	return c.do(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, dest, query, args...)
	})
}

func (c *Conn) InsertContext(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := c.do(ctx, func(db *sqlx.DB) error {
		var err error
		id, err = insert(ctx, db, c.dialect, query, args...)
		return err
	})
	return id, err
}

// WithTx runs fn inside a single transaction. fn must use only the Executor it
// is given. If the connection is lost the transaction is rolled back and the
// whole function is retried once on a fresh connection.
func (c *Conn) WithTx(ctx context.Context, fn func(ex Executor) error) error {
	return c.do(ctx, func(db *sqlx.DB) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(&txExec{tx: tx, dialect: c.dialect}); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func (c *Conn) do(ctx context.Context, fn func(db *sqlx.DB) error) error {
	db := c.Handle()
	err := fn(db)
	if !c.dialect.IsConnectionLost(err) {
		return err
	}

	c.logger.Warn().Err(err).Str("driver", c.dialect.Name).Msg("Database connection lost, reconnecting")
	if rerr := c.reconnect(ctx, db); rerr != nil {
		metrics.IncReconnect("failed")
		c.logger.Error().Err(rerr).Str("driver", c.dialect.Name).Msg("Reconnect failed")
		return fmt.Errorf("%w: %v (reconnect: %v)", ErrConnectionLost, err, rerr)
	}
	metrics.IncReconnect("ok")

	err = fn(c.Handle())
	if c.dialect.IsConnectionLost(err) {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return err
}

// reconnect swaps in a fresh pool unless another caller already replaced stale.
func (c *Conn) reconnect(ctx context.Context, stale *sqlx.DB) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	if c.db != stale {
		return nil
	}
	fresh, err := c.open(ctx)
	if err != nil {
		return err
	}
	_ = stale.Close()
	c.db = fresh
	return nil
}

var errConnClosed = errors.New("connection closed by caller")

type txExec struct {
	tx      *sqlx.Tx
	dialect *Dialect
}

func (t *txExec) Dialect() *Dialect { return t.dialect }

func (t *txExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *txExec) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return t.tx.GetContext(ctx, dest, t.dialect.Rebind(query), args...)
}

func (t *txExec) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return t.tx.SelectContext(ctx, dest, t.dialect.Rebind(query), args...)
}

func (t *txExec) InsertContext(ctx context.Context, query string, args ...any) (int64, error) {
	return insert(ctx, t.tx, t.dialect, query, args...)
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

// PostgreSQL has no LastInsertId; the id comes back through RETURNING.
func insert(ctx context.Context, q queryer, d *Dialect, query string, args ...any) (int64, error) {
	if d.returning {
		var id int64
		if err := q.QueryRowxContext(ctx, d.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := q.ExecContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
