package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"billboard/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectRebind(t *testing.T) {
	q := "SELECT id FROM rezervari WHERE loc_id = ? AND data_start <= ?"
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t, "SELECT id FROM rezervari WHERE loc_id = $1 AND data_start <= $2", Postgres.Rebind(q))
}

func TestDialectDDL(t *testing.T) {
	stmt := "CREATE TABLE x (id {pk}, v {real}, f {bool})"
	assert.Equal(t, "CREATE TABLE x (id SERIAL PRIMARY KEY, v DOUBLE PRECISION, f BOOLEAN NOT NULL DEFAULT FALSE)", Postgres.DDL(stmt))
	assert.Contains(t, MySQL.DDL(stmt), "INT AUTO_INCREMENT PRIMARY KEY")
	assert.Contains(t, SQLite.DDL(stmt), "INTEGER PRIMARY KEY AUTOINCREMENT")
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	d, err = DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestIsConnectionLost(t *testing.T) {
	tests := []struct {
		name    string
		dialect *Dialect
		err     error
		want    bool
	}{
		{"nil", SQLite, nil, false},
		{"eof", SQLite, fmt.Errorf("read: %w", io.EOF), true},
		{"closed pool", SQLite, errors.New("sql: database is closed"), true},
		{"canceled", MySQL, context.Canceled, false},
		{"domain error", SQLite, ErrOverlap, false},
		{"mysql gone away", MySQL, &mysql.MySQLError{Number: 2006, Message: "MySQL server has gone away"}, true},
		{"mysql duplicate key", MySQL, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, false},
		{"mysql invalid conn", MySQL, mysql.ErrInvalidConn, true},
		{"pq connection failure", Postgres, &pq.Error{Code: "08006"}, true},
		{"pq admin shutdown", Postgres, &pq.Error{Code: "57P01"}, true},
		{"pq unique violation", Postgres, &pq.Error{Code: "23505"}, false},
		{"pq code on mysql", MySQL, &pq.Error{Code: "08006"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.IsConnectionLost(tt.err))
		})
	}
}

func TestConnReconnect(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	loc := createFixed(t, db, "BB-1")

	stale := db.conn.Handle()
	require.NoError(t, stale.Close())

	// the fresh in-memory database is migrated but empty
	_, err := db.GetLocation(ctx, loc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotSame(t, stale, db.conn.Handle())

	require.NoError(t, db.Ping(ctx))
	firms, err := db.ListFirms(ctx)
	require.NoError(t, err)
	assert.Len(t, firms, len(models.DefaultFirms))
}

func TestConnClosedDoesNotReconnect(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Close())

	err := db.Ping(context.Background())
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestWithTxRollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.conn.WithTx(ctx, func(ex Executor) error {
		_, err := ex.InsertContext(ctx, `INSERT INTO firme (nume) VALUES (?)`, "Rolled Back SRL")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	firms, err := db.ListFirms(ctx)
	require.NoError(t, err)
	for _, f := range firms {
		assert.NotEqual(t, "Rolled Back SRL", f.Name)
	}
}
