package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"billboard/internal/config"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// Dialect holds what differs between the supported backends. Queries are
// written once with '?' placeholders and rebound per dialect.
type Dialect struct {
	Name      string
	bindType  int
	pk        string
	real      string
	boolean   string
	forUpdate string
	returning bool
	connLost  func(error) bool
	ensureIdx func(ctx context.Context, ex Executor, table, name, columns string) error
}

var (
	SQLite = &Dialect{
		Name:      config.DriverSQLite,
		bindType:  sqlx.QUESTION,
		pk:        "INTEGER PRIMARY KEY AUTOINCREMENT",
		real:      "REAL",
		boolean:   "INTEGER NOT NULL DEFAULT 0",
		ensureIdx: createIndexIfNotExists,
	}

	MySQL = &Dialect{
		Name:      config.DriverMySQL,
		bindType:  sqlx.QUESTION,
		pk:        "INT AUTO_INCREMENT PRIMARY KEY",
		real:      "DOUBLE",
		boolean:   "TINYINT(1) NOT NULL DEFAULT 0",
		forUpdate: " FOR UPDATE",
		connLost:  mysqlConnLost,
		ensureIdx: mysqlEnsureIndex,
	}

	Postgres = &Dialect{
		Name:      config.DriverPostgres,
		bindType:  sqlx.DOLLAR,
		pk:        "SERIAL PRIMARY KEY",
		real:      "DOUBLE PRECISION",
		boolean:   "BOOLEAN NOT NULL DEFAULT FALSE",
		forUpdate: " FOR UPDATE",
		returning: true,
		connLost:  postgresConnLost,
		ensureIdx: createIndexIfNotExists,
	}
)

// DialectFor returns the dialect registered under a database/sql driver name.
func DialectFor(driverName string) (*Dialect, error) {
	switch driverName {
	case config.DriverSQLite, "":
		return SQLite, nil
	case config.DriverMySQL:
		return MySQL, nil
	case config.DriverPostgres:
		return Postgres, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}
}

// Rebind converts '?' placeholders to the backend's bind variables.
func (d *Dialect) Rebind(query string) string {
	return sqlx.Rebind(d.bindType, query)
}

// DDL fills the {pk}, {real} and {bool} markers of a table definition.
func (d *Dialect) DDL(stmt string) string {
	return strings.NewReplacer("{pk}", d.pk, "{real}", d.real, "{bool}", d.boolean).Replace(stmt)
}

// IsConnectionLost reports whether err means the server or socket went away,
// as opposed to a query, constraint or domain error.
func (d *Dialect) IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	// database/sql does not export the error returned after DB.Close.
	if strings.Contains(err.Error(), "sql: database is closed") {
		return true
	}
	return d.connLost != nil && d.connLost(err)
}

// MySQL client errors: 2006 server gone away, 2013 lost connection during
// query, 2055 lost connection at handshake. 1053 and 1927 are sent by a
// server that is shutting down or killed the session.
var mysqlLostCodes = map[uint16]bool{1053: true, 1927: true, 2006: true, 2013: true, 2055: true}

func mysqlConnLost(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlLostCodes[myErr.Number]
	}
	return false
}

// PostgreSQL: SQLSTATE class 08 is connection exception, 57P01..57P03 are
// administrator shutdown, crash shutdown and cannot connect now.
func postgresConnLost(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code.Class() == "08" {
		return true
	}
	switch pqErr.Code {
	case "57P01", "57P02", "57P03":
		return true
	}
	return false
}

func createIndexIfNotExists(ctx context.Context, ex Executor, table, name, columns string) error {
	_, err := ex.ExecContext(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, table, columns))
	return err
}

// MySQL has no CREATE INDEX IF NOT EXISTS.
func mysqlEnsureIndex(ctx context.Context, ex Executor, table, name, columns string) error {
	var count int
	err := ex.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM information_schema.statistics
		 WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`, table, name)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err = ex.ExecContext(ctx, fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, table, columns))
	return err
}

// MySQLDSN builds a go-sql-driver DSN from config.
func MySQLDSN(cfg config.MySQLConfig) string {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c.DBName = cfg.DBName
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// PostgresDSN builds a lib/pq keyword/value DSN from config.
func PostgresDSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, quoteDSN(cfg.Password), cfg.DBName, cfg.SSLMode)
}

func quoteDSN(v string) string {
	if v == "" || strings.ContainsAny(v, ` '\`) {
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
	}
	return v
}
