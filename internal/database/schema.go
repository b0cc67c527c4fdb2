package database

import (
	"context"
	"database/sql"
	"fmt"

	"billboard/internal/models"

	"github.com/jmoiron/sqlx"
)

var tables = []string{
	`CREATE TABLE IF NOT EXISTS locatii (
		id {pk},
		city VARCHAR(255),
		county VARCHAR(255),
		address TEXT,
		type VARCHAR(64),
		gps VARCHAR(64),
		code VARCHAR(64),
		size VARCHAR(64),
		photo_link TEXT,
		sqm {real},
		illumination VARCHAR(64),
		ratecard {real},
		pret_vanzare {real},
		pret_flotant {real},
		decoration_cost {real},
		observatii TEXT,
		status VARCHAR(32) DEFAULT 'Disponibil',
		client TEXT,
		client_id INTEGER,
		data_start VARCHAR(10),
		data_end VARCHAR(10),
		grup VARCHAR(255),
		face VARCHAR(32),
		is_mobile {bool},
		parent_id INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS clienti (
		id {pk},
		nume VARCHAR(255) NOT NULL UNIQUE,
		tip VARCHAR(16) DEFAULT 'direct',
		cui VARCHAR(64),
		adresa TEXT,
		contact TEXT,
		email VARCHAR(255),
		phone VARCHAR(64),
		observatii TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS firme (
		id {pk},
		nume VARCHAR(255) NOT NULL UNIQUE,
		cui VARCHAR(64),
		adresa TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS rezervari (
		id {pk},
		loc_id INTEGER NOT NULL,
		client TEXT NOT NULL,
		client_id INTEGER,
		data_start VARCHAR(10) NOT NULL,
		data_end VARCHAR(10) NOT NULL,
		suma {real},
		created_by VARCHAR(255),
		created_on VARCHAR(10),
		campaign TEXT,
		firma_id INTEGER,
		decor_cost {real},
		prod_cost {real}
	)`,
	`CREATE TABLE IF NOT EXISTS decorari (
		id {pk},
		loc_id INTEGER NOT NULL,
		rez_id INTEGER,
		data VARCHAR(10) NOT NULL,
		decor_cost {real},
		prod_cost {real},
		created_by VARCHAR(255)
	)`,
}

var indexes = []struct{ table, name, columns string }{
	{"rezervari", "idx_rezervari_loc", "loc_id"},
	{"rezervari", "idx_rezervari_period", "data_start, data_end"},
	{"locatii", "idx_locatii_parent", "parent_id"},
	{"locatii", "idx_locatii_code", "code"},
	{"decorari", "idx_decorari_rez", "rez_id"},
}

func migrate(ctx context.Context, db *sqlx.DB, dialect *Dialect) error {
	ex := &plainExec{db: db, dialect: dialect}

	for _, stmt := range tables {
		if _, err := ex.ExecContext(ctx, dialect.DDL(stmt)); err != nil {
			return err
		}
	}
	for _, idx := range indexes {
		if err := dialect.ensureIdx(ctx, ex, idx.table, idx.name, idx.columns); err != nil {
			return fmt.Errorf("index %s: %w", idx.name, err)
		}
	}
	return seedFirms(ctx, ex)
}

func seedFirms(ctx context.Context, ex Executor) error {
	var count int
	if err := ex.GetContext(ctx, &count, `SELECT COUNT(*) FROM firme`); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, name := range models.DefaultFirms {
		if _, err := ex.ExecContext(ctx, `INSERT INTO firme (nume) VALUES (?)`, name); err != nil {
			return fmt.Errorf("seed firm %q: %w", name, err)
		}
	}
	return nil
}

// plainExec runs statements on a pool without reconnect handling. Used while
// the pool is being opened.
type plainExec struct {
	db      *sqlx.DB
	dialect *Dialect
}

func (p *plainExec) Dialect() *Dialect { return p.dialect }

func (p *plainExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.db.ExecContext(ctx, p.dialect.Rebind(query), args...)
}

func (p *plainExec) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return p.db.GetContext(ctx, dest, p.dialect.Rebind(query), args...)
}

func (p *plainExec) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return p.db.SelectContext(ctx, dest, p.dialect.Rebind(query), args...)
}

func (p *plainExec) InsertContext(ctx context.Context, query string, args ...any) (int64, error) {
	return insert(ctx, p.db, p.dialect, query, args...)
}
