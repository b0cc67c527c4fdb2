package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"billboard/internal/models"
)

const clientColumns = `id, nume, COALESCE(tip, 'direct') AS tip, COALESCE(cui, '') AS cui,
	COALESCE(adresa, '') AS adresa, COALESCE(contact, '') AS contact, COALESCE(email, '') AS email,
	COALESCE(phone, '') AS phone, COALESCE(observatii, '') AS observatii`

func (db *DB) GetClientByName(ctx context.Context, name string) (*models.Client, error) {
	var c models.Client
	err := db.conn.GetContext(ctx, &c, `SELECT `+clientColumns+` FROM clienti WHERE nume = ?`, strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client %q: %w", name, err)
	}
	return &c, nil
}

func (db *DB) CreateClient(ctx context.Context, c *models.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return ErrClientRequired
	}
	if c.Type == "" {
		c.Type = models.ClientDirect
	}
	id, err := db.conn.InsertContext(ctx,
		`INSERT INTO clienti (nume, tip, cui, adresa, contact, email, phone, observatii) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Type, nullString(c.CUI), nullString(c.Address), nullString(c.Contact),
		nullString(c.Email), nullString(c.Phone), nullString(c.Notes))
	if err != nil {
		return fmt.Errorf("failed to create client %q: %w", c.Name, err)
	}
	c.ID = id
	return nil
}

// ResolveClient returns the client with this name, creating a direct client
// when none exists.
func (db *DB) ResolveClient(ctx context.Context, name string) (*models.Client, error) {
	c, err := db.GetClientByName(ctx, name)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return c, err
	}
	c = &models.Client{Name: name, Type: models.ClientDirect}
	if err := db.CreateClient(ctx, c); err != nil {
		// lost a race against another writer creating the same name
		if existing, gerr := db.GetClientByName(ctx, name); gerr == nil {
			return existing, nil
		}
		return nil, err
	}
	return c, nil
}

func (db *DB) ListClients(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	if err := db.conn.SelectContext(ctx, &clients, `SELECT `+clientColumns+` FROM clienti ORDER BY nume`); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// ResolveFirm returns the firm with this name, creating it when missing.
func (db *DB) ResolveFirm(ctx context.Context, name string) (*models.Firm, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("firm name: %w", ErrNotFound)
	}
	var f models.Firm
	err := db.conn.GetContext(ctx, &f,
		`SELECT id, nume, COALESCE(cui, '') AS cui, COALESCE(adresa, '') AS adresa FROM firme WHERE nume = ?`, name)
	if err == nil {
		return &f, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get firm %q: %w", name, err)
	}
	id, err := db.conn.InsertContext(ctx, `INSERT INTO firme (nume) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create firm %q: %w", name, err)
	}
	return &models.Firm{ID: id, Name: name}, nil
}

func (db *DB) ListFirms(ctx context.Context) ([]models.Firm, error) {
	var firms []models.Firm
	err := db.conn.SelectContext(ctx, &firms,
		`SELECT id, nume, COALESCE(cui, '') AS cui, COALESCE(adresa, '') AS adresa FROM firme ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list firms: %w", err)
	}
	return firms, nil
}
