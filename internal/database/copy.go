package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// copyOrder lists the tables parents first.
var copyOrder = []string{"locatii", "clienti", "firme", "rezervari", "decorari"}

// CopyResult counts the rows copied per table.
type CopyResult map[string]int

// CopyOptions tunes CopyTables.
type CopyOptions struct {
	// AllowEmpty lets a source without locations clear the target.
	AllowEmpty bool
}

// CopyTables replaces the contents of dst with the rows of src, keeping ids.
// Everything is written in one transaction on dst. A source without locations
// is refused unless opts.AllowEmpty is set.
func CopyTables(ctx context.Context, src, dst *DB, opts CopyOptions) (CopyResult, error) {
	data := make(map[string][]map[string]any, len(copyOrder))
	for _, table := range copyOrder {
		rows, err := readTable(ctx, src.conn.Handle(), table)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		data[table] = rows
	}
	if len(data["locatii"]) == 0 && !opts.AllowEmpty {
		return nil, ErrEmptySource
	}

	result := make(CopyResult, len(copyOrder))
	err := dst.conn.WithTx(ctx, func(ex Executor) error {
		for i := len(copyOrder) - 1; i >= 0; i-- {
			if _, err := ex.ExecContext(ctx, `DELETE FROM `+copyOrder[i]); err != nil {
				return fmt.Errorf("clear %s: %w", copyOrder[i], err)
			}
		}
		for _, table := range copyOrder {
			for _, row := range data[table] {
				if err := insertRow(ctx, ex, table, row); err != nil {
					return fmt.Errorf("copy %s row %v: %w", table, row["id"], err)
				}
			}
			result[table] = len(data[table])
			if ex.Dialect() == Postgres {
				if err := resetSequence(ctx, ex, table); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func readTable(ctx context.Context, db *sqlx.DB, table string) ([]map[string]any, error) {
	rows, err := db.QueryxContext(ctx, `SELECT * FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func insertRow(ctx context.Context, ex Executor, table string, row map[string]any) error {
	cols := sortedKeys(row)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = row[c]
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, strings.Join(cols, ", "), marks)
	_, err := ex.ExecContext(ctx, query, args...)
	return err
}

// resetSequence moves a SERIAL sequence past the copied ids.
func resetSequence(ctx context.Context, ex Executor, table string) error {
	query := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)`, table, table)
	var next int64
	if err := ex.GetContext(ctx, &next, query); err != nil {
		return fmt.Errorf("reset %s sequence: %w", table, err)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
