package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Column describes one column of a published table.
type Column struct {
	Name string
	Type string
}

// TableSpec is a table created on demand and refreshed wholesale.
type TableSpec struct {
	Table   string
	Columns []Column
}

func (s TableSpec) names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// createSQL returns the CREATE TABLE IF NOT EXISTS statement for s.
func (s TableSpec) createSQL() string {
	defs := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		defs[i] = fmt.Sprintf("%s %s NOT NULL", pgx.Identifier{c.Name}.Sanitize(), c.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sanitizeTable(s.Table), strings.Join(defs, ", "))
}

// ReplaceTable makes the table's contents exactly rows, in one transaction:
//  1. Creates the table if missing
//  2. Deletes every existing row
//  3. COPY rows in
//
// Readers see either the old or the new contents, never a mix.
func ReplaceTable(ctx context.Context, pool Pool, spec TableSpec, rows [][]any) (int64, error) {
	if spec.Table == "" {
		return 0, eris.New("db: replace: no table specified")
	}
	if len(spec.Columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, spec.createSQL()); err != nil {
		return 0, eris.Wrapf(err, "db: replace: create %s", spec.Table)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM "+sanitizeTable(spec.Table)); err != nil {
		return 0, eris.Wrapf(err, "db: replace: clear %s", spec.Table)
	}

	n, err := CopyFrom(ctx, tx, spec.Table, spec.names(), rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}

	return n, nil
}
