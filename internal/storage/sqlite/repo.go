// Package sqlite implements storage.Repository on modernc.org/sqlite, a
// pure-Go driver, so local imports work without a server.
//
// SQLite has no namespaces; the namespace argument is accepted and
// ignored. Types are stored by affinity, so timestamps are bound as
// RFC3339Nano strings and arrays as ";"-joined text for reliable
// round-trips.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"csvpg/internal/infer"
	"csvpg/internal/schema"
	"csvpg/internal/storage"
)

// Repo implements storage.Repository for SQLite.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database file named by the DSN and verifies it with a
// ping.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// TableExists reports whether the table is present in sqlite_master.
func (r *Repo) TableExists(ctx context.Context, _ string, table string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("sqlite: table exists %s: %w", table, err)
	}
	return exists, nil
}

// ExistingColumns returns the column names of an existing table.
func (r *Repo) ExistingColumns(ctx context.Context, _ string, table string) (map[string]bool, error) {
	const q = `SELECT name FROM pragma_table_info(?)`
	rows, err := r.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: columns of %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

// DescribeTable reconstructs a schema from table_info and index_list
// pragmas. Declared types round-trip through the tag parser; constraint
// order is PRIMARY KEY, UNIQUE, NOT NULL, DEFAULT.
func (r *Repo) DescribeTable(ctx context.Context, namespace, table string) (*schema.Schema, error) {
	const q = `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`
	rows, err := r.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: describe %s: %w", table, err)
	}
	defer rows.Close()

	type colInfo struct {
		name, typ string
		notNull   bool
		def       sql.NullString
		pk        int
	}
	var cols []colInfo
	for rows.Next() {
		var c colInfo
		if err := rows.Scan(&c.name, &c.typ, &c.notNull, &c.def, &c.pk); err != nil {
			return nil, fmt.Errorf("sqlite: describe %s: %w", table, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: describe %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlite: table %s not found", table)
	}

	unique, err := r.uniqueColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	s := schema.New(table, namespace)
	s.Source = schema.Source{Type: schema.SourceTable, Detail: table}

	for _, c := range cols {
		col := schema.Column{Name: c.name, Tag: infer.ParseTag(c.typ)}
		if c.pk > 0 {
			col.Constraints = append(col.Constraints, "PRIMARY KEY")
		}
		if unique[c.name] {
			col.Constraints = append(col.Constraints, "UNIQUE")
		}
		if c.notNull {
			col.Constraints = append(col.Constraints, "NOT NULL")
		}
		if c.def.Valid && c.def.String != "" {
			col.Constraints = append(col.Constraints, "DEFAULT "+c.def.String)
		}
		s.AddColumn(col)
	}
	return s, nil
}

// uniqueColumns returns the columns covered by a single-column unique
// index. Multi-column indexes are skipped: they cannot serve as an
// upsert conflict target for one key column.
func (r *Repo) uniqueColumns(ctx context.Context, table string) (map[string]bool, error) {
	const q = `SELECT name FROM pragma_index_list(?) WHERE "unique" = 1`
	rows, err := r.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		indexes = append(indexes, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]bool)
	for _, idx := range indexes {
		cols, err := r.indexColumns(ctx, idx)
		if err != nil {
			return nil, err
		}
		if len(cols) == 1 {
			out[cols[0]] = true
		}
	}
	return out, nil
}

func (r *Repo) indexColumns(ctx context.Context, index string) ([]string, error) {
	const q = `SELECT name FROM pragma_index_info(?)`
	rows, err := r.db.QueryContext(ctx, q, index)
	if err != nil {
		return nil, fmt.Errorf("sqlite: index %s: %w", index, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if name.Valid {
			out = append(out, name.String)
		}
	}
	return out, rows.Err()
}

// CreateTable runs the dialect-mapped DDL.
func (r *Repo) CreateTable(ctx context.Context, s *schema.Schema) error {
	if _, err := r.db.ExecContext(ctx, createSQL(s)); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", s.Table, err)
	}
	return nil
}

// DropTable removes the table when it exists.
func (r *Repo) DropTable(ctx context.Context, _ string, table string) error {
	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+schema.QuoteIdent(table)); err != nil {
		return fmt.Errorf("sqlite: drop table %s: %w", table, err)
	}
	return nil
}

// OpenInsert begins the load transaction.
func (r *Repo) OpenInsert(ctx context.Context, plan storage.InsertPlan) (storage.Loader, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin insert: %w", err)
	}
	return &loader{tx: tx, plan: plan}, nil
}

type loader struct {
	tx   *sql.Tx
	plan storage.InsertPlan
}

// Write executes one multi-row INSERT for the batch.
func (l *loader) Write(ctx context.Context, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sqlText, args := buildInsertSQL(l.plan, rows)
	res, err := l.tx.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (l *loader) Commit(context.Context) error   { return l.tx.Commit() }
func (l *loader) Rollback(context.Context) error { return l.tx.Rollback() }
