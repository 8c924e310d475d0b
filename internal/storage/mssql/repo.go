// Package mssql implements storage.Repository for Microsoft SQL Server
// over database/sql and the "sqlserver" driver.
//
// Dialect notes:
//   - The default namespace maps to "dbo".
//   - Upserts use MERGE; there is no ON CONFLICT.
//   - Serial keys become plain BIGINT PRIMARY KEY rather than IDENTITY,
//     because the loader always supplies key values explicitly and
//     IDENTITY columns reject explicit inserts.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"csvpg/internal/schema"
	"csvpg/internal/storage"
)

// Repo implements storage.Repository for SQL Server.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlserver", New)
}

// New opens a connection and verifies it with a ping.
//
// Conservative pool defaults for bursty batch loads.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(64)
	db.SetMaxIdleConns(64)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// TableExists reports whether namespace.table is present in the catalog.
func (r *Repo) TableExists(ctx context.Context, namespace, table string) (bool, error) {
	const q = `
		SELECT CASE WHEN EXISTS (
			SELECT 1 FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		) THEN 1 ELSE 0 END`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, nsFor(namespace), table).Scan(&exists); err != nil {
		return false, fmt.Errorf("mssql: table exists %s.%s: %w", nsFor(namespace), table, err)
	}
	return exists, nil
}

// ExistingColumns returns the column names of an existing table.
func (r *Repo) ExistingColumns(ctx context.Context, namespace, table string) (map[string]bool, error) {
	const q = `
		SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2`
	rows, err := r.db.QueryContext(ctx, q, nsFor(namespace), table)
	if err != nil {
		return nil, fmt.Errorf("mssql: columns of %s.%s: %w", nsFor(namespace), table, err)
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

// CreateTable ensures the schema exists, then runs the dialect DDL.
func (r *Repo) CreateTable(ctx context.Context, s *schema.Schema) error {
	ns := nsFor(s.Namespace)
	if ns != "dbo" {
		ddl := fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC(N'%s')",
			escapeLiteral(ns), escapeLiteral("CREATE SCHEMA "+mssqlIdent(ns)))
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("mssql: create schema %s: %w", ns, err)
		}
	}
	if _, err := r.db.ExecContext(ctx, createSQL(s)); err != nil {
		return fmt.Errorf("mssql: create table %s.%s: %w", ns, s.Table, err)
	}
	return nil
}

// DropTable removes namespace.table when it exists.
func (r *Repo) DropTable(ctx context.Context, namespace, table string) error {
	ddl := "DROP TABLE IF EXISTS " + mssqlIdent(nsFor(namespace)) + "." + mssqlIdent(table)
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("mssql: drop table %s.%s: %w", nsFor(namespace), table, err)
	}
	return nil
}

// OpenInsert begins the load transaction.
func (r *Repo) OpenInsert(ctx context.Context, plan storage.InsertPlan) (storage.Loader, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mssql: begin insert: %w", err)
	}
	return &loader{tx: tx, plan: plan}, nil
}

type loader struct {
	tx   *sql.Tx
	plan storage.InsertPlan
}

// Write executes one statement per batch: a MERGE when the plan carries
// a key, otherwise a multi-row INSERT.
func (l *loader) Write(ctx context.Context, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var (
		stmt string
		args []any
	)
	if l.plan.Upsert() {
		stmt, args = buildMergeSQL(l.plan, rows)
	} else {
		stmt, args = buildInsertSQL(l.plan, rows)
	}
	res, err := l.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (l *loader) Commit(context.Context) error   { return l.tx.Commit() }
func (l *loader) Rollback(context.Context) error { return l.tx.Rollback() }

// nsFor maps the engine's default namespace onto SQL Server's dbo.
func nsFor(ns string) string {
	if ns == "" || ns == schema.DefaultNamespace {
		return "dbo"
	}
	return ns
}
