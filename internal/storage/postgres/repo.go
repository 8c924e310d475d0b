// Package postgres implements storage.Repository on a pgx connection
// pool. It is the reference backend: the DDL generator emits Postgres
// spellings natively, so CreateTable runs them unchanged.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"csvpg/internal/schema"
	"csvpg/internal/storage"
)

// Repo implements storage.Repository for PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New opens a connection pool and verifies it with a ping so a bad DSN
// fails at startup, not on the first batch.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() { r.pool.Close() }

// TableExists reports whether namespace.table is present in the catalog.
func (r *Repo) TableExists(ctx context.Context, namespace, table string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, nsOrDefault(namespace), table).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: table exists %s.%s: %w", nsOrDefault(namespace), table, err)
	}
	return exists, nil
}

// ExistingColumns returns the column names of an existing table.
func (r *Repo) ExistingColumns(ctx context.Context, namespace, table string) (map[string]bool, error) {
	const q = `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2`
	rows, err := r.pool.Query(ctx, q, nsOrDefault(namespace), table)
	if err != nil {
		return nil, fmt.Errorf("postgres: columns of %s.%s: %w", nsOrDefault(namespace), table, err)
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

// CreateTable ensures the namespace exists, then runs the schema DDL.
func (r *Repo) CreateTable(ctx context.Context, s *schema.Schema) error {
	if ns := nsOrDefault(s.Namespace); ns != schema.DefaultNamespace {
		ddl := "CREATE SCHEMA IF NOT EXISTS " + schema.QuoteIdent(ns)
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres: create schema %s: %w", ns, err)
		}
	}
	if _, err := r.pool.Exec(ctx, s.CreateSQL()); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", s.QualifiedName(), err)
	}
	return nil
}

// DropTable drops namespace.table when it exists.
func (r *Repo) DropTable(ctx context.Context, namespace, table string) error {
	ddl := fmt.Sprintf("DROP TABLE IF EXISTS %s.%s",
		schema.QuoteIdent(nsOrDefault(namespace)), schema.QuoteIdent(table))
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: drop table %s.%s: %w", nsOrDefault(namespace), table, err)
	}
	return nil
}

// OpenInsert begins the load transaction. Batches written through the
// returned loader become visible together at Commit.
func (r *Repo) OpenInsert(ctx context.Context, plan storage.InsertPlan) (storage.Loader, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin insert: %w", err)
	}
	return &loader{tx: tx, plan: plan}, nil
}

type loader struct {
	tx   pgx.Tx
	plan storage.InsertPlan
}

// Write executes one multi-row INSERT for the batch.
func (l *loader) Write(ctx context.Context, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sql, args := buildInsertSQL(l.plan, rows)
	cmd, err := l.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (l *loader) Commit(ctx context.Context) error { return l.tx.Commit(ctx) }

// Rollback discards the transaction. After Commit it reports the closed
// transaction, which deferred callers ignore.
func (l *loader) Rollback(ctx context.Context) error { return l.tx.Rollback(ctx) }

func nsOrDefault(ns string) string {
	if ns == "" {
		return schema.DefaultNamespace
	}
	return ns
}
