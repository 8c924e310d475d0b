// Package storage defines the backend-agnostic repository surface the
// importer loads through, plus the factory registry backends hook into.
package storage

import (
	"context"
	"fmt"
	"sync"

	"csvpg/internal/schema"
)

// Config is the minimal configuration needed to open a repository.
//
// Driver must match a registered backend ("postgres", "sqlite",
// "sqlserver"). DSN is passed through to the backend factory; validation
// is backend-specific.
type Config struct {
	Driver string
	DSN    string
}

// InsertPlan describes one load destination. Row values handed to the
// loader align with Columns by position.
//
// Key selects the conflict column; when it is empty every batch is a
// plain INSERT. UpdateColumns are rewritten from the incoming row when
// the key collides, and TouchColumn (usually updated_at) is set to the
// database clock on those updates.
type InsertPlan struct {
	Namespace     string
	Table         string
	Columns       []string
	Key           string
	UpdateColumns []string
	TouchColumn   string
}

// Upsert reports whether batches resolve key collisions instead of
// failing on them.
func (p InsertPlan) Upsert() bool { return p.Key != "" }

// Loader writes row batches inside a single transaction. Nothing is
// visible to other connections until Commit; Rollback discards every
// batch written so far and is safe to defer after Commit.
type Loader interface {
	// Write appends one batch and reports the rows the statement touched.
	Write(ctx context.Context, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository is a backend-agnostic interface over one database.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the import flow needs. Each backend implements these
// semantics in its own idiomatic way (Postgres ON CONFLICT, SQLite
// upsert, SQL Server MERGE).
type Repository interface {
	// TableExists reports whether namespace.table is already present.
	TableExists(ctx context.Context, namespace, table string) (bool, error)

	// ExistingColumns returns the column names of an existing table as a
	// membership set.
	ExistingColumns(ctx context.Context, namespace, table string) (map[string]bool, error)

	// DescribeTable reconstructs a schema from the live catalog: column
	// order, type spellings, and PRIMARY KEY / UNIQUE / NOT NULL / DEFAULT
	// constraints. Errors when the table does not exist.
	DescribeTable(ctx context.Context, namespace, table string) (*schema.Schema, error)

	// CreateTable runs the DDL for s, creating the namespace first when
	// the backend has namespaces and s names a non-default one.
	CreateTable(ctx context.Context, s *schema.Schema) error

	// DropTable removes namespace.table when it exists.
	DropTable(ctx context.Context, namespace, table string) error

	// OpenInsert begins the load transaction for plan. Every batch
	// written through the returned loader commits or rolls back together.
	OpenInsert(ctx context.Context, plan InsertPlan) (Loader, error)

	// Close releases connections. Treat as "call once" at shutdown.
	Close()
}

// ---- backend factories ----

// Factory opens a repository for a parsed Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
)

// Register registers a backend under a driver name (e.g. "postgres").
//
// Call Register from an init() function in a backend package. Registering
// the same driver more than once panics, to fail fast on ambiguous
// backend selection.
//
// Panics:
//   - If driver is empty.
//   - If f is nil.
//   - If driver is already registered.
func Register(driver string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if driver == "" {
		panic("storage: Register called with empty driver")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[driver]; exists {
		panic(fmt.Sprintf("storage: factory already registered for driver=%q", driver))
	}

	factories[driver] = f
}

// Drivers returns the registered driver names, unordered.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]string, 0, len(factories))
	for d := range factories {
		out = append(out, d)
	}
	return out
}

// New opens a repository using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Driver is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("storage: missing driver")
	}

	registryMu.RLock()
	f := factories[cfg.Driver]
	registryMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported driver=%s", cfg.Driver)
	}
	return f(ctx, cfg)
}
