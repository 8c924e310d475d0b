package importer

import (
	"context"
	"fmt"
	"strings"

	"csvpg/internal/naming"
	"csvpg/internal/schema"
	"csvpg/internal/storage"
)

// buildPlan decides between plain inserts and an upsert keyed on
// primaryKey. Upserts are only planned when the key column carries a
// provable uniqueness guarantee. When this run created the table the
// in-memory schema is the table, so its constraints count as proof; when
// appending to a pre-existing table only the live catalog counts, since
// the in-memory constraint is just the caller's assertion. Without proof
// the plan degrades to plain inserts and the returned warning says why.
//
// On conflict every non-key data column is rewritten from the incoming
// row and updated_at is touched; created_at keeps its original value.
func buildPlan(ctx context.Context, repo storage.Repository, s *schema.Schema, primaryKey string, tableCreated bool) (storage.InsertPlan, string) {
	plan := storage.InsertPlan{
		Namespace: s.Namespace,
		Table:     s.Table,
		Columns:   s.ColumnNames(),
	}
	if primaryKey == "" {
		return plan, ""
	}

	key := naming.Normalize(primaryKey)
	col := s.Column(key)
	if col == nil {
		return plan, fmt.Sprintf("primary key %q is not a column of %s; falling back to plain INSERT", key, s.QualifiedName())
	}

	unique := false
	if tableCreated {
		unique = col.IsUnique()
	} else if repo != nil {
		if live, err := repo.DescribeTable(ctx, s.Namespace, s.Table); err == nil {
			if lc := live.Column(key); lc != nil {
				unique = lc.IsUnique()
			}
		}
	}
	if !unique {
		return plan, fmt.Sprintf("column %q has no PRIMARY KEY or UNIQUE constraint on %s; falling back to plain INSERT", key, s.QualifiedName())
	}

	plan.Key = key
	for _, name := range plan.Columns {
		if name == key || name == schema.CreatedAtColumn || name == schema.UpdatedAtColumn {
			continue
		}
		plan.UpdateColumns = append(plan.UpdateColumns, name)
	}
	if s.HasColumn(schema.UpdatedAtColumn) {
		plan.TouchColumn = schema.UpdatedAtColumn
	}
	return plan, ""
}

// SplitTableRef splits an optionally qualified "namespace.table"
// reference, falling back to defaultNamespace (or public) when the
// reference is bare.
func SplitTableRef(ref, defaultNamespace string) (namespace, table string) {
	if ns, t, ok := strings.Cut(ref, "."); ok {
		return ns, t
	}
	if defaultNamespace == "" {
		defaultNamespace = schema.DefaultNamespace
	}
	return defaultNamespace, ref
}
