package postgres

import (
	"context"
	"fmt"
	"strings"

	"csvpg/internal/infer"
	"csvpg/internal/schema"
)

// DescribeTable reconstructs a schema from the live catalog. Column
// order follows ordinal_position; constraints come back in the fixed
// order PRIMARY KEY, UNIQUE, NOT NULL, DEFAULT so descriptions compare
// stably.
func (r *Repo) DescribeTable(ctx context.Context, namespace, table string) (*schema.Schema, error) {
	ns := nsOrDefault(namespace)

	const colQ = `
		SELECT
			column_name,
			data_type,
			character_maximum_length,
			numeric_precision,
			numeric_scale,
			is_nullable,
			column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := r.pool.Query(ctx, colQ, ns, table)
	if err != nil {
		return nil, fmt.Errorf("postgres: describe %s.%s: %w", ns, table, err)
	}
	defer rows.Close()

	type colInfo struct {
		name, dataType string
		charLen        *int
		precision      *int
		scale          *int
		nullable       string
		def            *string
	}
	var cols []colInfo
	for rows.Next() {
		var c colInfo
		if err := rows.Scan(&c.name, &c.dataType, &c.charLen, &c.precision, &c.scale, &c.nullable, &c.def); err != nil {
			return nil, fmt.Errorf("postgres: describe %s.%s: %w", ns, table, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: describe %s.%s: %w", ns, table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("postgres: table %s.%s not found", ns, table)
	}

	constraints, err := r.tableConstraints(ctx, ns, table)
	if err != nil {
		return nil, err
	}

	s := schema.New(table, ns)
	s.Source = schema.Source{Type: schema.SourceTable, Detail: ns + "." + table}

	for _, c := range cols {
		col := schema.Column{
			Name: c.name,
			Tag:  infer.ParseTag(catalogType(c.dataType, c.charLen, c.precision, c.scale)),
		}
		kinds := constraints[c.name]
		if kinds["PRIMARY KEY"] {
			col.Constraints = append(col.Constraints, "PRIMARY KEY")
		}
		if kinds["UNIQUE"] {
			col.Constraints = append(col.Constraints, "UNIQUE")
		}
		if c.nullable == "NO" {
			col.Constraints = append(col.Constraints, "NOT NULL")
		}
		if c.def != nil && *c.def != "" {
			col.Constraints = append(col.Constraints, "DEFAULT "+*c.def)
		}
		s.AddColumn(col)
	}
	return s, nil
}

// tableConstraints maps column name to the set of constraint types
// declared on it (PRIMARY KEY, UNIQUE, FOREIGN KEY).
func (r *Repo) tableConstraints(ctx context.Context, ns, table string) (map[string]map[string]bool, error) {
	const q = `
		SELECT tc.constraint_type, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2`

	rows, err := r.pool.Query(ctx, q, ns, table)
	if err != nil {
		return nil, fmt.Errorf("postgres: constraints of %s.%s: %w", ns, table, err)
	}
	defer rows.Close()

	out := make(map[string]map[string]bool)
	for rows.Next() {
		var kind, col string
		if err := rows.Scan(&kind, &col); err != nil {
			return nil, fmt.Errorf("postgres: constraints of %s.%s: %w", ns, table, err)
		}
		if out[col] == nil {
			out[col] = make(map[string]bool)
		}
		out[col][kind] = true
	}
	return out, rows.Err()
}

// catalogType rebuilds a DDL type string from information_schema fields.
//
// The catalog reports base names ("character varying", "numeric") with
// sizing in separate columns. Character lengths always decorate the
// type; precision and scale decorate only NUMERIC and DECIMAL, because
// for integer and float types the catalog reports storage width, and
// echoing that back ("INTEGER(32)") is not valid DDL.
func catalogType(dataType string, charLen, precision, scale *int) string {
	t := strings.ToUpper(dataType)

	switch {
	case charLen != nil && *charLen > 0:
		t = fmt.Sprintf("%s(%d)", t, *charLen)
	case t == "NUMERIC" || t == "DECIMAL":
		if precision != nil && *precision > 0 {
			if scale != nil && *scale > 0 {
				t = fmt.Sprintf("%s(%d,%d)", t, *precision, *scale)
			} else {
				t = fmt.Sprintf("%s(%d)", t, *precision)
			}
		}
	}

	// information_schema reports every array type as ARRAY; the engine
	// only ever creates text arrays.
	if t == "ARRAY" {
		return "TEXT[]"
	}
	return strings.Replace(t, "CHARACTER VARYING", "VARCHAR", 1)
}
