package mssql

import (
	"context"
	"fmt"
	"strings"

	"csvpg/internal/infer"
	"csvpg/internal/schema"
)

// DescribeTable reconstructs a schema from the live catalog. Column
// order follows ORDINAL_POSITION; constraints come back in the fixed
// order PRIMARY KEY, UNIQUE, NOT NULL, DEFAULT so descriptions compare
// stably.
func (r *Repo) DescribeTable(ctx context.Context, namespace, table string) (*schema.Schema, error) {
	ns := nsFor(namespace)

	const colQ = `
		SELECT
			COLUMN_NAME,
			DATA_TYPE,
			CHARACTER_MAXIMUM_LENGTH,
			NUMERIC_PRECISION,
			NUMERIC_SCALE,
			IS_NULLABLE,
			COLUMN_DEFAULT
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`

	rows, err := r.db.QueryContext(ctx, colQ, ns, table)
	if err != nil {
		return nil, fmt.Errorf("mssql: describe %s.%s: %w", ns, table, err)
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
			return nil, fmt.Errorf("mssql: describe %s.%s: %w", ns, table, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mssql: describe %s.%s: %w", ns, table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("mssql: table %s.%s not found", ns, table)
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
		SELECT tc.CONSTRAINT_TYPE, kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2`

	rows, err := r.db.QueryContext(ctx, q, ns, table)
	if err != nil {
		return nil, fmt.Errorf("mssql: constraints of %s.%s: %w", ns, table, err)
	}
	defer rows.Close()

	out := make(map[string]map[string]bool)
	for rows.Next() {
		var kind, col string
		if err := rows.Scan(&kind, &col); err != nil {
			return nil, fmt.Errorf("mssql: constraints of %s.%s: %w", ns, table, err)
		}
		if out[col] == nil {
			out[col] = make(map[string]bool)
		}
		out[col][kind] = true
	}
	return out, rows.Err()
}

// catalogType rebuilds a generic DDL type string from
// INFORMATION_SCHEMA fields. The tag parser already understands SQL
// Server base names (BIGINT, BIT, DATETIMEOFFSET, NVARCHAR), so the
// catalog spelling passes through with its sizing reattached.
//
// CHARACTER_MAXIMUM_LENGTH is -1 for the MAX string types; those have
// no bound to carry and round-trip as plain text.
func catalogType(dataType string, charLen, precision, scale *int) string {
	t := strings.ToUpper(dataType)

	switch {
	case charLen != nil && *charLen > 0:
		t = fmt.Sprintf("%s(%d)", t, *charLen)
	case charLen != nil && *charLen < 0:
		return "TEXT"
	case t == "NUMERIC" || t == "DECIMAL":
		if precision != nil && *precision > 0 {
			if scale != nil && *scale > 0 {
				t = fmt.Sprintf("%s(%d,%d)", t, *precision, *scale)
			} else {
				t = fmt.Sprintf("%s(%d)", t, *precision)
			}
		}
	}
	return t
}
