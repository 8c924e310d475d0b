package mssql

import (
	"fmt"
	"strings"

	"csvpg/internal/infer"
	"csvpg/internal/schema"
	"csvpg/internal/storage"
)

// createSQL renders the schema as SQL Server DDL.
func createSQL(s *schema.Schema) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(mssqlIdent(nsFor(s.Namespace)))
	b.WriteString(".")
	b.WriteString(mssqlIdent(s.Table))
	b.WriteString(" (\n")
	for i, col := range s.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("    ")
		b.WriteString(mssqlIdent(col.Name))
		b.WriteString(" ")
		b.WriteString(columnType(col.Tag))
		for _, c := range columnConstraints(col) {
			b.WriteString(" ")
			b.WriteString(c)
		}
	}
	b.WriteString("\n);")
	return b.String()
}

func columnType(t infer.Tag) string {
	switch t.Kind {
	case infer.KindSerialPK:
		return "BIGINT PRIMARY KEY"
	case infer.KindInteger:
		return "BIGINT"
	case infer.KindNumeric:
		if t.Precision > 0 {
			if t.Scale > 0 {
				return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
			}
			return fmt.Sprintf("NUMERIC(%d)", t.Precision)
		}
		return "FLOAT"
	case infer.KindBoolean:
		return "BIT"
	case infer.KindDate:
		return "DATE"
	case infer.KindTimestampTZ:
		return "DATETIMEOFFSET"
	case infer.KindVarChar:
		if t.Width > 0 {
			return fmt.Sprintf("NVARCHAR(%d)", t.Width)
		}
		return "NVARCHAR(MAX)"
	default:
		// TEXT, JSONB and TEXT[] all land in NVARCHAR(MAX); arrays are
		// bound as ";"-joined text.
		return "NVARCHAR(MAX)"
	}
}

// columnConstraints rewrites Postgres constraint spellings for SQL
// Server. Serial keys already carry PRIMARY KEY in their type spelling.
func columnConstraints(col schema.Column) []string {
	out := make([]string, 0, len(col.Constraints))
	for _, c := range col.Constraints {
		switch {
		case col.Tag.Kind == infer.KindSerialPK && strings.EqualFold(c, "PRIMARY KEY"):
			continue
		case strings.EqualFold(c, "DEFAULT NOW()"):
			out = append(out, "DEFAULT SYSDATETIMEOFFSET()")
		default:
			out = append(out, c)
		}
	}
	return out
}

// buildInsertSQL constructs one multi-row INSERT and its args with @pN
// placeholders. Pure, so the statement shape is unit tested without a
// database.
func buildInsertSQL(plan storage.InsertPlan, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlIdent(nsFor(plan.Namespace)))
	b.WriteString(".")
	b.WriteString(mssqlIdent(plan.Table))
	b.WriteString(" (")

	for i, c := range plan.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(plan.Columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range plan.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, bindValue(row[j]))
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(";")
	return b.String(), args
}

// buildMergeSQL constructs the upsert MERGE for one batch.
//
// Shape:
//
//	MERGE [dbo].[t] AS t
//	USING (VALUES (...), (...)) AS s ([c1], [c2], ...)
//	ON t.[key] = s.[key]
//	WHEN MATCHED THEN UPDATE SET t.[c] = s.[c], ..., t.[touch] = SYSDATETIMEOFFSET()
//	WHEN NOT MATCHED THEN INSERT ([c1], ...) VALUES (s.[c1], ...);
//
// The WHEN MATCHED branch is omitted when the plan has nothing to
// update, which leaves insert-if-absent semantics.
func buildMergeSQL(plan storage.InsertPlan, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("MERGE ")
	b.WriteString(mssqlIdent(nsFor(plan.Namespace)))
	b.WriteString(".")
	b.WriteString(mssqlIdent(plan.Table))
	b.WriteString(" AS t USING (VALUES ")

	args := make([]any, 0, len(rows)*len(plan.Columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range plan.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, bindValue(row[j]))
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(") AS s (")
	for i, c := range plan.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") ON t.")
	b.WriteString(mssqlIdent(plan.Key))
	b.WriteString(" = s.")
	b.WriteString(mssqlIdent(plan.Key))

	if len(plan.UpdateColumns) > 0 || plan.TouchColumn != "" {
		b.WriteString(" WHEN MATCHED THEN UPDATE SET ")
		for i, c := range plan.UpdateColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("t.")
			b.WriteString(mssqlIdent(c))
			b.WriteString(" = s.")
			b.WriteString(mssqlIdent(c))
		}
		if plan.TouchColumn != "" {
			if len(plan.UpdateColumns) > 0 {
				b.WriteString(", ")
			}
			b.WriteString("t.")
			b.WriteString(mssqlIdent(plan.TouchColumn))
			b.WriteString(" = SYSDATETIMEOFFSET()")
		}
	}

	b.WriteString(" WHEN NOT MATCHED THEN INSERT (")
	for i, c := range plan.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES (")
	for i, c := range plan.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("s.")
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(");")
	return b.String(), args
}

// bindValue normalizes driver arguments; arrays have no native type and
// travel as ";"-joined text.
func bindValue(v any) any {
	if t, ok := v.([]string); ok {
		return strings.Join(t, ";")
	}
	return v
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// escapeLiteral doubles single quotes for embedding in an N'...' string.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
