package sqlite

import (
	"strings"
	"time"

	"csvpg/internal/infer"
	"csvpg/internal/schema"
	"csvpg/internal/storage"
)

// createSQL renders the schema as SQLite DDL. Serial keys become
// INTEGER PRIMARY KEY AUTOINCREMENT; integers and booleans keep INTEGER
// affinity, fixed-precision numerics become REAL, and everything time-,
// json- or array-shaped is stored as TEXT.
func createSQL(s *schema.Schema) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(schema.QuoteIdent(s.Table))
	b.WriteString(" (\n")
	for i, col := range s.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("    ")
		b.WriteString(schema.QuoteIdent(col.Name))
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
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	case infer.KindInteger, infer.KindBoolean:
		return "INTEGER"
	case infer.KindNumeric:
		return "REAL"
	default:
		return "TEXT"
	}
}

// columnConstraints rewrites Postgres constraint spellings for SQLite.
// A serial key already carries PRIMARY KEY in its type spelling, and
// NOW() is not a SQLite function.
func columnConstraints(col schema.Column) []string {
	out := make([]string, 0, len(col.Constraints))
	for _, c := range col.Constraints {
		switch {
		case col.Tag.Kind == infer.KindSerialPK && strings.EqualFold(c, "PRIMARY KEY"):
			continue
		case strings.EqualFold(c, "DEFAULT NOW()"):
			out = append(out, "DEFAULT CURRENT_TIMESTAMP")
		default:
			out = append(out, c)
		}
	}
	return out
}

// buildInsertSQL constructs one multi-row INSERT and its args, upserting
// via the ON CONFLICT clause when the plan carries a key. Pure, so the
// statement shape is unit tested without a database. Values pass through
// bindValue on the way into args.
func buildInsertSQL(plan storage.InsertPlan, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(schema.QuoteIdent(plan.Table))
	b.WriteString(" (")

	for i, c := range plan.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(schema.QuoteIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(plan.Columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range plan.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, bindValue(row[j]))
		}
		b.WriteString(")")
	}

	if plan.Upsert() {
		b.WriteString(" ON CONFLICT(")
		b.WriteString(schema.QuoteIdent(plan.Key))
		b.WriteString(")")

		if len(plan.UpdateColumns) == 0 && plan.TouchColumn == "" {
			b.WriteString(" DO NOTHING")
		} else {
			b.WriteString(" DO UPDATE SET ")
			for i, c := range plan.UpdateColumns {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(schema.QuoteIdent(c))
				b.WriteString(" = excluded.")
				b.WriteString(schema.QuoteIdent(c))
			}
			if plan.TouchColumn != "" {
				if len(plan.UpdateColumns) > 0 {
					b.WriteString(", ")
				}
				b.WriteString(schema.QuoteIdent(plan.TouchColumn))
				b.WriteString(" = CURRENT_TIMESTAMP")
			}
		}
	}

	b.WriteString(";")
	return b.String(), args
}

// bindValue normalizes driver arguments for TEXT affinity storage.
func bindValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case []string:
		return strings.Join(t, ";")
	default:
		return v
	}
}
