package postgres

import (
	"fmt"
	"strings"

	"csvpg/internal/schema"
	"csvpg/internal/storage"
)

// buildInsertSQL constructs one multi-row INSERT statement and its args.
//
// It is pure and deterministic, so placeholder numbering and the ON
// CONFLICT clause can be unit tested without a database.
//
// Upsert shape:
//
//	INSERT INTO "ns"."t" (...) VALUES (...), (...)
//	ON CONFLICT ("key") DO UPDATE SET "c" = EXCLUDED."c", ..., "updated_at" = NOW()
//
// A plan with a key but nothing to update degrades to DO NOTHING so the
// statement stays valid.
func buildInsertSQL(plan storage.InsertPlan, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(schema.QuoteIdent(nsOrDefault(plan.Namespace)))
	b.WriteString(".")
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
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if plan.Upsert() {
		b.WriteString(" ON CONFLICT (")
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
				b.WriteString(" = EXCLUDED.")
				b.WriteString(schema.QuoteIdent(c))
			}
			if plan.TouchColumn != "" {
				if len(plan.UpdateColumns) > 0 {
					b.WriteString(", ")
				}
				b.WriteString(schema.QuoteIdent(plan.TouchColumn))
				b.WriteString(" = NOW()")
			}
		}
	}

	b.WriteString(";")
	return b.String(), args
}
