package records

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"csvpg/internal/convert"
	"csvpg/internal/naming"
	"csvpg/internal/schema"
)

// Builder converts raw string rows from one CSV source into typed rows
// aligned to a schema's column order. CSV positions are bound to schema
// columns once, by normalized header; unbound positions overflow into the
// metadata column.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	// Now supplies the timestamp used to default created_at/updated_at
	// when the CSV does not carry them. Tests override it.
	Now func() time.Time

	schema   *schema.Schema
	headers  []string
	position []int // CSV position -> schema column index, -1 = overflow

	metaIdx    int
	createdIdx int
	updatedIdx int

	// created/updated are "supplied" when some CSV position binds to
	// them, even if a given row leaves the cell blank.
	createdSupplied bool
	updatedSupplied bool
}

// NewBuilder binds the CSV header row to the schema.
func NewBuilder(s *schema.Schema, headers []string) *Builder {
	b := &Builder{
		Now:        time.Now,
		schema:     s,
		headers:    headers,
		position:   make([]int, len(headers)),
		metaIdx:    -1,
		createdIdx: -1,
		updatedIdx: -1,
	}

	index := make(map[string]int, len(s.Columns))
	for i, col := range s.Columns {
		index[col.Name] = i
		switch col.Name {
		case schema.MetadataColumn:
			b.metaIdx = i
		case schema.CreatedAtColumn:
			b.createdIdx = i
		case schema.UpdatedAtColumn:
			b.updatedIdx = i
		}
	}

	for p, header := range headers {
		idx, ok := index[naming.Normalize(header)]
		if !ok {
			b.position[p] = -1
			continue
		}
		b.position[p] = idx
		if idx == b.createdIdx {
			b.createdSupplied = true
		}
		if idx == b.updatedIdx {
			b.updatedSupplied = true
		}
	}
	return b
}

// Build converts one raw row into a typed row in schema column order. The
// raw row's cells must be strings or nil; missing trailing cells read as
// blank. The caller keeps ownership of raw; the returned row is pooled
// and owned by the caller.
//
// A non-nil error means the row must be dropped: the cause is row-local
// (an integer column that cannot parse, or more cells than headers) and
// the next row is unaffected.
func (b *Builder) Build(raw *Row) (*Row, error) {
	if len(raw.V) > len(b.headers) {
		return nil, fmt.Errorf("row has %d fields, header has %d", len(raw.V), len(b.headers))
	}

	out := GetRow(len(b.schema.Columns))
	out.Line = raw.Line

	var meta map[string]string
	for p, cell := range raw.V {
		s, _ := cell.(string)
		idx := b.position[p]
		if idx < 0 {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				if meta == nil {
					meta = make(map[string]string)
				}
				meta[b.headers[p]] = trimmed
			}
			continue
		}
		col := b.schema.Columns[idx]
		if col.Tag.IsIntegerFamily() {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				if _, ok := convert.Int(trimmed); !ok {
					out.Free()
					return nil, fmt.Errorf("column %s: %q is not a whole number", col.Name, trimmed)
				}
			}
		}
		out.V[idx] = convert.Value(s, col.Tag)
	}

	if len(meta) > 0 && b.metaIdx >= 0 {
		// Marshaling a map of strings cannot fail.
		buf, _ := json.Marshal(meta)
		out.V[b.metaIdx] = string(buf)
	}

	now := b.Now()
	if b.createdIdx >= 0 && !b.createdSupplied {
		out.V[b.createdIdx] = now
	}
	if b.updatedIdx >= 0 && !b.updatedSupplied {
		out.V[b.updatedIdx] = now
	}
	return out, nil
}

// Columns returns the schema column names in output order, matching the
// layout of rows produced by Build.
func (b *Builder) Columns() []string {
	return b.schema.ColumnNames()
}
