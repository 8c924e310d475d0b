// Package schema holds the table model the import pipeline builds and
// consumes: ordered columns with inferred types, the bookkeeping columns
// every imported table carries, and renderers for DDL and the JSON schema
// document.
package schema

import (
	"strings"

	"csvpg/internal/infer"
)

// DefaultNamespace is the PostgreSQL schema tables land in unless the
// caller picks another.
const DefaultNamespace = "public"

// Standard bookkeeping column names.
const (
	MetadataColumn  = "metadata"
	CreatedAtColumn = "created_at"
	UpdatedAtColumn = "updated_at"
)

// Provenance labels for Source.Type.
const (
	SourceLabels      = "labels"
	SourceCSV         = "csv"
	SourceColumnsFile = "columns-file"
	SourceTable       = "table"
)

// Column is one table column. Original preserves the source header the
// column was derived from, when there was one.
type Column struct {
	Name        string    `json:"name"`
	Tag         infer.Tag `json:"type"`
	Constraints []string  `json:"constraints,omitempty"`
	Original    string    `json:"original_name,omitempty"`
}

// IsPrimaryKey reports whether the column is the table's primary key,
// whether tagged inline or via a constraint.
func (c Column) IsPrimaryKey() bool {
	if c.Tag.Kind == infer.KindSerialPK {
		return true
	}
	return c.hasConstraint("PRIMARY KEY") || strings.HasSuffix(c.Tag.SQL(), " PRIMARY KEY")
}

// IsUnique reports whether the column carries a uniqueness guarantee.
func (c Column) IsUnique() bool {
	return c.IsPrimaryKey() || c.hasConstraint("UNIQUE")
}

func (c Column) hasConstraint(marker string) bool {
	for _, con := range c.Constraints {
		if strings.Contains(strings.ToUpper(con), marker) {
			return true
		}
	}
	return false
}

// Source records where a schema came from: a labels list, a CSV sample, a
// columns file, or an existing table.
type Source struct {
	Type   string `json:"type,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Schema is the model for one target table.
type Schema struct {
	Table     string   `json:"table_name"`
	Namespace string   `json:"schema_name"`
	Columns   []Column `json:"columns"`
	Source    Source   `json:"source"`
}

// New returns an empty schema for namespace.table, defaulting the
// namespace to public.
func New(table, namespace string) *Schema {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Schema{Table: table, Namespace: namespace}
}

// QualifiedName returns the dotted namespace.table pair, unquoted.
func (s *Schema) QualifiedName() string {
	return s.Namespace + "." + s.Table
}

// AddColumn appends a column. Callers keep names unique.
func (s *Schema) AddColumn(c Column) {
	s.Columns = append(s.Columns, c)
}

// Column returns a pointer to the named column, or nil.
func (s *Schema) Column(name string) *Column {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the named column exists.
func (s *Schema) HasColumn(name string) bool {
	return s.Column(name) != nil
}

// RemoveColumn deletes the named column, reporting whether it was present.
func (s *Schema) RemoveColumn(name string) bool {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			s.Columns = append(s.Columns[:i], s.Columns[i+1:]...)
			return true
		}
	}
	return false
}

// ColumnNames returns the column names in schema order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the name of the primary-key column, if any.
func (s *Schema) PrimaryKey() (string, bool) {
	for _, c := range s.Columns {
		if c.IsPrimaryKey() {
			return c.Name, true
		}
	}
	return "", false
}

// EnsureStandardColumns appends the bookkeeping columns every imported
// table carries: the metadata overflow column and the created_at and
// updated_at pair. Columns already present are left alone.
func (s *Schema) EnsureStandardColumns() {
	if !s.HasColumn(MetadataColumn) {
		s.AddColumn(Column{Name: MetadataColumn, Tag: infer.JSONB})
	}
	if !s.HasColumn(CreatedAtColumn) {
		s.AddColumn(Column{Name: CreatedAtColumn, Tag: infer.TimestampTZ, Constraints: []string{"DEFAULT NOW()"}})
	}
	if !s.HasColumn(UpdatedAtColumn) {
		s.AddColumn(Column{Name: UpdatedAtColumn, Tag: infer.TimestampTZ, Constraints: []string{"DEFAULT NOW()"}})
	}
}

// SetPrimaryKey makes name the only primary-key column. The named column
// keeps its type and gains a PRIMARY KEY constraint unless it already
// carries the key; every other column loses any auto-detected key tag,
// dropping to plain INTEGER. Reports whether the named column exists.
func (s *Schema) SetPrimaryKey(name string) bool {
	found := false
	for i := range s.Columns {
		col := &s.Columns[i]
		if col.Name == name {
			found = true
			if !col.IsPrimaryKey() {
				col.Constraints = append(col.Constraints, "PRIMARY KEY")
			}
			continue
		}
		if col.Tag.Kind == infer.KindSerialPK {
			col.Tag = infer.Integer
		}
		col.dropConstraint("PRIMARY KEY")
	}
	return found
}

func (c *Column) dropConstraint(marker string) {
	kept := c.Constraints[:0]
	for _, con := range c.Constraints {
		if !strings.Contains(strings.ToUpper(con), marker) {
			kept = append(kept, con)
		}
	}
	c.Constraints = kept
	if len(c.Constraints) == 0 {
		c.Constraints = nil
	}
}

// CreateSQL renders the CREATE TABLE statement for the schema. Identifiers
// are quoted so headers that normalize to reserved words still work.
func (s *Schema) CreateSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(QuoteIdent(s.Namespace))
	b.WriteString(".")
	b.WriteString(QuoteIdent(s.Table))
	b.WriteString(" (\n")
	for i, col := range s.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("    ")
		b.WriteString(QuoteIdent(col.Name))
		b.WriteString(" ")
		b.WriteString(col.Tag.SQL())
		for _, con := range col.Constraints {
			b.WriteString(" ")
			b.WriteString(con)
		}
	}
	b.WriteString("\n);")
	return b.String()
}

// QuoteIdent double-quotes a SQL identifier, escaping embedded quotes.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
