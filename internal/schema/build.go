package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"csvpg/internal/infer"
	"csvpg/internal/naming"
)

// BuildOptions steer every builder. PrimaryKey and NotNull take raw names
// and are normalized before matching.
type BuildOptions struct {
	Table      string
	Namespace  string
	PrimaryKey string
	NotNull    []string
}

// ColumnDef is one user-supplied column definition. An empty Type means
// the type is inferred.
type ColumnDef struct {
	Name string
	Type string
}

// FromHeaders builds a schema from bare column labels. Types come from
// name rules alone; labels with no signal become TEXT.
func FromHeaders(labels []string, opt BuildOptions) *Schema {
	s := New(opt.Table, opt.Namespace)
	s.Source = Source{Type: SourceLabels}

	names := normalizedUnique(labels)
	notNull := normalizedSet(opt.NotNull)
	for i, label := range labels {
		tag, ok := infer.FromName(names[i])
		if !ok {
			tag = infer.Text
		}
		col := Column{Name: names[i], Tag: tag, Original: label}
		if notNull[names[i]] {
			col.Constraints = append(col.Constraints, "NOT NULL")
		}
		s.AddColumn(col)
	}
	finish(s, opt)
	return s
}

// FromSample builds a schema from CSV headers and sampled column values,
// keyed by the original header.
func FromSample(headers []string, samples map[string][]string, opt BuildOptions) *Schema {
	s := New(opt.Table, opt.Namespace)
	s.Source = Source{Type: SourceCSV}

	names := normalizedUnique(headers)
	notNull := normalizedSet(opt.NotNull)
	for i, header := range headers {
		col := Column{
			Name:     names[i],
			Tag:      infer.Infer(names[i], samples[header]),
			Original: header,
		}
		if notNull[names[i]] {
			col.Constraints = append(col.Constraints, "NOT NULL")
		}
		s.AddColumn(col)
	}
	finish(s, opt)
	return s
}

// FromColumns builds a schema from user column definitions. Each
// definition is matched to a CSV header for provenance; definitions with
// no explicit type fall back to sampled inference when a header matched,
// and to TEXT when none did.
func FromColumns(defs []ColumnDef, headers []string, samples map[string][]string, opt BuildOptions) *Schema {
	s := New(opt.Table, opt.Namespace)
	s.Source = Source{Type: SourceColumnsFile}

	headerByName := make(map[string]string, len(headers))
	for _, h := range headers {
		n := naming.Normalize(h)
		if _, ok := headerByName[n]; !ok {
			headerByName[n] = h
		}
	}

	raw := make([]string, len(defs))
	for i, def := range defs {
		raw[i] = naming.Normalize(def.Name)
	}
	names := naming.Unique(raw)

	notNull := normalizedSet(opt.NotNull)
	for i, def := range defs {
		header, matched := headerByName[raw[i]]
		col := Column{Name: names[i], Original: header}
		switch {
		case def.Type != "":
			col.Tag = infer.ParseTag(def.Type)
		case matched:
			col.Tag = infer.Infer(names[i], samples[header])
		default:
			col.Tag = infer.Text
		}
		if notNull[names[i]] {
			col.Constraints = append(col.Constraints, "NOT NULL")
		}
		s.AddColumn(col)
	}
	finish(s, opt)
	return s
}

// FromDescription builds a schema for a new table shaped like an existing
// one, from the column descriptions the store reported.
func FromDescription(cols []Column, opt BuildOptions) *Schema {
	s := New(opt.Table, opt.Namespace)
	s.Source = Source{Type: SourceTable}
	for _, col := range cols {
		s.AddColumn(col)
	}
	finish(s, opt)
	return s
}

func finish(s *Schema, opt BuildOptions) {
	s.EnsureStandardColumns()
	if opt.PrimaryKey != "" {
		s.SetPrimaryKey(naming.Normalize(opt.PrimaryKey))
	}
}

func normalizedUnique(labels []string) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = naming.Normalize(l)
	}
	return naming.Unique(names)
}

func normalizedSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[naming.Normalize(n)] = true
	}
	return set
}

// ReadColumnsFile loads column definitions. Documents starting with '{'
// or '[' are JSON: either an array of names or {"name","type"} objects,
// or an object holding such an array under "columns". Anything else is
// the line format, one "name" or "name:TYPE" per line, with #-comments
// and blank lines skipped.
func ReadColumnsFile(path string) ([]ColumnDef, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read columns file: %w", err)
	}
	content := strings.TrimSpace(string(b))

	if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
		defs, err := parseColumnsJSON([]byte(content))
		if err != nil {
			return nil, fmt.Errorf("columns file %s: %w", path, err)
		}
		return defs, nil
	}

	var defs []ColumnDef
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, typ, ok := strings.Cut(line, ":"); ok {
			defs = append(defs, ColumnDef{Name: strings.TrimSpace(name), Type: strings.TrimSpace(typ)})
		} else {
			defs = append(defs, ColumnDef{Name: line})
		}
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("columns file %s: no column definitions", path)
	}
	return defs, nil
}

func parseColumnsJSON(data []byte) ([]ColumnDef, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	items, ok := doc.([]any)
	if !ok {
		obj, isObj := doc.(map[string]any)
		if isObj {
			items, ok = obj["columns"].([]any)
		}
		if !ok {
			return nil, errors.New("expected an array or an object with a columns array")
		}
	}

	defs := make([]ColumnDef, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			defs = append(defs, ColumnDef{Name: v})
		case map[string]any:
			name, _ := v["name"].(string)
			if name == "" {
				return nil, fmt.Errorf("column %d: missing name", i)
			}
			typ, _ := v["type"].(string)
			defs = append(defs, ColumnDef{Name: name, Type: typ})
		default:
			return nil, fmt.Errorf("column %d: expected a string or an object", i)
		}
	}
	if len(defs) == 0 {
		return nil, errors.New("no column definitions")
	}
	return defs, nil
}
