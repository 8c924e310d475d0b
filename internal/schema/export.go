package schema

import (
	"encoding/json"
	"fmt"
	"os"
)

// Export renders the schema as DDL ("sql") or as the JSON schema document
// ("json").
func Export(s *Schema, format string) (string, error) {
	switch format {
	case "sql":
		return s.CreateSQL(), nil
	case "json":
		return ExportJSON(s)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportJSON renders the schema as an indented JSON document.
func ExportJSON(s *Schema) (string, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseJSON reads a schema document produced by ExportJSON. A missing
// schema_name defaults to public.
func ParseJSON(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema document: %w", err)
	}
	if s.Namespace == "" {
		s.Namespace = DefaultNamespace
	}
	return &s, nil
}

// Save writes the exported schema to a file.
func Save(s *Schema, path, format string) error {
	content, err := Export(s, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	return nil
}
