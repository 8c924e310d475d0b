package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"csvpg/internal/infer"
	"csvpg/internal/schema"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestBuildSchema_RequiresTableName(t *testing.T) {
	t.Parallel()

	imp := &Importer{}
	_, err := imp.BuildSchema(context.Background(), SchemaRequest{Labels: []string{"id"}})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestBuildSchema_RequiresASource(t *testing.T) {
	t.Parallel()

	imp := &Importer{}
	_, err := imp.BuildSchema(context.Background(), SchemaRequest{Table: "t"})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if !strings.Contains(err.Error(), "need a csv file") {
		t.Errorf("err = %v, want source-selection message", err)
	}
}

func TestBuildSchema_FromLabels(t *testing.T) {
	t.Parallel()

	imp := &Importer{}
	s, err := imp.BuildSchema(context.Background(), SchemaRequest{
		Table:  "products",
		Labels: []string{"Product ID", "Name", "Unit Price"},
	})
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}
	if s.Source.Type != schema.SourceLabels {
		t.Errorf("Source.Type = %q, want %q", s.Source.Type, schema.SourceLabels)
	}
	want := []string{"product_id", "name", "unit_price", "metadata", "created_at", "updated_at"}
	got := s.ColumnNames()
	if len(got) != len(want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("columns = %v, want %v", got, want)
		}
	}
}

func TestBuildSchema_FromCSV(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "orders.csv", "Order ID,Total,Note\n1,9.99,first\n2,12.50,second\n")
	imp := &Importer{}
	s, err := imp.BuildSchema(context.Background(), SchemaRequest{Table: "orders", CSVPath: path})
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}
	if s.Source.Type != schema.SourceCSV || s.Source.Detail != path {
		t.Errorf("Source = %+v, want csv source with file detail", s.Source)
	}
	if col := s.Column("order_id"); col == nil || !col.Tag.IsIntegerFamily() {
		t.Errorf("order_id = %+v, want integer family", col)
	}
	if col := s.Column("note"); col == nil || col.Tag != infer.Text {
		t.Errorf("note = %+v, want TEXT", col)
	}
}

func TestBuildSchema_FromColumnsFile(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "columns.txt", "# product catalog\nsku: VARCHAR(64)\nqty: INTEGER\nlabel\n")
	imp := &Importer{}
	s, err := imp.BuildSchema(context.Background(), SchemaRequest{Table: "catalog", ColumnsFile: path})
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}
	if s.Source.Type != schema.SourceColumnsFile || s.Source.Detail != path {
		t.Errorf("Source = %+v, want columns-file source", s.Source)
	}
	if col := s.Column("sku"); col == nil || col.Tag.SQL() != "VARCHAR(64)" {
		t.Errorf("sku = %+v, want VARCHAR(64)", col)
	}
	if col := s.Column("qty"); col == nil || !col.Tag.IsIntegerFamily() {
		t.Errorf("qty = %+v, want integer family", col)
	}
	if !s.HasColumn("label") {
		t.Error("untyped definition dropped")
	}
}

func TestBuildSchema_FromColumnsFileMissing(t *testing.T) {
	t.Parallel()

	imp := &Importer{}
	_, err := imp.BuildSchema(context.Background(), SchemaRequest{
		Table:       "catalog",
		ColumnsFile: filepath.Join(t.TempDir(), "nope.txt"),
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestBuildSchema_FromTable(t *testing.T) {
	t.Parallel()

	live := schema.New("events", "analytics")
	live.AddColumn(schema.Column{Name: "id", Tag: infer.Integer, Constraints: []string{"PRIMARY KEY"}})
	live.AddColumn(schema.Column{Name: "payload", Tag: infer.JSONB})
	repo := &fakeRepo{described: live}

	imp := &Importer{Repo: repo}
	s, err := imp.BuildSchema(context.Background(), SchemaRequest{
		Table:     "events_copy",
		FromTable: "analytics.events",
	})
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}
	if s.Table != "events_copy" {
		t.Errorf("Table = %q, want events_copy", s.Table)
	}
	if s.Source.Type != schema.SourceTable || s.Source.Detail != "analytics.events" {
		t.Errorf("Source = %+v, want table source", s.Source)
	}
	if !s.HasColumn("id") || !s.HasColumn("payload") {
		t.Errorf("columns = %v, want id and payload carried over", s.ColumnNames())
	}
	if repo.describeCalls != 1 {
		t.Errorf("describeCalls = %d, want 1", repo.describeCalls)
	}
}

func TestBuildSchema_FromTableNeedsRepo(t *testing.T) {
	t.Parallel()

	imp := &Importer{}
	_, err := imp.BuildSchema(context.Background(), SchemaRequest{Table: "t", FromTable: "analytics.events"})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}
