package postgres

import (
	"testing"

	"csvpg/internal/infer"
)

func intp(n int) *int { return &n }

func TestCatalogType(t *testing.T) {
	tests := []struct {
		name      string
		dataType  string
		charLen   *int
		precision *int
		scale     *int
		want      string
		wantKind  infer.Kind
	}{
		{name: "integer", dataType: "integer", precision: intp(32), scale: intp(0), want: "INTEGER", wantKind: infer.KindInteger},
		{name: "bigint", dataType: "bigint", precision: intp(64), scale: intp(0), want: "BIGINT", wantKind: infer.KindInteger},
		{name: "varchar", dataType: "character varying", charLen: intp(255), want: "VARCHAR(255)", wantKind: infer.KindVarChar},
		{name: "numeric_full", dataType: "numeric", precision: intp(10), scale: intp(2), want: "NUMERIC(10,2)", wantKind: infer.KindNumeric},
		{name: "numeric_precision_only", dataType: "numeric", precision: intp(8), scale: intp(0), want: "NUMERIC(8)", wantKind: infer.KindNumeric},
		{name: "numeric_bare", dataType: "numeric", want: "NUMERIC", wantKind: infer.KindNumeric},
		{name: "double", dataType: "double precision", precision: intp(53), want: "DOUBLE PRECISION", wantKind: infer.KindNumeric},
		{name: "text", dataType: "text", want: "TEXT", wantKind: infer.KindText},
		{name: "timestamptz", dataType: "timestamp with time zone", want: "TIMESTAMP WITH TIME ZONE", wantKind: infer.KindTimestampTZ},
		{name: "date", dataType: "date", want: "DATE", wantKind: infer.KindDate},
		{name: "boolean", dataType: "boolean", want: "BOOLEAN", wantKind: infer.KindBoolean},
		{name: "jsonb", dataType: "jsonb", want: "JSONB", wantKind: infer.KindJSONB},
		{name: "array", dataType: "ARRAY", want: "TEXT[]", wantKind: infer.KindTextArray},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := catalogType(tt.dataType, tt.charLen, tt.precision, tt.scale)
			if got != tt.want {
				t.Fatalf("catalogType(%q) = %q, want %q", tt.dataType, got, tt.want)
			}
			if kind := infer.ParseTag(got).Kind; kind != tt.wantKind {
				t.Fatalf("ParseTag(%q).Kind = %v, want %v", got, kind, tt.wantKind)
			}
		})
	}
}
