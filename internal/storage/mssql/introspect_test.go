package mssql

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
		{name: "bigint", dataType: "bigint", precision: intp(19), scale: intp(0), want: "BIGINT", wantKind: infer.KindInteger},
		{name: "int", dataType: "int", precision: intp(10), scale: intp(0), want: "INT", wantKind: infer.KindInteger},
		{name: "nvarchar", dataType: "nvarchar", charLen: intp(255), want: "NVARCHAR(255)", wantKind: infer.KindVarChar},
		{name: "nvarchar_max", dataType: "nvarchar", charLen: intp(-1), want: "TEXT", wantKind: infer.KindText},
		{name: "numeric_full", dataType: "numeric", precision: intp(10), scale: intp(2), want: "NUMERIC(10,2)", wantKind: infer.KindNumeric},
		{name: "numeric_precision_only", dataType: "numeric", precision: intp(8), scale: intp(0), want: "NUMERIC(8)", wantKind: infer.KindNumeric},
		{name: "float", dataType: "float", precision: intp(53), want: "FLOAT", wantKind: infer.KindNumeric},
		{name: "bit", dataType: "bit", want: "BIT", wantKind: infer.KindBoolean},
		{name: "date", dataType: "date", want: "DATE", wantKind: infer.KindDate},
		{name: "datetimeoffset", dataType: "datetimeoffset", precision: intp(34), want: "DATETIMEOFFSET", wantKind: infer.KindTimestampTZ},
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
