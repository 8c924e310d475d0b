package infer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the closed vocabulary of column types the engine works
// with. The zero value is Text, the safest fallback.
type Kind int

const (
	KindText Kind = iota
	KindSerialPK
	KindInteger
	KindNumeric
	KindBoolean
	KindDate
	KindTimestampTZ
	KindVarChar
	KindJSONB
	KindTextArray
)

// Tag is one canonical column type. Width bounds VARCHAR, Precision/Scale
// bound NUMERIC. Tags parsed from spellings outside the canonical
// vocabulary keep the original SQL text so DDL round-trips losslessly.
type Tag struct {
	Kind      Kind
	Width     int
	Precision int
	Scale     int

	raw string
}

// Convenience values for the unparameterized tags.
var (
	SerialPK    = Tag{Kind: KindSerialPK}
	Integer     = Tag{Kind: KindInteger}
	Numeric     = Tag{Kind: KindNumeric}
	Boolean     = Tag{Kind: KindBoolean}
	Date        = Tag{Kind: KindDate}
	TimestampTZ = Tag{Kind: KindTimestampTZ}
	Text        = Tag{Kind: KindText}
	JSONB       = Tag{Kind: KindJSONB}
	TextArray   = Tag{Kind: KindTextArray}
)

// VarChar returns a bounded string tag.
func VarChar(n int) Tag { return Tag{Kind: KindVarChar, Width: n} }

// NumericOf returns a fixed-precision numeric tag.
func NumericOf(precision, scale int) Tag {
	return Tag{Kind: KindNumeric, Precision: precision, Scale: scale}
}

// IsIntegerFamily reports whether values for this tag are whole numbers.
func (t Tag) IsIntegerFamily() bool {
	return t.Kind == KindSerialPK || t.Kind == KindInteger
}

// SQL renders the PostgreSQL spelling of the tag.
func (t Tag) SQL() string {
	if t.raw != "" {
		return t.raw
	}
	switch t.Kind {
	case KindSerialPK:
		return "SERIAL PRIMARY KEY"
	case KindInteger:
		return "INTEGER"
	case KindNumeric:
		if t.Precision > 0 {
			if t.Scale > 0 {
				return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
			}
			return fmt.Sprintf("NUMERIC(%d)", t.Precision)
		}
		return "NUMERIC"
	case KindBoolean:
		return "BOOLEAN"
	case KindDate:
		return "DATE"
	case KindTimestampTZ:
		return "TIMESTAMPTZ"
	case KindVarChar:
		if t.Width > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Width)
		}
		return "VARCHAR"
	case KindJSONB:
		return "JSONB"
	case KindTextArray:
		return "TEXT[]"
	default:
		return "TEXT"
	}
}

func (t Tag) String() string { return t.SQL() }

// MarshalJSON serializes the tag as its SQL spelling so schema documents
// stay readable and editable.
func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.SQL())
}

func (t *Tag) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ParseTag(s)
	return nil
}

// ParseTag maps a SQL type spelling onto the closed vocabulary. It is total:
// spellings it does not recognize become Text-kind tags that render their
// original text, so user-declared and introspected types survive a round
// trip. CHARACTER VARYING is canonicalized to VARCHAR.
func ParseTag(s string) Tag {
	up := strings.ToUpper(strings.TrimSpace(s))
	up = strings.Join(strings.Fields(up), " ")
	if up == "" {
		return Text
	}

	if strings.HasSuffix(up, " PRIMARY KEY") {
		base := strings.TrimSuffix(up, " PRIMARY KEY")
		if base == "SERIAL" {
			return SerialPK
		}
		if base == "BIGSERIAL" || base == "SMALLSERIAL" {
			return Tag{Kind: KindSerialPK, raw: up}
		}
		// Other inline primary keys keep their spelling; the constraint
		// belongs on the column, not the type.
		return Tag{Kind: ParseTag(base).Kind, raw: up}
	}

	base, args := splitTypeArgs(up)
	switch base {
	case "SERIAL", "BIGSERIAL", "SMALLSERIAL":
		return Tag{Kind: KindInteger, raw: up}
	case "INTEGER", "INT", "INT4":
		return Integer
	case "BIGINT", "INT8", "SMALLINT", "INT2", "TINYINT":
		return Tag{Kind: KindInteger, raw: up}
	case "NUMERIC":
		t := Numeric
		if len(args) >= 1 {
			t.Precision = args[0]
		}
		if len(args) >= 2 {
			t.Scale = args[1]
		}
		return t
	case "DECIMAL", "REAL", "DOUBLE", "DOUBLE PRECISION", "FLOAT", "FLOAT4", "FLOAT8":
		return Tag{Kind: KindNumeric, raw: up}
	case "BOOLEAN":
		return Boolean
	case "BOOL", "BIT":
		return Tag{Kind: KindBoolean, raw: up}
	case "DATE":
		return Date
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return TimestampTZ
	case "TIMESTAMP", "TIMESTAMP WITHOUT TIME ZONE",
		"DATETIMEOFFSET", "DATETIME", "DATETIME2", "SMALLDATETIME":
		return Tag{Kind: KindTimestampTZ, raw: up}
	case "TEXT":
		return Text
	case "VARCHAR", "CHARACTER VARYING", "CHAR VARYING":
		if len(args) >= 1 {
			return VarChar(args[0])
		}
		return Tag{Kind: KindText, raw: "VARCHAR"}
	case "CHAR", "CHARACTER", "BPCHAR", "NVARCHAR", "NCHAR":
		if len(args) >= 1 {
			return Tag{Kind: KindVarChar, Width: args[0], raw: up}
		}
		return Tag{Kind: KindText, raw: up}
	case "JSONB":
		return JSONB
	case "JSON":
		return Tag{Kind: KindJSONB, raw: up}
	case "TEXT[]", "_TEXT", "ARRAY":
		return TextArray
	default:
		return Tag{Kind: KindText, raw: up}
	}
}

// splitTypeArgs separates "VARCHAR(20)" into ("VARCHAR", [20]). Inputs
// without a trailing integer argument list are returned whole.
func splitTypeArgs(s string) (string, []int) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return s, nil
	}
	base := strings.TrimSpace(s[:open])
	inner := s[open+1 : len(s)-1]
	parts := strings.Split(inner, ",")
	args := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return s, nil
		}
		args = append(args, n)
	}
	return base, args
}
