// Package convert coerces raw CSV cells into driver-ready values for their
// column types. Conversion is total: blank cells and unparseable numbers,
// dates and timestamps come back nil, never an error, so one dirty cell
// cannot abort an import.
package convert

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"csvpg/internal/infer"
)

// Value converts one cell for the given column tag. Blank input is nil for
// every type. Integer and numeric parse failures are nil. Booleans never
// fail: unrecognized spellings are false. Text kinds return the trimmed
// cell unchanged.
func Value(raw string, tag infer.Tag) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	switch tag.Kind {
	case infer.KindSerialPK, infer.KindInteger:
		n, ok := Int(s)
		if !ok {
			return nil
		}
		return n
	case infer.KindNumeric:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return f
	case infer.KindBoolean:
		return Bool(s)
	case infer.KindDate:
		if d, ok := Date(s); ok {
			return d
		}
		return nil
	case infer.KindTimestampTZ:
		if ts, ok := Timestamp(s); ok {
			return ts
		}
		return nil
	case infer.KindTextArray:
		return Array(s)
	case infer.KindJSONB:
		return JSON(s)
	default:
		return s
	}
}

// Int parses a whole number, tolerating surrounding whitespace.
func Int(raw string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	return n, err == nil
}

var trueLiterals = map[string]struct{}{
	"true": {}, "t": {}, "yes": {}, "y": {}, "1": {},
}

// Bool maps the accepted truthy spellings to true and everything else,
// including unrecognized text, to false.
func Bool(raw string) bool {
	_, ok := trueLiterals[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"2006-01",
	"2006",
}

// Date tries each accepted layout in order. For slash dates that fit both,
// MM/DD/YYYY wins over DD/MM/YYYY.
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
}

// Timestamp tries each accepted layout in order. A bare date parses as
// midnight.
func Timestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Array splits a delimited cell into list elements. Semicolons take
// precedence over commas; a cell with neither is a single element. Split
// elements are trimmed and empties dropped.
func Array(raw string) []string {
	s := strings.TrimSpace(raw)
	var sep string
	switch {
	case strings.Contains(s, ";"):
		sep = ";"
	case strings.Contains(s, ","):
		sep = ","
	default:
		if s == "" {
			return nil
		}
		return []string{s}
	}
	parts := strings.Split(s, sep)
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// JSON validates the cell and compacts it; anything that is not valid JSON
// is wrapped as {"raw_value": ...} so dirty cells still land in a JSONB
// column.
func JSON(raw string) string {
	s := strings.TrimSpace(raw)
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err == nil {
		return buf.String()
	}
	wrapped, _ := json.Marshal(map[string]string{"raw_value": s})
	return string(wrapped)
}
