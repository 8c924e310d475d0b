// Package infer derives column types for CSV-born tables. A first pass
// reads signal from the column name; when the name says nothing, a second
// pass classifies up to 20 sampled values and votes by threshold.
package infer

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// maxSampleValues caps how many values the statistical pass classifies.
// Length measurement still covers every non-empty sample.
const maxSampleValues = 20

// Infer resolves a column type. Name rules are authoritative; sample
// statistics only decide columns whose names carry no signal.
func Infer(name string, samples []string) Tag {
	if t, ok := FromName(name); ok {
		return t
	}
	return FromSamples(name, samples)
}

// FromName applies the name-pattern rules in priority order. All markers
// are substring matches except the key rules, which compare exactly or by
// suffix. Only a column named exactly "id" becomes the serial primary key.
func FromName(name string) (Tag, bool) {
	n := strings.ToLower(name)

	if n == "id" || n == "pk" || strings.HasSuffix(n, "_id") {
		if n == "id" {
			return SerialPK, true
		}
		return Integer, true
	}
	if containsAny(n, "created_at", "updated_at", "timestamp", "_at") {
		return TimestampTZ, true
	}
	if containsAny(n, "date", "_date", "birthday", "anniversary") {
		return Date, true
	}
	if containsAny(n, "is_", "has_", "can_", "should_", "enabled", "active", "deleted") {
		return Boolean, true
	}
	if containsAny(n, "price", "cost", "amount", "total", "count", "num", "quantity") {
		if containsAny(n, "price", "cost", "amount", "total") {
			return NumericOf(10, 2), true
		}
		return Integer, true
	}
	if containsAny(n, "email", "mail") {
		return Text, true
	}
	if containsAny(n, "url", "link", "website") {
		return Text, true
	}
	if containsAny(n, "phone", "mobile", "tel") {
		return VarChar(20), true
	}
	if isPlural(n) {
		switch strings.TrimSuffix(n, "s") {
		case "tag", "category", "author", "keyword", "skill":
			return TextArray, true
		}
	}
	if containsAny(n, "metadata", "config", "settings", "options", "data", "json") {
		return JSONB, true
	}
	if containsAny(n, "name", "title", "description", "comment", "note", "text", "content") {
		return Text, true
	}
	return Tag{}, false
}

// FromSamples classifies sampled values and picks the dominant type.
// Each value lands in at most one bucket, tried in order: boolean literal,
// number, date, JSON. Booleans, dates and JSON need more than 70% of the
// samples, numbers more than 80%. Columns with no winner fall back to
// VARCHAR sized at twice the longest sample, or TEXT past 255.
func FromSamples(name string, samples []string) Tag {
	nonEmpty := make([]string, 0, len(samples))
	for _, v := range samples {
		if s := strings.TrimSpace(v); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return Text
	}

	checked := nonEmpty
	if len(checked) > maxSampleValues {
		checked = checked[:maxSampleValues]
	}

	// "0" and "1" vote in both the boolean and the integer tallies; the
	// switch below settles the tie in favor of Boolean.
	var booleans, integers, numerics, dates, jsons int
	for _, v := range checked {
		boolean := isBooleanLiteral(v)
		if boolean {
			booleans++
		}
		if numeric, integer := looksNumeric(v); numeric {
			numerics++
			if integer {
				integers++
			}
			continue
		}
		if boolean {
			continue
		}
		if isDateLike(v) {
			dates++
			continue
		}
		if isJSONLike(v) {
			jsons++
		}
	}

	total := float64(len(checked))
	switch {
	case float64(booleans) > total*0.7:
		return Boolean
	case float64(integers) > total*0.8:
		return Integer
	case float64(numerics) > total*0.8:
		return Numeric
	case float64(dates) > total*0.7:
		return Date
	case float64(jsons) > total*0.7:
		return JSONB
	}

	// Plural name plus delimited values reads as a list column. Only the
	// first ten samples vote here.
	if isPlural(strings.ToLower(name)) {
		head := checked
		if len(head) > 10 {
			head = head[:10]
		}
		arrayLike := 0
		for _, v := range head {
			if strings.ContainsAny(v, ";,") {
				arrayLike++
			}
		}
		if float64(arrayLike) > float64(len(head))*0.5 {
			return TextArray
		}
	}

	maxLen := 0
	for _, v := range nonEmpty {
		if n := utf8.RuneCountInString(v); n > maxLen {
			maxLen = n
		}
	}
	if maxLen <= 255 {
		width := maxLen * 2
		if width > 255 {
			width = 255
		}
		return VarChar(width)
	}
	return Text
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// isPlural treats a trailing "s" that is not "ss" as plural.
func isPlural(n string) bool {
	return strings.HasSuffix(n, "s") && !strings.HasSuffix(n, "ss")
}

var booleanLiterals = map[string]struct{}{
	"true": {}, "false": {}, "t": {}, "f": {},
	"yes": {}, "no": {}, "y": {}, "n": {},
	"1": {}, "0": {},
}

func isBooleanLiteral(v string) bool {
	_, ok := booleanLiterals[strings.ToLower(v)]
	return ok
}

// looksNumeric reports whether v reads as a number, and whether it is an
// integer. Values containing '.' or 'e' are only ever floats. Range
// overflow still reads as a number.
func looksNumeric(v string) (numeric, integer bool) {
	if strings.ContainsAny(strings.ToLower(v), ".e") {
		if _, err := strconv.ParseFloat(v, 64); err == nil || errors.Is(err, strconv.ErrRange) {
			return true, false
		}
		return false, false
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
		return true, true
	}
	return false, false
}

var sampleDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"2006-01",
	"2006",
}

func isDateLike(v string) bool {
	for _, layout := range sampleDateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func isJSONLike(v string) bool {
	if len(v) < 2 {
		return false
	}
	first, last := v[0], v[len(v)-1]
	if (first != '{' && first != '[') || (last != '}' && last != ']') {
		return false
	}
	return json.Valid([]byte(v))
}
