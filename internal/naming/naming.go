// Package naming turns arbitrary CSV header strings into safe SQL
// identifiers: lowercase, [a-z0-9_] only, never empty, never starting
// with a digit.
package naming

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Placeholder is the identifier used when a header normalizes to nothing.
const Placeholder = "unnamed_column"

// maxIdentLen is the PostgreSQL identifier limit (NAMEDATALEN-1 bytes).
const maxIdentLen = 63

// Normalize converts a raw header into a safe lowercase identifier.
//
// Rules:
//   - every maximal run of non-alphanumeric characters becomes one underscore
//   - the result is lowercased and stripped of leading/trailing underscores
//   - a result starting with a digit is prefixed with "col_"
//   - an empty result becomes Placeholder
//
// Normalize is total and idempotent: it never fails, and re-normalizing an
// already normalized name returns it unchanged.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return Placeholder
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "col_" + out
	}
	return out
}

// Truncate clamps an identifier to the PostgreSQL 63-byte limit without
// splitting a UTF-8 rune.
func Truncate(s string) string {
	if len(s) <= maxIdentLen {
		return s
	}
	b := []byte(s)
	cut := maxIdentLen
	for cut > 0 && !utf8.Valid(b[:cut]) {
		cut--
	}
	if cut <= 0 {
		return s[:maxIdentLen]
	}
	return string(b[:cut])
}

// Unique resolves duplicate identifiers in input order by suffixing
// "_2", "_3", ... so the result can be used as schema column names.
// Already-unique names pass through unchanged.
func Unique(names []string) []string {
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))

	for i, n := range names {
		if _, dup := seen[n]; !dup {
			seen[n] = 1
			out[i] = n
			continue
		}
		for k := seen[n] + 1; ; k++ {
			cand := withSuffix(n, k)
			if _, taken := seen[cand]; !taken {
				seen[n] = k
				seen[cand] = 1
				out[i] = cand
				break
			}
		}
	}
	return out
}

// withSuffix appends "_<k>" keeping the result within the identifier limit.
// Normalized names are ASCII so byte slicing is safe here.
func withSuffix(base string, k int) string {
	suffix := "_" + strconv.Itoa(k)
	if len(base)+len(suffix) > maxIdentLen {
		base = base[:maxIdentLen-len(suffix)]
		base = strings.TrimRight(base, "_")
	}
	return base + suffix
}
