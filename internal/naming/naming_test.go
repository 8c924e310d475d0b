package naming

import (
	"strings"
	"testing"
)

// TestNormalize covers the header-to-identifier rules: run collapsing,
// lowercasing, underscore trimming, digit prefixing and the placeholder.
func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "name", "name"},
		{"uppercase", "Product Name", "product_name"},
		{"punctuation run", "price ($ per unit)", "price_per_unit"},
		{"leading trailing junk", "--id--", "id"},
		{"digit start", "2024 revenue", "col_2024_revenue"},
		{"only junk", "***", "unnamed_column"},
		{"empty", "", "unnamed_column"},
		{"whitespace only", "   ", "unnamed_column"},
		{"unicode collapses", "café size", "caf_size"},
		{"underscores collapse", "a__b", "a_b"},
		{"mixed separators", "created-at/date", "created_at_date"},
		{"digit only", "42", "col_42"},
		{"tabs and newlines", "first\tname\n", "first_name"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestNormalizeIdempotent asserts normalize(normalize(s)) == normalize(s)
// across representative raw headers.
func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Product Name", "--id--", "2024 revenue", "***", "",
		"café size", "a__b", "ALL CAPS!!!", "x", "9",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 80)
	if got := Truncate(long); len(got) != 63 {
		t.Fatalf("Truncate(80 ascii) length = %d, want 63", len(got))
	}
	if got := Truncate("short"); got != "short" {
		t.Fatalf("Truncate(short) = %q, want unchanged", got)
	}

	// 62 ascii bytes followed by a 2-byte rune: the rune must not be split.
	mixed := strings.Repeat("a", 62) + "é"
	got := Truncate(mixed)
	if len(got) != 62 {
		t.Fatalf("Truncate mixed length = %d, want 62 (rune not split)", len(got))
	}
}

func TestUnique(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"no duplicates", []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{"simple dup", []string{"id", "id"}, []string{"id", "id_2"}},
		{"triple dup", []string{"x", "x", "x"}, []string{"x", "x_2", "x_3"}},
		{"dup of suffixed", []string{"a", "a", "a_2"}, []string{"a", "a_2", "a_2_2"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Unique(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("Unique(%v) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Unique(%v)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestUniqueRespectsLimit(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("z", 63)
	got := Unique([]string{long, long})
	if len(got[1]) > 63 {
		t.Fatalf("Unique suffixed name exceeds 63 bytes: %d", len(got[1]))
	}
	if got[0] == got[1] {
		t.Fatalf("Unique returned duplicate names %q", got[0])
	}
}
