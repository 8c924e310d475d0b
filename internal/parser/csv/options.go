package csv

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// DefaultSampleRows bounds the sampling pass when the caller does not
// say how many rows to read.
const DefaultSampleRows = 100

// Options configure how a CSV source is decoded and tokenized. The zero
// value reads comma-separated UTF-8.
type Options struct {
	// Delimiter separates fields; zero means comma.
	Delimiter rune

	// Encoding names the source charset: utf-8, utf-8-sig, latin-1 or
	// windows-1252. Empty means utf-8. A leading byte-order mark is
	// stripped either way.
	Encoding string

	// LazyQuotes accepts stray quotes inside fields instead of failing
	// the line.
	LazyQuotes bool
}

func (o Options) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

func decodeReader(src io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8", "utf-8-sig", "utf8-sig":
		return src, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(src), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(src), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
