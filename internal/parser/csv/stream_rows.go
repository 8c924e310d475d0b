// Package csv reads delimited files in two passes: a bounded sampling
// pass that feeds type inference, and a streaming pass that emits
// pooled rows for the record builder.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"csvpg/internal/records"
)

// Reader streams one CSV source. The header row is consumed at
// construction so callers can bind columns before pulling data rows.
type Reader struct {
	headers []string
	cr      *csv.Reader
	src     io.Closer
	line    int
}

// NewReader decodes src per opt and reads the header row. The reader
// owns src from here on; on error src is closed before returning.
func NewReader(src io.ReadCloser, opt Options) (*Reader, error) {
	dec, err := decodeReader(src, opt.Encoding)
	if err != nil {
		src.Close()
		return nil, err
	}

	cr := csv.NewReader(dec)
	cr.Comma = opt.delimiter()
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	r := &Reader{cr: cr, src: src}
	hdr, err := r.read()
	if err != nil {
		src.Close()
		if err == io.EOF {
			return nil, errors.New("csv has no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	r.headers = make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		r.headers[i] = strings.TrimSpace(h)
	}
	return r, nil
}

// Headers reports the header row in file order, edge space and any
// byte-order mark stripped. Spellings are the originals, not normalized
// identifiers.
func (r *Reader) Headers() []string { return r.headers }

func (r *Reader) read() ([]string, error) {
	r.line++
	return r.cr.Read()
}

// Stream emits every data row on out as a pooled row holding one value
// per CSV field, edge space trimmed and blank cells nil. Row.Line is
// 1-based with the header row as line 1. Lines the tokenizer rejects are
// reported through onErr and skipped. The source is closed on return.
//
// NOTE on cancellation:
// On ctx cancellation the in-flight row must NOT go back to the pool
// (Drop instead), otherwise the parser can reuse it immediately while
// drain-safe stages downstream still read it.
func (r *Reader) Stream(ctx context.Context, out chan<- *records.Row, onErr func(line int, err error)) error {
	defer r.src.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := r.read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(r.line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		row := records.GetRow(len(rec))
		row.Line = r.line

		for i, v := range rec {
			v = strings.TrimSpace(v)
			if v == "" {
				row.V[i] = nil
			} else {
				row.V[i] = v
			}
		}

		select {
		case out <- row:
		case <-ctx.Done():
			row.Drop()
			return ctx.Err()
		}
	}
}
