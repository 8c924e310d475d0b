package importer

import (
	"context"
	"os"
	"strings"

	"csvpg/internal/parser/csv"
	"csvpg/internal/records"
)

// RowSource supplies one import's data: a bounded sample that feeds type
// inference, then a streaming pass over every data row. Sources must
// support one Sample call followed by one Rows call; file-backed sources
// reopen the file between the two passes.
type RowSource interface {
	// Sample returns the original headers and up to maxRows raw values
	// per column, keyed by header.
	Sample(maxRows int) (headers []string, samples map[string][]string, err error)

	// Rows emits every data row on out as pooled rows, cells trimmed and
	// blanks nil, Line numbered with the header as line 1. Lines the
	// source cannot tokenize are reported through onErr and skipped.
	// Rows does not close out.
	Rows(ctx context.Context, out chan<- *records.Row, onErr func(line int, err error)) error
}

// FileSource streams a delimited file from disk.
type FileSource struct {
	Path    string
	Options csv.Options
}

func (s FileSource) Sample(maxRows int) ([]string, map[string][]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, err
	}
	return csv.Sample(f, s.Options, maxRows)
}

func (s FileSource) Rows(ctx context.Context, out chan<- *records.Row, onErr func(int, error)) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return err
	}
	r, err := csv.NewReader(f, s.Options)
	if err != nil {
		return err
	}
	return r.Stream(ctx, out, onErr)
}

// MemorySource adapts rows already in memory (an HTML table, a test
// fixture) to the RowSource contract. Line numbers follow the file
// convention: the header is line 1, the first data row line 2.
type MemorySource struct {
	Headers []string
	Data    [][]string
}

func (s MemorySource) Sample(maxRows int) ([]string, map[string][]string, error) {
	if maxRows <= 0 {
		maxRows = csv.DefaultSampleRows
	}
	samples := make(map[string][]string, len(s.Headers))
	for _, h := range s.Headers {
		samples[h] = nil
	}
	for n, cells := range s.Data {
		if n >= maxRows {
			break
		}
		for i, h := range s.Headers {
			if i < len(cells) {
				samples[h] = append(samples[h], cells[i])
			} else {
				samples[h] = append(samples[h], "")
			}
		}
	}
	return s.Headers, samples, nil
}

func (s MemorySource) Rows(ctx context.Context, out chan<- *records.Row, onErr func(int, error)) error {
	for i, cells := range s.Data {
		row := records.GetRow(len(cells))
		row.Line = i + 2
		for j, v := range cells {
			v = strings.TrimSpace(v)
			if v == "" {
				row.V[j] = nil
			} else {
				row.V[j] = v
			}
		}
		select {
		case out <- row:
		case <-ctx.Done():
			row.Drop()
			return ctx.Err()
		}
	}
	return nil
}
