package importer

import (
	"context"
	"fmt"

	"csvpg/internal/parser/csv"
	"csvpg/internal/schema"
)

// SchemaRequest selects one way to derive a schema without importing:
// sampling a CSV file, a columns definition file (optionally sampled
// against a CSV for untyped columns), bare column labels, or the shape
// of an existing table.
type SchemaRequest struct {
	CSVPath     string
	ColumnsFile string
	Labels      []string
	FromTable   string // optionally qualified namespace.table

	Table     string
	Namespace string

	PrimaryKey string
	NotNull    []string

	Delimiter  rune
	Encoding   string
	LazyQuotes bool
	SampleRows int
}

// BuildSchema resolves a schema for req. Only the FromTable form needs a
// repository; the others run offline.
func (imp *Importer) BuildSchema(ctx context.Context, req SchemaRequest) (*schema.Schema, error) {
	if req.Table == "" {
		return nil, fmt.Errorf("%w: missing table name", ErrConfiguration)
	}
	opt := schema.BuildOptions{
		Table:      req.Table,
		Namespace:  req.Namespace,
		PrimaryKey: req.PrimaryKey,
		NotNull:    req.NotNull,
	}

	switch {
	case req.FromTable != "":
		if imp.Repo == nil {
			return nil, fmt.Errorf("%w: describing an existing table needs a database connection", ErrConfiguration)
		}
		ns, table := SplitTableRef(req.FromTable, req.Namespace)
		live, err := imp.Repo.DescribeTable(ctx, ns, table)
		if err != nil {
			return nil, fmt.Errorf("describe %s.%s: %w", ns, table, err)
		}
		s := schema.FromDescription(live.Columns, opt)
		s.Source.Detail = ns + "." + table
		return s, nil

	case req.ColumnsFile != "":
		defs, err := schema.ReadColumnsFile(req.ColumnsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		var headers []string
		var samples map[string][]string
		if req.CSVPath != "" {
			headers, samples, err = req.sample()
			if err != nil {
				return nil, err
			}
		}
		s := schema.FromColumns(defs, headers, samples, opt)
		s.Source.Detail = req.ColumnsFile
		return s, nil

	case req.CSVPath != "":
		headers, samples, err := req.sample()
		if err != nil {
			return nil, err
		}
		s := schema.FromSample(headers, samples, opt)
		s.Source.Detail = req.CSVPath
		return s, nil

	case len(req.Labels) > 0:
		return schema.FromHeaders(req.Labels, opt), nil

	default:
		return nil, fmt.Errorf("%w: need a csv file, a columns file, labels or an existing table", ErrConfiguration)
	}
}

func (req SchemaRequest) sample() ([]string, map[string][]string, error) {
	src := FileSource{Path: req.CSVPath, Options: csv.Options{
		Delimiter:  req.Delimiter,
		Encoding:   req.Encoding,
		LazyQuotes: req.LazyQuotes,
	}}
	headers, samples, err := src.Sample(req.SampleRows)
	if err != nil {
		return nil, nil, fmt.Errorf("sample %s: %w", req.CSVPath, err)
	}
	return headers, samples, nil
}
