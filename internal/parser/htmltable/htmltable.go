// Package htmltable extracts tabular data from HTML documents so pages
// with <table> markup can be imported the same way as CSV files.
package htmltable

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is one extracted HTML table: header labels plus the raw cell text
// of every data row. Rows keep their original widths; ragged markup is
// the downstream row builder's problem, same as a ragged CSV.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Parse extracts the first table matched by selector from the document on
// r. An empty selector matches any table. Headers come from the first
// thead row when the table has one, otherwise from the first row; every
// other row becomes a data row.
//
// Cell text is flattened: nested markup is reduced to its text and runs
// of whitespace collapse to single spaces, so multi-line cells survive a
// round trip through the row pipeline.
func Parse(r io.Reader, selector string) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if selector == "" {
		selector = "table"
	}

	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no table matches selector %q", selector)
	}

	headerRow := table.Find("thead tr").First()
	if headerRow.Length() == 0 {
		// The HTML parser wraps bare rows in an implicit tbody, so the
		// first row of the table doubles as the header.
		headerRow = table.Find("tr").First()
	}

	t := &Table{}
	headerRow.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		t.Headers = append(t.Headers, cellText(cell))
	})
	if len(t.Headers) == 0 {
		return nil, fmt.Errorf("table matched by %q has no header row", selector)
	}

	rows := table.Find("tbody tr")
	if rows.Length() == 0 {
		rows = table.Find("tr")
	}
	rows.Each(func(_ int, row *goquery.Selection) {
		if sameNode(row, headerRow) {
			return
		}
		cells := row.Find("th, td")
		if cells.Length() == 0 {
			return
		}
		vals := make([]string, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			vals = append(vals, cellText(cell))
		})
		t.Rows = append(t.Rows, vals)
	})
	return t, nil
}

// ParseFile reads path and extracts a table per Parse.
func ParseFile(path, selector string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Parse(f, selector)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func sameNode(a, b *goquery.Selection) bool {
	return len(a.Nodes) > 0 && len(b.Nodes) > 0 && a.Nodes[0] == b.Nodes[0]
}

func cellText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
