// Package records turns raw CSV rows into typed, schema-aligned records
// ready for batched insertion. Rows are pooled to keep heap churn down on
// large imports.
package records

import "sync"

// Row is a pooled container holding one positional row.
//
// Ownership contract:
//   - Exactly one goroutine owns a Row at a time.
//   - A Row may be passed downstream via channels (ownership transfer).
//   - The final consumer must call Free() after it is fully done with the
//     Row and anything referencing r.V.
//   - Use Free() only on the normal path. On cancellation paths use
//     Drop(): a canceled row returned to the pool can be reused and
//     rewritten while a draining stage still reads it.
type Row struct {
	V    []any
	Line int // 1-based source line number, header row is line 1
}

var rowPool sync.Pool

// GetRow returns a pooled Row with length colCount and all elements
// zeroed.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		for i := range r.V {
			r.V[i] = nil
		}
		r.Line = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns the Row to the pool. Call only when no other goroutine can
// observe r or r.V.
func (r *Row) Free() {
	rowPool.Put(r)
}

// Drop discards the Row without re-pooling it; the GC reclaims it.
func (r *Row) Drop() {
	r.V = nil
	r.Line = 0
}
