package timeline

import (
	"github.com/shopspring/decimal"
)

// Row is a per-period series aligned to a Timeline. Rows are treated as values:
// every helper returns a new Row and never mutates its receiver.
type Row []decimal.Decimal

// NewRow returns a zero-filled row of length n.
func NewRow(n int) Row {
	if n < 0 {
		n = 0
	}
	r := make(Row, n)
	for i := range r {
		r[i] = decimal.Zero
	}
	return r
}

// At returns the value at period p, or zero when p is out of range.
func (r Row) At(p int) decimal.Decimal {
	if p < 0 || p >= len(r) {
		return decimal.Zero
	}
	return r[p]
}

// Sum returns the total of the row.
func (r Row) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range r {
		total = total.Add(v)
	}
	return total
}

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Add returns r + o period by period; the result has the length of r.
func (r Row) Add(o Row) Row {
	out := NewRow(len(r))
	for i := range r {
		out[i] = r[i].Add(o.At(i))
	}
	return out
}

// Sub returns r - o period by period; the result has the length of r.
func (r Row) Sub(o Row) Row {
	out := NewRow(len(r))
	for i := range r {
		out[i] = r[i].Sub(o.At(i))
	}
	return out
}

// Neg returns the row with every sign flipped.
func (r Row) Neg() Row {
	out := NewRow(len(r))
	for i := range r {
		out[i] = r[i].Neg()
	}
	return out
}

// Cumulative returns the running total of the row.
func (r Row) Cumulative() Row {
	out := NewRow(len(r))
	running := decimal.Zero
	for i := range r {
		running = running.Add(r[i])
		out[i] = running
	}
	return out
}

// Float64s converts the row for numeric routines that work in float64.
func (r Row) Float64s() []float64 {
	out := make([]float64, len(r))
	for i, v := range r {
		out[i] = v.InexactFloat64()
	}
	return out
}

// SumRows adds any number of rows into a new row of length n.
func SumRows(n int, rows ...Row) Row {
	out := NewRow(n)
	for _, row := range rows {
		for i := 0; i < n; i++ {
			out[i] = out[i].Add(row.At(i))
		}
	}
	return out
}
