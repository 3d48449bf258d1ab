package filter

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hugr-lab/glimpsy/dataset"
)

// Apply returns the rows of the dataset that satisfy spec.
// columns is the authoritative list of filterable keys.
//
// A nil or empty spec returns rows unchanged. Otherwise the result is a new
// slice holding the surviving rows in their original order; the rows
// themselves are shared with the input and never modified.
func Apply(rows []dataset.Row, spec *Spec, columns []string) []dataset.Row {
	if spec.IsEmpty() {
		return rows
	}

	sel := Select(rows, spec, columns)

	out := make([]dataset.Row, 0, sel.GetCardinality())
	sel.Iterate(func(i uint32) bool {
		out = append(out, rows[i])
		return true
	})
	return out
}

// Select returns the positions of the rows that satisfy spec.
// Every stage narrows the selection left by the previous one.
func Select(rows []dataset.Row, spec *Spec, columns []string) *roaring.Bitmap {
	sel := roaring.New()
	sel.AddRange(0, uint64(len(rows)))
	if spec.IsEmpty() || len(rows) == 0 {
		return sel
	}

	sel = selectDateRange(rows, sel, spec, columns)

	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}

	for _, e := range spec.Entries {
		if IsReserved(e.Key) {
			continue
		}
		if _, ok := known[e.Key]; !ok {
			continue
		}
		sel = selectColumn(rows, sel, e.Key, e.Value)
	}

	return sel
}

// keep returns the subset of sel whose rows satisfy pred.
func keep(rows []dataset.Row, sel *roaring.Bitmap, pred func(dataset.Row) bool) *roaring.Bitmap {
	next := roaring.New()
	sel.Iterate(func(i uint32) bool {
		if pred(rows[i]) {
			next.Add(i)
		}
		return true
	})
	return next
}

// selectDateRange applies start_date and end_date to every date-like column.
func selectDateRange(rows []dataset.Row, sel *roaring.Bitmap, spec *Spec, columns []string) *roaring.Bitmap {
	startVal, _ := spec.Lookup(StartDateKey)
	endVal, _ := spec.Lookup(EndDateKey)
	if startVal.IsNoop() && endVal.IsNoop() {
		return sel
	}

	dateCols := DateColumns(columns)
	if len(dateCols) == 0 {
		return sel
	}

	var start, end time.Time
	var hasStart, hasEnd bool
	if !startVal.IsNoop() {
		if start, hasStart = dateBound(startVal); !hasStart {
			// an unreadable start bound disables both bounds
			return sel
		}
	}
	if !endVal.IsNoop() {
		end, hasEnd = dateBound(endVal)
	}

	for _, col := range dateCols {
		if hasStart {
			sel = keep(rows, sel, func(r dataset.Row) bool {
				t, ok := TryParseDate(r.Get(col))
				return ok && !t.Before(start)
			})
		}
		if hasEnd {
			sel = keep(rows, sel, func(r dataset.Row) bool {
				t, ok := TryParseDate(r.Get(col))
				return ok && !t.After(end)
			})
		}
	}
	return sel
}

func dateBound(v Value) (time.Time, bool) {
	if v.Kind != KindScalar {
		return time.Time{}, false
	}
	return TryParseDate(v.Scalar)
}

// selectColumn applies one specification entry to its column.
func selectColumn(rows []dataset.Row, sel *roaring.Bitmap, col string, v Value) *roaring.Bitmap {
	switch v.Kind {
	case KindList:
		return selectMembership(rows, sel, col, v.List)
	case KindRange:
		return selectRange(rows, sel, col, v.Min, v.Max)
	case KindScalar:
		want := normalize(v.Scalar)
		return keep(rows, sel, func(r dataset.Row) bool {
			return normalize(r.Get(col)) == want
		})
	default:
		return sel
	}
}

func selectMembership(rows []dataset.Row, sel *roaring.Bitmap, col string, values []any) *roaring.Bitmap {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		s := normalize(v)
		if s == "all" {
			return sel
		}
		set[s] = struct{}{}
	}

	return keep(rows, sel, func(r dataset.Row) bool {
		_, ok := set[normalize(r.Get(col))]
		return ok
	})
}

// selectRange applies inclusive numeric bounds. A bound that is not a number
// is skipped; a row value that is not a number is excluded by any bound.
func selectRange(rows []dataset.Row, sel *roaring.Bitmap, col string, min, max any) *roaring.Bitmap {
	if min != nil {
		if lo, ok := TryParseNumber(min); ok {
			sel = keep(rows, sel, func(r dataset.Row) bool {
				n, ok := TryParseNumber(r.Get(col))
				return ok && n >= lo
			})
		}
	}
	if max != nil {
		if hi, ok := TryParseNumber(max); ok {
			sel = keep(rows, sel, func(r dataset.Row) bool {
				n, ok := TryParseNumber(r.Get(col))
				return ok && n <= hi
			})
		}
	}
	return sel
}
