// Package filter applies schema-agnostic filter specifications to dataset rows.
//
// A filter specification is a JSON object mapping a column name to a filter
// value. Nothing about the dataset is known in advance: the kind of test is
// inferred from the shape of the value and from the column name.
//
//   - list of scalars: categorical membership, case-insensitive.
//     A list containing "all" (any case) disables the filter.
//   - object with "min" and/or "max": inclusive numeric range.
//   - any other scalar: case-insensitive exact match.
//   - null, "" or []: no filter.
//
// The reserved keys "start_date" and "end_date" are not column names. They
// bound every date-like column of the dataset, that is every column whose
// name contains "date", "time", "created" or "updated".
//
// # Basic Usage
//
// Parse the filter object received in a request and apply it:
//
//	spec, err := filter.Parse(body)
//	if err != nil {
//	    return err // not a JSON object
//	}
//
//	rows := filter.Apply(ds.Rows, spec, ds.Columns)
//
// Keys that are not in the column list are dropped silently.
//
// # Processing Order
//
// The date stage runs first, then one stage per specification entry in the
// order the keys appear in the JSON object. Each stage narrows the rows left
// by the previous one, so active filters combine with AND. Surviving rows keep
// their original relative order and are never modified.
//
// # Coercion
//
// Values are compared after best-effort coercion (see TryParseNumber,
// TryParseDate and Stringify). Coercion failures never produce errors:
//
//   - a row value that is not a date is excluded by a date bound
//   - a row value that is not a number is excluded by a numeric bound
//   - a numeric bound that is not a number disables that bound
//   - a start_date bound that is not a date disables the whole date stage,
//     an end_date bound that is not a date disables only that bound
//
// When a dataset has several date-like columns a row must satisfy the date
// bounds on every one of them.
package filter
