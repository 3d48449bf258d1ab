package filter

import (
	"reflect"
	"testing"

	"github.com/hugr-lab/glimpsy/dataset"
)

var exampleColumns = []string{"status", "price", "created_date"}

func exampleRows() []dataset.Row {
	return []dataset.Row{
		{"status": "Active", "price": "10", "created_date": "2024-01-05"},
		{"status": "Closed", "price": "50", "created_date": "2024-02-01"},
	}
}

func mustParse(t *testing.T, s string) *Spec {
	t.Helper()
	spec, err := Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%s) failed: %v", s, err)
	}
	return spec
}

func statuses(rows []dataset.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = Stringify(r.Get("status"))
	}
	return out
}

func TestApplyExample(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{"status and price", `{"status": ["active"], "price": {"min": 5, "max": 20}}`, []string{"Active"}},
		{"start date", `{"start_date": "2024-01-10"}`, []string{"Closed"}},
		{"end date", `{"end_date": "2024-01-10"}`, []string{"Active"}},
		{"date window", `{"start_date": "2024-01-01", "end_date": "2024-12-31"}`, []string{"Active", "Closed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := statuses(Apply(exampleRows(), mustParse(t, tt.filter), exampleColumns))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestApplyIdentity(t *testing.T) {
	rows := exampleRows()

	for _, spec := range []*Spec{nil, {}, mustParse(t, `{}`)} {
		got := Apply(rows, spec, exampleColumns)
		if len(got) != len(rows) || &got[0] != &rows[0] {
			t.Errorf("expected identical rows for empty spec")
		}
	}

	if got := Apply(nil, mustParse(t, `{"status": "active"}`), exampleColumns); len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}

func TestApplyNoopValues(t *testing.T) {
	spec := mustParse(t, `{"status": "", "price": null, "created_date": []}`)
	if got := Apply(exampleRows(), spec, exampleColumns); len(got) != 2 {
		t.Errorf("expected no-op values to keep all rows, got %d", len(got))
	}
}

func TestApplyUnknownKeysIgnored(t *testing.T) {
	spec := mustParse(t, `{"missing": "x", "status": "closed"}`)
	got := statuses(Apply(exampleRows(), spec, exampleColumns))
	if !reflect.DeepEqual(got, []string{"Closed"}) {
		t.Errorf("expected [Closed], got %v", got)
	}
}

func TestApplyAllDisablesList(t *testing.T) {
	for _, filter := range []string{
		`{"status": ["all"]}`,
		`{"status": ["ALL", "closed"]}`,
		`{"status": ["closed", "All"]}`,
	} {
		got := Apply(exampleRows(), mustParse(t, filter), exampleColumns)
		if len(got) != 2 {
			t.Errorf("%s: expected all rows, got %d", filter, len(got))
		}
	}
}

func TestApplyListMembership(t *testing.T) {
	rows := []dataset.Row{
		{"code": int64(1)},
		{"code": int64(2)},
		{"code": "3"},
		{},
	}
	cols := []string{"code"}

	got := Apply(rows, mustParse(t, `{"code": [1, "3"]}`), cols)
	if len(got) != 2 || got[0]["code"] != int64(1) || got[1]["code"] != "3" {
		t.Errorf("unexpected membership result %v", got)
	}

	// absent keys read as the empty string
	got = Apply(rows, NewSpec(Entry{Key: "code", Value: List("", "2")}), cols)
	if len(got) != 2 || got[0]["code"] != int64(2) || len(got[1]) != 0 {
		t.Errorf("unexpected membership result with empty member %v", got)
	}
}

func TestApplyScalarCaseInsensitive(t *testing.T) {
	got := statuses(Apply(exampleRows(), mustParse(t, `{"status": "ACTIVE"}`), exampleColumns))
	if !reflect.DeepEqual(got, []string{"Active"}) {
		t.Errorf("expected [Active], got %v", got)
	}

	rows := []dataset.Row{{"flag": true}, {"flag": false}, {"flag": "TRUE"}}
	got = nil
	for _, r := range Apply(rows, mustParse(t, `{"flag": true}`), []string{"flag"}) {
		got = append(got, Stringify(r["flag"]))
	}
	if !reflect.DeepEqual(got, []string{"true", "TRUE"}) {
		t.Errorf("expected [true TRUE], got %v", got)
	}
}

func TestApplyScalarZeroFilters(t *testing.T) {
	rows := []dataset.Row{{"n": int64(0)}, {"n": int64(1)}}
	got := Apply(rows, mustParse(t, `{"n": 0}`), []string{"n"})
	if len(got) != 1 || got[0]["n"] != int64(0) {
		t.Errorf("expected only the zero row, got %v", got)
	}
}

func TestApplyRangeExcludesNonNumeric(t *testing.T) {
	rows := []dataset.Row{
		{"price": "abc"},
		{"price": int64(5)},
		{"price": ""},
		{"price": 1.5},
	}
	cols := []string{"price"}

	got := Apply(rows, mustParse(t, `{"price": {"min": 1}}`), cols)
	if len(got) != 2 || got[0]["price"] != int64(5) || got[1]["price"] != 1.5 {
		t.Errorf("expected numeric rows only, got %v", got)
	}

	got = Apply(rows, mustParse(t, `{"price": {"max": 2}}`), cols)
	if len(got) != 1 || got[0]["price"] != 1.5 {
		t.Errorf("expected [1.5], got %v", got)
	}
}

func TestApplyRangeBadBoundIsNoop(t *testing.T) {
	rows := []dataset.Row{{"price": "abc"}, {"price": int64(5)}}
	cols := []string{"price"}

	for _, filter := range []string{
		`{"price": {"min": "abc"}}`,
		`{"price": {"min": null, "max": null}}`,
		`{"price": {}}`,
		`{"price": {"low": 3}}`,
	} {
		if got := Apply(rows, mustParse(t, filter), cols); len(got) != 2 {
			t.Errorf("%s: expected no-op, got %d rows", filter, len(got))
		}
	}

	// a bad min is skipped while a good max still applies
	got := Apply(rows, mustParse(t, `{"price": {"min": "abc", "max": "10"}}`), cols)
	if len(got) != 1 || got[0]["price"] != int64(5) {
		t.Errorf("expected [5], got %v", got)
	}
}

func TestApplyRangeInclusive(t *testing.T) {
	rows := []dataset.Row{{"v": int64(5)}, {"v": int64(10)}, {"v": int64(20)}, {"v": int64(21)}}
	got := Apply(rows, NewSpec(Entry{Key: "v", Value: Range(int64(10), "20")}), []string{"v"})
	if len(got) != 2 || got[0]["v"] != int64(10) || got[1]["v"] != int64(20) {
		t.Errorf("expected [10 20], got %v", got)
	}
}

func TestApplyDateExcludesUnparsable(t *testing.T) {
	rows := []dataset.Row{
		{"id": int64(1), "event_time": "2024-03-01 10:00:00"},
		{"id": int64(2), "event_time": "soon"},
		{"id": int64(3), "event_time": ""},
		{"id": int64(4)},
	}
	cols := []string{"id", "event_time"}

	for _, filter := range []string{`{"start_date": "2020-01-01"}`, `{"end_date": "2030-01-01"}`} {
		got := Apply(rows, mustParse(t, filter), cols)
		if len(got) != 1 || got[0]["id"] != int64(1) {
			t.Errorf("%s: expected only the parsable row, got %v", filter, got)
		}
	}

	// without a bound the same rows pass
	if got := Apply(rows, mustParse(t, `{"id": {"min": 0}}`), cols); len(got) != 4 {
		t.Errorf("expected all rows without date bounds, got %d", len(got))
	}
}

func TestApplyDateBadBounds(t *testing.T) {
	rows := exampleRows()

	// an unreadable start disables the whole date stage
	got := Apply(rows, mustParse(t, `{"start_date": "whenever", "end_date": "2024-01-10"}`), exampleColumns)
	if len(got) != 2 {
		t.Errorf("expected date stage to be skipped, got %d rows", len(got))
	}

	// an unreadable end only drops the end bound
	got = Apply(rows, mustParse(t, `{"start_date": "2024-01-10", "end_date": "whenever"}`), exampleColumns)
	if s := statuses(got); !reflect.DeepEqual(s, []string{"Closed"}) {
		t.Errorf("expected [Closed], got %v", s)
	}

	// list bounds are not dates
	got = Apply(rows, mustParse(t, `{"start_date": ["2024-01-10"]}`), exampleColumns)
	if len(got) != 2 {
		t.Errorf("expected list bound to be ignored, got %d rows", len(got))
	}
}

func TestApplyDateNoDateColumns(t *testing.T) {
	rows := []dataset.Row{{"name": "a"}, {"name": "b"}}
	if got := Apply(rows, mustParse(t, `{"start_date": "2024-01-01"}`), []string{"name"}); len(got) != 2 {
		t.Errorf("expected all rows, got %d", len(got))
	}
}

func TestApplyDateAllColumnsMustMatch(t *testing.T) {
	rows := []dataset.Row{
		{"id": int64(1), "Created": "2024-05-01", "updated_at": "2024-05-02"},
		{"id": int64(2), "Created": "2023-05-01", "updated_at": "2024-05-02"},
		{"id": int64(3), "Created": "2024-05-01", "updated_at": "n/a"},
	}
	cols := []string{"id", "Created", "updated_at"}

	got := Apply(rows, mustParse(t, `{"start_date": "2024-01-01"}`), cols)
	if len(got) != 1 || got[0]["id"] != int64(1) {
		t.Errorf("expected only row 1, got %v", got)
	}
}

func TestApplyReservedKeysNotColumns(t *testing.T) {
	rows := []dataset.Row{{"start_date": "x"}, {"start_date": "y"}}
	got := Apply(rows, mustParse(t, `{"start_date": "y"}`), []string{"start_date"})
	if len(got) != 2 {
		t.Errorf("expected reserved key not to filter by equality, got %v", got)
	}
}

func TestApplyDoesNotMutate(t *testing.T) {
	rows := exampleRows()
	before := exampleRows()

	got := Apply(rows, mustParse(t, `{"status": "closed", "price": {"min": 1}}`), exampleColumns)
	if !reflect.DeepEqual(rows, before) {
		t.Errorf("input rows changed: %v", rows)
	}
	if len(got) != 1 || !reflect.DeepEqual(got[0], rows[1]) {
		t.Errorf("expected the closed row, got %v", got)
	}
	got[0]["status"] = "mutated"
	if rows[1]["status"] != "mutated" {
		t.Error("expected surviving rows to be shared with the input")
	}
}

func TestApplyStableOrder(t *testing.T) {
	var rows []dataset.Row
	for i := 0; i < 50; i++ {
		rows = append(rows, dataset.Row{"n": int64(i), "even": i%2 == 0})
	}

	got := Apply(rows, mustParse(t, `{"even": true, "n": {"min": 10}}`), []string{"n", "even"})
	if len(got) != 20 {
		t.Fatalf("expected 20 rows, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i]["n"].(int64) <= got[i-1]["n"].(int64) {
			t.Fatalf("rows out of order at %d", i)
		}
	}
}

func TestSelect(t *testing.T) {
	sel := Select(exampleRows(), mustParse(t, `{"price": {"min": 20}}`), exampleColumns)
	if sel.GetCardinality() != 1 || !sel.Contains(1) {
		t.Errorf("expected position 1, got %v", sel.ToArray())
	}

	sel = Select(exampleRows(), nil, exampleColumns)
	if sel.GetCardinality() != 2 {
		t.Errorf("expected both positions, got %v", sel.ToArray())
	}
}
