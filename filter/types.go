package filter

import "strings"

// Reserved specification keys. They bound all date-like columns and are never
// treated as column names.
const (
	StartDateKey = "start_date"
	EndDateKey   = "end_date"
)

// dateKeywords mark a column name as date-like.
var dateKeywords = []string{"date", "time", "created", "updated"}

// IsReserved reports whether key is one of the global date bound keys.
func IsReserved(key string) bool {
	return key == StartDateKey || key == EndDateKey
}

// IsDateColumn reports whether a column takes part in the date stage.
func IsDateColumn(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range dateKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DateColumns returns the date-like columns in their original order.
func DateColumns(columns []string) []string {
	var out []string
	for _, c := range columns {
		if IsDateColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// Kind identifies the variant held by a Value.
type Kind int

const (
	// KindNone is a value that filters nothing: null, "" or an empty list.
	KindNone Kind = iota
	// KindScalar is a single value compared for case-insensitive equality.
	KindScalar
	// KindList is a categorical membership test.
	KindList
	// KindRange is an inclusive numeric range.
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindRange:
		return "range"
	default:
		return "unknown"
	}
}

// Value is a filter value: Scalar, List or Range, selected by Kind.
type Value struct {
	Kind Kind

	// Scalar is set for KindScalar.
	Scalar any

	// List is set for KindList and is never empty.
	List []any

	// Min and Max are set for KindRange. A nil bound is absent.
	Min any
	Max any
}

// Scalar returns an exact-match value. "" and nil yield a no-op value.
func Scalar(v any) Value {
	if v == nil {
		return Value{}
	}
	if s, ok := v.(string); ok && s == "" {
		return Value{}
	}
	return Value{Kind: KindScalar, Scalar: v}
}

// List returns a membership value. An empty list yields a no-op value.
func List(values ...any) Value {
	if len(values) == 0 {
		return Value{}
	}
	return Value{Kind: KindList, List: values}
}

// Range returns an inclusive range value. Pass nil to omit a bound.
func Range(min, max any) Value {
	return Value{Kind: KindRange, Min: min, Max: max}
}

// ValueOf classifies a decoded JSON value.
func ValueOf(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{}
	case []any:
		return List(v...)
	case map[string]any:
		return Range(v["min"], v["max"])
	default:
		return Scalar(v)
	}
}

// IsNoop reports whether the value filters nothing.
func (v Value) IsNoop() bool {
	return v.Kind == KindNone
}

// Entry is one key of a specification.
type Entry struct {
	Key   string
	Value Value
}

// Spec is an ordered filter specification.
// The zero value and a nil *Spec both filter nothing.
type Spec struct {
	Entries []Entry
}

// NewSpec builds a specification from entries, keeping their order.
func NewSpec(entries ...Entry) *Spec {
	s := &Spec{}
	for _, e := range entries {
		s.Set(e.Key, e.Value)
	}
	return s
}

// Set adds key or replaces its value in place.
func (s *Spec) Set(key string, v Value) {
	for i := range s.Entries {
		if s.Entries[i].Key == key {
			s.Entries[i].Value = v
			return
		}
	}
	s.Entries = append(s.Entries, Entry{Key: key, Value: v})
}

// Lookup returns the value of key.
func (s *Spec) Lookup(key string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	for _, e := range s.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// IsEmpty reports whether the specification has no keys at all.
func (s *Spec) IsEmpty() bool {
	return s == nil || len(s.Entries) == 0
}

// Len returns the number of keys.
func (s *Spec) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}
