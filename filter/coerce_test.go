package filter

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestTryParseNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{int64(42), 42, true},
		{3.5, 3.5, true},
		{float32(0.5), 0.5, true},
		{uint64(7), 7, true},
		{json.Number("12"), 12, true},
		{"10", 10, true},
		{" 12.5 ", 12.5, true},
		{"-3e2", -300, true},
		{true, 1, true},
		{"abc", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{[]any{1}, 0, false},
	}

	for _, tt := range tests {
		got, ok := TryParseNumber(tt.in)
		if ok != tt.ok {
			t.Errorf("TryParseNumber(%#v): expected ok=%v, got %v", tt.in, tt.ok, ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("TryParseNumber(%#v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestTryParseDate(t *testing.T) {
	tests := []struct {
		in   any
		want time.Time
		ok   bool
	}{
		{"2024-01-05", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"2024-01-05 13:45:00", time.Date(2024, 1, 5, 13, 45, 0, 0, time.UTC), true},
		{"2024-01-05T13:45:00Z", time.Date(2024, 1, 5, 13, 45, 0, 0, time.UTC), true},
		{"01/05/2024", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{int64(0), time.Unix(0, 0).UTC(), true},
		{json.Number("1000000000"), time.Unix(1, 0).UTC(), true},
		{"not a date", time.Time{}, false},
		{"", time.Time{}, false},
		{nil, time.Time{}, false},
		{true, time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := TryParseDate(tt.in)
		if ok != tt.ok {
			t.Errorf("TryParseDate(%#v): expected ok=%v, got %v", tt.in, tt.ok, ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("TryParseDate(%#v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"Active", "Active"},
		{true, "true"},
		{false, "false"},
		{int64(10), "10"},
		{10, "10"},
		{uint32(3), "3"},
		{10.0, "10.0"},
		{2.5, "2.5"},
		{-0.25, "-0.25"},
		{1e16, "1e+16"},
		{0.00001, "1e-05"},
		{float32(0.5), "0.5"},
		{math.NaN(), "nan"},
		{math.Inf(-1), "-inf"},
		{json.Number("10"), "10"},
		{json.Number("10.50"), "10.50"},
	}

	for _, tt := range tests {
		if got := Stringify(tt.in); got != tt.want {
			t.Errorf("Stringify(%#v): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
