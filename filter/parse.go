package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Parse parses a JSON filter object into a Spec, keeping key order.
// Numbers are kept as json.Number so that integers stringify without
// a fractional part.
//
// Empty input and JSON null yield an empty Spec.
// Error conditions:
//   - Invalid JSON syntax
//   - Top-level value is not an object
//   - Trailing data after the object
func Parse(data []byte) (*Spec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Spec{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("filter: invalid JSON: %w", err)
	}
	if tok == nil {
		return &Spec{}, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("filter: expected JSON object, got %v", tok)
	}

	spec := &Spec{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("filter: invalid JSON: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("filter: invalid key %v", keyTok)
		}

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("filter: invalid value for %q: %w", key, err)
		}
		spec.Set(key, ValueOf(raw))
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("filter: invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("filter: unexpected data after filter object")
	}

	return spec, nil
}

// rawRequest is the body of a filter request.
type rawRequest struct {
	Filters json.RawMessage `json:"filters"`
}

// ParseRequest parses a filter request body of the form {"filters": {...}}.
// A missing or null "filters" member yields an empty Spec.
func ParseRequest(data []byte) (*Spec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Spec{}, nil
	}

	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("filter: invalid request: %w", err)
	}

	return Parse(raw.Filters)
}
