package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timeLayout is used for every TEXT timestamp column. Fixed width keeps
// lexical and chronological order the same.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// marshalJSON encodes v as compact JSON TEXT. HTML escaping is disabled so
// food names with '&' or '<' are stored as written.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalJSON decodes JSON TEXT into v. Empty input leaves v untouched.
func unmarshalJSON(data string, v any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}

// marshalParams encodes transition params. nil encodes as "{}".
func marshalParams(p map[string]string) (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	s, err := marshalJSON(p)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return s, nil
}

// unmarshalParams decodes transition params. "{}" decodes as nil.
func unmarshalParams(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var p map[string]string
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	return p, nil
}
