package mendeley

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// RawRecord is one decoded JSON object as returned by the API. Numbers are
// json.Number.
type RawRecord map[string]any

// String returns a string field, formatting scalars; missing or structured
// values yield "".
func (r RawRecord) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Int returns an integer field; non-numeric values yield 0.
func (r RawRecord) Int(key string) int {
	switch v := r[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

// Int64 returns an integer field as int64.
func (r RawRecord) Int64(key string) int64 {
	switch v := r[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Bool returns a boolean field; anything else yields false.
func (r RawRecord) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Strings returns a list-of-strings field, skipping non-string entries.
func (r RawRecord) Strings(key string) []string {
	list, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Object returns a nested object field, or nil.
func (r RawRecord) Object(key string) RawRecord {
	switch v := r[key].(type) {
	case map[string]any:
		return RawRecord(v)
	case RawRecord:
		return v
	}
	return nil
}

// Time parses an RFC 3339 timestamp field; failures yield the zero time.
func (r RawRecord) Time(key string) time.Time {
	s := r.String(key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StringMap returns a flat object of scalar values as strings.
func (r RawRecord) StringMap(key string) map[string]string {
	obj := r.Object(key)
	if len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k := range obj {
		if v := obj.String(k); v != "" {
			out[k] = v
		}
	}
	return out
}

// Clone returns a deep copy, so a bound object never aliases a caller's map.
func (r RawRecord) Clone() RawRecord {
	if r == nil {
		return nil
	}
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(RawRecord(t).Clone())
	case RawRecord:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// requireID returns the record's id or a schema error naming kind.
func (r RawRecord) requireID(kind Kind) (string, error) {
	id := r.String("id")
	if id == "" {
		return "", schemaError(kind, "id")
	}
	return id, nil
}
