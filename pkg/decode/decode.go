// Package decode reads loosely typed JSON values produced by a model. Every
// accessor returns a default instead of failing when a field is missing or
// has the wrong type.
package decode

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Object returns v as a JSON object.
func Object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Field returns m[key] as an object, or an empty object.
func Field(m map[string]any, key string) map[string]any {
	if o, ok := Object(m[key]); ok {
		return o
	}
	return map[string]any{}
}

// Array returns v as a JSON array, or nil when it is not one.
func Array(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// Objects returns the object elements of m[key], skipping anything else.
func Objects(m map[string]any, key string) []map[string]any {
	return ObjectsOf(m[key])
}

// ObjectsOf returns the object elements of v when v is an array.
func ObjectsOf(v any) []map[string]any {
	arr, _ := Array(v)
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if o, ok := Object(item); ok {
			out = append(out, o)
		}
	}
	return out
}

// Has reports whether key is present in m.
func Has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// String returns m[key] as a string. Numbers and booleans are formatted;
// missing, empty, null, object and array values yield def.
func String(m map[string]any, key, def string) string {
	return StringOf(m[key], def)
}

// StringOf converts a scalar to a string, or returns def.
func StringOf(v any, def string) string {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return def
		}
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return def
	}
}

// OptString is String with an empty default.
func OptString(m map[string]any, key string) string {
	return String(m, key, "")
}

// Number returns m[key] as a float64. Numeric strings such as "$1,234.50",
// "+3.2%" or "12" are parsed; anything else yields def.
func Number(m map[string]any, key string, def float64) float64 {
	return NumberOf(m[key], def)
}

// NumberOf converts v to a float64, or returns def.
func NumberOf(v any, def float64) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return def
		}
		f = n
	case string:
		s := strings.NewReplacer("$", "", ",", "", "%", "", "+", "").Replace(strings.TrimSpace(x))
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		f = n
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// Strings returns m[key] as a list of strings. Scalars inside the array are
// formatted and other elements are dropped. A lone string becomes a
// single-element list. The result is never nil.
func Strings(m map[string]any, key string) []string {
	switch x := m[key].(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s := StringOf(item, ""); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(x) != "" {
			return []string{x}
		}
	}
	return []string{}
}

// OneOf matches m[key] case-insensitively against allowed and returns the
// canonical spelling, or def.
func OneOf(m map[string]any, key, def string, allowed ...string) string {
	s := strings.TrimSpace(StringOf(m[key], ""))
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return a
		}
	}
	return def
}

// Compact renders v as compact JSON text.
func Compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Slice decodes every object element of m[key] with fn. The result is never
// nil.
func Slice[T any](m map[string]any, key string, fn func(map[string]any) T) []T {
	return SliceOf(m[key], fn)
}

// SliceOf decodes every object element of v with fn.
func SliceOf[T any](v any, fn func(map[string]any) T) []T {
	objs := ObjectsOf(v)
	out := make([]T, 0, len(objs))
	for _, o := range objs {
		out = append(out, fn(o))
	}
	return out
}
