package parser

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func at(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

// object asserts v is a JSON object and that every key in required is
// present. Presence is checked before any value is inspected.
func object(v any, path, label string, required ...string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errAt(path, v, "Expected object for %s, got %s", label, kindOf(v))
	}
	for _, key := range required {
		if _, ok := m[key]; !ok {
			return nil, errAt(join(path, key), nil, "Missing required field: %s", join(path, key))
		}
	}
	return m, nil
}

func str(m map[string]any, path, key string) (string, error) {
	return asString(m[key], join(path, key))
}

func asString(v any, path string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errAt(path, v, "Expected string for field '%s', got %s", path, kindOf(v))
	}
	return s, nil
}

// optStr treats an absent or null key as the empty string.
func optStr(m map[string]any, path, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	return asString(v, join(path, key))
}

func num(m map[string]any, path, key string) (float64, error) {
	p := join(path, key)
	n, ok := m[key].(json.Number)
	if !ok {
		return 0, errAt(p, m[key], "Expected number for field '%s', got %s", p, kindOf(m[key]))
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errAt(p, m[key], "Expected number for field '%s', got %s", p, n.String())
	}
	return f, nil
}

func integer(m map[string]any, path, key string) (int, error) {
	f, err := num(m, path, key)
	if err != nil {
		return 0, err
	}
	// -math.MinInt is the first value past the int range on every platform
	if f != math.Trunc(f) || f < math.MinInt || f >= -math.MinInt {
		p := join(path, key)
		return 0, errAt(p, m[key], "Expected integer for field '%s', got %v", p, f)
	}
	return int(f), nil
}

func strList(m map[string]any, path, key string) ([]string, error) {
	return list(m, path, key, asString)
}

// list decodes an array field element by element, prefixing element
// failures with the element index.
func list[T any](m map[string]any, path, key string, parse func(v any, path string) (T, error)) ([]T, error) {
	p := join(path, key)
	raw, ok := m[key].([]any)
	if !ok {
		return nil, errAt(p, m[key], "Expected array for field '%s', got %s", p, kindOf(m[key]))
	}
	out := make([]T, 0, len(raw))
	for i, item := range raw {
		v, err := parse(item, at(p, i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type closedEnum interface {
	~string
	Valid() bool
	Values() []string
}

func enum[E closedEnum](m map[string]any, path, key, label string) (E, error) {
	p := join(path, key)
	s, err := str(m, path, key)
	if err != nil {
		return "", err
	}
	e := E(s)
	if !e.Valid() {
		return "", errAt(p, s, "Invalid %s: %s. Must be one of: %s", label, s, strings.Join(e.Values(), ", "))
	}
	return e, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// date accepts an ISO-8601 string or a number of epoch milliseconds.
func date(m map[string]any, path, key string) (time.Time, error) {
	p := join(path, key)
	switch v := m[key].(type) {
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, errAt(p, v, "Invalid date for field '%s': %s", p, v)
	case json.Number:
		ms, err := v.Float64()
		if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) {
			return time.Time{}, errAt(p, v, "Invalid date for field '%s': %s", p, v.String())
		}
		return time.UnixMilli(int64(math.Round(ms))).UTC(), nil
	default:
		return time.Time{}, errAt(p, v, "Expected date string or timestamp for field '%s', got %s", p, kindOf(v))
	}
}
