package plugin

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Args holds the named arguments of a function call as decoded from JSON.
type Args map[string]any

// ParseArgs decodes a JSON object. Blank input yields empty Args.
func ParseArgs(s string) (Args, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Args{}, nil
	}
	var a Args
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return nil, Invalid("arguments must be a JSON object: %v", err)
	}
	if a == nil {
		a = Args{}
	}
	return a, nil
}

// Has reports whether key is present and not null.
func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// String returns the string value of key. Numbers and booleans are
// formatted; other types are reported as invalid.
func (a Args) String(key string) (string, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch t := v.(type) {
	case string:
		return t, true, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true, nil
	case int:
		return strconv.Itoa(t), true, nil
	case int64:
		return strconv.FormatInt(t, 10), true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	case json.Number:
		return t.String(), true, nil
	}
	return "", false, Invalid("%s must be a string, got %T", key, v)
}

// RequireString returns the non-blank string value of key.
func (a Args) RequireString(key string) (string, error) {
	s, ok, err := a.String(key)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(s) == "" {
		return "", Missing(key)
	}
	return s, nil
}

// StringOr returns the string value of key or def when absent.
func (a Args) StringOr(key, def string) (string, error) {
	s, ok, err := a.String(key)
	if err != nil || !ok {
		return def, err
	}
	return s, nil
}

// Float returns the numeric value of key. Numeric strings are accepted.
func (a Args) Float(key string) (float64, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		return t, true, nil
	case float32:
		return float64(t), true, nil
	case int:
		return float64(t), true, nil
	case int64:
		return float64(t), true, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false, Invalid("%s must be a number: %v", key, err)
		}
		return f, true, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false, Invalid("%s must be a number, got %q", key, t)
		}
		return f, true, nil
	}
	return 0, false, Invalid("%s must be a number, got %T", key, v)
}

// RequireFloat returns the numeric value of key or a validation error.
func (a Args) RequireFloat(key string) (float64, error) {
	f, ok, err := a.Float(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, Missing(key)
	}
	return f, nil
}

// Int returns the integer value of key, or def when absent.
func (a Args) Int(key string, def int) (int, error) {
	f, ok, err := a.Float(key)
	if err != nil || !ok {
		return def, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, Invalid("%s must be an integer, got %v", key, f)
	}
	return int(f), nil
}

// Bool returns the boolean value of key, or def when absent.
func (a Args) Bool(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, Invalid("%s must be a boolean, got %q", key, t)
		}
		return b, nil
	}
	return false, Invalid("%s must be a boolean, got %T", key, v)
}

// Map returns the object value of key. A string holding a JSON object is
// decoded, since models often pass nested objects that way.
func (a Args) Map(key string) (map[string]any, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	switch t := v.(type) {
	case map[string]any:
		return t, true, nil
	case Args:
		return t, true, nil
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(t), &m); err != nil {
			return nil, false, Invalid("%s must be a JSON object: %v", key, err)
		}
		return m, true, nil
	}
	return nil, false, Invalid("%s must be an object, got %T", key, v)
}

// RequireMap returns the non-empty object value of key.
func (a Args) RequireMap(key string) (map[string]any, error) {
	m, ok, err := a.Map(key)
	if err != nil {
		return nil, err
	}
	if !ok || len(m) == 0 {
		return nil, Missing(key)
	}
	return m, nil
}

// StringSlice returns the list value of key. Each element is formatted
// with fmt when it is not already a string.
func (a Args) StringSlice(key string) ([]string, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	switch t := v.(type) {
	case []string:
		return t, true, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprint(e))
		}
		return out, true, nil
	}
	return nil, false, Invalid("%s must be a list, got %T", key, v)
}
