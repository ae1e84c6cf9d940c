package mbus

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// FieldSet offers typed helpers on top of the field map of a Result.
type FieldSet struct {
	data map[string]any
}

// FieldSet returns a FieldSet wrapper for the result's fields.
func (r Result) FieldSet() FieldSet {
	return FieldSet{data: r.Fields}
}

// Map exposes the underlying map.
func (fs FieldSet) Map() map[string]any {
	return fs.data
}

// Names returns the field names in lexical order.
func (fs FieldSet) Names() []string {
	names := make([]string, 0, len(fs.data))
	for name := range fs.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Raw returns the stored value without conversions.
func (fs FieldSet) Raw(key string) (any, bool) {
	if fs.data == nil {
		return nil, false
	}
	v, ok := fs.data[key]
	return v, ok
}

func (fs FieldSet) lookup(key string) (any, error) {
	v, ok := fs.Raw(key)
	if !ok {
		return nil, fmt.Errorf("field %q missing", key)
	}
	return v, nil
}

// Float returns a numeric field as float64. Scaled record values are stored
// as float64 already.
func (fs FieldSet) Float(key string) (float64, error) {
	v, err := fs.lookup(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q is not numeric: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q has unsupported type %T", key, v)
	}
}

// Int returns a numeric field as int64. Floats must be integral.
func (fs FieldSet) Int(key string) (int64, error) {
	v, err := fs.lookup(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("field %q is not integer: %g", key, n)
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q is not integer: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("field %q has unsupported type %T", key, v)
	}
}

// String returns the field formatted as a string.
func (fs FieldSet) String(key string) (string, error) {
	v, err := fs.lookup(key)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// Bool returns the field coerced to bool.
func (fs FieldSet) Bool(key string) (bool, error) {
	v, err := fs.lookup(key)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("field %q is not bool: %w", key, err)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("field %q has unsupported type %T", key, v)
	}
}

// Time parses a date field.
func (fs FieldSet) Time(key string) (time.Time, error) {
	s, err := fs.String(key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q is not a date: %w", key, err)
	}
	return t, nil
}
