package settings

import (
	"fmt"
	"math"
	"strings"
)

// section is a typed view over one mapping of the merged tree.
type section struct {
	path   string
	values map[string]any
}

func (s section) keyPath(key string) string {
	if s.path == "" {
		return key
	}
	return s.path + "." + key
}

func (s section) fail(kind error, key, format string, args ...any) *ConfigError {
	return &ConfigError{
		Kind:    kind,
		Key:     key,
		Path:    s.keyPath(key),
		Message: fmt.Sprintf(format, args...),
	}
}

// lookup returns the value stored under key. Exact matches win over
// case-insensitive ones; explicit nulls count as absent.
func (s section) lookup(key string) (any, bool) {
	if value, ok := s.values[key]; ok {
		return value, value != nil
	}
	for existing, value := range s.values {
		if strings.EqualFold(existing, key) {
			return value, value != nil
		}
	}
	return nil, false
}

func (s section) child(key string) (section, bool, error) {
	raw, ok := s.lookup(key)
	if !ok {
		return section{}, false, nil
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return section{}, false, s.fail(ErrInvalidType, key, "expected a mapping, got %s", typeName(raw))
	}
	return section{path: s.keyPath(key), values: values}, true, nil
}

func (s section) requireChild(key string) (section, error) {
	child, ok, err := s.child(key)
	if err != nil {
		return section{}, err
	}
	if !ok {
		return section{}, s.fail(ErrMissingField, key, "section is required")
	}
	return child, nil
}

func (s section) str(key string) (string, bool, error) {
	raw, ok := s.lookup(key)
	if !ok {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", false, s.fail(ErrInvalidType, key, "expected a string, got %s", typeName(raw))
	}
	value = strings.TrimSpace(value)
	return value, value != "", nil
}

func (s section) requireStr(key string) (string, error) {
	value, ok, err := s.str(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", s.fail(ErrMissingField, key, "must not be empty")
	}
	return value, nil
}

func (s section) integer(key string) (int, bool, error) {
	raw, ok := s.lookup(key)
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0, false, s.fail(ErrInvalidRange, key, "%d does not fit an integer", v)
		}
		return int(v), true, nil
	case uint64:
		if v > math.MaxInt32 {
			return 0, false, s.fail(ErrInvalidRange, key, "%d does not fit an integer", v)
		}
		return int(v), true, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false, s.fail(ErrInvalidType, key, "expected an integer, got %v", v)
		}
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0, false, s.fail(ErrInvalidRange, key, "%v does not fit an integer", v)
		}
		return int(v), true, nil
	default:
		return 0, false, s.fail(ErrInvalidType, key, "expected an integer, got %s", typeName(raw))
	}
}

func (s section) number(key string) (float64, bool, error) {
	raw, ok := s.lookup(key)
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case uint64:
		return float64(v), true, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false, s.fail(ErrInvalidRange, key, "must be a finite number")
		}
		return v, true, nil
	default:
		return 0, false, s.fail(ErrInvalidType, key, "expected a number, got %s", typeName(raw))
	}
}

func (s section) boolean(key string) (bool, bool, error) {
	raw, ok := s.lookup(key)
	if !ok {
		return false, false, nil
	}
	value, ok := raw.(bool)
	if !ok {
		return false, false, s.fail(ErrInvalidType, key, "expected a boolean, got %s", typeName(raw))
	}
	return value, true, nil
}

func typeName(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, uint64:
		return "integer"
	case float64:
		return "number"
	case map[string]any:
		return "mapping"
	case []any:
		return "list"
	default:
		return fmt.Sprintf("%T", value)
	}
}
