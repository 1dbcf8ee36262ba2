package settings

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source yields a tree of configuration values keyed by section name.
type Source interface {
	Name() string
	Read() (map[string]any, error)
}

type fileSource struct {
	path string
}

// File reads a YAML or JSON fragment from disk.
func File(path string) Source {
	return fileSource{path: path}
}

func (s fileSource) Name() string { return s.path }

func (s fileSource) Read() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return decode(data)
}

type bytesSource struct {
	name string
	data []byte
}

// Bytes parses an in-memory YAML or JSON fragment.
func Bytes(name string, data []byte) Source {
	return bytesSource{name: name, data: data}
}

func (s bytesSource) Name() string { return s.name }

func (s bytesSource) Read() (map[string]any, error) {
	return decode(s.data)
}

type mapSource struct {
	name   string
	values map[string]any
}

// Map uses an already structured value tree. The map is copied on read so
// later changes by the caller do not leak into resolved settings.
func Map(name string, values map[string]any) Source {
	return mapSource{name: name, values: values}
}

func (s mapSource) Name() string { return s.name }

func (s mapSource) Read() (map[string]any, error) {
	return normalizeMap(s.values), nil
}

type envSource struct {
	prefix  string
	environ func() []string
}

// Env maps variables such as STORECONF_REDIS__PORT=6380 onto redis.port.
// Path segments are separated by a double underscore and matched against
// existing keys case-insensitively. Values are decoded as YAML scalars so
// numbers and booleans keep their types; empty values are ignored.
func Env(prefix string) Source {
	return EnvFrom(prefix, os.Environ)
}

// EnvFrom is Env with an explicit environment provider.
func EnvFrom(prefix string, environ func() []string) Source {
	return envSource{prefix: prefix, environ: environ}
}

func (s envSource) Name() string { return "env:" + s.prefix }

func (s envSource) Read() (map[string]any, error) {
	out := map[string]any{}
	if s.prefix == "" {
		return out, nil
	}

	entries := s.environ()
	sort.Strings(entries)
	for _, entry := range entries {
		name, raw, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, s.prefix) {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		var segments []string
		for _, segment := range strings.Split(strings.TrimPrefix(name, s.prefix), "__") {
			if segment = strings.ToLower(strings.TrimSpace(segment)); segment != "" {
				segments = append(segments, segment)
			}
		}
		if len(segments) == 0 {
			continue
		}

		setPath(out, segments, scalar(raw))
	}
	return out, nil
}

func decode(data []byte) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	out, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping at the top level, got %T", raw)
	}
	return out, nil
}

func scalar(raw string) any {
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return raw
	}
	switch value.(type) {
	case string, bool, int, int64, uint64, float64:
		return value
	default:
		return raw
	}
}

// normalize deep-copies a value tree and converts map[any]any into
// map[string]any.
func normalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return normalizeMap(v)
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[fmt.Sprint(key)] = normalize(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = normalize(child)
		}
		return out
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case uint:
		return uint64(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return uint64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}

func normalizeMap(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, child := range values {
		out[key] = normalize(child)
	}
	return out
}

func setPath(tree map[string]any, segments []string, value any) {
	node := tree
	for _, segment := range segments[:len(segments)-1] {
		next, ok := node[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[segment] = next
		}
		node = next
	}
	node[segments[len(segments)-1]] = value
}

// merge folds src into dst. Mappings merge key by key, everything else is
// replaced. Keys match case-insensitively and keep the spelling already in dst.
func merge(dst, src map[string]any) {
	for key, value := range src {
		target := matchKey(dst, key)
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[target].(map[string]any)
		if srcIsMap && dstIsMap {
			merge(dstMap, srcMap)
			continue
		}
		dst[target] = value
	}
}

func matchKey(values map[string]any, key string) string {
	if _, ok := values[key]; ok {
		return key
	}
	for existing := range values {
		if strings.EqualFold(existing, key) {
			return existing
		}
	}
	return key
}
