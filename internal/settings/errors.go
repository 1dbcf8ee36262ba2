package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when a required key is absent or empty.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidType is returned when a key holds a value of the wrong type.
	ErrInvalidType = errors.New("invalid type")
	// ErrInvalidRange is returned when a numeric value is outside its allowed range.
	ErrInvalidRange = errors.New("value out of range")
	// ErrUnknownBackend is returned when the object store backend is not supported.
	ErrUnknownBackend = errors.New("unknown object store backend")
	// ErrInvalidValue is returned when a value has the right type but a malformed shape.
	ErrInvalidValue = errors.New("invalid value")
)

var kindNames = map[error]string{
	ErrMissingField:   "MissingField",
	ErrInvalidType:    "InvalidType",
	ErrInvalidRange:   "InvalidRange",
	ErrUnknownBackend: "UnknownBackend",
	ErrInvalidValue:   "InvalidValue",
}

// ConfigError describes a validation failure for a single key.
type ConfigError struct {
	Kind    error  // one of the Err* sentinels
	Key     string // leaf key, e.g. "port"
	Path    string // dotted path, e.g. "redis.port"
	Message string
}

func (e *ConfigError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v: %s", e.Path, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Kind)
}

func (e *ConfigError) Unwrap() error {
	return e.Kind
}

// KindName returns the taxonomy name of the error kind, e.g. "MissingField".
func (e *ConfigError) KindName() string {
	if name, ok := kindNames[e.Kind]; ok {
		return name
	}
	return "Unknown"
}

// SourceError reports a source that could not be read or parsed.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
