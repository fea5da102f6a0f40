package engine

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrConfiguration   = errors.New("invalid configuration")
	ErrEmptyPopulation = errors.New("no occupied nodes")
)

// ConfigError describes one rejected construction parameter.
// errors.Is(err, ErrConfiguration) holds for every ConfigError.
type ConfigError struct {
	Field  string
	Reason string
	Value  any
	Err    error // underlying cause, may be nil
}

func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s (got %v)", e.Field, e.Reason, e.Value)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configError(field, reason string, value any) *ConfigError {
	return &ConfigError{Field: field, Reason: reason, Value: value}
}
