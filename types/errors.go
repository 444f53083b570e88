package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSchema          = errors.New("schema error")
	ErrDataUnavailable = errors.New("data unavailable")
	ErrDegenerateClass = errors.New("degenerate class")
	ErrConfig          = errors.New("configuration error")
	ErrNotTrained      = errors.New("pipeline is not trained")
)

// SchemaError rejects a single inference record. It matches ErrSchema with errors.Is.
type SchemaError struct {
	Missing []string `json:"missing,omitempty"`
	Unknown []string `json:"unknown,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, 3)
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing features [%s]", strings.Join(e.Missing, ", ")))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, fmt.Sprintf("unknown features [%s]", strings.Join(e.Unknown, ", ")))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid values [%s]", strings.Join(e.Invalid, ", ")))
	}
	return fmt.Sprintf("%s: %s", ErrSchema, strings.Join(parts, "; "))
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func (e *SchemaError) Empty() bool {
	return len(e.Missing) == 0 && len(e.Unknown) == 0 && len(e.Invalid) == 0
}

// DegenerateClassError reports a class too small to oversample.
type DegenerateClassError struct {
	Class string
	Count int
}

func (e *DegenerateClassError) Error() string {
	return fmt.Sprintf("%s: class %q has %d member(s)", ErrDegenerateClass, e.Class, e.Count)
}

func (e *DegenerateClassError) Is(target error) bool {
	return target == ErrDegenerateClass
}
