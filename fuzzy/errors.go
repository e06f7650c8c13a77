package fuzzy

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch is returned when a batch contains no records.
var ErrEmptyBatch = errors.New("fuzzy: empty batch")

// ConfigurationError reports an invalid engine definition.
type ConfigurationError struct {
	Op     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("fuzzy: %s: %s", e.Op, e.Reason)
}

func configErrorf(op, format string, args ...interface{}) error {
	return &ConfigurationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// DomainError reports a crisp input that is missing or outside its universe.
type DomainError struct {
	Variable string
	Value    float64
	Min      float64
	Max      float64
	Missing  bool
}

func (e *DomainError) Error() string {
	if e.Missing {
		return fmt.Sprintf("fuzzy: input %q is missing", e.Variable)
	}
	return fmt.Sprintf("fuzzy: input %q = %g outside [%g, %g]", e.Variable, e.Value, e.Min, e.Max)
}

// NoRuleFiredError is returned when the aggregated membership of an output
// variable is zero everywhere and the engine has no fallback.
type NoRuleFiredError struct {
	Variable string
}

func (e *NoRuleFiredError) Error() string {
	return fmt.Sprintf("fuzzy: no rule fired for output %q", e.Variable)
}

// RecordError wraps the failure of one record in a batch.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
