package domain

import (
	"errors"
	"fmt"
)

// ConfigError marks a fatal construction or initialization problem (missing
// coupling function, missing charges source, non-positive timestep). It is
// never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// EvalError marks a failed evaluation for a single tick (the wrapped
// evaluator did not produce a requested property). It propagates to the
// caller without automatic retry.
type EvalError struct {
	Reason string
	Err    error
}

func (e *EvalError) Error() string {
	if e.Err != nil {
		return "evaluation error: " + e.Reason + ": " + e.Err.Error()
	}
	return "evaluation error: " + e.Reason
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// Evalf builds an EvalError from a format string.
func Evalf(format string, args ...any) error {
	return &EvalError{Reason: fmt.Sprintf(format, args...)}
}

// IsEval reports whether err is (or wraps) an EvalError.
func IsEval(err error) bool {
	var ee *EvalError
	return errors.As(err, &ee)
}
