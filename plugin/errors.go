package plugin

import (
	"context"
	"errors"
	"fmt"
)

// Error classes reported in a failed Result.
var (
	ErrValidation   = errors.New("invalid argument")
	ErrExternalCall = errors.New("external call failed")
	ErrTimeout      = errors.New("timed out")
	ErrGeneration   = errors.New("code generation failed")
)

// Kind classifies a failure for callers that branch on it.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindExternalCall Kind = "external_call"
	KindTimeout      Kind = "timeout"
	KindGeneration   Kind = "generation"
)

// Invalid returns a validation error. No external call should be made after
// one is produced.
func Invalid(format string, v ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, v...))
}

// Missing reports an absent required parameter.
func Missing(name string) error {
	return Invalid("%s is required", name)
}

// External wraps an error raised by a client library or subprocess.
func External(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternalCall, op, err)
}

// KindOf maps err onto the failure taxonomy. Unclassified errors are
// treated as external call failures.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrGeneration):
		return KindGeneration
	default:
		return KindExternalCall
	}
}
