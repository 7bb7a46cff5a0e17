package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBadCredential is returned when the supplied credential does not
	// hash to the configured digest. Nothing is written in that case.
	ErrBadCredential = errors.New("bad credential")

	// ErrNoData marks an empty query window. It is a valid empty result,
	// not a failure; presentation renders it as an explicit message.
	ErrNoData = errors.New("no data available in this period")
)

// MissingFieldError names the first required field absent from a request.
// The ingestion path aborts before any write when a field is missing.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// ValidationError reports a field that was present but could not be coerced
// to the required type.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q has invalid value %q", e.Field, e.Value)
}

// ResolverError wraps a failure of the external geocode/timezone/sun-times
// lookup. A position update that hits one aborts with location state
// unchanged. Timeout is set when the lookup exceeded its deadline.
type ResolverError struct {
	Timeout bool
	Err     error
}

func (e *ResolverError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("resolver timed out: %v", e.Err)
	}
	return fmt.Sprintf("resolver failed: %v", e.Err)
}

func (e *ResolverError) Unwrap() error { return e.Err }
