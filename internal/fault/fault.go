// Package fault provides the error taxonomy shared across the pipeline.
//
// This package provides:
// - Sentinel errors for all fatal error conditions
// - Transient-error wrapping for retryable I/O failures
// - Classification helpers used by the gateway retry loop and the
//   orchestrator's phase recording
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Class categorizes an error for retry and reporting decisions.
type Class int

const (
	// ClassPermanent covers errors that are neither retryable nor one of
	// the named fatal categories (auth failures, not-found, bugs).
	ClassPermanent Class = iota

	// ClassValidation covers structural input errors: a required schema
	// field absent from a dataset, a missing join key column.
	ClassValidation

	// ClassTransient covers connection refused/reset and timeouts.
	// Only this class is eligible for retry.
	ClassTransient

	// ClassIntegrity covers checksum or size mismatches found by the
	// verifier. Never auto-repaired.
	ClassIntegrity

	// ClassConfig covers missing endpoints or credentials, detected at
	// startup before any phase runs.
	ClassConfig
)

// String returns a human-readable name for the class.
func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassTransient:
		return "transient"
	case ClassIntegrity:
		return "integrity"
	case ClassConfig:
		return "configuration"
	default:
		return "permanent"
	}
}

// Sentinel errors for fatal conditions.
var (
	// Validation errors
	ErrSchemaViolation = errors.New("schema violation")
	ErrJoinKeyMissing  = errors.New("join key missing")

	// Integrity errors
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrSizeMismatch     = errors.New("size mismatch")
	ErrArtifactMissing  = errors.New("artifact missing")

	// Configuration errors
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingEndpoint    = errors.New("missing endpoint")
	ErrMissingCredentials = errors.New("missing credentials")

	// Gateway errors
	ErrNotFound       = errors.New("not found")
	ErrTierNotBacked  = errors.New("no backend configured for tier")
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// transientError marks an error as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so that IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Transientf formats a new transient error.
func Transientf(format string, args ...any) error {
	return &transientError{err: fmt.Errorf(format, args...)}
}

// IsTransient returns true if err is retryable: an explicit transient
// wrap, a network timeout, a refused/reset connection, or a deadline
// expiry from a per-call timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *transientError
	if errors.As(err, &te) {
		return true
	}

	// Retry exhaustion keeps the transient classification of its cause;
	// the retry loop itself never sees an exhaustion error.
	if errors.Is(err, ErrRetryExhausted) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	return false
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrSchemaViolation) || errors.Is(err, ErrJoinKeyMissing)
}

// IsIntegrity returns true if err is an integrity error.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrSizeMismatch) ||
		errors.Is(err, ErrArtifactMissing)
}

// IsConfig returns true if err is a configuration error.
func IsConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingEndpoint) ||
		errors.Is(err, ErrMissingCredentials)
}

// Classify maps err onto its Class. Cancellation classifies as permanent:
// a cancelled run must not be retried by the gateway.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassPermanent
	case errors.Is(err, context.Canceled):
		return ClassPermanent
	case IsValidation(err):
		return ClassValidation
	case IsIntegrity(err):
		return ClassIntegrity
	case IsConfig(err):
		return ClassConfig
	case IsTransient(err):
		return ClassTransient
	default:
		return ClassPermanent
	}
}
