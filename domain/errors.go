package domain

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes resolver failures.
type ErrorCode string

const (
	// ErrCodeConflictingVersion indicates the same dependency name was
	// declared twice with different version refs.
	ErrCodeConflictingVersion ErrorCode = "CONFLICTING_VERSION"

	// ErrCodeTooLate indicates an option was set after the dependency's
	// options were already consumed by materialization.
	ErrCodeTooLate ErrorCode = "TOO_LATE"

	// ErrCodeFetchFailed indicates the source location was unreachable or
	// the transport failed.
	ErrCodeFetchFailed ErrorCode = "FETCH_FAILED"

	// ErrCodeIntegrityMismatch indicates fetched content does not match the
	// pinned or locked identity.
	ErrCodeIntegrityMismatch ErrorCode = "INTEGRITY_MISMATCH"

	// ErrCodeConfigurationRejected indicates the dependency's configuration
	// step rejected the supplied options.
	ErrCodeConfigurationRejected ErrorCode = "CONFIGURATION_REJECTED"
)

// ResolveError is a structured resolver failure. Every failure aborts
// configuration; the error names the dependency and the step that failed.
type ResolveError struct {
	Code       ErrorCode
	Dependency string
	Message    string
	Details    map[string]string
	Err        error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	if e.Dependency != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: dependency %q: %s: %v", e.Code, e.Dependency, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: dependency %q: %s", e.Code, e.Dependency, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// codeOf extracts the ErrorCode from a wrapped error chain, or "".
func codeOf(err error) ErrorCode {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsConflictingVersion reports whether err is a CONFLICTING_VERSION failure.
func IsConflictingVersion(err error) bool { return codeOf(err) == ErrCodeConflictingVersion }

// IsTooLate reports whether err is a TOO_LATE failure.
func IsTooLate(err error) bool { return codeOf(err) == ErrCodeTooLate }

// IsFetchError reports whether err is a FETCH_FAILED failure.
func IsFetchError(err error) bool { return codeOf(err) == ErrCodeFetchFailed }

// IsIntegrityError reports whether err is an INTEGRITY_MISMATCH failure.
func IsIntegrityError(err error) bool { return codeOf(err) == ErrCodeIntegrityMismatch }

// IsConfigurationError reports whether err is a CONFIGURATION_REJECTED failure.
func IsConfigurationError(err error) bool { return codeOf(err) == ErrCodeConfigurationRejected }

// NewConflictingVersionError names both requesters so the operator can see
// which two declarations disagree.
func NewConflictingVersionError(name, haveRef, haveAt, wantRef, wantAt string) *ResolveError {
	return &ResolveError{
		Code:       ErrCodeConflictingVersion,
		Dependency: name,
		Message: fmt.Sprintf("already declared at %s with ref %q, redeclared at %s with ref %q",
			orUnknown(haveAt), haveRef, orUnknown(wantAt), wantRef),
		Details: map[string]string{
			"first_ref":    haveRef,
			"first_at":     haveAt,
			"conflict_ref": wantRef,
			"conflict_at":  wantAt,
		},
	}
}

// NewTooLateError signals a programmer error: the option can no longer
// influence a dependency whose configuration was already consumed.
func NewTooLateError(name, key string) *ResolveError {
	return &ResolveError{
		Code:       ErrCodeTooLate,
		Dependency: name,
		Message:    fmt.Sprintf("option %q set after materialization; options are consumed at materialize time", key),
		Details:    map[string]string{"option": key},
	}
}

// NewFetchError wraps a transport failure. The resolver does not retry;
// the caller decides whether to re-run the build.
func NewFetchError(name string, err error) *ResolveError {
	return &ResolveError{
		Code:       ErrCodeFetchFailed,
		Dependency: name,
		Message:    "fetch failed",
		Err:        err,
	}
}

// NewIntegrityError reports content that does not match the pinned or locked
// identity. The build must never silently proceed past this.
func NewIntegrityError(name, expected, actual string) *ResolveError {
	return &ResolveError{
		Code:       ErrCodeIntegrityMismatch,
		Dependency: name,
		Message:    fmt.Sprintf("content identity %q does not match expected %q", actual, expected),
		Details:    map[string]string{"expected": expected, "actual": actual},
	}
}

// NewConfigurationError reports options rejected by the dependency's own
// configuration step.
func NewConfigurationError(name, message string) *ResolveError {
	return &ResolveError{
		Code:       ErrCodeConfigurationRejected,
		Dependency: name,
		Message:    message,
	}
}

func orUnknown(at string) string {
	if at == "" {
		return "<unknown>"
	}
	return at
}
