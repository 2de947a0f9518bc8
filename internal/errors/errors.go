// Package errors provides the gateway's error taxonomy.
//
// Callers of the gateway are untrusted, so errors are split into two halves:
// a caller-visible message that names the failed operation generically, and
// an internal detail string that is written only to the security log. The
// GatewayError type carries both; handlers surface Error() and audit Detail.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	// CodeValidationFailed marks malformed or unsafe input, rejected before
	// any backend call.
	CodeValidationFailed Code = "VALIDATION_FAILED"

	// CodeNoActiveSession marks operations that require a live session when
	// none exists. Most callers downgrade this to an empty result.
	CodeNoActiveSession Code = "NO_ACTIVE_SESSION"

	// CodeBackendRequestFailed marks a well-formed request the backend
	// rejected or errored on.
	CodeBackendRequestFailed Code = "BACKEND_REQUEST_FAILED"

	// CodeInvalidParameter marks a tool argument with the wrong shape.
	CodeInvalidParameter Code = "INVALID_PARAMETER"
)

// GatewayError carries a generic caller-visible message plus internal detail.
type GatewayError struct {
	Code      Code
	Operation string
	// Detail is internal only. It goes to the security/diagnostic log and
	// must never be echoed to the caller.
	Detail string
	Cause  error
}

// Error returns the caller-visible message. It names the operation but never
// the detail, filesystem layout, or backend cause.
func (e *GatewayError) Error() string {
	switch e.Code {
	case CodeValidationFailed:
		return fmt.Sprintf("invalid %s", e.Operation)
	case CodeNoActiveSession:
		return "no active debug session"
	case CodeInvalidParameter:
		return fmt.Sprintf("invalid argument for %s", e.Operation)
	default:
		return fmt.Sprintf("%s failed", e.Operation)
	}
}

// Unwrap returns the underlying cause for error chaining.
func (e *GatewayError) Unwrap() error { return e.Cause }

// Validation creates a validation rejection for the named input.
func Validation(input, detail string) *GatewayError {
	return &GatewayError{Code: CodeValidationFailed, Operation: input, Detail: detail}
}

// NoActiveSession creates the no-session error for an operation.
func NoActiveSession(operation string) *GatewayError {
	return &GatewayError{Code: CodeNoActiveSession, Operation: operation}
}

// Backend wraps a backend failure. The cause is recorded for the diagnostic
// log; Error() reports only the operation.
func Backend(operation string, cause error) *GatewayError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &GatewayError{Code: CodeBackendRequestFailed, Operation: operation, Detail: detail, Cause: cause}
}

// InvalidParameter creates an argument-shape rejection for a tool parameter.
func InvalidParameter(operation, detail string) *GatewayError {
	return &GatewayError{Code: CodeInvalidParameter, Operation: operation, Detail: detail}
}

// SafeMessage returns the caller-visible text for any error. GatewayError
// values render themselves; anything else collapses to a generic message
// naming the operation, so raw backend errors never leak.
func SafeMessage(operation string, err error) string {
	var ge *GatewayError
	if stderrors.As(err, &ge) {
		return ge.Error()
	}
	return fmt.Sprintf("%s failed", operation)
}

// DetailOf extracts the internal detail from an error for security logging.
func DetailOf(err error) string {
	var ge *GatewayError
	if stderrors.As(err, &ge) {
		if ge.Detail != "" {
			return ge.Detail
		}
		if ge.Cause != nil {
			return ge.Cause.Error()
		}
		return string(ge.Code)
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	var ge *GatewayError
	return stderrors.As(err, &ge) && ge.Code == CodeValidationFailed
}

// IsNoActiveSession reports whether err is the no-session condition.
func IsNoActiveSession(err error) bool {
	var ge *GatewayError
	return stderrors.As(err, &ge) && ge.Code == CodeNoActiveSession
}
