// Package errs provides the error type shared by the storage drivers, the
// path model and the file operations.
//
// Drivers wrap native SDK errors into *errs.Error with a low-level kind
// (NotFound, PermissionDenied, ...). File operations wrap those again with an
// operation kind (ListFailed, DeleteFailed, ...) plus the key and step index
// that failed, so callers can report accurate partial progress.
//
// Usage:
//
//	if errs.IsInvalidName(err) {
//	    return echo.NewHTTPError(http.StatusBadRequest, err.Error())
//	}
//	if errs.HasKind(err, errs.KindNotFound) { ... }
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises an error without exposing driver-specific codes.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidName
	KindListFailed
	KindCreateFailed
	KindUploadFailed
	KindDeleteFailed
	KindRenameFailed
	KindReadFailed
	KindPartialFailure   // some steps of a composite operation succeeded
	KindNotFound         // no object, no bucket
	KindPermissionDenied // access denied / bad signature
	KindConnectionFailed // cannot reach the backend
	KindTimeout          // context deadline / cancellation
	KindSessionClosed    // store handle already released
	KindConflict
	KindInvalidInput // malformed request or configuration
)

func (k Kind) String() string {
	switch k {
	case KindInvalidName:
		return "invalid_name"
	case KindListFailed:
		return "list_failed"
	case KindCreateFailed:
		return "create_failed"
	case KindUploadFailed:
		return "upload_failed"
	case KindDeleteFailed:
		return "delete_failed"
	case KindRenameFailed:
		return "rename_failed"
	case KindReadFailed:
		return "read_failed"
	case KindPartialFailure:
		return "partial_failure"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindConnectionFailed:
		return "connection_failed"
	case KindTimeout:
		return "timeout"
	case KindSessionClosed:
		return "session_closed"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// NoStep marks an error that is not tied to a step of a composite operation.
const NoStep = -1

// Error is the single error type returned across iron-studio.
type Error struct {
	Kind    Kind
	Op      string // operation name, e.g. "delete"
	Key     string // object key the failure is about
	Step    int    // 0-based step index, NoStep when not applicable
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" (key %q", e.Key)
		if e.Step != NoStep {
			msg += fmt.Sprintf(", step %d", e.Step)
		}
		msg += ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with the given kind and message and no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Step: NoStep}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause, Step: NoStep}
}

// AtStep creates an *Error describing the failed step of a composite operation.
func AtStep(kind Kind, op, key string, step int, cause error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Key:     key,
		Step:    step,
		Message: "step failed",
		Cause:   cause,
	}
}

// IsInvalidName reports whether err is a local name validation failure.
func IsInvalidName(err error) bool {
	return KindOf(err) == KindInvalidName
}

// IsInvalidInput reports whether err is a rejected configuration or request.
func IsInvalidInput(err error) bool {
	return HasKind(err, KindInvalidInput)
}

// IsPartialFailure reports whether a composite operation stopped after
// some of its steps had already succeeded.
func IsPartialFailure(err error) bool {
	return KindOf(err) == KindPartialFailure
}

// IsNotFound reports whether err, or any error it wraps, is a missing object.
func IsNotFound(err error) bool {
	return HasKind(err, KindNotFound)
}

// IsPermissionDenied reports whether err, or any error it wraps, is an
// access control failure.
func IsPermissionDenied(err error) bool {
	return HasKind(err, KindPermissionDenied)
}

// IsSessionClosed reports whether err was caused by a released store handle.
func IsSessionClosed(err error) bool {
	return HasKind(err, KindSessionClosed)
}

// KindOf extracts the ErrKind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HasKind reports whether any *Error in the chain has the given kind.
func HasKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// StepOf returns the step index carried by the outermost *Error, or NoStep.
func StepOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Step
	}
	return NoStep
}
