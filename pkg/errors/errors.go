// Package errors provides the structured error type used across gdi.
//
// Every failure the ingestion pipeline can surface carries a Kind drawn from
// a small closed set. Callers branch on the kind (IsKind, KindOf) and on
// IsRetryable rather than on message text.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind represents the category of error
type Kind string

const (
	// KindTransport covers network failures, deadlines, non-2xx responses and provider error payloads
	KindTransport Kind = "transport"
	// KindEmptyDataset means a source produced zero usable rows
	KindEmptyDataset Kind = "empty_dataset"
	// KindReferentialGap marks a record whose dimension keys could not be resolved
	KindReferentialGap Kind = "referential_gap"
	// KindStorage covers warehouse connectivity, constraint and commit failures
	KindStorage Kind = "storage"
	// KindValidationFailed means a downstream quality check failed
	KindValidationFailed Kind = "validation_failed"
	// KindInvalidRecord means a canonical record violated its invariants
	KindInvalidRecord Kind = "invalid_record"
	// KindConfig represents configuration errors
	KindConfig Kind = "config"
)

// Error represents a structured error with context
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given kind and message
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. It returns nil for a nil error.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack and details
	var existing *Error
	if errors.As(err, &existing) {
		wrapped := &Error{
			Kind:    kind,
			Message: message,
			Cause:   err,
			Stack:   existing.Stack,
		}
		for k, v := range existing.Details {
			wrapped.WithDetail(k, v)
		}
		return wrapped
	}

	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// KindOf returns the kind of the outermost *Error in the chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// IsKind checks if any *Error in the chain has the given kind
func IsKind(err error, kind Kind) bool {
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

// IsRetryable returns true if re-running the failed operation may succeed.
// Data, configuration and quality failures are final.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindEmptyDataset, KindStorage:
		return true
	default:
		return false
	}
}

// As is errors.As, re-exported so callers importing this package do not need the standard one.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
