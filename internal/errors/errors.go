// Package errors provides structured error handling for contentdex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: lookup errors (unknown identities)
//   - 2XX: query errors (caller-supplied query text)
//   - 3XX: content errors (conversion, missing source files)
//   - 4XX: schema errors
//   - 5XX: lifecycle errors
package errors

import "fmt"

// Error codes organized by category.
const (
	// Lookup errors (100-199)
	ErrCodeNotFound = "ERR_101_NOT_FOUND"

	// Query errors (200-299)
	ErrCodeQueryParse = "ERR_201_QUERY_PARSE"

	// Content errors (300-399)
	ErrCodeConversion    = "ERR_301_CONVERSION"
	ErrCodeSourceMissing = "ERR_302_SOURCE_MISSING"

	// Schema errors (400-499)
	ErrCodeUnknownField = "ERR_401_UNKNOWN_FIELD"
	ErrCodeBadKind      = "ERR_402_BAD_KIND"

	// Lifecycle errors (500-599)
	ErrCodeClosed       = "ERR_501_CLOSED"
	ErrCodeNotConnected = "ERR_502_NOT_CONNECTED"
)

// IndexError is the structured error type for contentdex.
// It carries a stable code so callers can classify failures without
// matching message text.
type IndexError struct {
	// Code is the unique error code (e.g., "ERR_101_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is works against code sentinels.
func (e *IndexError) Is(target error) bool {
	if t, ok := target.(*IndexError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new IndexError with the given code and message.
func New(code, message string) *IndexError {
	return &IndexError{Code: code, Message: message}
}

// Newf creates a new IndexError with a formatted message.
func Newf(code, format string, args ...any) *IndexError {
	return &IndexError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an IndexError from an existing error, preserving it as
// the cause. Returns nil when err is nil.
func Wrap(code string, message string, err error) *IndexError {
	if err == nil {
		return nil
	}
	return &IndexError{Code: code, Message: message, Cause: err}
}

// NotFound creates a lookup error for an unknown uid.
func NotFound(uid string) *IndexError {
	return Newf(ErrCodeNotFound, "no content for uid %q", uid)
}

// HasCode reports whether err (or anything it wraps) carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if ie, ok := err.(*IndexError); ok && ie.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
