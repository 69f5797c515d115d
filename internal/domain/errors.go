package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies import failures.
type ErrorCode string

const (
	CodeUnreadableDocument         ErrorCode = "UnreadableDocument"
	CodeMissingRequiredField       ErrorCode = "MissingRequiredField"
	CodeRateLimited                ErrorCode = "RateLimited"
	CodeQuotaExceeded              ErrorCode = "QuotaExceeded"
	CodeUpstreamError              ErrorCode = "UpstreamError"
	CodeEmptyResponse              ErrorCode = "EmptyResponse"
	CodeMalformedExtractionPayload ErrorCode = "MalformedExtractionPayload"
	CodeNoDataExtracted            ErrorCode = "NoDataExtracted"
	CodeMappingFailed              ErrorCode = "MappingFailed"
)

// MaxSnippet is the number of characters of an offending payload kept for diagnostics.
const MaxSnippet = 500

var (
	// ErrNotFound is returned by repositories when a row does not exist for the account.
	ErrNotFound = errors.New("not found")

	// ErrStatusFinal is returned when a status update targets a declaration
	// that already reached a terminal status.
	ErrStatusFinal = errors.New("declaration status is already final")
)

// Error is a classified import error.
type Error struct {
	Code    ErrorCode
	Message string
	// Snippet holds the head of the payload that could not be parsed.
	Snippet string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a classified error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Errorf builds a classified error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first classified error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// Snippet returns the first MaxSnippet characters of s.
func Snippet(s string) string {
	return Truncate(s, MaxSnippet)
}
