package document

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures in the translation pipeline
type ErrorCode string

const (
	// ErrExtractionEmpty means no spans were found; callers pass the document through
	ErrExtractionEmpty ErrorCode = "EXTRACTION_EMPTY"
	// ErrProvider covers timeouts, non-2xx answers and transport failures
	ErrProvider ErrorCode = "PROVIDER_ERROR"
	// ErrCountMismatch means a batch response could not be split into the expected parts
	ErrCountMismatch ErrorCode = "COUNT_MISMATCH"
	// ErrFitFailure means no font/size combination fits the target box
	ErrFitFailure ErrorCode = "FIT_FAILURE"
	// ErrPersistence means the editing backend refused to save or reopen; fatal
	ErrPersistence ErrorCode = "PERSISTENCE_FAILURE"
	// ErrInvalidState is returned for page handle misuse, e.g. copying a draft page
	ErrInvalidState ErrorCode = "INVALID_STATE"
	// ErrInvalidInput covers unreadable or malformed input documents
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrConfig covers configuration problems
	ErrConfig ErrorCode = "CONFIG_ERROR"
)

// Error is the error type shared by the engine packages
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Page    int       `json:"page,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Page > 0 {
		msg = fmt.Sprintf("page %d: %s", e.Page, msg)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewErrorWithDetails creates an Error carrying extra details
func NewErrorWithDetails(code ErrorCode, message, details string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// NewErrorWithPage creates an Error bound to a 1-based page number
func NewErrorWithPage(code ErrorCode, message string, page int, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Page:    page,
		Cause:   cause,
	}
}

// IsCode reports whether err, or anything it wraps, is an Error with the given code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
