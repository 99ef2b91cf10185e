package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	// CodeNotFound signals an unknown or grammar-less language identifier.
	// Callers are expected to fall back to heuristic matching.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeParseFailure signals parser-level failure (resource exhaustion,
	// unresolvable grammar). Syntactically invalid input is NOT a parse
	// failure; it yields a tree containing error nodes.
	CodeParseFailure ErrorCode = "PARSE_FAILURE"
	// CodePatternError signals a malformed query pattern.
	CodePatternError ErrorCode = "PATTERN_ERROR"
	// CodeIncompatibleLanguages signals a cross-language diff attempted
	// without explicit permission.
	CodeIncompatibleLanguages ErrorCode = "INCOMPATIBLE_LANGUAGES"
	CodeValidationError       ErrorCode = "VALIDATION_ERROR"
	CodeInternal              ErrorCode = "INTERNAL_ERROR"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxLanguage  = "language"
	CtxPattern   = "pattern"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Newf(code ErrorCode, format string, args ...interface{}) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode checks if an error carries a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
