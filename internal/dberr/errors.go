// Package dberr defines the error taxonomy surfaced by the query adapter.
//
// Every error that crosses a package boundary is either an *Error carrying a
// Code, or a *BatchError describing a partially failed batch. Callers classify
// errors with the Is* helpers, which use errors.As so wrapped errors still match.
package dberr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code categorizes adapter errors.
type Code string

const (
	// CodeCompile indicates a malformed filter: unknown field, bad operator,
	// unbalanced grouping or trailing text.
	CodeCompile Code = "COMPILE_ERROR"

	// CodeMarshal indicates a value that cannot be coerced to its column type.
	CodeMarshal Code = "MARSHAL_ERROR"

	// CodeBadRequest indicates an invalid request option (fields, order, record).
	CodeBadRequest Code = "BAD_REQUEST"

	// CodeNotFound indicates identifiers absent after a read or write.
	CodeNotFound Code = "NOT_FOUND"

	// CodeBatch indicates a batch in which some units failed.
	CodeBatch Code = "BATCH_PARTIAL_FAILURE"

	// CodeStore indicates a transport, timeout or driver fault.
	CodeStore Code = "STORE_ERROR"

	// CodeInternal indicates a configuration or programming fault.
	CodeInternal Code = "INTERNAL"
)

// Error is the adapter error type.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details contains additional context (field name, position, index).
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Status maps the error code to an HTTP status.
func (e *Error) Status() int {
	return StatusOf(e.Code)
}

// With returns a copy of e with an extra detail.
func (e *Error) With(key, value string) *Error {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and message. Returns nil if err is nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Compilef creates a CodeCompile error.
func Compilef(format string, args ...any) *Error {
	return Newf(CodeCompile, format, args...)
}

// Marshalf creates a CodeMarshal error.
func Marshalf(format string, args ...any) *Error {
	return Newf(CodeMarshal, format, args...)
}

// NotFoundf creates a CodeNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// BadRequestf creates a CodeBadRequest error.
func BadRequestf(format string, args ...any) *Error {
	return Newf(CodeBadRequest, format, args...)
}

// CodeOf returns the code of err, CodeBatch for a *BatchError, or
// CodeInternal for anything unclassified.
func CodeOf(err error) Code {
	var be *BatchError
	if errors.As(err, &be) {
		return CodeBatch
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsCompile reports whether err is a filter compile error.
func IsCompile(err error) bool { return Is(err, CodeCompile) }

// IsMarshal reports whether err is a value marshalling error.
func IsMarshal(err error) bool { return Is(err, CodeMarshal) }

// IsNotFound reports whether err is a not-found condition.
func IsNotFound(err error) bool { return Is(err, CodeNotFound) }

// IsStore reports whether err originated in the store driver.
func IsStore(err error) bool { return Is(err, CodeStore) }

// IsBadRequest reports whether err should be surfaced as a client error.
func IsBadRequest(err error) bool {
	return StatusOf(CodeOf(err)) == http.StatusBadRequest
}

// StatusOf maps a code to an HTTP status.
func StatusOf(code Code) int {
	switch code {
	case CodeCompile, CodeMarshal, CodeBadRequest, CodeBatch:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// BatchError reports a batch in which at least one unit failed.
// Succeeded and Failed are keyed by the unit's submission index; together they
// cover every index in [0, Size).
type BatchError struct {
	Message   string
	Size      int
	Succeeded map[int]any
	Failed    map[int]error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	idx := make([]int, 0, len(e.Failed))
	for i := range e.Failed {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, fmt.Sprintf("[%d] %v", i, e.Failed[i]))
	}
	return fmt.Sprintf("%s: %s (%d of %d failed): %s",
		CodeBatch, e.Message, len(e.Failed), e.Size, strings.Join(parts, "; "))
}

// Status implements the same contract as (*Error).Status.
func (e *BatchError) Status() int {
	return StatusOf(CodeBatch)
}

// Results returns one entry per unit in submission order: the success value, or
// the error for failed units.
func (e *BatchError) Results() []any {
	out := make([]any, e.Size)
	for i := 0; i < e.Size; i++ {
		if err, ok := e.Failed[i]; ok {
			out[i] = err
			continue
		}
		out[i] = e.Succeeded[i]
	}
	return out
}
