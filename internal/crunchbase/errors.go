package crunchbase

import (
	"errors"
	"fmt"
)

// Error classes surfaced to callers. Use errors.Is to test for them.
var (
	ErrTransport    = errors.New("transport failure")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrExtraction   = errors.New("extraction failure")
)

// Error types reported in the batch completion call.
const (
	ErrorTypeTransport    = "transport"
	ErrorTypeNotFound     = "not_found"
	ErrorTypeInvalidInput = "invalid_input"
	ErrorTypeExtraction   = "extraction"
	ErrorTypeInternal     = "internal"
)

// TransportError reports a remote call that was unreachable or answered with a non-2xx status.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": transport failure"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// NewTransportError wraps err as a TransportError for the named operation.
func NewTransportError(op string, status int, err error) *TransportError {
	return &TransportError{Op: op, StatusCode: status, Err: err}
}

// Classify maps an error onto one of the reported error types.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransport):
		return ErrorTypeTransport
	case errors.Is(err, ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, ErrInvalidInput):
		return ErrorTypeInvalidInput
	case errors.Is(err, ErrExtraction):
		return ErrorTypeExtraction
	default:
		return ErrorTypeInternal
	}
}

// NewErrorInfo builds the reported descriptor for err.
func NewErrorInfo(err error) ErrorInfo {
	return ErrorInfo{ErrorType: Classify(err), ErrorDescription: err.Error()}
}
