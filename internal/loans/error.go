package loans

import (
	"errors"
	"fmt"
)

// ===== Error model (same shape across feature packages) =====

type Code string

const (
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeResourceBusy        Code = "RESOURCE_BUSY"
	CodeDuplicateAssignment Code = "DUPLICATE_ASSIGNMENT"
	CodeInvalidInterval     Code = "INVALID_INTERVAL"
	CodeConcurrentConflict  Code = "CONCURRENT_CONFLICT"
	CodeInternal            Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func ErrResourceBusy(equipment string) *APIError {
	return &APIError{Code: CodeResourceBusy, Message: "equipment " + equipment + " is currently on loan"}
}

func ErrDuplicateAssignment(equipment string) *APIError {
	return &APIError{Code: CodeDuplicateAssignment, Message: "this holder already has a loan record for equipment " + equipment}
}

func ErrInvalidInterval() *APIError {
	return &APIError{Code: CodeInvalidInterval, Message: "returned_on must not precede assigned_on"}
}

// ErrConcurrentConflict is returned when the unique index rejects a write
// that passed the in-transaction pre-check. Safe to retry once.
func ErrConcurrentConflict() *APIError {
	return &APIError{Code: CodeConcurrentConflict, Message: "a concurrent writer took the equipment first"}
}

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument, CodeInvalidInterval:
			return 400
		case CodeNotFound:
			return 404
		case CodeResourceBusy, CodeDuplicateAssignment, CodeConcurrentConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}
