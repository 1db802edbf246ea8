package supervisions

import (
	"errors"
	"fmt"
)

// ===== Error model (same shape as the loans package) =====

type Code string

const (
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeResearcherBusy     Code = "RESEARCHER_ALREADY_SUPERVISING"
	CodeStudentBusy        Code = "STUDENT_ALREADY_SUPERVISED"
	CodeAlreadyRecorded    Code = "SUPERVISION_ALREADY_RECORDED"
	CodeInvalidInterval    Code = "INVALID_INTERVAL"
	CodeConcurrentConflict Code = "CONCURRENT_CONFLICT"
	CodeInternal           Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func ErrResearcherBusy(code string) *APIError {
	return &APIError{Code: CodeResearcherBusy, Message: "researcher " + code + " already has an active supervision"}
}

func ErrStudentBusy(code string) *APIError {
	return &APIError{Code: CodeStudentBusy, Message: "doctoral student " + code + " is already supervised"}
}

func ErrAlreadyRecorded() *APIError {
	return &APIError{Code: CodeAlreadyRecorded, Message: "this researcher/student pair is already recorded"}
}

func ErrInvalidInterval() *APIError {
	return &APIError{Code: CodeInvalidInterval, Message: "ended_on must not precede started_on"}
}

// ErrConcurrentConflict is returned when a unique index rejects a write
// that passed the in-transaction pre-checks. Safe to retry once.
func ErrConcurrentConflict() *APIError {
	return &APIError{Code: CodeConcurrentConflict, Message: "a concurrent writer claimed this supervision slot first"}
}

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument, CodeInvalidInterval:
			return 400
		case CodeNotFound:
			return 404
		case CodeResearcherBusy, CodeStudentBusy, CodeAlreadyRecorded, CodeConcurrentConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}
