package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Redemption contract signals. Callers must not retry state-conflict errors,
// so "already used" is distinct from "not found".
var (
	// ErrTokenNotFound is returned when the opaque token value is unknown.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenAlreadyUsed is returned for any redemption attempt after the first.
	ErrTokenAlreadyUsed = errors.New("token already used")
	// ErrAssessmentClosed is returned when the owning assessment was cancelled.
	ErrAssessmentClosed = errors.New("assessment closed")
	// ErrIncompleteSubmission is returned when a batch does not cover every active question.
	ErrIncompleteSubmission = errors.New("incomplete submission")
)
