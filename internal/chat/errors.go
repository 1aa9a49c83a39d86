package chat

import (
	"fmt"
	"net/http"
	"omega/internal/models"
)

// ServiceError is a chat failure that is not a business outcome. Plan
// rejections, storage failures and model failures are answered in the
// response text instead.
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// ClientFault reports whether the caller caused the error.
func (e *ServiceError) ClientFault() bool {
	return e.StatusCode < http.StatusInternalServerError
}

// NewValidationError reports a request that failed ChatRequest.Validate.
func NewValidationError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}
