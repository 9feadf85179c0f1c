package errors

import "fmt"

// Error types for the flow gateway
var (
	ErrExpiredToken = &ServiceError{
		Code:    "EXPIRED_TOKEN",
		Message: "Token has expired",
		Status:  401,
	}

	ErrInvalidToken = &ServiceError{
		Code:    "INVALID_TOKEN",
		Message: "Could not validate credentials",
		Status:  401,
	}

	ErrMissingSubject = &ServiceError{
		Code:    "MISSING_SUBJECT",
		Message: "Invalid token: no subject found",
		Status:  401,
	}

	ErrInvalidCredentials = &ServiceError{
		Code:    "INVALID_CREDENTIALS",
		Message: "Invalid client credentials",
		Status:  401,
	}

	ErrRateLimitExceeded = &ServiceError{
		Code:    "RATE_LIMIT_EXCEEDED",
		Message: "Rate limit exceeded",
		Status:  429,
	}

	// ErrValidation is used for syntactically invalid requests (wrong shape for
	// parameters/tags, out-of-range query values) rejected before any remote call.
	ErrValidation = &ServiceError{
		Code:    "VALIDATION_ERROR",
		Message: "Invalid request",
		Status:  422,
	}

	ErrRunNotFound = &ServiceError{
		Code:    "RUN_NOT_FOUND",
		Message: "Flow run not found",
		Status:  404,
	}

	ErrOrchestrator = &ServiceError{
		Code:    "ORCHESTRATOR_ERROR",
		Message: "Orchestrator request failed",
		Status:  500,
	}

	ErrInternalServer = &ServiceError{
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "Internal server error",
		Status:  500,
	}
)

// ServiceError represents a service-level error
type ServiceError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Wrap wraps an error with a ServiceError
func Wrap(err error, serviceErr *ServiceError) *ServiceError {
	return &ServiceError{
		Code:    serviceErr.Code,
		Message: serviceErr.Message,
		Status:  serviceErr.Status,
		Err:     err,
	}
}

// WithMessage returns a copy of a ServiceError carrying a more specific message.
// Used where the response must embed upstream error text for diagnosability.
func WithMessage(serviceErr *ServiceError, message string) *ServiceError {
	return &ServiceError{
		Code:    serviceErr.Code,
		Message: message,
		Status:  serviceErr.Status,
		Err:     serviceErr.Err,
	}
}
