package errors

import (
	"errors"
	"fmt"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// AppError represents a structured application error
type AppError struct {
	Code    int    // Business error code
	Message string // Human-readable message
	Err     error  // Underlying error (if any)
	Details string // Additional details
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for this error
func (e *AppError) HTTPStatus() int {
	return GetHTTPStatus(e.Code)
}

// New creates a new AppError with the given code
func New(code int, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{Code: code, Message: GetMessage(code), Details: detail}
}

// Wrap wraps an existing error with an error code
func Wrap(err error, code int, details ...string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{Code: code, Message: GetMessage(code), Err: err, Details: detail}
}

// ExtractCode maps any error to a business code.
// Provider errors are classified by their type, everything else is internal.
func ExtractCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, conversation.ErrNotFound) {
		return ErrConversationNotFound
	}

	var pe *types.ProviderError
	if !errors.As(err, &pe) {
		return ErrInternalServer
	}
	switch pe.Type {
	case types.ErrorTypeConfiguration:
		return ErrChatConfiguration
	case types.ErrorTypeCanceled:
		return ErrChatCanceled
	case types.ErrorTypeTimeout:
		return ErrChatTimeout
	case types.ErrorTypeRateLimit:
		return ErrChatRateLimited
	case types.ErrorTypeAuthentication, types.ErrorTypePermission:
		return ErrChatUpstreamAuth
	case types.ErrorTypeInvalidRequest, types.ErrorTypeNotFound, types.ErrorTypeRequestTooLarge:
		return ErrChatInvalidRequest
	case types.ErrorTypeOverloaded:
		return ErrChatOverloaded
	case types.ErrorTypeParse:
		return ErrChatBadResponse
	}
	return ErrChatUpstream
}

// GetDetails extracts error details
func GetDetails(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Details != "" {
			return appErr.Details
		}
		if appErr.Err != nil {
			return appErr.Err.Error()
		}
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// NewBadRequestError creates a bad request error
func NewBadRequestError(details ...string) *AppError {
	return New(ErrBadRequest, details...)
}

// NewValidationError creates a validation error
func NewValidationError(field string) *AppError {
	return New(ErrInvalidParams, fmt.Sprintf("validation failed for field: %s", field))
}
