package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType 错误类型
type ErrorType string

const (
	// 调用前即可判定的错误，不重试
	ErrorTypeConfiguration ErrorType = "configuration_error"

	// 网络层错误
	ErrorTypeTransport ErrorType = "transport_error" // 连接失败、HTML 网关页等
	ErrorTypeTimeout   ErrorType = "timeout_error"   // 单次请求超时

	// 4xx 客户端错误
	ErrorTypeInvalidRequest  ErrorType = "invalid_request_error" // 400
	ErrorTypeAuthentication  ErrorType = "authentication_error"  // 401
	ErrorTypePermission      ErrorType = "permission_error"      // 403
	ErrorTypeNotFound        ErrorType = "not_found_error"       // 404
	ErrorTypeRequestTooLarge ErrorType = "request_too_large"     // 413
	ErrorTypeRateLimit       ErrorType = "rate_limit_error"      // 429

	// 5xx 服务器错误
	ErrorTypeAPI        ErrorType = "api_error"        // 500
	ErrorTypeOverloaded ErrorType = "overloaded_error" // 503 / 529

	// 响应结构不符合预期
	ErrorTypeParse ErrorType = "parse_error"

	// 调用方主动取消
	ErrorTypeCanceled ErrorType = "canceled"
)

// 预定义错误
var (
	ErrCanceled              = errors.New("request canceled")
	ErrProviderNotRegistered = errors.New("provider not registered")
	ErrProviderOffline       = errors.New("provider offline")
	ErrStreamInParallel      = errors.New("streaming is not supported in parallel mode")
	ErrCallReused            = errors.New("call already finished")
	ErrToolNotRegistered     = errors.New("tool not registered")
	ErrInvalidModel          = errors.New("invalid model")
	ErrEmptyResponse         = errors.New("response has no choices")
)

// ProviderError Provider 错误
type ProviderError struct {
	Type       ErrorType // 错误类型
	Provider   string    // Provider 名称
	StatusCode int       // HTTP 状态码
	Code       string    // 服务商错误码
	Message    string    // 错误消息
	RequestID  string    // 请求 ID（用于追踪）
	Err        error     // 原始错误
}

func (e *ProviderError) Error() string {
	prefix := fmt.Sprintf("[%s][%s]", e.Provider, e.Type)
	if e.StatusCode != 0 {
		prefix += fmt.Sprintf("[%d %s]", e.StatusCode, http.StatusText(e.StatusCode))
	}
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s (code: %s)", msg, e.Code)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("%s (request_id: %s)", msg, e.RequestID)
	}
	return prefix + " " + msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrCanceled) 对取消错误成立
func (e *ProviderError) Is(target error) bool {
	return target == ErrCanceled && e.Type == ErrorTypeCanceled
}

// IsRetryable 判断错误是否可重试
// 4xx 与取消一律不重试
func (e *ProviderError) IsRetryable() bool {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return false
	}
	switch e.Type {
	case ErrorTypeTransport, ErrorTypeTimeout, ErrorTypeAPI, ErrorTypeOverloaded:
		return true
	default:
		return false
	}
}

// IsRateLimitError 判断是否为速率限制错误
func (e *ProviderError) IsRateLimitError() bool {
	return e.Type == ErrorTypeRateLimit
}

// NewProviderError 创建 Provider 错误
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Type:     ErrorTypeAPI,
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}

// NewConfigError 创建配置错误
func NewConfigError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Type:     ErrorTypeConfiguration,
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}

// NewParseError 创建响应解析错误
func NewParseError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Type:     ErrorTypeParse,
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}

// NewTransportError 创建网络层错误
func NewTransportError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Type:     ErrorTypeTransport,
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}

// NewCanceledError 创建取消错误，cause 通常是 ctx.Err()
func NewCanceledError(provider string, cause error) *ProviderError {
	if cause == nil {
		cause = context.Canceled
	}
	return &ProviderError{
		Type:     ErrorTypeCanceled,
		Provider: provider,
		Message:  "request canceled",
		Err:      cause,
	}
}

// NewHTTPError 根据 HTTP 状态码创建错误
func NewHTTPError(provider string, statusCode int, code, message string) *ProviderError {
	return &ProviderError{
		Type:       ErrorTypeFromStatus(statusCode),
		Provider:   provider,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// ErrorTypeFromStatus HTTP 状态码映射为错误类型
func ErrorTypeFromStatus(statusCode int) ErrorType {
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrorTypeInvalidRequest
	case http.StatusUnauthorized:
		return ErrorTypeAuthentication
	case http.StatusForbidden:
		return ErrorTypePermission
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusRequestEntityTooLarge:
		return ErrorTypeRequestTooLarge
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case http.StatusServiceUnavailable, 529:
		return ErrorTypeOverloaded
	}
	if statusCode >= 500 {
		return ErrorTypeAPI
	}
	return ErrorTypeInvalidRequest
}

// IsCanceled 判断是否为调用方取消
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeCanceled
	}
	return errors.Is(err, context.Canceled)
}

// IsConfiguration 判断是否为配置错误
func IsConfiguration(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeConfiguration
	}
	return false
}

// IsRetryable 判断任意错误是否可重试
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return false
}
