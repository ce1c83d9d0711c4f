package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// 错误代码常量
const (
	ErrCodeTransport    = "TRANSPORT_ERROR"
	ErrCodeSolve        = "SOLVE_ERROR"
	ErrCodeTimeout      = "TIMEOUT_ERROR"
	ErrCodeDecode       = "DECODE_ERROR"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRateLimit    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// AppError 应用错误类型
type AppError struct {
	Code    string                 // 错误代码
	Message string                 // 错误消息
	Err     error                  // 原始错误
	Context map[string]interface{} // 错误上下文
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口，支持错误链
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext 添加上下文信息
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ContextString 读取字符串类型的上下文值，不存在时返回空串
func (e *AppError) ContextString(key string) string {
	if s, ok := e.Context[key].(string); ok {
		return s
	}
	return ""
}

// New 创建新的应用错误
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// Wrap 包装现有错误
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Context: make(map[string]interface{}),
	}
}

// NewTransportError 远端返回非 2xx 状态码，body 保留原始响应体便于排查
func NewTransportError(endpoint string, statusCode int, body string) *AppError {
	return New(ErrCodeTransport, fmt.Sprintf("request to %s failed with status %d", endpoint, statusCode)).
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode).
		WithContext("body", body)
}

// NewTransportFailure 请求未能拿到响应（网络错误、超时等）
func NewTransportFailure(endpoint string, err error) *AppError {
	return Wrap(err, ErrCodeTransport, fmt.Sprintf("request to %s failed", endpoint)).
		WithContext("endpoint", endpoint)
}

// NewSolveError 远端报告任务失败
func NewSolveError(taskID int, message string) *AppError {
	if message == "" {
		message = "unknown error"
	}
	return New(ErrCodeSolve, fmt.Sprintf("task %d failed: %s", taskID, message)).
		WithContext("task_id", taskID).
		WithContext("reason", message)
}

// NewWaitTimeoutError 等待期限内任务仍未完成
func NewWaitTimeoutError(taskID int, elapsed time.Duration, attempts int) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("task %d did not complete within %v (%d polls)", taskID, elapsed.Round(time.Millisecond), attempts)).
		WithContext("task_id", taskID).
		WithContext("elapsed", elapsed).
		WithContext("attempts", attempts)
}

// NewDecodeError 响应体无法解析
func NewDecodeError(endpoint, body string, err error) *AppError {
	return Wrap(err, ErrCodeDecode, fmt.Sprintf("failed to decode response from %s", endpoint)).
		WithContext("endpoint", endpoint).
		WithContext("body", body)
}

// NewValidationError 创建验证错误
func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("validation failed for field '%s': %s", field, reason)).
		WithContext("field", field).
		WithContext("reason", reason)
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(resource, id string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", resource, id)).
		WithContext("resource", resource).
		WithContext("id", id)
}

// NewUnauthorizedError 创建未授权错误
func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, fmt.Sprintf("unauthorized: %s", reason)).
		WithContext("reason", reason)
}

// NewRateLimitError 创建限流错误
func NewRateLimitError() *AppError {
	return New(ErrCodeRateLimit, "rate limit exceeded")
}

// NewInternalError 创建内部错误
func NewInternalError(message string, err error) *AppError {
	if err != nil {
		return Wrap(err, ErrCodeInternal, message)
	}
	return New(ErrCodeInternal, message)
}

// CodeOf 返回错误链中第一个 AppError 的代码
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode 检查错误链中第一个 AppError 是否为指定代码
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

func IsTransport(err error) bool { return HasCode(err, ErrCodeTransport) }

func IsSolve(err error) bool { return HasCode(err, ErrCodeSolve) }

func IsTimeout(err error) bool { return HasCode(err, ErrCodeTimeout) }
