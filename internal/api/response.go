package api

import (
	stderrors "errors"
	"net/http"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/captcha"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/errors"
)

// Response 错误响应格式，与远端服务的错误体保持一致
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
}

// ErrorResponse 创建错误响应
func ErrorResponse(code, message string) Response {
	return Response{
		Status: captcha.StatusError,
		Error:  message,
		Code:   code,
	}
}

// HTTPStatus 错误码对应的 HTTP 状态码
func HTTPStatus(code string) int {
	switch code {
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// errorFrom 将任意错误转换为 HTTP 状态码和响应体
func errorFrom(err error) (int, Response) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) || appErr.Code == errors.ErrCodeInternal {
		return http.StatusInternalServerError, ErrorResponse(errors.ErrCodeInternal, "Internal server error")
	}
	return HTTPStatus(appErr.Code), ErrorResponse(appErr.Code, appErr.Message)
}
