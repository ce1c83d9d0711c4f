package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/errors"
)

// RequestIDMiddleware 为每个请求生成唯一ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 尝试从请求头获取，如果没有则生成新的
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// 设置到上下文和响应头
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志
func LoggerMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 记录请求开始时间
		startTime := time.Now()

		// 获取请求ID
		requestID, _ := c.Get("request_id")

		// 记录请求信息
		logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}).Debug("request started")

		// 处理请求
		c.Next()

		// 计算请求耗时
		duration := time.Since(startTime)

		// 记录响应信息
		logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   duration.Milliseconds(),
			"size":       c.Writer.Size(),
		}).Info("request completed")
	}
}

// RecoveryMiddleware panic恢复中间件
func RecoveryMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// 获取请求ID
				requestID, _ := c.Get("request_id")

				// 记录panic信息
				logger.WithFields(logrus.Fields{
					"request_id": requestID,
					"method":     c.Request.Method,
					"path":       c.Request.URL.Path,
					"panic":      err,
				}).Error("panic recovered")

				// 返回500错误
				c.JSON(500, ErrorResponse(errors.ErrCodeInternal, "Internal server error"))
				c.Abort()
			}
		}()

		c.Next()
	}
}

// RateLimitMiddleware 全局令牌桶限流
func RateLimitMiddleware(rateLimit int, burst int) gin.HandlerFunc {
	// 创建限流器
	limiter := rate.NewLimiter(rate.Limit(rateLimit), burst)

	return func(c *gin.Context) {
		// 检查是否允许请求
		if !limiter.Allow() {
			appErr := errors.NewRateLimitError()
			c.JSON(HTTPStatus(appErr.Code), ErrorResponse(appErr.Code, "Too many requests"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// ContentTypeMiddleware 要求带请求体的请求使用 JSON
func ContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "POST" || c.Request.Method == "PUT" || c.Request.Method == "PATCH" {
			contentType := c.ContentType()
			if contentType != "" && contentType != "application/json" {
				c.JSON(415, ErrorResponse(errors.ErrCodeValidation,
					fmt.Sprintf("Content-Type '%s' is not supported", contentType)))
				c.Abort()
				return
			}
		}

		c.Next()
	}
}
