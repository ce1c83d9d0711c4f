package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/captcha"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/errors"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/logging"
)

// TaskService 沙箱任务服务
type TaskService interface {
	CreateTask(key string, kind captcha.TaskKind, params captcha.TaskParameters) (*captcha.TaskHandle, error)
	Result(id int) (*captcha.TaskStatus, error)
}

// Handlers API处理器集合
type Handlers struct {
	tasks  TaskService
	logger *logrus.Logger
}

// NewHandlers 创建API处理器
func NewHandlers(tasks TaskService, logger *logrus.Logger) *Handlers {
	return &Handlers{
		tasks:  tasks,
		logger: logger,
	}
}

// createTaskRequest 与客户端发送的请求体一致
type createTaskRequest struct {
	Key  string                 `json:"key"`
	Type captcha.TaskKind       `json:"type"`
	Data captcha.TaskParameters `json:"data"`
}

// CreateTask 创建打码任务
func (h *Handlers) CreateTask(c *gin.Context) {
	requestID, _ := c.Get("request_id")

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("invalid create_task body")

		c.JSON(400, ErrorResponse(errors.ErrCodeValidation, "invalid request body"))
		return
	}

	handle, err := h.tasks.CreateTask(req.Key, req.Type, req.Data)
	if err != nil {
		h.fail(c, err, "failed to create task")
		return
	}

	logging.WithTaskID(logging.WithRequestID(logrus.NewEntry(h.logger), toString(requestID)), handle.TaskID).
		Info("task created")

	c.JSON(200, handle)
}

// GetResult 查询任务状态
func (h *Handlers) GetResult(c *gin.Context) {
	requestID, _ := c.Get("request_id")

	id, err := strconv.Atoi(c.Param("task_id"))
	if err != nil || id <= 0 {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"task_id":    c.Param("task_id"),
		}).Warn("invalid task id")

		c.JSON(400, ErrorResponse(errors.ErrCodeValidation, "task_id must be a positive integer"))
		return
	}

	status, err := h.tasks.Result(id)
	if err != nil {
		h.fail(c, err, "failed to get task result")
		return
	}

	c.JSON(200, status)
}

// fail 记录错误并按错误码返回
func (h *Handlers) fail(c *gin.Context, err error, msg string) {
	requestID, _ := c.Get("request_id")
	code, body := errorFrom(err)

	entry := h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"code":       body.Code,
		"error":      err.Error(),
	})
	if code >= 500 {
		entry.Error(msg)
	} else {
		entry.Warn(msg)
	}

	c.JSON(code, body)
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}
