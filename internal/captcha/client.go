package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/errors"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/httpclient"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/logging"
)

// DefaultBaseURL RazorCap 服务地址
const DefaultBaseURL = "https://api.razorcap.xyz"

const (
	createTaskPath = "/create_task"
	getResultPath  = "/get_result/%d"
)

// ClientConfig 客户端配置
type ClientConfig struct {
	APIKey  string
	BaseURL string // 为空时使用 DefaultBaseURL
}

// Client RazorCap 客户端，除 API Key 外无状态，可并发使用
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

var _ TaskClient = (*Client)(nil)

// NewClient 创建客户端，httpClient/logger 为 nil 时使用默认值
func NewClient(config ClientConfig, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = httpclient.NewDefaultClient()
	}
	if logger == nil {
		logger = logrus.New()
	}
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

type createTaskRequest struct {
	Key  string         `json:"key"`
	Type TaskKind       `json:"type"`
	Data TaskParameters `json:"data"`
}

// CreateTask 提交打码任务
func (c *Client) CreateTask(ctx context.Context, params TaskParameters, kind TaskKind) (*TaskHandle, error) {
	log := c.logger.WithFields(logrus.Fields{
		"operation": "create_task",
		"type":      kind.String(),
		"siteurl":   params.SiteURL,
		"proxy":     logging.RedactSensitiveData(params.Proxy),
	})

	if !kind.Valid() {
		return nil, errors.NewValidationError("type", fmt.Sprintf("unsupported task kind %d", int(kind)))
	}

	payload, err := json.Marshal(createTaskRequest{
		Key:  c.apiKey,
		Type: kind,
		Data: params,
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to encode create_task payload", err)
	}

	var handle TaskHandle
	if err := c.do(ctx, http.MethodPost, createTaskPath, payload, &handle); err != nil {
		log.WithError(err).Error("failed to create task")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"task_id": handle.TaskID,
		"price":   float64(handle.Price),
	}).Info("task created")

	return &handle, nil
}

// GetStatus 查询任务当前状态
func (c *Client) GetStatus(ctx context.Context, taskID int) (*TaskStatus, error) {
	var status TaskStatus
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf(getResultPath, taskID), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// do 发送请求并解析 JSON 响应，非 2xx 视为传输错误
func (c *Client) do(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to build request for %s", path), err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewTransportFailure(path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewTransportFailure(path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewTransportError(path, resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.NewDecodeError(path, string(raw), err)
	}
	return nil
}
