package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TaskKind 打码任务类型，只有 Basic 与 Enterprise 两种
type TaskKind int

const (
	TaskKindBasic TaskKind = iota + 1
	TaskKindEnterprise
)

var taskKindWireNames = map[TaskKind]string{
	TaskKindBasic:      "hcaptcha_basic",
	TaskKindEnterprise: "hcaptcha_enterprise",
}

// String 返回线上协议使用的类型名
func (k TaskKind) String() string {
	if name, ok := taskKindWireNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TaskKind(%d)", int(k))
}

// Valid 是否为已定义的类型
func (k TaskKind) Valid() bool {
	_, ok := taskKindWireNames[k]
	return ok
}

// ParseTaskKind 解析类型名，支持 basic/enterprise 简写
func ParseTaskKind(s string) (TaskKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic", "hcaptcha_basic":
		return TaskKindBasic, nil
	case "enterprise", "hcaptcha_enterprise":
		return TaskKindEnterprise, nil
	}
	return 0, fmt.Errorf("unknown task kind %q (must be basic or enterprise)", s)
}

// MarshalJSON 输出线上名称，非法值不允许序列化
func (k TaskKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid task kind %d", int(k))
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON 只接受线上名称
func (k *TaskKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("task kind must be a string: %w", err)
	}
	for kind, name := range taskKindWireNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown task kind %q", s)
}

// TaskParameters 提交给远端的任务参数，远端负责校验
type TaskParameters struct {
	SiteKey string `json:"sitekey"`
	SiteURL string `json:"siteurl"`
	Proxy   string `json:"proxy"`
	RqData  string `json:"rqdata,omitempty"`
}

// Price 任务价格，远端可能以数字或字符串形式返回
type Price float64

// UnmarshalJSON 兼容数字、数字字符串、空串和 null
func (p *Price) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*p = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
		if raw == "" {
			*p = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid price %s: %w", string(data), err)
	}
	*p = Price(v)
	return nil
}

// TaskHandle 创建任务的返回值
type TaskHandle struct {
	TaskID int    `json:"task_id"`
	Price  Price  `json:"price"`
	Status string `json:"status,omitempty"`
}

// 远端任务状态
const (
	StatusSolved  = "solved"
	StatusError   = "error"
	StatusSolving = "solving"
)

// TaskStatus 单次查询的完整快照，不做缓存或合并
type TaskStatus struct {
	Status      string `json:"status"`
	ResponseKey string `json:"response_key,omitempty"`
	Error       string `json:"error,omitempty"`
}

// IsSolved 状态为 solved，或 error 但同时带有 response_key（solved 优先）
func (s *TaskStatus) IsSolved() bool {
	switch s.Status {
	case StatusSolved:
		return true
	case StatusError:
		return s.ResponseKey != ""
	}
	return false
}

// IsFailed 远端报告失败且没有可用的 response_key
func (s *TaskStatus) IsFailed() bool {
	return s.Status == StatusError && s.ResponseKey == ""
}

// IsPending 其余任何状态都视为仍在处理中
func (s *TaskStatus) IsPending() bool {
	return !s.IsSolved() && !s.IsFailed()
}

// TaskClient 远端打码服务客户端
type TaskClient interface {
	CreateTask(ctx context.Context, params TaskParameters, kind TaskKind) (*TaskHandle, error)
	GetStatus(ctx context.Context, taskID int) (*TaskStatus, error)
	WaitForResult(ctx context.Context, taskID int, opts WaitOptions) (*TaskStatus, error)
}
