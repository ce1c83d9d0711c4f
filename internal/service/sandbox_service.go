package service

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/cache"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/captcha"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/config"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/errors"
)

// FailSiteKeyPrefix 以此开头的 sitekey 最终进入 error 状态
const FailSiteKeyPrefix = "fail"

// sandboxTask 沙箱中的单个任务
type sandboxTask struct {
	ID        int
	Kind      captcha.TaskKind
	Params    captcha.TaskParameters
	Polls     int
	Status    captcha.TaskStatus
	CreatedAt time.Time
}

// SandboxService 与远端接口兼容的本地打码服务，不做真正的识别
type SandboxService struct {
	cfg     config.SandboxConfig
	tasks   *cache.TTLCache[int, sandboxTask]
	apiKeys map[string]struct{}
	nextID  atomic.Int64
	logger  *logrus.Logger
}

// NewSandboxService 创建沙箱服务
func NewSandboxService(cfg config.SandboxConfig, logger *logrus.Logger) *SandboxService {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.SolveAfter <= 0 {
		cfg.SolveAfter = 1
	}
	if cfg.TaskTTL <= 0 {
		cfg.TaskTTL = 10 * time.Minute
	}

	keys := make(map[string]struct{}, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys[k] = struct{}{}
	}

	return &SandboxService{
		cfg:     cfg,
		tasks:   cache.NewTTLCache[int, sandboxTask](cfg.TaskTTL, cfg.TaskTTL/2),
		apiKeys: keys,
		logger:  logger,
	}
}

// CreateTask 登记新任务，返回 solving 状态的句柄
func (s *SandboxService) CreateTask(key string, kind captcha.TaskKind, params captcha.TaskParameters) (*captcha.TaskHandle, error) {
	log := s.logger.WithFields(logrus.Fields{
		"operation": "sandbox_create_task",
		"type":      kind.String(),
	})

	if len(s.apiKeys) > 0 {
		if _, ok := s.apiKeys[key]; !ok {
			log.Warn("unknown api key")
			return nil, errors.NewUnauthorizedError("invalid api key")
		}
	}

	if !kind.Valid() {
		return nil, errors.NewValidationError("type", "unsupported task type")
	}
	if strings.TrimSpace(params.SiteKey) == "" {
		return nil, errors.NewValidationError("sitekey", "is required")
	}
	if strings.TrimSpace(params.SiteURL) == "" {
		return nil, errors.NewValidationError("siteurl", "is required")
	}

	id := int(s.nextID.Add(1))
	s.tasks.Set(id, sandboxTask{
		ID:        id,
		Kind:      kind,
		Params:    params,
		Status:    captcha.TaskStatus{Status: captcha.StatusSolving},
		CreatedAt: time.Now(),
	})

	log.WithField("task_id", id).Info("sandbox task created")

	return &captcha.TaskHandle{
		TaskID: id,
		Price:  s.priceFor(kind),
		Status: captcha.StatusSolving,
	}, nil
}

// Result 返回任务当前状态，每次调用计为一次轮询
func (s *SandboxService) Result(id int) (*captcha.TaskStatus, error) {
	task, ok := s.tasks.Update(id, func(t sandboxTask) sandboxTask {
		t.Polls++
		if t.Status.Status == captcha.StatusSolving && t.Polls >= s.cfg.SolveAfter {
			t.Status = s.finish(t)
		}
		return t
	})
	if !ok {
		return nil, errors.NewNotFoundError("task", strconv.Itoa(id))
	}

	s.logger.WithFields(logrus.Fields{
		"task_id": id,
		"polls":   task.Polls,
		"status":  task.Status.Status,
	}).Debug("sandbox task polled")

	status := task.Status
	return &status, nil
}

// Close 停止缓存清理
func (s *SandboxService) Close() {
	s.tasks.Close()
}

func (s *SandboxService) finish(t sandboxTask) captcha.TaskStatus {
	if strings.HasPrefix(t.Params.SiteKey, FailSiteKeyPrefix) {
		return captcha.TaskStatus{Status: captcha.StatusError, Error: "captcha could not be solved"}
	}
	return captcha.TaskStatus{Status: captcha.StatusSolved, ResponseKey: "P1_" + uuid.NewString()}
}

func (s *SandboxService) priceFor(kind captcha.TaskKind) captcha.Price {
	if kind == captcha.TaskKindEnterprise {
		return captcha.Price(s.cfg.PriceEnterprise)
	}
	return captcha.Price(s.cfg.PriceBasic)
}
