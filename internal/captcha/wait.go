package captcha

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/errors"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/logging"
)

const (
	DefaultMaxWait      = 300 * time.Second
	DefaultPollInterval = 5 * time.Second
)

// WaitOptions 轮询配置，零值字段各自取默认值
type WaitOptions struct {
	MaxWait      time.Duration // 总等待期限
	PollInterval time.Duration // 两次查询之间的固定间隔
	MaxAttempts  int           // 0 表示只受 MaxWait 限制
	// OnPoll 每次查询后回调，attempt 从 1 开始
	OnPoll func(attempt int, status *TaskStatus)
}

// DefaultWaitOptions 返回默认轮询配置
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		MaxWait:      DefaultMaxWait,
		PollInterval: DefaultPollInterval,
	}
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
	return o
}

// WaitForResult 按固定间隔轮询直到 solved、error 或超时。
// ctx 只在两次查询之间生效，进行中的请求不会被打断，远端任务也不会被取消。
func (c *Client) WaitForResult(ctx context.Context, taskID int, opts WaitOptions) (*TaskStatus, error) {
	opts = opts.withDefaults()
	log := logging.WithOperation(logging.WithTaskID(logrus.NewEntry(c.logger), taskID), "wait_for_result")
	if id, ok := correlationIDFrom(ctx); ok {
		log = logging.WithCorrelationID(log, id)
	}

	pollCtx := context.WithoutCancel(ctx)
	start := time.Now()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("wait for task %d abandoned: %w", taskID, err)
		}

		status, err := c.GetStatus(pollCtx, taskID)
		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Error("failed to fetch task status")
			return nil, err
		}
		if opts.OnPoll != nil {
			opts.OnPoll(attempt, status)
		}

		switch {
		case status.IsSolved():
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"elapsed": time.Since(start).String(),
			}).Info("task solved")
			return status, nil
		case status.IsFailed():
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"reason":  logging.SanitizeForLog(status.Error),
			}).Warn("task failed")
			return nil, errors.NewSolveError(taskID, status.Error)
		}

		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"status":  status.Status,
		}).Debug("task still pending")

		elapsed := time.Since(start)
		if elapsed >= opts.MaxWait || (opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts) {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"elapsed": elapsed.String(),
			}).Warn("gave up waiting for task")
			return nil, errors.NewWaitTimeoutError(taskID, elapsed, attempt)
		}

		if err := sleep(ctx, opts.PollInterval); err != nil {
			return nil, fmt.Errorf("wait for task %d abandoned: %w", taskID, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
