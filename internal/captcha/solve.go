package captcha

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/logging"
)

type correlationIDKey struct{}

// WithCorrelationID 绑定日志关联ID，WaitForResult 会带上它
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

func correlationIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationIDKey{}).(string)
	return id, ok && id != ""
}

// Solution 一次完整打码流程的结果
type Solution struct {
	Handle  TaskHandle
	Status  TaskStatus
	Token   string
	Elapsed time.Duration
}

// Solve 创建任务并等待结果。失败后需要重新调用，不做任何重试。
func (c *Client) Solve(ctx context.Context, params TaskParameters, kind TaskKind, opts WaitOptions) (*Solution, error) {
	id, ok := correlationIDFrom(ctx)
	if !ok {
		id = uuid.New().String()
		ctx = WithCorrelationID(ctx, id)
	}
	log := logging.WithOperation(logging.WithCorrelationID(logrus.NewEntry(c.logger), id), "solve")

	start := time.Now()
	handle, err := c.CreateTask(ctx, params, kind)
	if err != nil {
		return nil, err
	}

	status, err := c.WaitForResult(ctx, handle.TaskID, opts)
	if err != nil {
		return nil, err
	}

	solution := &Solution{
		Handle:  *handle,
		Status:  *status,
		Token:   status.ResponseKey,
		Elapsed: time.Since(start),
	}
	logging.WithTaskID(log, handle.TaskID).WithField("elapsed", solution.Elapsed.String()).Info("captcha solved")
	return solution, nil
}
