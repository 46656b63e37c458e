package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// ErrDisabled is returned by the Enqueuer when no queue backend is configured.
var ErrDisabled = errors.New("background jobs disabled")

type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer wraps an asynq client. A nil client produces an Enqueuer that
// always fails with ErrDisabled, which callers treat as "run inline or skip".
func NewEnqueuer(client *asynq.Client) Enqueuer {
	return &enqueuer{client: client}
}

func (e *enqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.client == nil {
		return nil, ErrDisabled
	}

	info, err := e.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}

	zap.L().Debug("task enqueued",
		zap.String("task_type", task.Type()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return info, nil
}

// EnqueueJSON encodes payload as the task body and enqueues it.
func EnqueueJSON(ctx context.Context, e Enqueuer, typename string, payload any, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typename, err)
	}
	return e.Enqueue(ctx, asynq.NewTask(typename, body), opts...)
}
