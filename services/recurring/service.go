package recurring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"mission-control/pkg/db/option"
	"mission-control/pkg/errutil"
	"mission-control/pkg/logger"
	"mission-control/pkg/repository"
	"mission-control/services/agent"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	agents agent.Directory
	repo   repository.Repository[Task]
	now    func() time.Time
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Agents agent.Directory
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		agents: p.Agents,
		repo:   repository.ProvideStore[Task](p.DB),
		now:    time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Task, error) {
	name := strings.TrimSpace(req.Name)
	schedule := strings.TrimSpace(req.Schedule)
	if name == "" || schedule == "" {
		return nil, errutil.BadRequest("name and schedule are required", nil)
	}

	maxRetries := DefaultMaxRetries
	if req.MaxRetries != nil {
		if *req.MaxRetries < 1 {
			return nil, errutil.BadRequest("maxRetries must be positive", nil)
		}
		maxRetries = *req.MaxRetries
	}

	payload, err := normalizePayload(req.Payload)
	if err != nil {
		return nil, err
	}

	if req.AgentID != nil && *req.AgentID != "" {
		if _, err := s.agents.Get(ctx, *req.AgentID); err != nil {
			return nil, err
		}
	} else {
		req.AgentID = nil
	}

	existing, err := s.repo.FindOne(ctx, &Task{Name: name})
	if err != nil {
		return nil, errutil.Internal("failed to check recurring task", err)
	}
	if existing != nil {
		return nil, errutil.Conflict("recurring task already exists", nil)
	}

	now := s.now().UnixMilli()
	t := &Task{
		ID:         s.node.Generate().String(),
		Name:       name,
		Schedule:   schedule,
		AgentID:    req.AgentID,
		Payload:    payload,
		Status:     StatusActive,
		MaxRetries: maxRetries,
		NextRunAt:  req.NextRunAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		logger.FromContext(ctx).Error("failed to create recurring task", zap.String("name", name), zap.Error(err))
		return nil, errutil.Internal("failed to create recurring task", err)
	}
	return t, nil
}

func normalizePayload(raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, errutil.BadRequest("payload must be valid JSON", nil)
	}
	return datatypes.JSON(trimmed), nil
}

func (s *Service) List(ctx context.Context, status Status) ([]*Task, error) {
	filter := &Task{}
	if status != "" {
		if !status.Valid() {
			return nil, errutil.BadRequest("invalid status", nil)
		}
		filter.Status = status
	}

	rows, err := s.repo.Find(ctx, filter, option.WithSortBy(option.QuerySortBy{SortBy: "name", OrderBy: "asc"}))
	if err != nil {
		logger.FromContext(ctx).Error("failed to list recurring tasks", zap.Error(err))
		return nil, errutil.Internal("failed to list recurring tasks", err)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, name string) (*Task, error) {
	if name == "" {
		return nil, errutil.BadRequest("name is required", nil)
	}

	t, err := s.repo.FindOne(ctx, &Task{Name: name})
	if err != nil {
		return nil, errutil.Internal("failed to get recurring task", err)
	}
	if t == nil {
		return nil, errutil.NotFound("recurring task not found", nil)
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, name string, req UpdateRequest) (*Task, error) {
	t, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	if req.Schedule != nil {
		schedule := strings.TrimSpace(*req.Schedule)
		if schedule == "" {
			return nil, errutil.BadRequest("schedule cannot be empty", nil)
		}
		values["schedule"] = schedule
	}
	if len(req.Payload) > 0 {
		payload, err := normalizePayload(req.Payload)
		if err != nil {
			return nil, err
		}
		values["payload"] = payload
	}
	if req.MaxRetries != nil {
		if *req.MaxRetries < 1 {
			return nil, errutil.BadRequest("maxRetries must be positive", nil)
		}
		values["max_retries"] = *req.MaxRetries
	}
	if req.NextRunAt != nil {
		values["next_run_at"] = req.NextRunAt
	}

	return s.apply(ctx, t, values)
}

func (s *Service) Pause(ctx context.Context, name string) (*Task, error) {
	return s.setStatus(ctx, name, map[string]any{"status": StatusPaused})
}

func (s *Service) Resume(ctx context.Context, name string) (*Task, error) {
	return s.setStatus(ctx, name, map[string]any{"status": StatusActive})
}

func (s *Service) Complete(ctx context.Context, name string) (*Task, error) {
	return s.setStatus(ctx, name, map[string]any{"status": StatusCompleted})
}

// Retry re-arms a task with a clean failure streak.
func (s *Service) Retry(ctx context.Context, name string) (*Task, error) {
	return s.setStatus(ctx, name, map[string]any{
		"status":      StatusActive,
		"retry_count": 0,
		"last_error":  nil,
	})
}

func (s *Service) setStatus(ctx context.Context, name string, values map[string]any) (*Task, error) {
	t, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	updated, err := s.apply(ctx, t, values)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("recurring task status changed",
		zap.String("name", name),
		zap.String("from", string(t.Status)),
		zap.String("to", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) apply(ctx context.Context, t *Task, values map[string]any) (*Task, error) {
	if len(values) == 0 {
		return t, nil
	}
	values["updated_at"] = s.now().UnixMilli()

	if err := s.repo.Update(ctx, t.ID, values); err != nil {
		logger.FromContext(ctx).Error("failed to update recurring task", zap.String("name", t.Name), zap.Error(err))
		return nil, errutil.Internal("failed to update recurring task", err)
	}
	return s.Get(ctx, t.Name)
}

// RecordRun books the outcome of one execution. The read-modify-write runs
// under a row lock. A missing task is ignored and yields nil.
func (s *Service) RecordRun(ctx context.Context, name string, res RunResult) (*Task, error) {
	if name == "" {
		return nil, errutil.BadRequest("name is required", nil)
	}

	var out *Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)

		t, err := repo.FindOne(ctx, &Task{Name: name}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}

		applyRun(t, res, s.now().UnixMilli())

		err = repo.Update(ctx, t.ID, map[string]any{
			"status":      t.Status,
			"retry_count": t.RetryCount,
			"last_run_at": t.LastRunAt,
			"last_status": t.LastStatus,
			"last_error":  t.LastError,
			"next_run_at": t.NextRunAt,
			"updated_at":  t.UpdatedAt,
		})
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to record recurring run", zap.String("name", name), zap.Error(err))
		return nil, errutil.Internal("failed to record run", err)
	}

	if out == nil {
		logger.FromContext(ctx).Warn("run reported for unknown recurring task", zap.String("name", name))
		return nil, nil
	}
	if out.Status == StatusFailed {
		logger.FromContext(ctx).Warn("recurring task exhausted retries",
			zap.String("name", name),
			zap.Int("retry_count", out.RetryCount),
		)
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, name string) error {
	t, err := s.Get(ctx, name)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, t.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.Internal("failed to delete recurring task", err)
	}
	return nil
}
