package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"mission-control/pkg/db/option"
	"mission-control/pkg/db/pagination"
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

func (s *Service) filterOptions(f ListFilter) ([]option.QueryOption, error) {
	var opts []option.QueryOption
	if f.Status != "" {
		if !Status(f.Status).Valid() {
			return nil, errutil.BadRequest("invalid status", nil)
		}
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: f.Status}))
	}
	if f.Product != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "product", Operator: option.EQ, Value: f.Product}))
	}
	if f.AssigneeID != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "assignee_id", Operator: option.EQ, Value: f.AssigneeID}))
	}
	return opts, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, p pagination.Pagination) (pagination.Page[*Item], error) {
	p = p.Normalize(pagination.DefaultLimit)

	opts, err := s.filterOptions(f)
	if err != nil {
		return pagination.Page[*Item]{}, err
	}

	after, err := repository.After(ctx, s.repo, p.Cursor, "created_at", func(t *Task) int64 { return t.CreatedAt })
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return pagination.Page[*Item]{}, errutil.BadRequest("invalid cursor", err)
		}
		return pagination.Page[*Item]{}, errutil.Internal("failed to list tasks", err)
	}

	opts = append(opts,
		after,
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc"}),
		option.ApplyPagination(p),
	)

	rows, err := s.repo.Find(ctx, &Task{}, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list tasks", zap.Error(err))
		return pagination.Page[*Item]{}, errutil.Internal("failed to list tasks", err)
	}

	page := pagination.BuildPage(rows, p.Limit, func(t *Task) string { return t.ID })
	items, err := s.enrich(ctx, page.Items)
	if err != nil {
		return pagination.Page[*Item]{}, err
	}
	return pagination.Page[*Item]{Items: items, HasMore: page.HasMore, NextCursor: page.NextCursor}, nil
}

// Board groups every task (optionally of one product) into status columns.
func (s *Service) Board(ctx context.Context, product string) (*Board, error) {
	opts, err := s.filterOptions(ListFilter{Product: product})
	if err != nil {
		return nil, err
	}
	opts = append(opts, option.WithSortBy(option.QuerySortBy{SortBy: "updated_at", OrderBy: "desc"}))

	rows, err := s.repo.Find(ctx, &Task{}, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load board", zap.Error(err))
		return nil, errutil.Internal("failed to load board", err)
	}

	items, err := s.enrich(ctx, rows)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[Status][]*Item, len(Statuses))
	for _, it := range items {
		byStatus[it.Status] = append(byStatus[it.Status], it)
	}

	board := &Board{Columns: make([]Column, 0, len(Statuses))}
	for _, st := range Statuses {
		tasks := byStatus[st]
		if tasks == nil {
			tasks = []*Item{}
		}
		board.Columns = append(board.Columns, Column{Status: st, Tasks: tasks})
	}
	return board, nil
}

func (s *Service) find(ctx context.Context, id string) (*Task, error) {
	if id == "" {
		return nil, errutil.BadRequest("task id is required", nil)
	}

	t, err := s.repo.FindOne(ctx, &Task{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to get task", err)
	}
	if t == nil {
		return nil, errutil.NotFound("task not found", nil)
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.enrich(ctx, []*Task{t})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.repo.Count(ctx, &Task{ID: id})
	if err != nil {
		return false, errutil.Internal("failed to check task", err)
	}
	return n > 0, nil
}

func (s *Service) requireAgent(ctx context.Context, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	_, err := s.agents.Get(ctx, *id)
	return err
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Item, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errutil.BadRequest("title is required", nil)
	}

	if req.Status == "" {
		req.Status = StatusBacklog
	}
	if !req.Status.Valid() {
		return nil, errutil.BadRequest("invalid status", nil)
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !req.Priority.Valid() {
		return nil, errutil.BadRequest("invalid priority", nil)
	}

	if err := s.requireAgent(ctx, req.AssigneeID); err != nil {
		return nil, err
	}
	if err := s.requireAgent(ctx, req.CreatedByID); err != nil {
		return nil, err
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	now := s.now().UnixMilli()
	t := &Task{
		ID:          s.node.Generate().String(),
		Title:       title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Product:     emptyToNil(req.Product),
		AssigneeID:  emptyToNil(req.AssigneeID),
		CreatedByID: emptyToNil(req.CreatedByID),
		ScheduledAt: req.ScheduledAt,
		DueAt:       req.DueAt,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		logger.FromContext(ctx).Error("failed to create task", zap.Error(err))
		return nil, errutil.Internal("failed to create task", err)
	}

	return s.Get(ctx, t.ID)
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Item, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}

	values := map[string]any{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, errutil.BadRequest("title cannot be empty", nil)
		}
		values["title"] = title
	}
	if req.Description != nil {
		values["description"] = *req.Description
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, errutil.BadRequest("invalid status", nil)
		}
		values["status"] = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, errutil.BadRequest("invalid priority", nil)
		}
		values["priority"] = *req.Priority
	}
	if req.Product != nil {
		values["product"] = emptyToNil(req.Product)
	}
	if req.AssigneeID != nil {
		if err := s.requireAgent(ctx, req.AssigneeID); err != nil {
			return nil, err
		}
		values["assignee_id"] = emptyToNil(req.AssigneeID)
	}
	if req.ScheduledAt != nil {
		values["scheduled_at"] = zeroToNil(*req.ScheduledAt)
	}
	if req.DueAt != nil {
		values["due_at"] = zeroToNil(*req.DueAt)
	}
	if req.Tags != nil {
		tags := *req.Tags
		if tags == nil {
			tags = []string{}
		}
		values["tags"] = datatypes.JSONSlice[string](tags)
	}

	return s.apply(ctx, id, values)
}

// UpdateStatus moves a task to any status; there is no transition graph.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Item, error) {
	if !status.Valid() {
		return nil, errutil.BadRequest("invalid status", nil)
	}
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	return s.apply(ctx, id, map[string]any{"status": status})
}

// Assign sets or, with a nil/empty agent id, clears the assignee.
func (s *Service) Assign(ctx context.Context, id string, agentID *string) (*Item, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	if err := s.requireAgent(ctx, agentID); err != nil {
		return nil, err
	}
	return s.apply(ctx, id, map[string]any{"assignee_id": emptyToNil(agentID)})
}

func (s *Service) apply(ctx context.Context, id string, values map[string]any) (*Item, error) {
	if len(values) == 0 {
		return s.Get(ctx, id)
	}
	values["updated_at"] = s.now().UnixMilli()

	if err := s.repo.Update(ctx, id, values); err != nil {
		logger.FromContext(ctx).Error("failed to update task", zap.String("task_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to update task", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.Internal("failed to delete task", err)
	}
	return nil
}

func (s *Service) enrich(ctx context.Context, rows []*Task) ([]*Item, error) {
	ids := make([]string, 0, len(rows)*2)
	for _, t := range rows {
		if t.AssigneeID != nil {
			ids = append(ids, *t.AssigneeID)
		}
		if t.CreatedByID != nil {
			ids = append(ids, *t.CreatedByID)
		}
	}

	summaries, err := s.agents.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]*Item, 0, len(rows))
	for _, t := range rows {
		it := &Item{Task: t}
		if t.AssigneeID != nil {
			it.Assignee = summaries[*t.AssigneeID]
		}
		if t.CreatedByID != nil {
			it.CreatedBy = summaries[*t.CreatedByID]
		}
		items = append(items, it)
	}
	return items, nil
}

func emptyToNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func zeroToNil(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
