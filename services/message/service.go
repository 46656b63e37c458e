package message

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
	"gorm.io/gorm"
)

// TaskChecker reports whether a task exists; messages may point at one.
type TaskChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	agents agent.Directory
	tasks  TaskChecker
	repo   repository.Repository[Message]
	now    func() time.Time
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Agents agent.Directory
	Tasks  TaskChecker
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		agents: p.Agents,
		tasks:  p.Tasks,
		repo:   repository.ProvideStore[Message](p.DB),
		now:    time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Item, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, errutil.BadRequest("content is required", nil)
	}
	if req.AgentID == "" {
		return nil, errutil.BadRequest("agentId is required", nil)
	}
	if req.MessageType == "" {
		req.MessageType = TypeMessage
	}
	if !req.MessageType.Valid() {
		return nil, errutil.BadRequest("invalid messageType", nil)
	}

	if _, err := s.agents.Get(ctx, req.AgentID); err != nil {
		return nil, err
	}

	if req.ReplyToID != nil && *req.ReplyToID != "" {
		parent, err := s.repo.FindOne(ctx, &Message{ID: *req.ReplyToID})
		if err != nil {
			return nil, errutil.Internal("failed to load parent message", err)
		}
		if parent == nil {
			return nil, errutil.NotFound("reply target not found", nil)
		}
	} else {
		req.ReplyToID = nil
	}

	if req.TaskID != nil && *req.TaskID != "" {
		ok, err := s.tasks.Exists(ctx, *req.TaskID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errutil.NotFound("task not found", nil)
		}
	} else {
		req.TaskID = nil
	}

	m := &Message{
		ID:          s.node.Generate().String(),
		AgentID:     req.AgentID,
		Content:     content,
		ReplyToID:   req.ReplyToID,
		TaskID:      req.TaskID,
		IsHuman:     req.IsHuman,
		MessageType: req.MessageType,
		Timestamp:   s.now().UnixMilli(),
	}

	if err := s.repo.Create(ctx, m); err != nil {
		logger.FromContext(ctx).Error("failed to create message", zap.Error(err))
		return nil, errutil.Internal("failed to create message", err)
	}

	items, err := s.enrich(ctx, []*Message{m})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// List is the squad chat feed, newest first.
func (s *Service) List(ctx context.Context, p pagination.Pagination) (pagination.Page[*Item], error) {
	p = p.Normalize(pagination.DefaultLimit)

	after, err := repository.After(ctx, s.repo, p.Cursor, "ts", func(m *Message) int64 { return m.Timestamp })
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return pagination.Page[*Item]{}, errutil.BadRequest("invalid cursor", err)
		}
		return pagination.Page[*Item]{}, errutil.Internal("failed to list messages", err)
	}

	rows, err := s.repo.Find(ctx, &Message{},
		after,
		option.WithSortBy(option.QuerySortBy{SortBy: "ts", OrderBy: "desc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc"}),
		option.ApplyPagination(p),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list messages", zap.Error(err))
		return pagination.Page[*Item]{}, errutil.Internal("failed to list messages", err)
	}

	page := pagination.BuildPage(rows, p.Limit, func(m *Message) string { return m.ID })
	items, err := s.enrich(ctx, page.Items)
	if err != nil {
		return pagination.Page[*Item]{}, err
	}
	return pagination.Page[*Item]{Items: items, HasMore: page.HasMore, NextCursor: page.NextCursor}, nil
}

// ListByTask returns the discussion thread attached to a task, oldest first.
func (s *Service) ListByTask(ctx context.Context, taskID string) ([]*Item, error) {
	if taskID == "" {
		return nil, errutil.BadRequest("task id is required", nil)
	}
	return s.thread(ctx, &Message{TaskID: &taskID})
}

// Replies returns direct replies to a message, oldest first.
func (s *Service) Replies(ctx context.Context, messageID string) ([]*Item, error) {
	if messageID == "" {
		return nil, errutil.BadRequest("message id is required", nil)
	}
	return s.thread(ctx, &Message{ReplyToID: &messageID})
}

func (s *Service) thread(ctx context.Context, filter *Message) ([]*Item, error) {
	rows, err := s.repo.Find(ctx, filter,
		option.WithSortBy(option.QuerySortBy{SortBy: "ts", OrderBy: "asc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load thread", zap.Error(err))
		return nil, errutil.Internal("failed to load messages", err)
	}
	return s.enrich(ctx, rows)
}

func (s *Service) enrich(ctx context.Context, rows []*Message) ([]*Item, error) {
	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.AgentID)
	}

	summaries, err := s.agents.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]*Item, 0, len(rows))
	for _, m := range rows {
		items = append(items, &Item{Message: m, Agent: summaries[m.AgentID]})
	}
	return items, nil
}
