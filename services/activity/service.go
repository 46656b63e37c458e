package activity

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ingested = promauto.NewCounter(prometheus.CounterOpts{
	Name: "mission_control_activities_ingested_total",
	Help: "Activities appended to the log.",
})

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	agents agent.Directory
	repo   repository.Repository[Activity]
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
		repo:   repository.ProvideStore[Activity](p.DB),
		now:    time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Activity, error) {
	zapLog := logger.FromContext(ctx)

	req.Type = strings.TrimSpace(req.Type)
	req.Action = strings.TrimSpace(req.Action)
	if req.Type == "" || req.Action == "" {
		return nil, errutil.BadRequest("type and action are required", nil)
	}
	if req.AgentID == "" && strings.TrimSpace(req.AgentName) == "" {
		return nil, errutil.BadRequest("agentId or agentName is required", nil)
	}

	a, err := s.agents.Resolve(ctx, req.AgentID, req.AgentName)
	if err != nil {
		if errutil.IsNotFound(err) {
			return nil, errutil.BadRequest("agent not found", err)
		}
		return nil, err
	}

	metadata, err := normalizeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	ts := s.now().UnixMilli()
	if req.Timestamp != nil && *req.Timestamp > 0 {
		ts = *req.Timestamp
	}

	record := &Activity{
		ID:        s.node.Generate().String(),
		AgentID:   a.ID,
		Type:      req.Type,
		Action:    req.Action,
		Details:   req.Details,
		Metadata:  metadata,
		Timestamp: ts,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		zapLog.Error("failed to insert activity", zap.Error(err))
		return nil, errutil.Internal("failed to insert activity", err)
	}

	ingested.Inc()
	zapLog.Debug("activity recorded",
		zap.String("activity_id", record.ID),
		zap.String("agent_id", record.AgentID),
		zap.String("type", record.Type),
	)
	return record, nil
}

func normalizeMetadata(raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, errutil.BadRequest("metadata must be valid JSON", nil)
	}
	return datatypes.JSON(trimmed), nil
}

var feedOrder = []option.QueryOption{
	option.WithSortBy(option.QuerySortBy{SortBy: "ts", OrderBy: "desc"}),
	option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc"}),
}

// List returns the feed newest first. The cursor is the id of the last item
// of the previous page.
func (s *Service) List(ctx context.Context, p pagination.Pagination) (pagination.Page[*Item], error) {
	p = p.Normalize(pagination.DefaultLimit)

	after, err := repository.After(ctx, s.repo, p.Cursor, "ts", func(a *Activity) int64 { return a.Timestamp })
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return pagination.Page[*Item]{}, errutil.BadRequest("invalid cursor", err)
		}
		return pagination.Page[*Item]{}, errutil.Internal("failed to list activities", err)
	}

	opts := append([]option.QueryOption{after}, feedOrder...)
	opts = append(opts, option.ApplyPagination(p))

	rows, err := s.repo.Find(ctx, &Activity{}, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list activities", zap.Error(err))
		return pagination.Page[*Item]{}, errutil.Internal("failed to list activities", err)
	}

	page := pagination.BuildPage(rows, p.Limit, func(a *Activity) string { return a.ID })
	items, err := s.enrich(ctx, page.Items)
	if err != nil {
		return pagination.Page[*Item]{}, err
	}
	return pagination.Page[*Item]{Items: items, HasMore: page.HasMore, NextCursor: page.NextCursor}, nil
}

func (s *Service) ListByAgent(ctx context.Context, agentID string, limit int) ([]*Item, error) {
	if agentID == "" {
		return nil, errutil.BadRequest("agent id is required", nil)
	}
	return s.listWhere(ctx, &Activity{AgentID: agentID}, limit)
}

func (s *Service) ListByType(ctx context.Context, activityType string, limit int) ([]*Item, error) {
	if activityType == "" {
		return nil, errutil.BadRequest("type is required", nil)
	}
	return s.listWhere(ctx, &Activity{Type: activityType}, limit)
}

func (s *Service) listWhere(ctx context.Context, filter *Activity, limit int) ([]*Item, error) {
	p := pagination.Pagination{Limit: limit}.Normalize(pagination.DefaultLimit)

	opts := append([]option.QueryOption{}, feedOrder...)
	opts = append(opts, option.WithLimit(p.Limit))

	rows, err := s.repo.Find(ctx, filter, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list activities", zap.Error(err))
		return nil, errutil.Internal("failed to list activities", err)
	}
	return s.enrich(ctx, rows)
}

func (s *Service) enrich(ctx context.Context, rows []*Activity) ([]*Item, error) {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.AgentID)
	}

	summaries, err := s.agents.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]*Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, &Item{Activity: r, Agent: summaries[r.AgentID]})
	}
	return items, nil
}

type bucket struct {
	Label string
	Total int64
}

// Stats counts activities with timestamp >= since, overall and grouped by
// type and by agent.
func (s *Service) Stats(ctx context.Context, since int64) (*Stats, error) {
	out := &Stats{
		ByType:  map[string]int64{},
		ByAgent: map[string]int64{},
		Since:   since,
	}

	group := func(column string, into map[string]int64) error {
		var rows []bucket
		err := s.db.WithContext(ctx).
			Model(&Activity{}).
			Select(column+" AS label, COUNT(*) AS total").
			Where("ts >= ?", since).
			Group(column).
			Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, r := range rows {
			into[r.Label] = r.Total
			if column == "type" {
				out.Total += r.Total
			}
		}
		return nil
	}

	if err := group("type", out.ByType); err != nil {
		logger.FromContext(ctx).Error("failed to aggregate activity by type", zap.Error(err))
		return nil, errutil.Internal("failed to compute activity stats", err)
	}
	if err := group("agent_id", out.ByAgent); err != nil {
		logger.FromContext(ctx).Error("failed to aggregate activity by agent", zap.Error(err))
		return nil, errutil.Internal("failed to compute activity stats", err)
	}
	return out, nil
}

// ClearAll wipes the log. Only the seed tooling calls it.
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteWhere(ctx, nil, option.WithWhere("1 = 1"))
	if err != nil {
		return 0, errutil.Internal("failed to clear activities", err)
	}
	logger.FromContext(ctx).Info("activity log cleared", zap.Int64("deleted", n))
	return n, nil
}
