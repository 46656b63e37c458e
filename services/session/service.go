package session

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
	repo   repository.Repository[Session]
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
		repo:   repository.ProvideStore[Session](p.DB),
		now:    time.Now,
	}
}

// Upsert registers a session on first sight and refreshes it afterwards.
// Only the provided fields change on refresh; lastActivityAt always moves.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (*Item, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.AgentName = strings.TrimSpace(req.AgentName)
	if req.SessionID == "" {
		return nil, errutil.BadRequest("sessionId is required", nil)
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, errutil.BadRequest("invalid status", nil)
	}

	metadata, err := normalizeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	if req.AgentID != nil {
		if id := strings.TrimSpace(*req.AgentID); id != "" {
			if _, err := s.agents.Get(ctx, id); err != nil {
				return nil, err
			}
			req.AgentID = &id
		} else {
			req.AgentID = nil
		}
	}
	if req.AgentID == nil && req.AgentName != "" {
		a, err := s.agents.FindByName(ctx, req.AgentName)
		if err != nil {
			return nil, err
		}
		if a != nil {
			req.AgentID = &a.ID
		} else {
			req.AgentID = nil
		}
	}

	existing, err := s.repo.FindOne(ctx, &Session{SessionID: req.SessionID})
	if err != nil {
		return nil, errutil.Internal("failed to load session", err)
	}

	now := s.now().UnixMilli()
	if existing == nil {
		if req.AgentName == "" {
			return nil, errutil.BadRequest("agentName is required", nil)
		}
		if req.Status == "" {
			req.Status = StatusActive
		}

		sess := &Session{
			ID:             s.node.Generate().String(),
			SessionID:      req.SessionID,
			AgentName:      req.AgentName,
			AgentID:        req.AgentID,
			Channel:        req.Channel,
			Model:          req.Model,
			Status:         req.Status,
			LastActivityAt: now,
			StartedAt:      now,
			Metadata:       metadata,
		}
		if err := s.repo.Create(ctx, sess); err != nil {
			logger.FromContext(ctx).Error("failed to create session", zap.String("session_id", req.SessionID), zap.Error(err))
			return nil, errutil.Internal("failed to create session", err)
		}
		return s.Get(ctx, req.SessionID)
	}

	values := map[string]any{"last_activity_at": now}
	if req.AgentName != "" {
		values["agent_name"] = req.AgentName
	}
	if req.AgentID != nil {
		values["agent_id"] = req.AgentID
	}
	if req.Channel != nil {
		values["channel"] = req.Channel
	}
	if req.Model != nil {
		values["model"] = req.Model
	}
	if req.Status != "" {
		values["status"] = req.Status
	}
	if metadata != nil {
		values["metadata"] = metadata
	}

	if err := s.repo.Update(ctx, existing.ID, values); err != nil {
		logger.FromContext(ctx).Error("failed to update session", zap.String("session_id", req.SessionID), zap.Error(err))
		return nil, errutil.Internal("failed to update session", err)
	}
	return s.Get(ctx, req.SessionID)
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

func (s *Service) find(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, errutil.BadRequest("sessionId is required", nil)
	}

	sess, err := s.repo.FindOne(ctx, &Session{SessionID: sessionID})
	if err != nil {
		return nil, errutil.Internal("failed to get session", err)
	}
	if sess == nil {
		return nil, errutil.NotFound("session not found", nil)
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (*Item, error) {
	sess, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	items, err := s.enrich(ctx, []*Session{sess})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// Heartbeat moves lastActivityAt and nothing else.
func (s *Service) Heartbeat(ctx context.Context, sessionID string) (*Item, error) {
	sess, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, sess.ID, map[string]any{"last_activity_at": s.now().UnixMilli()}); err != nil {
		return nil, errutil.Internal("failed to record session heartbeat", err)
	}
	return s.Get(ctx, sessionID)
}

func (s *Service) UpdateStatus(ctx context.Context, sessionID string, status Status) (*Item, error) {
	if !status.Valid() {
		return nil, errutil.BadRequest("invalid status", nil)
	}

	sess, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, sess.ID, map[string]any{"status": status}); err != nil {
		logger.FromContext(ctx).Error("failed to update session status", zap.String("session_id", sessionID), zap.Error(err))
		return nil, errutil.Internal("failed to update session status", err)
	}

	logger.FromContext(ctx).Info("session status changed",
		zap.String("session_id", sessionID),
		zap.String("from", string(sess.Status)),
		zap.String("to", string(status)),
	)
	return s.Get(ctx, sessionID)
}

func (s *Service) List(ctx context.Context, status Status, agentID string) ([]*Item, error) {
	filter := &Session{}
	if status != "" {
		if !status.Valid() {
			return nil, errutil.BadRequest("invalid status", nil)
		}
		filter.Status = status
	}
	if agentID != "" {
		filter.AgentID = &agentID
	}

	rows, err := s.repo.Find(ctx, filter,
		option.WithSortBy(option.QuerySortBy{SortBy: "last_activity_at", OrderBy: "desc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc"}),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list sessions", zap.Error(err))
		return nil, errutil.Internal("failed to list sessions", err)
	}
	return s.enrich(ctx, rows)
}

func (s *Service) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.find(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, sess.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.Internal("failed to delete session", err)
	}
	return nil
}

type bucket struct {
	Status Status
	Total  int64
}

// Summary counts sessions per status. Every status key is present.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var rows []bucket
	err := s.db.WithContext(ctx).
		Model(&Session{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		logger.FromContext(ctx).Error("failed to summarise sessions", zap.Error(err))
		return nil, errutil.Internal("failed to summarise sessions", err)
	}

	out := &Summary{ByStatus: make(map[Status]int64, len(Statuses))}
	for _, st := range Statuses {
		out.ByStatus[st] = 0
	}
	for _, r := range rows {
		out.ByStatus[r.Status] = r.Total
		out.Total += r.Total
	}
	return out, nil
}

func (s *Service) enrich(ctx context.Context, rows []*Session) ([]*Item, error) {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.AgentID != nil {
			ids = append(ids, *r.AgentID)
		}
	}

	summaries, err := s.agents.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]*Item, 0, len(rows))
	for _, r := range rows {
		it := &Item{Session: r}
		if r.AgentID != nil {
			it.Agent = summaries[*r.AgentID]
		}
		items = append(items, it)
	}
	return items, nil
}
