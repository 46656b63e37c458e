package cronjob

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

const defaultCalendarWindow = 7 * 24 * time.Hour

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	agents agent.Directory
	repo   repository.Repository[Job]
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
		repo:   repository.ProvideStore[Job](p.DB),
		now:    time.Now,
	}
}

// Upsert creates or refreshes the job keyed by openclawId.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (*Item, error) {
	if err := s.resolveAgent(ctx, &req); err != nil {
		return nil, err
	}

	var (
		job *Job
		err error
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, _, err = s.upsert(ctx, s.repo.WithTrx(tx), req)
		return err
	})
	if err != nil {
		return nil, err
	}

	items, err := s.enrich(ctx, []*Job{job})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// Sync upserts every job of the batch in one transaction.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	for i := range req.Jobs {
		if err := s.resolveAgent(ctx, &req.Jobs[i]); err != nil {
			return nil, err
		}
	}

	out := &SyncResult{Total: len(req.Jobs)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)
		for _, j := range req.Jobs {
			_, created, err := s.upsert(ctx, repo, j)
			if err != nil {
				return err
			}
			if created {
				out.Created++
			} else {
				out.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("cron jobs synced",
		zap.Int("created", out.Created),
		zap.Int("updated", out.Updated),
	)
	return out, nil
}

// resolveAgent maps agentName onto agentId. An unknown name leaves the job
// unassigned.
func (s *Service) resolveAgent(ctx context.Context, req *UpsertRequest) error {
	if req.AgentID != nil && *req.AgentID != "" {
		return nil
	}
	req.AgentID = nil

	name := strings.TrimSpace(req.AgentName)
	if name == "" {
		return nil
	}

	a, err := s.agents.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if a != nil {
		req.AgentID = &a.ID
	}
	return nil
}

func (s *Service) upsert(ctx context.Context, repo repository.Repository[Job], req UpsertRequest) (*Job, bool, error) {
	req.OpenclawID = strings.TrimSpace(req.OpenclawID)
	req.Name = strings.TrimSpace(req.Name)
	req.Schedule = strings.TrimSpace(req.Schedule)
	if req.OpenclawID == "" || req.Name == "" || req.Schedule == "" {
		return nil, false, errutil.BadRequest("openclawId, name and schedule are required", nil)
	}

	payload, err := normalizePayload(req.Payload)
	if err != nil {
		return nil, false, err
	}

	existing, err := repo.FindOne(ctx, &Job{OpenclawID: req.OpenclawID})
	if err != nil {
		return nil, false, errutil.Internal("failed to load cron job", err)
	}

	now := s.now().UnixMilli()
	if existing == nil {
		job := &Job{
			ID:         s.node.Generate().String(),
			OpenclawID: req.OpenclawID,
			Name:       req.Name,
			Schedule:   req.Schedule,
			Product:    req.Product,
			AgentID:    req.AgentID,
			Payload:    payload,
			NextRunAt:  req.NextRunAtMs,
			IsActive:   req.IsActive == nil || *req.IsActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repo.Create(ctx, job); err != nil {
			logger.FromContext(ctx).Error("failed to create cron job", zap.String("openclaw_id", req.OpenclawID), zap.Error(err))
			return nil, false, errutil.Internal("failed to create cron job", err)
		}
		return job, true, nil
	}

	values := map[string]any{
		"name":       req.Name,
		"schedule":   req.Schedule,
		"updated_at": now,
	}
	if req.Product != nil {
		values["product"] = req.Product
	}
	if req.AgentID != nil {
		values["agent_id"] = req.AgentID
	}
	if payload != nil {
		values["payload"] = payload
	}
	if req.NextRunAtMs != nil {
		values["next_run_at"] = req.NextRunAtMs
	}
	if req.IsActive != nil {
		values["is_active"] = *req.IsActive
	}

	if err := repo.Update(ctx, existing.ID, values); err != nil {
		logger.FromContext(ctx).Error("failed to update cron job", zap.String("openclaw_id", req.OpenclawID), zap.Error(err))
		return nil, false, errutil.Internal("failed to update cron job", err)
	}

	job, err := repo.FindOne(ctx, &Job{ID: existing.ID})
	if err != nil || job == nil {
		return nil, false, errutil.Internal("failed to reload cron job", err)
	}
	return job, false, nil
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

func (s *Service) List(ctx context.Context, activeOnly bool, agentID string) ([]*Item, error) {
	filter := &Job{}
	if activeOnly {
		filter.IsActive = true
	}
	if agentID != "" {
		filter.AgentID = &agentID
	}

	rows, err := s.repo.Find(ctx, filter,
		option.WithSortBy(option.QuerySortBy{SortBy: "next_run_at", OrderBy: "asc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "name", OrderBy: "asc"}),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list cron jobs", zap.Error(err))
		return nil, errutil.Internal("failed to list cron jobs", err)
	}
	return s.enrich(ctx, rows)
}

func (s *Service) find(ctx context.Context, openclawID string) (*Job, error) {
	if openclawID == "" {
		return nil, errutil.BadRequest("openclawId is required", nil)
	}

	job, err := s.repo.FindOne(ctx, &Job{OpenclawID: openclawID})
	if err != nil {
		return nil, errutil.Internal("failed to get cron job", err)
	}
	if job == nil {
		return nil, errutil.NotFound("cron job not found", nil)
	}
	return job, nil
}

func (s *Service) Get(ctx context.Context, openclawID string) (*Item, error) {
	job, err := s.find(ctx, openclawID)
	if err != nil {
		return nil, err
	}

	items, err := s.enrich(ctx, []*Job{job})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// Upcoming lists active jobs due in [from, to). Zero bounds default to now and
// a week from now.
func (s *Service) Upcoming(ctx context.Context, from, to int64) ([]*Item, error) {
	if from == 0 {
		from = s.now().UnixMilli()
	}
	if to == 0 {
		to = time.UnixMilli(from).Add(defaultCalendarWindow).UnixMilli()
	}
	if to <= from {
		return nil, errutil.BadRequest("to must be after from", nil)
	}

	rows, err := s.repo.Find(ctx, &Job{IsActive: true},
		option.ApplyOperator(option.Condition{Field: "next_run_at", Operator: option.GTE, Value: from}),
		option.ApplyOperator(option.Condition{Field: "next_run_at", Operator: option.LT, Value: to}),
		option.WithSortBy(option.QuerySortBy{SortBy: "next_run_at", OrderBy: "asc"}),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load calendar", zap.Error(err))
		return nil, errutil.Internal("failed to load calendar", err)
	}
	return s.enrich(ctx, rows)
}

func (s *Service) RecordStatus(ctx context.Context, openclawID string, req StatusRequest) (*Item, error) {
	if !req.LastStatus.Valid() {
		return nil, errutil.BadRequest("invalid lastStatus", nil)
	}

	job, err := s.find(ctx, openclawID)
	if err != nil {
		return nil, err
	}

	now := s.now().UnixMilli()
	lastRun := now
	if req.LastRunAt != nil && *req.LastRunAt > 0 {
		lastRun = *req.LastRunAt
	}

	values := map[string]any{
		"last_status": req.LastStatus,
		"last_run_at": lastRun,
		"updated_at":  now,
	}
	if req.NextRunAt != nil {
		values["next_run_at"] = req.NextRunAt
	}

	if err := s.repo.Update(ctx, job.ID, values); err != nil {
		logger.FromContext(ctx).Error("failed to record cron status", zap.String("openclaw_id", openclawID), zap.Error(err))
		return nil, errutil.Internal("failed to record cron status", err)
	}
	return s.Get(ctx, openclawID)
}

func (s *Service) Delete(ctx context.Context, openclawID string) error {
	job, err := s.find(ctx, openclawID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, job.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.Internal("failed to delete cron job", err)
	}
	return nil
}

func (s *Service) enrich(ctx context.Context, rows []*Job) ([]*Item, error) {
	ids := make([]string, 0, len(rows))
	for _, j := range rows {
		if j.AgentID != nil {
			ids = append(ids, *j.AgentID)
		}
	}

	summaries, err := s.agents.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]*Item, 0, len(rows))
	for _, j := range rows {
		it := &Item{Job: j}
		if j.AgentID != nil {
			it.Agent = summaries[*j.AgentID]
		}
		items = append(items, it)
	}
	return items, nil
}
