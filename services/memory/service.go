package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	"mission-control/pkg/config"
	"mission-control/pkg/db/option"
	"mission-control/pkg/embedding"
	"mission-control/pkg/errutil"
	"mission-control/pkg/logger"
	"mission-control/pkg/repository"
	"mission-control/pkg/task"
	"mission-control/pkg/taskname"
	"mission-control/services/agent"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultBackfillBatch = 50
	maxBackfillBatch     = 500
	defaultVectorWeight  = 0.7
	embedMaxRetry        = 5
)

type Service struct {
	db           *gorm.DB
	node         *snowflake.Node
	agents       agent.Directory
	embedder     embedding.Embedding
	jobs         task.Enqueuer
	repo         repository.Repository[Memory]
	vectorWeight float64
	now          func() time.Time
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Agents   agent.Directory
	Embedder embedding.Embedding
	Jobs     task.Enqueuer  `optional:"true"`
	Config   *config.Config `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	embedder := p.Embedder
	if embedder == nil {
		embedder = embedding.Disabled{}
	}
	jobs := p.Jobs
	if jobs == nil {
		jobs = task.NewEnqueuer(nil)
	}

	// The loaded config always carries SEARCH.VECTOR_WEIGHT (default 0.7);
	// 0 is a valid text-only weight.
	weight := defaultVectorWeight
	if p.Config != nil {
		if w := p.Config.Search.VectorWeight; w >= 0 && w <= 1 {
			weight = w
		} else {
			zap.L().Warn("SEARCH.VECTOR_WEIGHT out of range, using default",
				zap.Float64("configured", w), zap.Float64("default", defaultVectorWeight))
		}
	}

	return &Service{
		db:           p.DB,
		node:         p.Node,
		agents:       p.Agents,
		embedder:     embedder,
		jobs:         jobs,
		repo:         repository.ProvideStore[Memory](p.DB),
		vectorWeight: weight,
		now:          time.Now,
	}
}

func (s *Service) validate(ctx context.Context, req *CreateRequest) error {
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return errutil.BadRequest("content is required", nil)
	}
	if req.Category == "" {
		req.Category = CategoryOther
	}
	if !req.Category.Valid() {
		return errutil.BadRequest("invalid category", nil)
	}
	if len(req.Embedding) > 0 && len(req.Embedding) != embedding.Dimensions {
		return errutil.BadRequest("embedding must have 1536 dimensions", nil)
	}

	if req.AgentID != nil && *req.AgentID != "" {
		if _, err := s.agents.Get(ctx, *req.AgentID); err != nil {
			return err
		}
	} else {
		req.AgentID = nil
	}
	return nil
}

// Create stores a memory with the embedding supplied by the caller, if any.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Item, error) {
	if err := s.validate(ctx, &req); err != nil {
		return nil, err
	}
	return s.insert(ctx, req, req.Embedding)
}

// CreateWithEmbedding computes the embedding before storing. When the
// embedding API is unavailable the memory is kept without one and a
// memory:embed job is queued to fill it in later.
func (s *Service) CreateWithEmbedding(ctx context.Context, req CreateRequest) (*Item, error) {
	if err := s.validate(ctx, &req); err != nil {
		return nil, err
	}
	if len(req.Embedding) > 0 {
		return s.insert(ctx, req, req.Embedding)
	}

	zapLog := logger.FromContext(ctx)

	vec, err := s.embedder.Embed(ctx, req.Content)
	if err != nil {
		zapLog.Warn("embedding failed, storing memory without vector", zap.Error(err))
		vec = nil
	}

	item, err := s.insert(ctx, req, vec)
	if err != nil {
		return nil, err
	}

	if vec == nil {
		s.enqueueEmbed(ctx, item.ID)
	}
	return item, nil
}

func (s *Service) enqueueEmbed(ctx context.Context, id string) {
	_, err := task.EnqueueJSON(ctx, s.jobs, taskname.MemoryEmbed, embedPayload{MemoryID: id},
		asynq.Queue(task.QueueLow),
		asynq.MaxRetry(embedMaxRetry),
	)
	switch {
	case errors.Is(err, task.ErrDisabled):
		logger.FromContext(ctx).Debug("background jobs disabled, embedding left for backfill", zap.String("memory_id", id))
	case err != nil:
		logger.FromContext(ctx).Warn("failed to enqueue memory embedding", zap.String("memory_id", id), zap.Error(err))
	}
}

func (s *Service) insert(ctx context.Context, req CreateRequest, vec []float32) (*Item, error) {
	m := &Memory{
		ID:        s.node.Generate().String(),
		Content:   req.Content,
		Category:  req.Category,
		AgentID:   req.AgentID,
		Embedding: vec,
		CreatedAt: s.now().UnixMilli(),
	}

	if err := s.repo.Create(ctx, m); err != nil {
		logger.FromContext(ctx).Error("failed to create memory", zap.Error(err))
		return nil, errutil.Internal("failed to create memory", err)
	}

	items, err := s.enrich(ctx, []*Memory{m})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (s *Service) filterOptions(category Category, agentID string) ([]option.QueryOption, error) {
	var opts []option.QueryOption
	if category != "" {
		if !category.Valid() {
			return nil, errutil.BadRequest("invalid category", nil)
		}
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "category", Operator: option.EQ, Value: string(category)}))
	}
	if agentID != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "agent_id", Operator: option.EQ, Value: agentID}))
	}
	return opts, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Item, error) {
	opts, err := s.filterOptions(f.Category, f.AgentID)
	if err != nil {
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	opts = append(opts,
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc"}),
		option.WithLimit(limit),
	)

	rows, err := s.repo.Find(ctx, &Memory{}, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list memories", zap.Error(err))
		return nil, errutil.Internal("failed to list memories", err)
	}
	return s.enrich(ctx, rows)
}

func (s *Service) find(ctx context.Context, id string) (*Memory, error) {
	if id == "" {
		return nil, errutil.BadRequest("memory id is required", nil)
	}

	m, err := s.repo.FindOne(ctx, &Memory{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to get memory", err)
	}
	if m == nil {
		return nil, errutil.NotFound("memory not found", nil)
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.enrich(ctx, []*Memory{m})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.Internal("failed to delete memory", err)
	}
	return nil
}

// EmbedOne fills in the embedding of a single memory. Already embedded or
// deleted memories are skipped.
func (s *Service) EmbedOne(ctx context.Context, id string) error {
	m, err := s.repo.FindOne(ctx, &Memory{ID: id})
	if err != nil {
		return err
	}
	if m == nil || len(m.Embedding) > 0 {
		return nil
	}

	vec, err := s.embedder.Embed(ctx, m.Content)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, id, map[string]any{"embedding": Vector(vec)})
}

// Backfill embeds up to batchSize memories lacking a vector with a single
// batch call and returns how many were filled.
func (s *Service) Backfill(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBackfillBatch
	}
	if batchSize > maxBackfillBatch {
		batchSize = maxBackfillBatch
	}

	rows, err := s.repo.Find(ctx, &Memory{},
		option.ApplyOperator(option.Condition{Field: "embedding", Operator: option.IsNull}),
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "asc"}),
		option.WithLimit(batchSize),
	)
	if err != nil {
		return 0, errutil.Internal("failed to load memories for backfill", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	texts := make([]string, len(rows))
	for i, m := range rows {
		texts[i] = m.Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, embedding.ErrUnavailable) {
			return 0, errutil.Unavailable("embedding service unavailable", err)
		}
		logger.FromContext(ctx).Error("backfill embedding batch failed", zap.Error(err))
		return 0, errutil.Internal("failed to embed memories", err)
	}

	filled := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)
		for i, m := range rows {
			if i >= len(vectors) || len(vectors[i]) == 0 {
				continue
			}
			if err := repo.Update(ctx, m.ID, map[string]any{"embedding": Vector(vectors[i])}); err != nil {
				return err
			}
			filled++
		}
		return nil
	})
	if err != nil {
		return 0, errutil.Internal("failed to store embeddings", err)
	}

	logger.FromContext(ctx).Info("memory embeddings backfilled", zap.Int("count", filled))
	return filled, nil
}

// ScheduleBackfill queues a backfill job, or runs it inline when background
// jobs are disabled. queued reports which path was taken.
func (s *Service) ScheduleBackfill(ctx context.Context, batchSize int) (queued bool, filled int, err error) {
	_, err = task.EnqueueJSON(ctx, s.jobs, taskname.MemoryEmbedBackfill, backfillPayload{BatchSize: batchSize},
		asynq.Queue(task.QueueLow),
		asynq.MaxRetry(embedMaxRetry),
	)
	if err == nil {
		return true, 0, nil
	}
	if !errors.Is(err, task.ErrDisabled) {
		return false, 0, errutil.Internal("failed to enqueue backfill", err)
	}

	filled, err = s.Backfill(ctx, batchSize)
	return false, filled, err
}

func (s *Service) enrich(ctx context.Context, rows []*Memory) ([]*Item, error) {
	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		if m.AgentID != nil {
			ids = append(ids, *m.AgentID)
		}
	}

	summaries, err := s.agents.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]*Item, 0, len(rows))
	for _, m := range rows {
		it := &Item{Memory: m, HasEmbedding: len(m.Embedding) > 0}
		if m.AgentID != nil {
			it.Agent = summaries[*m.AgentID]
		}
		items = append(items, it)
	}
	return items, nil
}
