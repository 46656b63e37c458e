package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"mission-control/pkg/config"
	"mission-control/pkg/db/option"
	"mission-control/pkg/errutil"
	"mission-control/pkg/logger"
	"mission-control/pkg/rediskey"
	"mission-control/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Directory is the read side other services use to validate and display
// agent references.
type Directory interface {
	Get(ctx context.Context, id string) (*Agent, error)
	Resolve(ctx context.Context, id, name string) (*Agent, error)
	FindByName(ctx context.Context, name string) (*Agent, error)
	Summaries(ctx context.Context, ids []string) (map[string]*Summary, error)
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	redis    *redis.Client
	cacheTTL time.Duration
	repo     repository.Repository[Agent]
	now      func() time.Time
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config `optional:"true"`
	Redis  *redis.Client  `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	ttl := 5 * time.Minute
	if p.Config != nil && p.Config.Cache.AgentTTL > 0 {
		ttl = p.Config.Cache.AgentTTL
	}

	return &Service{
		db:       p.DB,
		node:     p.Node,
		redis:    p.Redis,
		cacheTTL: ttl,
		repo:     repository.ProvideStore[Agent](p.DB),
		now:      time.Now,
	}
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Agent, error) {
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "name", OrderBy: "asc"}),
	}
	if activeOnly {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "is_active",
			Operator: option.EQ,
			Value:    true,
		}))
	}

	agents, err := s.repo.Find(ctx, &Agent{}, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list agents", zap.Error(err))
		return nil, errutil.Internal("failed to list agents", err)
	}
	return agents, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Agent, error) {
	if id == "" {
		return nil, errutil.BadRequest("agent id is required", nil)
	}

	a, err := s.repo.FindOne(ctx, &Agent{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to get agent", err)
	}
	if a == nil {
		return nil, errutil.NotFound("agent not found", nil)
	}
	return a, nil
}

// FindByName matches name case-insensitively. It returns nil, nil on no match.
func (s *Service) FindByName(ctx context.Context, name string) (*Agent, error) {
	key := nameKey(name)
	if key == "" {
		return nil, nil
	}

	a, err := s.repo.FindOne(ctx, &Agent{NameKey: key})
	if err != nil {
		return nil, errutil.Internal("failed to find agent", err)
	}
	return a, nil
}

// Resolve finds an agent by id, falling back to a case-insensitive name
// lookup. Name to id mappings are cached in redis when available.
func (s *Service) Resolve(ctx context.Context, id, name string) (*Agent, error) {
	if id != "" {
		a, err := s.repo.FindOne(ctx, &Agent{ID: id})
		if err != nil {
			return nil, errutil.Internal("failed to resolve agent", err)
		}
		if a != nil {
			return a, nil
		}
	}

	if nameKey(name) == "" {
		return nil, errutil.NotFound("agent not found", nil)
	}

	if cachedID := s.cachedID(ctx, name); cachedID != "" {
		a, err := s.repo.FindOne(ctx, &Agent{ID: cachedID})
		if err != nil {
			return nil, errutil.Internal("failed to resolve agent", err)
		}
		if a != nil && a.NameKey == nameKey(name) {
			return a, nil
		}
		s.evict(ctx, name)
	}

	a, err := s.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errutil.NotFound("agent not found", nil)
	}

	s.remember(ctx, a)
	return a, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Agent, error) {
	zapLog := logger.FromContext(ctx)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errutil.BadRequest("name is required", nil)
	}

	exist, err := s.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exist != nil {
		return nil, errutil.Conflict("agent name already exists", nil)
	}

	externalID := slug.Make(name)
	if req.OpenclawAgentID != nil && strings.TrimSpace(*req.OpenclawAgentID) != "" {
		externalID = strings.TrimSpace(*req.OpenclawAgentID)
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	a := &Agent{
		ID:              s.node.Generate().String(),
		Name:            name,
		NameKey:         nameKey(name),
		Emoji:           req.Emoji,
		Role:            req.Role,
		Color:           req.Color,
		Badge:           req.Badge,
		OpenclawAgentID: &externalID,
		IsActive:        isActive,
		CreatedAt:       s.now().UnixMilli(),
	}

	if err := s.repo.Create(ctx, a); err != nil {
		zapLog.Error("failed to create agent", zap.Error(err))
		return nil, errutil.Internal("failed to create agent", err)
	}

	zapLog.Info("agent created", zap.String("agent_id", a.ID), zap.String("name", a.Name))
	return a, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Agent, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errutil.BadRequest("name cannot be empty", nil)
		}
		if nameKey(name) != current.NameKey {
			exist, err := s.FindByName(ctx, name)
			if err != nil {
				return nil, err
			}
			if exist != nil && exist.ID != id {
				return nil, errutil.Conflict("agent name already exists", nil)
			}
		}
		values["name"] = name
		values["name_key"] = nameKey(name)
	}
	if req.Emoji != nil {
		values["emoji"] = *req.Emoji
	}
	if req.Role != nil {
		values["role"] = *req.Role
	}
	if req.Color != nil {
		values["color"] = *req.Color
	}
	if req.Badge != nil {
		values["badge"] = nullable(*req.Badge)
	}
	if req.OpenclawAgentID != nil {
		values["openclaw_agent_id"] = nullable(strings.TrimSpace(*req.OpenclawAgentID))
	}
	if req.IsActive != nil {
		values["is_active"] = *req.IsActive
	}

	if len(values) == 0 {
		return current, nil
	}

	if err := s.repo.Update(ctx, id, values); err != nil {
		logger.FromContext(ctx).Error("failed to update agent", zap.String("agent_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to update agent", err)
	}

	s.evict(ctx, current.Name)
	return s.Get(ctx, id)
}

// Heartbeat marks the agent alive.
func (s *Service) Heartbeat(ctx context.Context, id string) (*Agent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	if err := s.touch(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// HeartbeatByName matches by external agent id, then by case-insensitive
// name. When nothing matches it returns nil, nil and writes nothing.
func (s *Service) HeartbeatByName(ctx context.Context, externalID string) (*Agent, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, errutil.BadRequest("openclawAgentId is required", nil)
	}

	a, err := s.repo.FindOne(ctx, &Agent{OpenclawAgentID: &externalID})
	if err != nil {
		return nil, errutil.Internal("failed to find agent", err)
	}
	if a == nil {
		if a, err = s.FindByName(ctx, externalID); err != nil {
			return nil, err
		}
	}
	if a == nil {
		logger.FromContext(ctx).Debug("heartbeat for unknown agent ignored", zap.String("openclaw_agent_id", externalID))
		return nil, nil
	}

	if err := s.touch(ctx, a.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, a.ID)
}

func (s *Service) touch(ctx context.Context, id string) error {
	err := s.repo.Update(ctx, id, map[string]any{
		"last_seen": s.now().UnixMilli(),
		"is_active": true,
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to record heartbeat", zap.String("agent_id", id), zap.Error(err))
		return errutil.Internal("failed to record heartbeat", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.Internal("failed to delete agent", err)
	}

	s.evict(ctx, a.Name)
	return nil
}

// Summaries returns display summaries keyed by agent id. Unknown and empty
// ids are skipped.
func (s *Service) Summaries(ctx context.Context, ids []string) (map[string]*Summary, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	out := make(map[string]*Summary, len(unique))
	if len(unique) == 0 {
		return out, nil
	}

	agents, err := s.repo.Find(ctx, &Agent{}, option.ApplyOperator(option.Condition{
		Field:    "id",
		Operator: option.IN,
		Value:    unique,
	}))
	if err != nil {
		return nil, errutil.Internal("failed to load agents", err)
	}

	for _, a := range agents {
		out[a.ID] = a.Summary()
	}
	return out, nil
}

func (s *Service) cachedID(ctx context.Context, name string) string {
	if s.redis == nil {
		return ""
	}

	id, err := s.redis.Get(ctx, rediskey.BuildAgentNameKey(name)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("agent cache read failed", zap.Error(err))
		}
		return ""
	}
	return id
}

func (s *Service) remember(ctx context.Context, a *Agent) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Set(ctx, rediskey.BuildAgentNameKey(a.Name), a.ID, s.cacheTTL).Err(); err != nil {
		zap.L().Warn("agent cache write failed", zap.Error(err))
	}
}

func (s *Service) evict(ctx context.Context, name string) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Del(ctx, rediskey.BuildAgentNameKey(name)).Err(); err != nil {
		zap.L().Warn("agent cache evict failed", zap.Error(err))
	}
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
