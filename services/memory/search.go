package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"mission-control/pkg/db/option"
	"mission-control/pkg/embedding"
	"mission-control/pkg/errutil"
	"mission-control/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100

	occurrenceScore = 10
	prefixBonus     = 20
)

var searches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mission_control_memory_searches_total",
	Help: "Memory searches by requested and effective mode.",
}, []string{"mode", "effective"})

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}

// Search dispatches on req.Mode; hybrid is the default.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]*Result, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, errutil.BadRequest("query is required", nil)
	}
	if req.Category != "" && !req.Category.Valid() {
		return nil, errutil.BadRequest("invalid category", nil)
	}

	switch req.Mode {
	case ModeText:
		return s.TextSearch(ctx, req.Query, req.Category, req.Limit)
	case ModeVector:
		return s.VectorSearch(ctx, req.Query, req.Category, req.Limit)
	case ModeHybrid, "":
		w := s.vectorWeight
		if req.VectorWeight != nil {
			w = *req.VectorWeight
		}
		return s.HybridSearch(ctx, req.Query, req.Category, req.Limit, w)
	default:
		return nil, errutil.BadRequest("mode must be text, vector or hybrid", nil)
	}
}

// TextSearch ranks memories containing the query, case-insensitively.
func (s *Service) TextSearch(ctx context.Context, query string, category Category, limit int) ([]*Result, error) {
	searches.WithLabelValues(string(ModeText), string(ModeText)).Inc()
	return s.textPass(ctx, query, category, normalizeLimit(limit))
}

func (s *Service) textPass(ctx context.Context, query string, category Category, limit int) ([]*Result, error) {
	opts, err := s.filterOptions(category, "")
	if err != nil {
		return nil, err
	}
	// No SQL LIKE prefilter: LOWER only folds ASCII on sqlite.
	rows, err := s.repo.Find(ctx, &Memory{}, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("text search failed", zap.Error(err))
		return nil, errutil.Internal("failed to search memories", err)
	}
	return truncate(rankText(rows, query), limit), nil
}

// rankText scores each memory by occurrences of query plus a bonus when the
// content starts with it. Zero scores are dropped; ties go to the newer row.
func rankText(rows []*Memory, query string) []*Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*Result{}
	}

	out := make([]*Result, 0, len(rows))
	for _, m := range rows {
		content := strings.ToLower(m.Content)
		score := strings.Count(content, q) * occurrenceScore
		if strings.HasPrefix(content, q) {
			score += prefixBonus
		}
		if score == 0 {
			continue
		}
		out = append(out, &Result{Memory: m, Score: float64(score)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// VectorSearch returns the memories nearest to the query embedding. Without
// an embedding it degrades to TextSearch.
func (s *Service) VectorSearch(ctx context.Context, query string, category Category, limit int) ([]*Result, error) {
	limit = normalizeLimit(limit)

	out, err := s.vectorPass(ctx, query, category, limit)
	if err != nil {
		if embedFailed(err) {
			logger.FromContext(ctx).Warn("vector search degraded to text search", zap.Error(err))
			searches.WithLabelValues(string(ModeVector), string(ModeText)).Inc()
			return s.textPass(ctx, query, category, limit)
		}
		return nil, err
	}
	searches.WithLabelValues(string(ModeVector), string(ModeVector)).Inc()
	return out, nil
}

func (s *Service) vectorPass(ctx context.Context, query string, category Category, limit int) ([]*Result, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	opts, err := s.filterOptions(category, "")
	if err != nil {
		return nil, err
	}
	opts = append(opts, option.ApplyOperator(option.Condition{Field: "embedding", Operator: option.NotNull}))

	rows, err := s.repo.Find(ctx, &Memory{}, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("vector search failed", zap.Error(err))
		return nil, errutil.Internal("failed to search memories", err)
	}
	return truncate(rankVector(rows, vec), limit), nil
}

// rankVector orders rows by cosine similarity to query, highest first.
func rankVector(rows []*Memory, query []float32) []*Result {
	out := make([]*Result, 0, len(rows))
	for _, m := range rows {
		if len(m.Embedding) != len(query) {
			continue
		}
		out = append(out, &Result{Memory: m, Score: cosine(query, m.Embedding)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

// HybridSearch runs the text and vector passes concurrently and blends their
// rank-normalised scores with weight w on the vector side. When no query
// embedding is available the vector pass degrades to the text pass.
func (s *Service) HybridSearch(ctx context.Context, query string, category Category, limit int, w float64) ([]*Result, error) {
	if w < 0 || w > 1 {
		return nil, errutil.BadRequest("vectorWeight must be between 0 and 1", nil)
	}
	limit = normalizeLimit(limit)
	candidates := limit * 2

	var (
		textHits, vectorHits []*Result
		degraded             bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		textHits, err = s.textPass(gctx, query, category, candidates)
		return err
	})
	g.Go(func() error {
		hits, err := s.vectorPass(gctx, query, category, candidates)
		if err != nil {
			if embedFailed(err) {
				logger.FromContext(ctx).Warn("hybrid vector pass degraded to text search", zap.Error(err))
				degraded = true
				return nil
			}
			return err
		}
		vectorHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	effective := ModeHybrid
	if degraded {
		vectorHits = textHits
		effective = ModeText
	}
	searches.WithLabelValues(string(ModeHybrid), string(effective)).Inc()

	return mergeHybrid(textHits, vectorHits, w, limit), nil
}

// mergeHybrid gives the item at rank i of an N-long list the score (N-i)/N,
// joins both lists by id (absent = 0) and combines text*(1-w) + vector*w.
func mergeHybrid(text, vector []*Result, w float64, limit int) []*Result {
	type entry struct {
		m      *Memory
		text   float64
		vector float64
	}

	byID := make(map[string]*entry, len(text)+len(vector))
	order := make([]string, 0, len(text)+len(vector))

	add := func(list []*Result, set func(e *entry, score float64)) {
		n := float64(len(list))
		for i, r := range list {
			e, ok := byID[r.ID]
			if !ok {
				e = &entry{m: r.Memory}
				byID[r.ID] = e
				order = append(order, r.ID)
			}
			set(e, (n-float64(i))/n)
		}
	}
	add(text, func(e *entry, score float64) { e.text = score })
	add(vector, func(e *entry, score float64) { e.vector = score })

	out := make([]*Result, 0, len(order))
	for _, id := range order {
		e := byID[id]
		out = append(out, &Result{Memory: e.m, Score: e.text*(1-w) + e.vector*w})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return truncate(out, limit)
}

// embedFailed reports whether err came from producing the query embedding
// rather than from the store.
func embedFailed(err error) bool {
	if errors.Is(err, embedding.ErrUnavailable) {
		return true
	}
	_, ok := errutil.As(err)
	return !ok
}

func truncate(rs []*Result, limit int) []*Result {
	if limit > 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}
