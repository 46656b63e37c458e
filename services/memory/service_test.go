package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mission-control/pkg/config"
	"mission-control/pkg/embedding"
	"mission-control/pkg/errutil"
	"mission-control/pkg/task"
	"mission-control/pkg/taskname"
	"mission-control/services/agent"
	"mission-control/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func unit(i int) []float32 {
	v := make([]float32, embedding.Dimensions)
	v[i] = 1
	return v
}

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return unit(embedding.Dimensions - 1), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, t)
	return &asynq.TaskInfo{ID: "1", Type: t.Type()}, nil
}

type fixture struct {
	svc      *Service
	embedder *fakeEmbedder
	jobs     *fakeEnqueuer
	clock    *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, &agent.Agent{}, &Memory{})
	node := testutil.NewNode(t)
	clock := testutil.NewClock(time.UnixMilli(1_700_000_000_000))

	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	jobs := &fakeEnqueuer{}
	agents := agent.NewService(agent.ServiceParams{DB: db, Node: node})

	svc := NewService(ServiceParams{DB: db, Node: node, Agents: agents, Embedder: emb, Jobs: jobs})
	svc.now = clock.Now
	return &fixture{svc: svc, embedder: emb, jobs: jobs, clock: clock}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{Content: " ", Category: CategoryFact})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	_, err = f.svc.Create(ctx, CreateRequest{Content: "x", Category: "gossip"})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	_, err = f.svc.Create(ctx, CreateRequest{Content: "x", Category: CategoryFact, Embedding: []float32{1, 2}})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	item, err := f.svc.Create(ctx, CreateRequest{Content: "x", Category: CategoryFact, Embedding: unit(3)})
	require.NoError(t, err)
	require.True(t, item.HasEmbedding)

	stored, err := f.svc.Get(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, Vector(unit(3)), stored.Embedding)
}

func TestCreateWithEmbedding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.embedder.vectors["prefers dark mode"] = unit(7)

	item, err := f.svc.CreateWithEmbedding(ctx, CreateRequest{Content: "prefers dark mode", Category: CategoryPreference})
	require.NoError(t, err)
	require.True(t, item.HasEmbedding)
	require.Empty(t, f.jobs.tasks)
}

func TestCreateWithEmbeddingFailureQueuesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.embedder.err = errors.New("rate limited")

	item, err := f.svc.CreateWithEmbedding(ctx, CreateRequest{Content: "ships on tuesdays", Category: CategoryFact})
	require.NoError(t, err)
	require.False(t, item.HasEmbedding)
	require.Len(t, f.jobs.tasks, 1)
	require.Equal(t, taskname.MemoryEmbed, f.jobs.tasks[0].Type())
	require.JSONEq(t, `{"memoryId":"`+item.ID+`"}`, string(f.jobs.tasks[0].Payload()))

	f.embedder.err = nil
	require.NoError(t, HandleEmbed(f.svc)(ctx, f.jobs.tasks[0]))

	stored, err := f.svc.Get(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, stored.HasEmbedding)
}

func TestCreateWithEmbeddingJobsDisabled(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = embedding.ErrUnavailable
	f.jobs.err = task.ErrDisabled

	item, err := f.svc.CreateWithEmbedding(context.Background(), CreateRequest{Content: "x", Category: CategoryOther})
	require.NoError(t, err)
	require.False(t, item.HasEmbedding)
}

func TestBackfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three"} {
		f.clock.Advance(time.Second)
		_, err := f.svc.Create(ctx, CreateRequest{Content: c, Category: CategoryFact})
		require.NoError(t, err)
	}

	n, err := f.svc.Backfill(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = f.svc.Backfill(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = f.svc.Backfill(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestScheduleBackfillRunsInlineWhenJobsDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{Content: "one", Category: CategoryFact})
	require.NoError(t, err)

	queued, _, err := f.svc.ScheduleBackfill(ctx, 5)
	require.NoError(t, err)
	require.True(t, queued)
	require.Equal(t, taskname.MemoryEmbedBackfill, f.jobs.tasks[0].Type())

	f.jobs.err = task.ErrDisabled
	queued, filled, err := f.svc.ScheduleBackfill(ctx, 5)
	require.NoError(t, err)
	require.False(t, queued)
	require.Equal(t, 1, filled)

	f.embedder.err = embedding.ErrUnavailable
	_, err = f.svc.Create(ctx, CreateRequest{Content: "two", Category: CategoryFact})
	require.NoError(t, err)
	_, _, err = f.svc.ScheduleBackfill(ctx, 5)
	require.Equal(t, errutil.StatusUnavailable, errutil.CodeOf(err))
}

func TestTextSearchFiltersCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{Content: "Postgres is the primary db", Category: CategoryDecision})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateRequest{Content: "we like postgres", Category: CategoryPreference})
	require.NoError(t, err)

	all, err := f.svc.TextSearch(ctx, "postgres", "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Postgres is the primary db", all[0].Content)

	decisions, err := f.svc.TextSearch(ctx, "postgres", CategoryDecision, 10)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
}

func TestVectorSearchDegradesToText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{Content: "kubernetes cluster in eu-west", Category: CategoryFact})
	require.NoError(t, err)

	f.embedder.err = embedding.ErrUnavailable
	out, err := f.svc.VectorSearch(ctx, "kubernetes", "", 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, float64(30), out[0].Score)
}

func TestVectorAndHybridSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat, err := f.svc.Create(ctx, CreateRequest{Content: "the office cat is called Miso", Category: CategoryFact, Embedding: unit(1)})
	require.NoError(t, err)
	dog, err := f.svc.Create(ctx, CreateRequest{Content: "nobody owns a dog", Category: CategoryFact, Embedding: unit(2)})
	require.NoError(t, err)
	f.embedder.vectors["pets"] = unit(1)

	vec, err := f.svc.VectorSearch(ctx, "pets", "", 5)
	require.NoError(t, err)
	require.Equal(t, cat.ID, vec[0].ID)
	require.InDelta(t, 1.0, vec[0].Score, 1e-9)

	f.embedder.vectors["dog"] = unit(1)
	hybrid, err := f.svc.HybridSearch(ctx, "dog", "", 5, 0.7)
	require.NoError(t, err)
	require.Len(t, hybrid, 2)
	// vector side favours the cat memory, text side only knows the dog one
	require.Equal(t, cat.ID, hybrid[0].ID)
	require.Equal(t, dog.ID, hybrid[1].ID)

	textHeavy, err := f.svc.HybridSearch(ctx, "dog", "", 5, 0.2)
	require.NoError(t, err)
	require.Equal(t, dog.ID, textHeavy[0].ID)

	_, err = f.svc.HybridSearch(ctx, "dog", "", 5, 1.5)
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))
}

func TestHybridSearchDegradesToText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, CreateRequest{Content: "fact: the deploy window is friday", Category: CategoryFact})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, CreateRequest{Content: "a fact about lunch", Category: CategoryFact})
	require.NoError(t, err)

	f.embedder.err = embedding.ErrUnavailable

	text, err := f.svc.TextSearch(ctx, "fact", "", 5)
	require.NoError(t, err)

	for _, w := range []float64{0.7, 1, 0} {
		hybrid, err := f.svc.HybridSearch(ctx, "fact", "", 5, w)
		require.NoError(t, err)
		require.Len(t, hybrid, len(text))
		for i := range text {
			require.Equal(t, text[i].ID, hybrid[i].ID)
		}
		require.Equal(t, first.ID, hybrid[0].ID)
		require.Equal(t, second.ID, hybrid[1].ID)
		require.InDelta(t, 1.0, hybrid[0].Score, 1e-9, "w=%v", w)
		require.InDelta(t, 0.5, hybrid[1].Score, 1e-9, "w=%v", w)
	}
}

func TestTextSearchFoldsNonASCII(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, CreateRequest{Content: "Élan vital matters", Category: CategoryFact})
	require.NoError(t, err)

	out, err := f.svc.TextSearch(ctx, "élan", "", 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, m.ID, out[0].ID)
	require.Equal(t, float64(30), out[0].Score)

	upper, err := f.svc.TextSearch(ctx, "ÉLAN", "", 5)
	require.NoError(t, err)
	require.Len(t, upper, 1)
}

func TestConfiguredVectorWeight(t *testing.T) {
	db := testutil.NewTestDB(t, &agent.Agent{}, &Memory{})
	node := testutil.NewNode(t)
	agents := agent.NewService(agent.ServiceParams{DB: db, Node: node})

	newWith := func(cfg *config.Config) *Service {
		return NewService(ServiceParams{DB: db, Node: node, Agents: agents, Embedder: &fakeEmbedder{}, Config: cfg})
	}

	require.Equal(t, 0.7, newWith(nil).vectorWeight)

	textOnly := &config.Config{}
	textOnly.Search.VectorWeight = 0
	require.Equal(t, float64(0), newWith(textOnly).vectorWeight)

	tuned := &config.Config{}
	tuned.Search.VectorWeight = 0.4
	require.Equal(t, 0.4, newWith(tuned).vectorWeight)

	broken := &config.Config{}
	broken.Search.VectorWeight = 3
	require.Equal(t, 0.7, newWith(broken).vectorWeight)
}

func TestSearchDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Search(ctx, SearchRequest{Query: ""})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	_, err = f.svc.Search(ctx, SearchRequest{Query: "x", Mode: "fuzzy"})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	out, err := f.svc.Search(ctx, SearchRequest{Query: "x"})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestListAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, CreateRequest{Content: "a", Category: CategoryFact})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.svc.Create(ctx, CreateRequest{Content: "b", Category: CategoryEntity})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "b", all[0].Content)

	facts, err := f.svc.List(ctx, ListFilter{Category: CategoryFact})
	require.NoError(t, err)
	require.Len(t, facts, 1)

	require.NoError(t, f.svc.Delete(ctx, a.ID))
	require.True(t, errutil.IsNotFound(f.svc.Delete(ctx, a.ID)))
}
