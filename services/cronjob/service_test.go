package cronjob

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mission-control/pkg/errutil"
	"mission-control/services/agent"
	"mission-control/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	svc   *Service
	jarv  *agent.Agent
	clock *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, &agent.Agent{}, &Job{})
	node := testutil.NewNode(t)
	clock := testutil.NewClock(time.UnixMilli(1_700_000_000_000))

	agents := agent.NewService(agent.ServiceParams{DB: db, Node: node})
	a, err := agents.Create(context.Background(), agent.CreateRequest{Name: "Jarvis"})
	require.NoError(t, err)

	svc := NewService(ServiceParams{DB: db, Node: node, Agents: agents})
	svc.now = clock.Now
	return &fixture{svc: svc, jarv: a, clock: clock}
}

func i64(v int64) *int64 { return &v }

func TestUpsertResolvesAgentName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.Upsert(ctx, UpsertRequest{
		OpenclawID:  "oc-1",
		Name:        "Daily digest",
		Schedule:    "0 9 * * *",
		AgentName:   "JARVIS",
		Payload:     json.RawMessage(`{"channel":"ops"}`),
		NextRunAtMs: i64(1_700_000_100_000),
	})
	require.NoError(t, err)
	require.Equal(t, f.jarv.ID, *item.AgentID)
	require.Equal(t, "Jarvis", item.Agent.Name)
	require.Equal(t, int64(1_700_000_100_000), *item.NextRunAt)
	require.True(t, item.IsActive)

	unknown, err := f.svc.Upsert(ctx, UpsertRequest{OpenclawID: "oc-2", Name: "x", Schedule: "@hourly", AgentName: "ghost"})
	require.NoError(t, err)
	require.Nil(t, unknown.AgentID)
	require.Nil(t, unknown.Agent)
}

func TestSyncCountsCreatedAndUpdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, UpsertRequest{OpenclawID: "oc-1", Name: "old", Schedule: "@daily"})
	require.NoError(t, err)

	res, err := f.svc.Sync(ctx, SyncRequest{Jobs: []UpsertRequest{
		{OpenclawID: "oc-1", Name: "renamed", Schedule: "@hourly"},
		{OpenclawID: "oc-2", Name: "new", Schedule: "@daily"},
		{OpenclawID: "oc-3", Name: "new too", Schedule: "@daily"},
	}})
	require.NoError(t, err)
	require.Equal(t, &SyncResult{Created: 2, Updated: 1, Total: 3}, res)

	got, err := f.svc.Get(ctx, "oc-1")
	require.NoError(t, err)
	require.Equal(t, "renamed", got.Name)
	require.Equal(t, "@hourly", got.Schedule)
}

func TestSyncRejectsInvalidJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Sync(ctx, SyncRequest{Jobs: []UpsertRequest{
		{OpenclawID: "oc-1", Name: "ok", Schedule: "@daily"},
		{OpenclawID: "oc-2", Name: "", Schedule: "@daily"},
	}})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	// the batch rolls back as a whole
	items, err := f.svc.List(ctx, false, "")
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestUpcomingWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inactive := false

	for _, req := range []UpsertRequest{
		{OpenclawID: "a", Name: "a", Schedule: "s", NextRunAtMs: i64(100)},
		{OpenclawID: "b", Name: "b", Schedule: "s", NextRunAtMs: i64(150)},
		{OpenclawID: "c", Name: "c", Schedule: "s", NextRunAtMs: i64(200)},
		{OpenclawID: "d", Name: "d", Schedule: "s", NextRunAtMs: i64(120), IsActive: &inactive},
		{OpenclawID: "e", Name: "e", Schedule: "s"},
	} {
		_, err := f.svc.Upsert(ctx, req)
		require.NoError(t, err)
	}

	items, err := f.svc.Upcoming(ctx, 100, 200)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "a", items[0].OpenclawID)
	require.Equal(t, "b", items[1].OpenclawID)

	_, err = f.svc.Upcoming(ctx, 200, 100)
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))
}

func TestRecordStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, UpsertRequest{OpenclawID: "oc-1", Name: "n", Schedule: "s"})
	require.NoError(t, err)

	at := f.clock.Advance(time.Minute)
	item, err := f.svc.RecordStatus(ctx, "oc-1", StatusRequest{LastStatus: RunFailure, NextRunAt: i64(999)})
	require.NoError(t, err)
	require.Equal(t, RunFailure, *item.LastStatus)
	require.Equal(t, at.UnixMilli(), *item.LastRunAt)
	require.Equal(t, int64(999), *item.NextRunAt)

	_, err = f.svc.RecordStatus(ctx, "oc-1", StatusRequest{LastStatus: "skipped"})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	_, err = f.svc.RecordStatus(ctx, "missing", StatusRequest{LastStatus: RunSuccess})
	require.True(t, errutil.IsNotFound(err))
}

func TestListFiltersAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inactive := false

	_, err := f.svc.Upsert(ctx, UpsertRequest{OpenclawID: "a", Name: "a", Schedule: "s", AgentID: &f.jarv.ID})
	require.NoError(t, err)
	_, err = f.svc.Upsert(ctx, UpsertRequest{OpenclawID: "b", Name: "b", Schedule: "s", IsActive: &inactive})
	require.NoError(t, err)

	active, err := f.svc.List(ctx, true, "")
	require.NoError(t, err)
	require.Len(t, active, 1)

	mine, err := f.svc.List(ctx, false, f.jarv.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "a", mine[0].OpenclawID)

	require.NoError(t, f.svc.Delete(ctx, "a"))
	require.True(t, errutil.IsNotFound(f.svc.Delete(ctx, "a")))
}
