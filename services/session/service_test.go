package session

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

	db := testutil.NewTestDB(t, &agent.Agent{}, &Session{})
	node := testutil.NewNode(t)
	clock := testutil.NewClock(time.UnixMilli(1_700_000_000_000))

	agents := agent.NewService(agent.ServiceParams{DB: db, Node: node})
	a, err := agents.Create(context.Background(), agent.CreateRequest{Name: "Jarvis"})
	require.NoError(t, err)

	svc := NewService(ServiceParams{DB: db, Node: node, Agents: agents})
	svc.now = clock.Now
	return &fixture{svc: svc, jarv: a, clock: clock}
}

func strPtr(s string) *string { return &s }

func TestUpsertCreatesThenRefreshes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Upsert(ctx, UpsertRequest{
		SessionID: "s-1",
		AgentName: "jarvis",
		Channel:   strPtr("slack"),
		Metadata:  json.RawMessage(`{"tokens":12}`),
	})
	require.NoError(t, err)
	require.Equal(t, StatusActive, created.Status)
	require.Equal(t, f.jarv.ID, *created.AgentID)
	require.Equal(t, "Jarvis", created.Agent.Name)
	require.Equal(t, created.StartedAt, created.LastActivityAt)

	at := f.clock.Advance(time.Minute)
	updated, err := f.svc.Upsert(ctx, UpsertRequest{SessionID: "s-1", Model: strPtr("gpt-4o"), Status: StatusIdle})
	require.NoError(t, err)
	require.Equal(t, StatusIdle, updated.Status)
	require.Equal(t, "gpt-4o", *updated.Model)
	require.Equal(t, "slack", *updated.Channel)
	require.Equal(t, at.UnixMilli(), updated.LastActivityAt)
	require.Equal(t, created.StartedAt, updated.StartedAt)
	require.JSONEq(t, `{"tokens":12}`, string(updated.Metadata))
}

func TestUpsertValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, UpsertRequest{AgentName: "Jarvis"})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	_, err = f.svc.Upsert(ctx, UpsertRequest{SessionID: "s-1"})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	_, err = f.svc.Upsert(ctx, UpsertRequest{SessionID: "s-1", AgentName: "Jarvis", Status: "zombie"})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))
}

func TestUpsertChecksExplicitAgentID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, UpsertRequest{SessionID: "s-1", AgentName: "Jarvis", AgentID: strPtr("ghost")})
	require.True(t, errutil.IsNotFound(err))

	created, err := f.svc.Upsert(ctx, UpsertRequest{SessionID: "s-1", AgentName: "someone", AgentID: strPtr(f.jarv.ID)})
	require.NoError(t, err)
	require.Equal(t, f.jarv.ID, *created.AgentID)

	// an empty id is treated as absent and never overwrites the stored one
	refreshed, err := f.svc.Upsert(ctx, UpsertRequest{SessionID: "s-1", AgentID: strPtr("")})
	require.NoError(t, err)
	require.NotNil(t, refreshed.AgentID)
	require.Equal(t, f.jarv.ID, *refreshed.AgentID)

	var blank int64
	require.NoError(t, f.svc.db.Model(&Session{}).Where("agent_id = ?", "").Count(&blank).Error)
	require.Zero(t, blank)
}

func TestHeartbeatOnlyMovesActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Upsert(ctx, UpsertRequest{SessionID: "s-1", AgentName: "Jarvis", Status: StatusSleeping})
	require.NoError(t, err)

	at := f.clock.Advance(time.Hour)
	beat, err := f.svc.Heartbeat(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, at.UnixMilli(), beat.LastActivityAt)
	require.Equal(t, StatusSleeping, beat.Status)
	require.Equal(t, created.StartedAt, beat.StartedAt)

	_, err = f.svc.Heartbeat(ctx, "missing")
	require.True(t, errutil.IsNotFound(err))
}

func TestListAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, st := range []Status{StatusActive, StatusActive, StatusTerminated} {
		f.clock.Advance(time.Second)
		_, err := f.svc.Upsert(ctx, UpsertRequest{SessionID: string(rune('a' + i)), AgentName: "Jarvis", Status: st})
		require.NoError(t, err)
	}

	_, err := f.svc.UpdateStatus(ctx, "a", StatusIdle)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, "a", "nope")
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	all, err := f.svc.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "c", all[0].SessionID)

	active, err := f.svc.List(ctx, StatusActive, f.jarv.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)

	sum, err := f.svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), sum.Total)
	require.Equal(t, int64(1), sum.ByStatus[StatusActive])
	require.Equal(t, int64(1), sum.ByStatus[StatusIdle])
	require.Equal(t, int64(0), sum.ByStatus[StatusSleeping])

	require.NoError(t, f.svc.Delete(ctx, "c"))
	_, err = f.svc.Get(ctx, "c")
	require.True(t, errutil.IsNotFound(err))
}
