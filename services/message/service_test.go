package message

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mission-control/pkg/db/pagination"
	"mission-control/pkg/errutil"
	"mission-control/services/agent"
	"mission-control/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubTasks map[string]bool

func (s stubTasks) Exists(_ context.Context, id string) (bool, error) {
	return s[id], nil
}

type fixture struct {
	svc   *Service
	jarv  *agent.Agent
	clock *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, &agent.Agent{}, &Message{})
	node := testutil.NewNode(t)
	clock := testutil.NewClock(time.UnixMilli(1_700_000_000_000))

	agents := agent.NewService(agent.ServiceParams{DB: db, Node: node})
	a, err := agents.Create(context.Background(), agent.CreateRequest{Name: "Jarvis", Emoji: "🤖"})
	require.NoError(t, err)

	svc := NewService(ServiceParams{DB: db, Node: node, Agents: agents, Tasks: stubTasks{"task-1": true}})
	svc.now = clock.Now

	return &fixture{svc: svc, jarv: a, clock: clock}
}

func strPtr(s string) *string { return &s }

func TestCreateMessageDefaults(t *testing.T) {
	f := newFixture(t)

	item, err := f.svc.Create(context.Background(), CreateRequest{AgentID: f.jarv.ID, Content: " standup in 5 "})
	require.NoError(t, err)
	require.Equal(t, "standup in 5", item.Content)
	require.Equal(t, TypeMessage, item.MessageType)
	require.Equal(t, f.clock.Now().UnixMilli(), item.Timestamp)
	require.Equal(t, "Jarvis", item.Agent.Name)
	require.Nil(t, item.ReplyToID)
	require.Nil(t, item.TaskID)
}

func TestCreateMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{AgentID: f.jarv.ID, Content: "  "})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	_, err = f.svc.Create(ctx, CreateRequest{Content: "hi"})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	_, err = f.svc.Create(ctx, CreateRequest{AgentID: f.jarv.ID, Content: "hi", MessageType: "shout"})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))

	_, err = f.svc.Create(ctx, CreateRequest{AgentID: "ghost", Content: "hi"})
	require.True(t, errutil.IsNotFound(err))

	_, err = f.svc.Create(ctx, CreateRequest{AgentID: f.jarv.ID, Content: "hi", ReplyToID: strPtr("nope")})
	require.True(t, errutil.IsNotFound(err))

	_, err = f.svc.Create(ctx, CreateRequest{AgentID: f.jarv.ID, Content: "hi", TaskID: strPtr("task-404")})
	require.True(t, errutil.IsNotFound(err))
}

func TestRepliesAreOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root, err := f.svc.Create(ctx, CreateRequest{AgentID: f.jarv.ID, Content: "thoughts?", MessageType: TypeDiscussionPrompt})
	require.NoError(t, err)

	for _, c := range []string{"first", "second"} {
		f.clock.Advance(time.Second)
		_, err := f.svc.Create(ctx, CreateRequest{AgentID: f.jarv.ID, Content: c, ReplyToID: &root.ID, MessageType: TypeDiscussionResponse})
		require.NoError(t, err)
	}

	replies, err := f.svc.Replies(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	require.Equal(t, "first", replies[0].Content)
	require.Equal(t, "second", replies[1].Content)
}

func TestListByTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{AgentID: f.jarv.ID, Content: "on it", TaskID: strPtr("task-1")})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateRequest{AgentID: f.jarv.ID, Content: "unrelated"})
	require.NoError(t, err)

	items, err := f.svc.ListByTask(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "on it", items[0].Content)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.clock.Advance(time.Second)
		_, err := f.svc.Create(ctx, CreateRequest{AgentID: f.jarv.ID, Content: "m", IsHuman: i%2 == 0})
		require.NoError(t, err)
	}

	first, err := f.svc.List(ctx, pagination.Pagination{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	require.True(t, first.HasMore)
	require.GreaterOrEqual(t, first.Items[0].Timestamp, first.Items[1].Timestamp)

	second, err := f.svc.List(ctx, pagination.Pagination{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.False(t, second.HasMore)

	_, err = f.svc.List(ctx, pagination.Pagination{Cursor: "bogus"})
	require.Equal(t, errutil.StatusBadRequest, errutil.CodeOf(err))
}
