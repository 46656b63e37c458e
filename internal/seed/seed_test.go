package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mission-control/services/agent"
	"mission-control/services/recurring"
	"mission-control/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const roster = `
agents:
  - name: Jarvis
    emoji: "🤖"
    role: Squad Lead
    color: "#4f46e5"
    badge: LEAD
  - name: Friday
    role: Researcher
    openclawAgentId: oc-friday
recurring:
  - name: daily-standup
    schedule: "0 9 * * 1-5"
    agent: jarvis
    maxRetries: 5
    payload:
      channel: squad
`

func TestLoadRosterRejectsUnknownFields(t *testing.T) {
	_, err := LoadRoster(strings.NewReader("agents:\n  - nme: typo\n"))
	require.Error(t, err)
}

func TestApplyIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t, &agent.Agent{}, &recurring.Task{})
	node := testutil.NewNode(t)
	agents := agent.NewService(agent.ServiceParams{DB: db, Node: node})
	tasks := recurring.NewService(recurring.ServiceParams{DB: db, Node: node, Agents: agents})
	ctx := context.Background()

	r, err := LoadRoster(strings.NewReader(roster))
	require.NoError(t, err)
	require.Len(t, r.Agents, 2)

	res, err := Apply(ctx, agents, tasks, r)
	require.NoError(t, err)
	require.Equal(t, &Result{AgentsCreated: 2, RecurringCreated: 1}, res)

	friday, err := agents.FindByName(ctx, "friday")
	require.NoError(t, err)
	require.Equal(t, "oc-friday", *friday.OpenclawAgentID)

	standup, err := tasks.Get(ctx, "daily-standup")
	require.NoError(t, err)
	require.Equal(t, 5, standup.MaxRetries)
	require.JSONEq(t, `{"channel":"squad"}`, string(standup.Payload))

	again, err := Apply(ctx, agents, tasks, r)
	require.NoError(t, err)
	require.Equal(t, &Result{AgentsSkipped: 2, RecurringSkipped: 1}, again)
}

func TestApplyUnknownRecurringAgent(t *testing.T) {
	db := testutil.NewTestDB(t, &agent.Agent{}, &recurring.Task{})
	node := testutil.NewNode(t)
	agents := agent.NewService(agent.ServiceParams{DB: db, Node: node})
	tasks := recurring.NewService(recurring.ServiceParams{DB: db, Node: node, Agents: agents})

	_, err := Apply(context.Background(), agents, tasks, &Roster{
		Recurring: []RecurringSpec{{Name: "x", Schedule: "@daily", Agent: "nobody"}},
	})
	require.Error(t, err)
}
