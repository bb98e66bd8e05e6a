package setup_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codalotl/agentjudge/internal/agents"
	"github.com/codalotl/agentjudge/internal/cases"
	"github.com/codalotl/agentjudge/internal/outcome"
	"github.com/codalotl/agentjudge/internal/setup"
)

type recordingAgent struct {
	reqs []agents.Request
	res  agents.Result
}

func (r *recordingAgent) Invoke(_ context.Context, req agents.Request) agents.Result {
	r.reqs = append(r.reqs, req)
	return r.res
}

func TestInstructions(t *testing.T) {
	g := &cases.GraphSetup{
		Tasks: []cases.Task{
			{ID: "t1", Content: "Draft proposal", DependsOn: cases.StringList{"t2", "@office"}},
			{Content: "Review proposal", IsComplete: true},
		},
		Contexts: []cases.Context{{Content: "@office", IsAvailable: true}, {Content: "@home"}},
		States:   []cases.State{{Content: "Weather is good"}},
	}
	require.Equal(t, []string{
		"Create an incomplete task: 'Draft proposal'",
		"  (Store this task ID as 't1' for later reference)",
		"  Make this task depend on: t2",
		"  Make this task depend on: @office",
		"Create a completed task: 'Review proposal'",
		"Create context @office (currently available)",
		"Create context @home (currently unavailable)",
		"Create manual state: 'Weather is good' (currently false)",
	}, setup.Instructions(g))
	require.Nil(t, setup.Instructions(nil))
	require.Equal(t, "Set up the following test data:\n\na\nb", setup.Prompt([]string{"a", "b"}))
}

func TestSetup(t *testing.T) {
	ctx := context.Background()
	fixture := &cases.GraphSetup{Tasks: []cases.Task{{Content: "x"}}}

	t.Run("empty fixture is a no-op", func(t *testing.T) {
		agent := &recordingAgent{}
		g := &setup.Graph{Agent: agent}
		require.NoError(t, g.Setup(ctx, &cases.GraphSetup{}))
		require.Empty(t, agent.reqs)
	})

	t.Run("requires mcp config", func(t *testing.T) {
		agent := &recordingAgent{}
		g := &setup.Graph{Agent: agent}
		require.ErrorIs(t, g.Setup(ctx, fixture), setup.ErrNoMCPConfig)
		require.ErrorIs(t, g.Clean(ctx), setup.ErrNoMCPConfig)
		require.ErrorIs(t, g.Ping(ctx), setup.ErrNoMCPConfig)
		require.Empty(t, agent.reqs)
	})

	t.Run("sends instructions", func(t *testing.T) {
		agent := &recordingAgent{res: outcome.OK(agents.Response{Text: "done"})}
		g := &setup.Graph{Agent: agent, MCPConfigPath: "mcp.json", Timeout: 2 * time.Minute}
		require.NoError(t, g.Setup(ctx, fixture))
		require.Len(t, agent.reqs, 1)
		req := agent.reqs[0]
		require.Equal(t, "Set up the following test data:\n\nCreate an incomplete task: 'x'", req.Prompt)
		require.Contains(t, req.SystemPrompt, "test fixture setup utility")
		require.Equal(t, "mcp.json", req.MCPConfigPath)
		require.Equal(t, 2*time.Minute, req.Timeout)
		require.Empty(t, req.SessionID)
	})

	t.Run("reports agent failure", func(t *testing.T) {
		agent := &recordingAgent{res: outcome.Retryable[agents.Response](outcome.KindTimeout, "Graph setup timeout (120s)")}
		g := &setup.Graph{Agent: agent, MCPConfigPath: "mcp.json"}
		require.ErrorContains(t, g.Setup(ctx, fixture), "graph setup failed: Graph setup timeout (120s)")
	})
}

func TestCleanAndPing(t *testing.T) {
	ctx := context.Background()
	agent := &recordingAgent{res: outcome.OK(agents.Response{})}
	g := &setup.Graph{Agent: agent, MCPConfigPath: "mcp.json", Timeout: time.Minute}

	require.NoError(t, g.Clean(ctx))
	require.NoError(t, g.Ping(ctx))
	require.Len(t, agent.reqs, 2)
	require.Contains(t, agent.reqs[0].Prompt, "Delete all nodes in the graph")
	require.Equal(t, time.Minute, agent.reqs[0].Timeout)
	require.Equal(t, "Ping - respond if you can access the graph memory.", agent.reqs[1].Prompt)
	require.Equal(t, setup.PingTimeout, agent.reqs[1].Timeout)

	agent.res = outcome.Retryable[agents.Response](outcome.KindProcessError, "boom")
	require.ErrorContains(t, g.Clean(ctx), "graph cleanup failed: boom")
}
