package interrogate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codalotl/agentjudge/internal/agents"
	"github.com/codalotl/agentjudge/internal/outcome"
	"github.com/codalotl/agentjudge/internal/types"
)

type fakeAgent struct {
	results map[int]agents.Result
	reqs    []agents.Request
}

func (f *fakeAgent) Invoke(_ context.Context, req agents.Request) agents.Result {
	f.reqs = append(f.reqs, req)
	if r, ok := f.results[len(f.reqs)]; ok {
		return r
	}
	return outcome.OK(agents.Response{Text: "  answer " + req.Prompt[:3] + "  "})
}

func TestQuestions(t *testing.T) {
	require.Len(t, Questions(true, nil), 1)
	require.True(t, strings.HasPrefix(Questions(true, nil)[0], "Thank you! That was the desired behavior"))

	require.Equal(t, FailureQuestions, Questions(false, nil))

	v := types.NewVerdict(true, false, true, "Deleted without confirmation")
	qs := Questions(false, &v)
	require.Len(t, qs, 3)
	require.Equal(t, FailureQuestions[0], qs[0])
	require.Contains(t, qs[1], "- Effective: ✅\n- Safe: ❌\n- Clear: ✅\n- Reasoning: Deleted without confirmation")
	require.Equal(t, FailureQuestions[2], qs[2])

	// The shared question list is not modified.
	require.True(t, strings.HasPrefix(FailureQuestions[1], "The judge indicated your response had issues. Looking back"))

	empty := types.NewVerdict(false, false, false, "")
	require.Contains(t, Questions(false, &empty)[1], "- Reasoning: No reasoning provided")
}

func TestInterrogateIsolatesFailures(t *testing.T) {
	agent := &fakeAgent{results: map[int]agents.Result{
		2: outcome.Retryable[agents.Response](outcome.KindTimeout, "Interrogation timeout (60s)"),
	}}
	in := &Interrogator{Agent: agent, MCPConfigPath: "mcp.json", Timeout: 60 * time.Second}

	pairs := in.Interrogate(context.Background(), "sess-1", false, "t", nil)
	require.Len(t, pairs, 3)
	require.Equal(t, "answer Why", pairs[0].Answer)
	require.Empty(t, pairs[0].Error)
	require.Equal(t, "[ERROR: Timeout after 60s]", pairs[1].Answer)
	require.Equal(t, "Timeout", pairs[1].Error)
	require.Equal(t, "answer Loo", pairs[2].Answer)
	require.Empty(t, pairs[2].Error)

	for _, req := range agent.reqs {
		require.Equal(t, "sess-1", req.SessionID)
		require.Equal(t, "sonnet", req.Model)
		require.Equal(t, "mcp.json", req.MCPConfigPath)
		require.Equal(t, 60*time.Second, req.Timeout)
	}
}

func TestInterrogateErrorAnswers(t *testing.T) {
	agent := &fakeAgent{results: map[int]agents.Result{
		1: outcome.Retryable[agents.Response](outcome.KindMalformedOutput, "Interrogation returned non-JSON output"),
	}}
	in := &Interrogator{Agent: agent, Timeout: time.Second}
	pairs := in.Interrogate(context.Background(), "s", true, "t", nil)
	require.Equal(t, []types.QAPair{{Question: SuccessQuestions[0], Answer: "[ERROR: Non-JSON output]", Error: "Non-JSON output"}}, pairs)

	agent = &fakeAgent{results: map[int]agents.Result{
		1: outcome.Retryable[agents.Response](outcome.KindProcessError, "session not found"),
	}}
	in.Agent = agent
	pairs = in.Interrogate(context.Background(), "s", true, "t", nil)
	require.Equal(t, "[ERROR: session not found]", pairs[0].Answer)
	require.Equal(t, "session not found", pairs[0].Error)
}

func TestFormat(t *testing.T) {
	got := Format([]types.QAPair{
		{Question: "Q one", Answer: strings.Repeat("a", 12)},
		{Question: "Q two", Answer: "[ERROR: Timeout after 5s]", Error: "Timeout"},
	}, 10)
	require.Equal(t, "\nQ1: Q one\nA1: aaaaaaaaaa...\n\nQ2: Q two\nA2: [ERROR: Timeout after 5s]\n    [Error: Timeout]", got)
}

func TestUncertaintyMentions(t *testing.T) {
	pairs := []types.QAPair{
		{Answer: "It was mostly fine. The deletion rules felt Unclear to me. Also somewhat verbose"},
		{Answer: "All good"},
	}
	require.Equal(t, []string{"The deletion rules felt Unclear to me", "Also somewhat verbose"}, UncertaintyMentions(pairs))
	require.Empty(t, UncertaintyMentions(nil))
}
