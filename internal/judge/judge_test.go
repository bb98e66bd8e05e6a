package judge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codalotl/agentjudge/internal/agents"
	"github.com/codalotl/agentjudge/internal/cases"
	"github.com/codalotl/agentjudge/internal/outcome"
	"github.com/codalotl/agentjudge/internal/retry"
	"github.com/codalotl/agentjudge/internal/types"
)

type fakeClient struct {
	results []outcome.Result[string]
	systems []string
	prompts []string
}

func (f *fakeClient) Complete(_ context.Context, system, prompt string) outcome.Result[string] {
	f.systems = append(f.systems, system)
	f.prompts = append(f.prompts, prompt)
	i := len(f.prompts) - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i]
}

func newTestJudge(c Client) *Judge {
	return &Judge{Client: c, Policy: retry.Policy{MaxRetries: 3}}
}

func TestEvaluatePass(t *testing.T) {
	fc := &fakeClient{results: []outcome.Result[string]{
		outcome.OK(`{"effective": true, "safe": true, "clear": true, "reasoning": "Task captured correctly"}`),
	}}
	c := cases.Case{Name: "capture_simple", Category: "Capture", Prompt: "Remind me to call the dentist"}

	res, attempts := newTestJudge(fc).Evaluate(context.Background(), c, "Created task: call dentist", "")
	require.True(t, res.Succeeded())
	require.Equal(t, 1, attempts)
	require.True(t, res.Value.Passed)
	require.Equal(t, "Task captured correctly", res.Value.Reason)
	require.Equal(t, types.NewVerdict(true, true, true, "Task captured correctly"), res.Value.Verdict)
	require.Equal(t, Rubric(), fc.systems[0])
	require.Contains(t, fc.prompts[0], "Created task: call dentist")
}

func TestEvaluateFailingVerdictIsNotRetried(t *testing.T) {
	fc := &fakeClient{results: []outcome.Result[string]{
		outcome.OK("```json\n{\"effective\": true, \"safe\": false, \"clear\": true, \"reasoning\": \"Deleted without asking\"}\n```"),
	}}
	res, attempts := newTestJudge(fc).Evaluate(context.Background(), cases.Case{Name: "judge_unsafe_delete", Category: "Delete", Prompt: "p"}, "t", "")
	require.True(t, res.Succeeded())
	require.Equal(t, 1, attempts)
	require.False(t, res.Value.Passed)
	require.False(t, res.Value.Verdict.Safe)
}

func TestEvaluateRetriesUnparseableVerdict(t *testing.T) {
	fc := &fakeClient{results: []outcome.Result[string]{
		outcome.OK("I think it passed"),
		outcome.OK(`{"pass": true}`),
	}}
	res, attempts := newTestJudge(fc).Evaluate(context.Background(), cases.Case{Name: "x", Category: "C", Prompt: "p"}, "t", "")
	require.True(t, res.Succeeded())
	require.Equal(t, 2, attempts)
	require.True(t, res.Value.Passed)
	require.Equal(t, `{"pass":true}`, res.Value.Reason)
}

func TestEvaluateGivesUp(t *testing.T) {
	fc := &fakeClient{results: []outcome.Result[string]{outcome.OK("no json here")}}
	res, attempts := newTestJudge(fc).Evaluate(context.Background(), cases.Case{Name: "x", Category: "C", Prompt: "p"}, "t", "")
	require.False(t, res.Succeeded())
	require.Equal(t, 3, attempts)
	require.Equal(t, outcome.KindMalformedOutput, res.Kind)
	require.Equal(t, "Judge verdict not valid JSON", res.Reason)
}

func TestEvaluateStopsOnFatalClientError(t *testing.T) {
	fc := &fakeClient{results: []outcome.Result[string]{
		outcome.Fatal[string](outcome.KindProcessError, "Judge API error (HTTP 401): unauthorized"),
	}}
	res, attempts := newTestJudge(fc).Evaluate(context.Background(), cases.Case{Name: "x", Category: "C", Prompt: "p"}, "t", "")
	require.False(t, res.Succeeded())
	require.Equal(t, 1, attempts)
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.Equal(t, 3, p.MaxRetries)
	require.Equal(t, "20s", p.InitialBackoff.String())
}

type fakeInvoker struct {
	req agents.Request
	res agents.Result
}

func (f *fakeInvoker) Invoke(_ context.Context, req agents.Request) agents.Result {
	f.req = req
	return f.res
}

func TestCLIClient(t *testing.T) {
	inv := &fakeInvoker{res: outcome.OK(agents.Response{Text: `{"pass": false}`})}
	c := &CLIClient{Agent: inv, MCPConfigPath: "mcp.json"}

	res := c.Complete(context.Background(), "rubric", "prompt")
	require.True(t, res.Succeeded())
	require.Equal(t, `{"pass": false}`, res.Value)
	require.Equal(t, "Judge", inv.req.Label)
	require.Equal(t, "sonnet", inv.req.Model)
	require.Equal(t, []string{"rubric"}, inv.req.AppendPrompts)
	require.Equal(t, "mcp.json", inv.req.MCPConfigPath)
	require.Empty(t, inv.req.SessionID)

	inv.res = outcome.Retryable[agents.Response](outcome.KindMalformedOutput, "Judge returned non-JSON output")
	res = c.Complete(context.Background(), "rubric", "prompt")
	require.Equal(t, outcome.RetryableFailure, res.Status)
	require.Equal(t, "Judge returned non-JSON output", res.Reason)
}
