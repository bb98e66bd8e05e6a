package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/codalotl/agentjudge/internal/agents"
	"github.com/codalotl/agentjudge/internal/outcome"
	"github.com/codalotl/agentjudge/internal/retry"
	"github.com/codalotl/agentjudge/internal/types"
)

// fakeAgent answers each Invoke with the next scripted result, echoing the prompt when none is scripted.
type fakeAgent struct {
	requests []agents.Request
	results  map[int]agents.Result
}

func (f *fakeAgent) Invoke(ctx context.Context, req agents.Request) agents.Result {
	n := len(f.requests)
	f.requests = append(f.requests, req)
	if r, ok := f.results[n]; ok {
		return r
	}
	return outcome.OK(agents.Response{
		Text:       "reply to: " + req.Prompt,
		FullOutput: fmt.Sprintf(`{"result":"reply to: %s"}`, req.Prompt),
		SessionID:  "sess-1",
	})
}

type fakeUser struct {
	replies  []string
	calls    int
	lastSeen []string
}

func (f *fakeUser) Reply(ctx context.Context, sc Scenario, assistantMessage string, history []types.ConversationTurn) string {
	f.lastSeen = append(f.lastSeen, assistantMessage)
	r := f.replies[f.calls%len(f.replies)]
	f.calls++
	return r
}

func newEngine(agent agents.Invoker, user UserSimulator) *Engine {
	return &Engine{
		Agent:  agent,
		User:   user,
		Policy: retry.Policy{MaxRetries: 1},
		Base: agents.Request{
			SystemPromptPath: "/prompts/system.md",
			AppendPrompts:    []string{"test overlay"},
			MCPConfigPath:    "/tmp/mcp.json",
		},
	}
}

func llmScenario(maxTurns int) Scenario {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.MaxTurns = maxTurns
	return Scenario{Name: "conv_clarify", Category: "Capture", Prompt: "Plan the offsite", Config: cfg}
}

func TestRunStopsAtMaxTurnsWithoutClosingPhrase(t *testing.T) {
	agent := &fakeAgent{}
	user := &fakeUser{replies: []string{"Next week, in Denver."}}
	res := newEngine(agent, user).Run(context.Background(), llmScenario(3))

	require.True(t, res.Success)
	require.Len(t, res.Turns, 3)
	require.Len(t, agent.requests, 3)
	require.Equal(t, 2, user.calls)
	for i, turn := range res.Turns {
		require.Equal(t, i+1, turn.TurnNumber)
	}
	require.Equal(t, "reply to: Next week, in Denver.", res.FinalResponse)
	require.Equal(t, "sess-1", res.SessionID)
}

func TestRunStopsEarlyOnClosingPhrase(t *testing.T) {
	agent := &fakeAgent{}
	user := &fakeUser{replies: []string{"Great, thanks!"}}
	res := newEngine(agent, user).Run(context.Background(), llmScenario(3))

	require.True(t, res.Success)
	require.Len(t, res.Turns, 2)
	require.Equal(t, 1, user.calls)
	require.Equal(t, "Great, thanks!", res.Turns[1].UserMessage)
}

func TestRunFirstTurnCarriesPromptsAndLaterTurnsResume(t *testing.T) {
	agent := &fakeAgent{}
	user := &fakeUser{replies: []string{"ok"}}
	newEngine(agent, user).Run(context.Background(), llmScenario(2))

	require.Len(t, agent.requests, 2)
	first, second := agent.requests[0], agent.requests[1]
	require.Equal(t, "Plan the offsite", first.Prompt)
	require.Empty(t, first.SessionID)
	require.Equal(t, []string{"test overlay"}, first.AppendPrompts)
	require.Equal(t, "Turn 1", first.Label)

	require.Equal(t, "sess-1", second.SessionID)
	require.Nil(t, second.AppendPrompts)
	require.Equal(t, "/tmp/mcp.json", second.MCPConfigPath)
	require.Equal(t, []string{"reply to: Plan the offsite"}, user.lastSeen)
}

func TestRunScriptedMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.UseLLMUser = false
	cfg.MaxTurns = 2
	cfg.UserResponses = []string{"thanks, do the first one", "and the second"}
	sc := Scenario{Name: "scripted", Prompt: "Add tasks", Config: cfg}

	agent := &fakeAgent{}
	user := &fakeUser{replies: []string{"unused"}}
	res := newEngine(agent, user).Run(context.Background(), sc)

	require.True(t, res.Success)
	require.Len(t, res.Turns, 2, "scripted turns stop at max_turns, not on closing phrases")
	require.Equal(t, "thanks, do the first one", res.Turns[1].UserMessage)
	require.Zero(t, user.calls)
}

func TestRunScriptedModeUsesAllResponsesWithinCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseLLMUser = false
	cfg.MaxTurns = 5
	cfg.UserResponses = []string{"thanks", "all set"}
	res := newEngine(&fakeAgent{}, &fakeUser{replies: []string{"x"}}).Run(context.Background(), Scenario{Prompt: "p", Config: cfg})
	require.Len(t, res.Turns, 3)
}

func TestRunFailurePreservesTurns(t *testing.T) {
	agent := &fakeAgent{results: map[int]agents.Result{
		1: outcome.Retryable[agents.Response](outcome.KindTimeout, "Turn 2 timeout (600s)"),
	}}
	user := &fakeUser{replies: []string{"sure"}}
	res := newEngine(agent, user).Run(context.Background(), llmScenario(3))

	require.False(t, res.Success)
	require.Equal(t, "Turn 2 timeout (600s)", res.Reason)
	require.Len(t, res.Turns, 1)
	require.Empty(t, res.FullTranscript)
	require.Equal(t, "sess-1", res.SessionID)
	require.Equal(t, "Conversation failed: Turn 2 timeout (600s)", Summary(res))
}

func TestRunProcessErrorReason(t *testing.T) {
	agent := &fakeAgent{results: map[int]agents.Result{
		0: outcome.Retryable[agents.Response](outcome.KindProcessError, "invalid api key"),
	}}
	res := newEngine(agent, &fakeUser{replies: []string{"x"}}).Run(context.Background(), llmScenario(3))
	require.False(t, res.Success)
	require.Equal(t, "Turn 1 CLI error: invalid api key", res.Reason)
	require.Empty(t, res.Turns)
}

func TestRunCountsRetries(t *testing.T) {
	agent := &fakeAgent{results: map[int]agents.Result{
		0: outcome.Retryable[agents.Response](outcome.KindMalformedOutput, "Turn 1 returned non-JSON output"),
	}}
	e := newEngine(agent, &fakeUser{replies: []string{"thanks"}})
	e.Policy = retry.Policy{MaxRetries: 3}
	res := e.Run(context.Background(), llmScenario(3))
	require.True(t, res.Success)
	require.Equal(t, 1, res.Retries)
	require.Len(t, agent.requests, 3)
}

func TestBuildTranscript(t *testing.T) {
	turns := []types.ConversationTurn{
		{TurnNumber: 1, UserMessage: "hi", FullOutput: `{"result":"hello"}`},
		{TurnNumber: 2, UserMessage: "bye", FullOutput: `{"result":"later"}`},
	}
	want := strings.Join([]string{
		"[Turn 1 - User]", "hi", "\n[Turn 1 - Assistant]", `{"result":"hello"}`, "",
		"[Turn 2 - User]", "bye", "\n[Turn 2 - Assistant]", `{"result":"later"}`, "",
	}, "\n")
	require.Equal(t, want, BuildTranscript(turns))
	require.Empty(t, BuildTranscript(nil))
}

func TestIsClosingReply(t *testing.T) {
	for _, s := range []string{"Thanks!", "PERFECT", "that looks good to me", "That works.", "I appreciate it", "We're all set", "That's it for now"} {
		require.True(t, IsClosingReply(s), s)
	}
	for _, s := range []string{"Can you add a due date?", "Next Tuesday", ""} {
		require.False(t, IsClosingReply(s), s)
	}
	// Substring matching is intentionally loose.
	require.True(t, IsClosingReply("Is that's itinerary ready?"))
}

func TestSummary(t *testing.T) {
	res := Result{
		Success: true,
		Turns: []types.ConversationTurn{
			{TurnNumber: 1, UserMessage: "hi", AssistantResponse: strings.Repeat("a", 150), MCPCallsMade: true},
		},
	}
	got := Summary(res)
	require.Contains(t, got, "Conversation: 1 turns, 0.0s")
	require.Contains(t, got, "Turn 1:\n  User: hi...\n  Assistant: "+strings.Repeat("a", 100)+"...\n  MCP calls: true")
}

func TestConfigDecodingAppliesDefaults(t *testing.T) {
	var fromJSON Config
	require.NoError(t, json.Unmarshal([]byte(`{"enabled": true, "max_turns": 5, "require_search_first": false}`), &fromJSON))
	require.True(t, fromJSON.Enabled)
	require.Equal(t, 5, fromJSON.MaxTurns)
	require.False(t, fromJSON.RequireSearchFirst)
	require.True(t, fromJSON.ValidateMCPBeforeAsk)
	require.True(t, fromJSON.UseLLMUser)
	require.Equal(t, DefaultUserProxyModel, fromJSON.UserProxyModel)
	require.InDelta(t, 0.7, fromJSON.LLMUserTemperature, 1e-9)

	var fromYAML Config
	require.NoError(t, yaml.Unmarshal([]byte("enabled: true\nuse_llm_user: false\nuser_responses: [\"yes\"]\n"), &fromYAML))
	require.Equal(t, 3, fromYAML.MaxTurns)
	require.True(t, fromYAML.Scripted())
}
