// Package conversation runs multi-turn conversations between the agent under test and a simulated user.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/codalotl/agentjudge/internal/agents"
	"github.com/codalotl/agentjudge/internal/outcome"
	"github.com/codalotl/agentjudge/internal/retry"
	"github.com/codalotl/agentjudge/internal/types"
)

// Scenario is the slice of a test case the conversation needs.
type Scenario struct {
	Name             string
	Category         string
	Prompt           string
	ExpectedBehavior string
	Config           Config
}

// Result is the outcome of one conversation. On failure Turns holds every turn completed before the
// failing one and FullTranscript is empty.
type Result struct {
	Success        bool
	Turns          []types.ConversationTurn
	FinalResponse  string
	FullTranscript string
	SessionID      string
	TotalDuration  time.Duration
	Reason         string
	// Retries is the number of extra agent attempts spent across all turns.
	Retries int
}

// closingPhrases signal that the simulated user considers the goal met. Matching is a lowercase substring test.
var closingPhrases = []string{
	"thanks",
	"perfect",
	"looks good",
	"that works",
	"appreciate it",
	"all set",
	"that's it",
}

// IsClosingReply reports whether a simulated user reply ends the conversation.
func IsClosingReply(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range closingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Engine drives conversations. Base supplies the request fields shared by every turn (model, system prompt,
// MCP config, timeout); AppendPrompts in Base are sent on the first turn only.
type Engine struct {
	Agent  agents.Invoker
	User   UserSimulator
	Policy retry.Policy
	Base   agents.Request
}

// Run executes the conversation for sc.
func (e *Engine) Run(ctx context.Context, sc Scenario) Result {
	log := clog.FromContext(ctx).With("test", sc.Name)
	cfg := sc.Config
	maxTurns := cfg.MaxTurns
	if maxTurns < 1 {
		maxTurns = 1
	}
	if cfg.Scripted() {
		log.Infof("Starting scripted conversation (max %d turns, %d scripted responses)", maxTurns, len(cfg.UserResponses))
	} else {
		log.Infof("Starting LLM-powered conversation (max %d turns, model: %s)", maxTurns, cfg.UserProxyModel)
	}

	started := time.Now()
	var st state
	fail := func(reason string) Result {
		log.Errorf("Conversation failed: %s", reason)
		return Result{
			Turns:         st.turns,
			SessionID:     st.session,
			TotalDuration: time.Since(started),
			Reason:        reason,
			Retries:       st.retries,
		}
	}

	if reason, ok := e.turn(ctx, &st, 1, sc.Prompt); !ok {
		return fail(reason)
	}

	if cfg.Scripted() {
		for i, reply := range cfg.UserResponses {
			n := i + 2
			if n > maxTurns {
				log.Warnf("Reached max turns (%d), stopping with %d responses unused", maxTurns, len(cfg.UserResponses)-i)
				break
			}
			if reason, ok := e.turn(ctx, &st, n, reply); !ok {
				return fail(reason)
			}
		}
	} else {
		for n := 2; n <= maxTurns; n++ {
			last := st.turns[len(st.turns)-1].AssistantResponse
			reply := e.User.Reply(ctx, sc, last, st.turns)
			log.Debug("User-proxy generated response", "turn", n, "preview", preview(reply, 100))
			if reason, ok := e.turn(ctx, &st, n, reply); !ok {
				return fail(reason)
			}
			if IsClosingReply(reply) {
				log.Infof("User appears satisfied, ending conversation at turn %d", n)
				break
			}
		}
	}

	res := Result{
		Success:        true,
		Turns:          st.turns,
		FinalResponse:  st.turns[len(st.turns)-1].AssistantResponse,
		FullTranscript: BuildTranscript(st.turns),
		SessionID:      st.session,
		TotalDuration:  time.Since(started),
		Retries:        st.retries,
	}
	log.Infof("Conversation complete: %d turns, %.1fs", len(res.Turns), res.TotalDuration.Seconds())
	return res
}

type state struct {
	turns   []types.ConversationTurn
	session string
	retries int
}

// turn runs turn n with message and records it in st. It returns the failure reason and false on failure.
func (e *Engine) turn(ctx context.Context, st *state, n int, message string) (string, bool) {
	req := e.Base
	req.Label = fmt.Sprintf("Turn %d", n)
	req.Prompt = message
	req.SessionID = st.session
	if n > 1 {
		req.AppendPrompts = nil
	}

	res, attempts := agents.Run(ctx, e.Agent, e.Policy, req)
	st.retries += attempts - 1
	if !res.Succeeded() {
		reason := res.Reason
		if res.Kind == outcome.KindProcessError {
			reason = fmt.Sprintf("Turn %d CLI error: %s", n, reason)
		}
		return reason, false
	}

	turn := types.ConversationTurn{
		TurnNumber:        n,
		UserMessage:       message,
		AssistantResponse: res.Value.Text,
		FullOutput:        res.Value.FullOutput,
		SessionID:         res.Value.SessionID,
		MCPCallsMade:      res.Value.MCPToolCalls,
		DurationSeconds:   res.Value.Duration.Seconds(),
	}
	st.turns = append(st.turns, turn)
	st.session = turn.SessionID
	clog.FromContext(ctx).Debug("Turn complete", "turn", n, "chars", len(turn.AssistantResponse), "mcp_calls", turn.MCPCallsMade)
	return "", true
}

// BuildTranscript flattens turns in order. Each assistant block is the turn's full output so tool-call
// evidence reaches the judge.
func BuildTranscript(turns []types.ConversationTurn) string {
	var parts []string
	for _, t := range turns {
		parts = append(parts,
			fmt.Sprintf("[Turn %d - User]", t.TurnNumber),
			t.UserMessage,
			fmt.Sprintf("\n[Turn %d - Assistant]", t.TurnNumber),
			t.FullOutput,
			"",
		)
	}
	return strings.Join(parts, "\n")
}

// Summary renders a short per-turn digest of r.
func Summary(r Result) string {
	if !r.Success {
		return "Conversation failed: " + r.Reason
	}
	lines := []string{
		fmt.Sprintf("Conversation: %d turns, %.1fs", len(r.Turns), r.TotalDuration.Seconds()),
		"",
	}
	for _, t := range r.Turns {
		lines = append(lines,
			fmt.Sprintf("Turn %d:", t.TurnNumber),
			fmt.Sprintf("  User: %s...", preview(t.UserMessage, 100)),
			fmt.Sprintf("  Assistant: %s...", preview(t.AssistantResponse, 100)),
			fmt.Sprintf("  MCP calls: %t", t.MCPCallsMade),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
