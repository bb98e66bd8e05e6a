// Package suite executes test cases against the agent and judge and repeats them across runs.
package suite

import (
	"context"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/codalotl/agentjudge/internal/agents"
	"github.com/codalotl/agentjudge/internal/cases"
	"github.com/codalotl/agentjudge/internal/conversation"
	"github.com/codalotl/agentjudge/internal/judge"
	"github.com/codalotl/agentjudge/internal/outcome"
	"github.com/codalotl/agentjudge/internal/retry"
	"github.com/codalotl/agentjudge/internal/types"
)

// Conversations runs multi-turn conversations. *conversation.Engine implements it.
type Conversations interface {
	Run(ctx context.Context, sc conversation.Scenario) conversation.Result
}

// Evaluator judges a transcript. *judge.Judge implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, c cases.Case, assistantText, fullOutput string) (outcome.Result[judge.Evaluation], int)
}

// Interrogator asks follow-up questions in a finished session. *interrogate.Interrogator implements it.
type Interrogator interface {
	Interrogate(ctx context.Context, sessionID string, passed bool, testName string, verdict *types.Verdict) []types.QAPair
}

// Fixtures prepares and wipes external graph state. *setup.Graph implements it.
type Fixtures interface {
	Setup(ctx context.Context, fixture *cases.GraphSetup) error
	Clean(ctx context.Context) error
}

// Executor runs one test case once.
type Executor struct {
	Agent  agents.Invoker
	Policy retry.Policy
	// Base carries the first-turn request fields: system prompt, overlays, MCP config, model, timeout.
	Base          agents.Request
	Conversations Conversations
	Judge         Evaluator

	// Interrogator is optional. ShouldInterrogate gates it on the judge's outcome; nil never interrogates.
	Interrogator      Interrogator
	ShouldInterrogate func(actualPass bool) bool

	// Fixtures, when set, populates graph_setup before the agent runs.
	Fixtures Fixtures
	// MCPLogPath is cleared before a conversation and read after it.
	MCPLogPath string
}

// assistantRun is the agent side of one execution.
type assistantRun struct {
	ok         bool
	reason     string
	text       string
	fullOutput string
	sessionID  string
	retries    int
}

// Execute runs c as run number runNumber. It never fails: every failure is folded into the result.
func (e *Executor) Execute(ctx context.Context, c cases.Case, runNumber int) types.TestResult {
	log := clog.FromContext(ctx).With("test", c.Name, "run", runNumber)
	ctx = clog.WithLogger(ctx, log)
	started := time.Now()

	res := types.TestResult{
		TestName:     c.Name,
		Category:     c.Category,
		RunNumber:    runNumber,
		ExpectedPass: c.ExpectsPass(),
	}

	if e.Fixtures != nil && !c.HasOverride() && !c.GraphSetup.Empty() {
		log.Infof("Setting up graph fixture for %s", c.Name)
		if err := e.Fixtures.Setup(ctx, c.GraphSetup); err != nil {
			log.Warnf("Graph setup failed for %s: %v", c.Name, err)
		}
	}

	var run assistantRun
	switch {
	case c.HasOverride():
		run = assistantRun{ok: true, text: *c.AssistantOverride, fullOutput: *c.AssistantOverride}
	case c.IsConversational():
		log.Infof("Running conversational test: %s", c.Name)
		run = e.converse(ctx, c)
	default:
		run = e.single(ctx, c)
	}
	res.SessionID = run.sessionID
	res.RetryCount = run.retries

	if !run.ok {
		res.Reason = run.reason
		if res.Reason == "" {
			res.Reason = "Unknown error"
		}
		res.DurationSeconds = time.Since(started).Seconds()
		return res
	}
	res.AssistantResponse = run.text
	res.FullTranscript = run.fullOutput

	eval, _ := e.Judge.Evaluate(ctx, c, run.text, run.fullOutput)
	if eval.Succeeded() {
		v := eval.Value.Verdict
		res.ActualPass = eval.Value.Passed
		res.Reason = eval.Value.Reason
		res.Verdict = &v
	} else {
		res.Reason = eval.Reason
	}
	res.Passed = res.ActualPass == res.ExpectedPass

	if run.sessionID != "" && e.Interrogator != nil && e.ShouldInterrogate != nil && e.ShouldInterrogate(res.ActualPass) {
		log.Infof("Interrogating %s", c.Name)
		res.Interrogation = e.Interrogator.Interrogate(ctx, run.sessionID, res.ActualPass, c.Name, res.Verdict)
	}

	res.DurationSeconds = time.Since(started).Seconds()
	return res
}

func (e *Executor) single(ctx context.Context, c cases.Case) assistantRun {
	req := e.Base
	req.Label = "Assistant"
	req.Prompt = c.Prompt
	req.SessionID = ""
	req.CaptureMCPLog = true

	r, attempts := agents.Run(ctx, e.Agent, e.Policy, req)
	run := assistantRun{retries: max(attempts-1, 0)}
	if !r.Succeeded() {
		run.reason = r.Reason
		return run
	}
	run.ok = true
	run.text = r.Value.Text
	run.fullOutput = r.Value.FullOutput
	run.sessionID = r.Value.SessionID
	return run
}

func (e *Executor) converse(ctx context.Context, c cases.Case) assistantRun {
	log := clog.FromContext(ctx)
	if e.MCPLogPath != "" {
		if err := agents.ClearMCPLog(e.MCPLogPath); err != nil {
			log.Warnf("Failed to clear MCP log: %v", err)
		}
	}

	conv := e.Conversations.Run(ctx, c.ConversationScenario())
	log.Debug(conversation.Summary(conv))

	var mcpLog string
	if e.MCPLogPath != "" {
		var err error
		if mcpLog, err = agents.ReadMCPLog(e.MCPLogPath); err != nil {
			log.Warnf("Failed to read MCP log: %v", err)
		}
	}

	run := assistantRun{sessionID: conv.SessionID, retries: conv.Retries}
	if !conv.Success {
		run.reason = conv.Reason
		return run
	}
	run.ok = true
	run.text = conv.FinalResponse
	run.fullOutput = conv.FullTranscript
	if mcpLog != "" {
		run.fullOutput += "\n\n=== MCP Tool Calls ===\n" + mcpLog
	}
	return run
}
