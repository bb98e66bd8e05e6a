// Package judge scores agent transcripts against the three-dimension rubric (effective, safe, clear).
package judge

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/codalotl/agentjudge/internal/cases"
	"github.com/codalotl/agentjudge/internal/outcome"
	"github.com/codalotl/agentjudge/internal/retry"
	"github.com/codalotl/agentjudge/internal/types"
)

// DefaultPolicy is the judge's retry policy. It backs off faster than agent calls since judge failures are
// mostly rate limits.
func DefaultPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 3, InitialBackoff: 20 * time.Second, Multiplier: 2}
}

// Evaluation is a parsed judge ruling.
type Evaluation struct {
	Passed  bool
	Reason  string
	Verdict types.Verdict
	// Raw is the decoded verdict object as the judge wrote it.
	Raw map[string]any
}

// Judge evaluates transcripts through Client.
type Judge struct {
	Client Client
	Policy retry.Policy
}

// New returns a Judge using client and DefaultPolicy.
func New(client Client) *Judge {
	return &Judge{Client: client, Policy: DefaultPolicy()}
}

// Evaluate judges one case, retrying unavailable judges and unparseable verdicts. A parseable failing
// verdict is a successful Evaluation with Passed false. It also returns the number of attempts.
func (j *Judge) Evaluate(ctx context.Context, c cases.Case, assistantText, fullOutput string) (outcome.Result[Evaluation], int) {
	log := clog.FromContext(ctx).With("test", c.Name)
	log.Debug("Running judge")

	prompt, err := BuildPrompt(c, assistantText, fullOutput)
	if err != nil {
		return outcome.Fatal[Evaluation](outcome.KindUnexpected, "%v", err), 0
	}

	res, attempts := retry.Do(clog.WithLogger(ctx, log), j.Policy, "judge", func(ctx context.Context) outcome.Result[Evaluation] {
		return j.attempt(ctx, prompt)
	})
	switch {
	case !res.Succeeded():
		log.Warn("Judge FAIL", "reason", res.Reason)
	case res.Value.Passed:
		log.Debug("Judge PASS")
	default:
		log.Warn("Judge FAIL", "reason", res.Value.Reason)
	}
	return res, attempts
}

func (j *Judge) attempt(ctx context.Context, prompt string) outcome.Result[Evaluation] {
	log := clog.FromContext(ctx)

	text := j.Client.Complete(ctx, Rubric(), prompt)
	if !text.Succeeded() {
		return outcome.Convert[string, Evaluation](text)
	}
	raw := ParseVerdict(text.Value)
	if raw == nil {
		log.Warn("Judge verdict not valid JSON")
		return outcome.Retryable[Evaluation](outcome.KindMalformedOutput, "Judge verdict not valid JSON")
	}
	if !ValidateVerdict(raw) {
		log.Debug("Judge verdict is missing typed fields", "verdict", raw)
	}

	v := types.VerdictFromMap(raw)
	reason := strings.TrimSpace(v.Reasoning)
	if reason == "" {
		b, _ := json.Marshal(raw)
		reason = string(b)
	}
	return outcome.OK(Evaluation{Passed: v.Passed, Reason: reason, Verdict: v, Raw: raw})
}
