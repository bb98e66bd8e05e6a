package agents

import (
	"context"
	"strings"

	"github.com/codalotl/agentjudge/internal/retry"
)

// Run invokes req through inv, retrying retryable failures under policy. It returns the final result and
// the number of attempts made.
func Run(ctx context.Context, inv Invoker, policy retry.Policy, req Request) (Result, int) {
	op := strings.ToLower(req.Label)
	if op == "" {
		op = "agent"
	}
	return retry.Do(ctx, policy, op, func(ctx context.Context) Result {
		return inv.Invoke(ctx, req)
	})
}
