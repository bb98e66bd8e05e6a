// Package retry re-invokes external calls that fail with retryable outcomes, waiting with
// exponential backoff between attempts.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/codalotl/agentjudge/internal/outcome"
)

// Policy configures retry behavior.
type Policy struct {
	// MaxRetries is the total attempt budget. Values below 1 mean a single attempt.
	MaxRetries int
	// InitialBackoff is the wait after the first failed attempt.
	InitialBackoff time.Duration
	// Multiplier grows the wait after each further failure. Zero means 2.
	Multiplier float64
	// Disabled policies call the function exactly once.
	Disabled bool
}

// DefaultPolicy matches the agent defaults: 3 attempts, 30s, doubling.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, InitialBackoff: 30 * time.Second, Multiplier: 2}
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialBackoff < 0 {
		return fmt.Errorf("initial backoff must be >= 0, got %s", p.InitialBackoff)
	}
	if p.Multiplier < 0 {
		return fmt.Errorf("backoff multiplier must be >= 0, got %g", p.Multiplier)
	}
	return nil
}

func (p Policy) attempts() int {
	if p.Disabled || p.MaxRetries < 1 {
		return 1
	}
	return p.MaxRetries
}

func (p Policy) multiplier() float64 {
	if p.Multiplier == 0 {
		return 2
	}
	return p.Multiplier
}

// MaxBackoff caps a single wait and the cumulative wait reported by TotalBackoff.
const MaxBackoff = time.Duration(math.MaxInt64)

// Backoff is the wait after the failed attempt with zero-based index attempt. It saturates at MaxBackoff.
func (p Policy) Backoff(attempt int) time.Duration {
	d := float64(p.InitialBackoff) * math.Pow(p.multiplier(), float64(attempt))
	if math.IsNaN(d) || d <= 0 {
		return 0
	}
	if d >= float64(MaxBackoff) {
		return MaxBackoff
	}
	return time.Duration(d)
}

// TotalBackoff is the worst-case cumulative wait if every attempt fails retryably. It saturates at
// MaxBackoff.
func (p Policy) TotalBackoff() time.Duration {
	var total time.Duration
	for i := 0; i < p.attempts()-1; i++ {
		b := p.Backoff(i)
		if b >= MaxBackoff-total {
			return MaxBackoff
		}
		total += b
	}
	return total
}

// ShouldRetry reports whether a failed result is eligible for another attempt: either it is
// tagged retryable or its reason carries a transient signature.
func ShouldRetry[T any](r outcome.Result[T]) bool {
	if r.Succeeded() {
		return false
	}
	return r.Status == outcome.RetryableFailure || outcome.IsTransient(r.Reason)
}

// wait blocks for d or until ctx is done. Tests replace it.
var wait = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Do runs fn until it succeeds, fails non-retryably, or the attempt budget is spent. It returns
// the last result and the number of attempts made. The final failed attempt is returned
// without waiting.
func Do[T any](ctx context.Context, p Policy, operation string, fn func(ctx context.Context) outcome.Result[T]) (outcome.Result[T], int) {
	log := clog.FromContext(ctx).With("operation", operation)
	max := p.attempts()

	var last outcome.Result[T]
	for attempt := 0; attempt < max; attempt++ {
		last = fn(ctx)
		if last.Succeeded() {
			if attempt > 0 {
				log.Info("Retry succeeded", "attempt", attempt+1)
			}
			return last, attempt + 1
		}
		if !ShouldRetry(last) {
			log.Debug("Non-retryable failure", "attempt", attempt+1, "reason", clip(last.Reason, 100))
			return last, attempt + 1
		}
		if attempt >= max-1 {
			log.Warn("Max retries exceeded", "max_retries", max, "reason", clip(last.Reason, 100))
			return last, attempt + 1
		}
		backoff := p.Backoff(attempt)
		log.Warn("Retrying after backoff", "attempt", attempt+1, "max_retries", max, "backoff", backoff,
			"rate_limited", outcome.IsRateLimit(last.Reason), "reason", clip(last.Reason, 100))
		if err := wait(ctx, backoff); err != nil {
			return last, attempt + 1
		}
	}
	// Unreachable while attempts() >= 1.
	return outcome.Fatal[T](outcome.KindUnexpected, "Max retries exceeded (fallback)"), max
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
