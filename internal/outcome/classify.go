package outcome

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"syscall"
)

// Failure is the classification of a failed external call.
type Failure struct {
	Reason   string
	Kind     ErrorKind
	Retry    bool
	ExitCode int
}

// rateLimitIndicators mark provider-side throttling.
var rateLimitIndicators = []string{
	"rate limit",
	"too many requests",
	"429",
	"quota exceeded",
	"overloaded",
	"throttled",
	"capacity",
}

// transientIndicators mark infrastructure hiccups that usually clear on their own.
var transientIndicators = []string{
	"timeout",
	"connection",
	"broken pipe",
	"network",
	"temporary",
}

// IsRateLimit reports whether text looks like a rate-limit or overload message. Matching is a
// case-insensitive substring search.
func IsRateLimit(text string) bool {
	return containsAny(strings.ToLower(text), rateLimitIndicators)
}

// IsTransient reports whether text looks like any retryable failure (rate limits included).
func IsTransient(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, rateLimitIndicators) || containsAny(lower, transientIndicators)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Classify maps an error, an exit code and captured stderr to a Failure. It is pure: the same
// triple always yields the same Failure. A nil error with a zero exit code is still classified
// (as unexpected) so callers never receive a zero Failure for a call they consider failed.
func Classify(err error, exitCode int, stderr string) Failure {
	var exitErr *exec.ExitError
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return Failure{Reason: fmt.Sprintf("Timeout (%s)", err.Error()), Kind: KindTimeout, Retry: true}
	case err != nil && errors.Is(err, syscall.EPIPE):
		return Failure{Reason: "Broken pipe", Kind: KindBrokenPipe, Retry: true}
	case err != nil && (errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)):
		return Failure{Reason: "File not found: " + missingName(err), Kind: KindFileNotFound}
	case err != nil && errors.Is(err, fs.ErrPermission):
		return Failure{Reason: "Permission denied: " + truncate(err.Error(), 200), Kind: KindPermissionDenied}
	case errors.As(err, &exitErr):
		return processFailure(exitErr.ExitCode(), stderr)
	case err == nil && exitCode != 0:
		return processFailure(exitCode, stderr)
	case err == nil:
		return Failure{Reason: "Unexpected error: no error reported", Kind: KindUnexpected}
	default:
		return Failure{
			Reason: fmt.Sprintf("Unexpected error: %T: %s", err, truncate(err.Error(), 200)),
			Kind:   KindUnexpected,
		}
	}
}

func processFailure(code int, stderr string) Failure {
	stderr = strings.TrimSpace(stderr)
	return Failure{
		Reason:   fmt.Sprintf("Process failed (exit %d): %s", code, truncate(stderr, 200)),
		Kind:     KindProcessError,
		Retry:    IsTransient(stderr),
		ExitCode: code,
	}
}

func missingName(err error) string {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return execErr.Name
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Path
	}
	return err.Error()
}

// Display renders the failure for console output.
func (f Failure) Display(verbose bool) string {
	kind := string(f.Kind)
	if kind == "" {
		kind = "unknown"
	}
	reason := f.Reason
	if reason == "" {
		reason = "Unknown error"
	}
	if !verbose {
		return fmt.Sprintf("ERROR [%s]: %s", kind, truncate(reason, 100))
	}
	parts := []string{fmt.Sprintf("ERROR [%s]:", kind), reason}
	if f.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("(exit code: %d)", f.ExitCode))
	}
	if f.Retry {
		parts = append(parts, "[retryable]")
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
