package outcome_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codalotl/agentjudge/internal/outcome"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		exitCode int
		stderr   string
		kind     outcome.ErrorKind
		retry    bool
	}{
		{name: "deadline", err: fmt.Errorf("run claude: %w", context.DeadlineExceeded), kind: outcome.KindTimeout, retry: true},
		{name: "broken pipe", err: &fs.PathError{Op: "write", Path: "|1", Err: syscall.EPIPE}, kind: outcome.KindBrokenPipe, retry: true},
		{name: "missing binary", err: &exec.Error{Name: "claude", Err: exec.ErrNotFound}, kind: outcome.KindFileNotFound},
		{name: "missing file", err: &fs.PathError{Op: "open", Path: "/tmp/x", Err: fs.ErrNotExist}, kind: outcome.KindFileNotFound},
		{name: "permission", err: &fs.PathError{Op: "exec", Path: "/bin/claude", Err: fs.ErrPermission}, kind: outcome.KindPermissionDenied},
		{name: "exit with transient stderr", exitCode: 1, stderr: "Error: 429 Too Many Requests", kind: outcome.KindProcessError, retry: true},
		{name: "exit with plain stderr", exitCode: 2, stderr: "invalid flag --bogus", kind: outcome.KindProcessError},
		{name: "unknown", err: errors.New("kaboom"), kind: outcome.KindUnexpected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := outcome.Classify(tc.err, tc.exitCode, tc.stderr)
			require.Equal(t, tc.kind, got.Kind)
			require.Equal(t, tc.retry, got.Retry)
			require.NotEmpty(t, got.Reason)

			again := outcome.Classify(tc.err, tc.exitCode, tc.stderr)
			require.Equal(t, got, again)
		})
	}
}

func TestClassifyNamesMissingBinary(t *testing.T) {
	got := outcome.Classify(&exec.Error{Name: "claude", Err: exec.ErrNotFound}, 0, "")
	require.Equal(t, "File not found: claude", got.Reason)
}

func TestClassifyProcessCarriesExitCode(t *testing.T) {
	got := outcome.Classify(nil, 3, "  overloaded_error  ")
	require.Equal(t, 3, got.ExitCode)
	require.Equal(t, "Process failed (exit 3): overloaded_error", got.Reason)
	require.True(t, got.Retry)
}

func TestIsTransient(t *testing.T) {
	for _, text := range []string{
		"Rate limit reached",
		"HTTP 429",
		"Quota exceeded for model",
		"server overloaded",
		"request THROTTLED",
		"at capacity",
		"Assistant timeout (600s)",
		"connection reset by peer",
		"Broken pipe",
		"network unreachable",
		"temporary failure in name resolution",
	} {
		require.True(t, outcome.IsTransient(text), text)
	}
	require.False(t, outcome.IsTransient("Judge said the response was unsafe"))
	require.False(t, outcome.IsTransient(""))
	require.True(t, outcome.IsRateLimit("Too Many Requests"))
	require.False(t, outcome.IsRateLimit("connection refused"))
}

func TestFailureDisplay(t *testing.T) {
	f := outcome.Failure{Reason: "Timeout (60s)", Kind: outcome.KindTimeout, Retry: true}
	require.Equal(t, "ERROR [timeout]: Timeout (60s)", f.Display(false))
	require.Equal(t, "ERROR [timeout]: Timeout (60s) [retryable]", f.Display(true))

	p := outcome.Failure{Reason: "Process failed", Kind: outcome.KindProcessError, ExitCode: 2}
	require.Equal(t, "ERROR [process_error]: Process failed (exit code: 2)", p.Display(true))

	require.Equal(t, "ERROR [unknown]: Unknown error", outcome.Failure{}.Display(false))
}

func TestResultConstructors(t *testing.T) {
	ok := outcome.OK("hi")
	require.True(t, ok.Succeeded())
	require.Equal(t, outcome.Failure{}, ok.Failure())

	r := outcome.Retryable[string](outcome.KindTimeout, "Judge timeout (%ds)", 60)
	require.False(t, r.Succeeded())
	require.Equal(t, outcome.RetryableFailure, r.Status)
	require.Equal(t, "Judge timeout (60s)", r.Reason)
	require.True(t, r.Failure().Retry)

	f := outcome.FromFailure[int](outcome.Failure{Reason: "nope", Kind: outcome.KindFileNotFound})
	require.Equal(t, outcome.FatalFailure, f.Status)

	converted := outcome.Convert[int, string](f)
	require.Equal(t, outcome.FatalFailure, converted.Status)
	require.Equal(t, "nope", converted.Reason)
}
