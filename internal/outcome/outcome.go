package outcome

import "fmt"

// Status is the tag of a Result.
type Status int

const (
	Success Status = iota
	RetryableFailure
	FatalFailure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable_failure"
	case FatalFailure:
		return "fatal_failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrorKind names the failure class of a non-successful Result.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindTimeout          ErrorKind = "timeout"
	KindBrokenPipe       ErrorKind = "broken_pipe"
	KindProcessError     ErrorKind = "process_error"
	KindFileNotFound     ErrorKind = "file_not_found"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindMalformedOutput  ErrorKind = "malformed_output"
	KindUnexpected       ErrorKind = "unexpected"
)

// Result is the value every external call returns instead of raising for expected failures.
// Value may be populated on failure too (for example the raw output of a call that could not be parsed).
type Result[T any] struct {
	Status Status
	Value  T
	Reason string
	Kind   ErrorKind
	// ExitCode is the process exit code when the failure came from a process, else 0.
	ExitCode int
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{Status: Success, Value: v}
}

// Retryable builds a failure the retry engine may re-attempt.
func Retryable[T any](kind ErrorKind, format string, args ...any) Result[T] {
	return Result[T]{Status: RetryableFailure, Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Fatal builds a failure that must not be retried.
func Fatal[T any](kind ErrorKind, format string, args ...any) Result[T] {
	return Result[T]{Status: FatalFailure, Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// FromFailure converts a classified Failure into a Result.
func FromFailure[T any](f Failure) Result[T] {
	status := FatalFailure
	if f.Retry {
		status = RetryableFailure
	}
	return Result[T]{Status: status, Kind: f.Kind, Reason: f.Reason, ExitCode: f.ExitCode}
}

// Succeeded reports whether the result is a Success.
func (r Result[T]) Succeeded() bool { return r.Status == Success }

// WithValue returns a copy of r carrying v.
func (r Result[T]) WithValue(v T) Result[T] {
	r.Value = v
	return r
}

// Failure returns the failure descriptor of r. It is the zero Failure for successes.
func (r Result[T]) Failure() Failure {
	if r.Status == Success {
		return Failure{}
	}
	return Failure{
		Reason:   r.Reason,
		Kind:     r.Kind,
		Retry:    r.Status == RetryableFailure,
		ExitCode: r.ExitCode,
	}
}

// Convert re-tags a failed result with a different value type, dropping the value.
func Convert[T, U any](r Result[T]) Result[U] {
	return Result[U]{Status: r.Status, Reason: r.Reason, Kind: r.Kind, ExitCode: r.ExitCode}
}
