package agents

import (
	"context"
	"time"
)

// Request describes one agent CLI invocation.
type Request struct {
	// Label prefixes failure reasons, e.g. "Assistant" or "Judge".
	Label string

	Prompt string
	// SessionID resumes an existing session. System prompts and overlays are only sent when it is empty.
	SessionID string
	Model     string

	// SystemPrompt is inline system prompt text. It takes precedence over SystemPromptPath.
	SystemPrompt     string
	SystemPromptPath string
	AppendPrompts    []string

	// MCPConfigPath is passed as --mcp-config when set.
	MCPConfigPath string
	// CaptureMCPLog clears the MCP call log before the call and appends it to FullOutput afterwards.
	CaptureMCPLog bool

	Timeout time.Duration
}

// Response is the parsed result of a successful invocation. On malformed output failures Text and FullOutput
// carry the raw stdout.
type Response struct {
	Text       string
	FullOutput string
	SessionID  string
	// MCPToolCalls reports whether the payload contains any mcp__ tool_use block. Informational only.
	MCPToolCalls bool
	SearchCalls  bool
	MCPLog       string
	Payload      map[string]any
	Duration     time.Duration
}

// Invocation is the captured result of one process run. A non-zero exit is reported through ExitCode, not as an error.
type Invocation struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs an external command to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (Invocation, error)
}

// Invoker issues a single agent turn. *Claude implements it; tests substitute fakes.
type Invoker interface {
	Invoke(ctx context.Context, req Request) Result
}
