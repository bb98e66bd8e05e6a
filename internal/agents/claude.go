package agents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/mattn/go-shellwords"

	"github.com/codalotl/agentjudge/internal/outcome"
)

// Result is the outcome of one agent turn.
type Result = outcome.Result[Response]

// Claude drives the claude CLI in --print mode with JSON output.
type Claude struct {
	// Command is the binary followed by any leading arguments.
	Command []string
	Runner  CommandRunner
	// MCPLogPath, when set, is the file the MCP server appends tool calls to.
	MCPLogPath string
}

// NewClaude parses cmdline (shell syntax, default "claude") into a Claude using runner.
func NewClaude(cmdline string, runner CommandRunner) (*Claude, error) {
	cmdline = strings.TrimSpace(cmdline)
	if cmdline == "" {
		cmdline = "claude"
	}
	words, err := shellwords.Parse(cmdline)
	if err != nil {
		return nil, fmt.Errorf("parse agent command %q: %w", cmdline, err)
	}
	if len(words) == 0 {
		return nil, errors.New("agent command is empty")
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Claude{Command: words, Runner: runner}, nil
}

// Args builds the CLI arguments for req, excluding the binary.
func (c *Claude) Args(req Request) []string {
	args := append([]string(nil), c.Command[1:]...)
	if req.MCPConfigPath != "" {
		args = append(args, "--mcp-config", req.MCPConfigPath)
	}
	if m := strings.TrimSpace(req.Model); m != "" {
		args = append(args, "--model", m)
	}
	args = append(args, "--dangerously-skip-permissions", "--print", "--output-format", "json")
	if req.SessionID == "" {
		if req.SystemPrompt != "" {
			args = append(args, "--system-prompt", req.SystemPrompt)
		} else if req.SystemPromptPath != "" && fileExists(req.SystemPromptPath) {
			args = append(args, "--system-prompt", req.SystemPromptPath)
		}
		for _, p := range req.AppendPrompts {
			if strings.TrimSpace(p) != "" {
				args = append(args, "--append-system-prompt", p)
			}
		}
	} else {
		args = append(args, "--resume", req.SessionID)
	}
	return append(args, req.Prompt)
}

// Invoke runs one turn. It never retries; see Run.
func (c *Claude) Invoke(ctx context.Context, req Request) Result {
	label := req.Label
	if label == "" {
		label = "Agent"
	}
	log := clog.FromContext(ctx).With("agent_call", label)

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	capture := req.CaptureMCPLog && c.MCPLogPath != ""
	if capture {
		if err := ClearMCPLog(c.MCPLogPath); err != nil {
			log.Warnf("Failed to clear MCP log: %v", err)
		}
	}

	started := time.Now()
	inv, err := c.Runner.Run(ctx, c.Command[0], c.Args(req)...)
	elapsed := time.Since(started)

	var mcpLog string
	if capture {
		var readErr error
		if mcpLog, readErr = ReadMCPLog(c.MCPLogPath); readErr != nil {
			log.Warnf("Failed to read MCP log: %v", readErr)
		}
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warnf("%s timeout after %s", label, formatSeconds(req.Timeout))
			res := outcome.Retryable[Response](outcome.KindTimeout, "%s timeout (%s)", label, formatSeconds(req.Timeout))
			return res.WithValue(Response{MCPLog: mcpLog, Duration: elapsed})
		}
		f := outcome.Classify(err, inv.ExitCode, inv.Stderr)
		log.Warn("Agent call failed", "kind", f.Kind, "reason", f.Reason)
		return outcome.FromFailure[Response](f).WithValue(Response{MCPLog: mcpLog, Duration: elapsed})
	}

	if inv.ExitCode != 0 {
		reason := strings.TrimSpace(inv.Stderr)
		if reason == "" {
			reason = label + " CLI error"
		}
		log.Warn("Agent CLI error", "exit_code", inv.ExitCode, "reason", reason)
		res := outcome.Retryable[Response](outcome.KindProcessError, "%s", reason)
		res.ExitCode = inv.ExitCode
		return res.WithValue(Response{MCPLog: mcpLog, Duration: elapsed})
	}

	raw := strings.TrimSpace(inv.Stdout)
	payload, err := ParsePayload(inv.Stdout)
	if err != nil {
		log.Warnf("%s returned non-JSON output", label)
		res := outcome.Retryable[Response](outcome.KindMalformedOutput, "%s returned non-JSON output", label)
		return res.WithValue(Response{Text: raw, FullOutput: raw, MCPLog: mcpLog, Duration: elapsed})
	}

	full := raw
	if mcpLog != "" {
		full += "\n\n=== MCP Tool Calls ===\n" + mcpLog
	}
	resp := Response{
		Text:         strings.TrimSpace(ExtractText(payload)),
		FullOutput:   full,
		SessionID:    SessionID(payload, req.SessionID),
		MCPToolCalls: HasToolCalls(payload, MCPToolPrefix),
		SearchCalls:  HasSearchCalls(payload),
		MCPLog:       mcpLog,
		Payload:      payload,
		Duration:     elapsed,
	}
	log.Debug("Agent call succeeded", "mcp_calls", resp.MCPToolCalls, "duration", elapsed)
	return outcome.OK(resp)
}

// Version returns the CLI's reported version.
func (c *Claude) Version(ctx context.Context) (string, error) {
	args := append(append([]string(nil), c.Command[1:]...), "-v")
	inv, err := c.Runner.Run(ctx, c.Command[0], args...)
	trimmed := strings.TrimSpace(inv.Stdout + inv.Stderr)
	if version := parseClaudeVersion(trimmed); version != "" {
		return version, nil
	}
	if err != nil {
		return "", err
	}
	if trimmed == "" {
		return "", errors.New("claude -v returned no output")
	}
	return "", fmt.Errorf("could not parse claude version from %q", trimmed)
}

var claudeVersionPattern = regexp.MustCompile(`\d+\.\d+\.\d+(?:[-\w\.]+)?`)

func parseClaudeVersion(output string) string {
	if output == "" {
		return ""
	}
	if match := claudeVersionPattern.FindString(output); match != "" {
		return match
	}
	fields := strings.Fields(output)
	if len(fields) == 1 {
		return fields[0]
	}
	return ""
}

// formatSeconds renders d as whole seconds, e.g. "600s".
func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ClearMCPLog removes the MCP call log. A missing file is not an error.
func ClearMCPLog(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ReadMCPLog returns the MCP call log, or "" when it does not exist.
func ReadMCPLog(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}
