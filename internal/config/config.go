// Package config assembles the execution parameters of a suite run.
//
// Values are layered: built-in defaults, an optional YAML file, the environment, then explicitly set command
// line flags. The YAML file and the flags share one key space (see Set).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/codalotl/agentjudge/internal/cases"
	"github.com/codalotl/agentjudge/internal/fsutil"
	"github.com/codalotl/agentjudge/internal/judge"
	"github.com/codalotl/agentjudge/internal/retry"
	"github.com/codalotl/agentjudge/internal/workspace"
)

// Modes.
const (
	ModeAuto = "auto"
	ModeSim  = "sim"
	ModeReal = "real"
)

// Config holds every parameter of a suite run. It is read-only once validated.
type Config struct {
	Root             string
	SystemPromptPath string
	TestCasesPath    string
	MCPConfigPath    string
	MCPLogPath       string
	// AgentCommand is the shell-style agent command line.
	AgentCommand string

	Runs              int
	InterRunDelay     time.Duration
	InterTestDelay    time.Duration
	MaxRetries        int
	InitialBackoff    time.Duration
	BackoffMultiplier float64

	AssistantTimeout     time.Duration
	JudgeTimeout         time.Duration
	InterrogationTimeout time.Duration
	CleanupTimeout       time.Duration

	Mode                string
	Suite               string
	Category            string
	TestName            string
	CleanBetweenTests   bool
	InterrogateFailures bool
	InterrogatePasses   bool

	JudgeBackend    string
	JudgeModel      string
	AnthropicAPIKey string
	OpenAIAPIKey    string

	LogFile              string
	LogLevel             string
	ResultsDSN           string
	InterrogationLog     string
	PrintAssistantOnFail bool
	Verbose              bool
}

// Default returns the built-in configuration. Paths are resolved by Resolve.
func Default() Config {
	return Config{
		AgentCommand:         "claude",
		Runs:                 1,
		InterRunDelay:        10 * time.Second,
		MaxRetries:           3,
		InitialBackoff:       30 * time.Second,
		BackoffMultiplier:    2,
		AssistantTimeout:     600 * time.Second,
		JudgeTimeout:         60 * time.Second,
		InterrogationTimeout: 60 * time.Second,
		CleanupTimeout:       120 * time.Second,
		Mode:                 ModeAuto,
		Suite:                cases.SuiteAll,
		JudgeBackend:         judge.BackendCLI,
		LogFile:              "test_run.log",
		LogLevel:             "INFO",
	}
}

// Resolve fills in default paths under Root, expands "~" and settles an auto mode. In real mode the MCP
// config defaults to <root>/tests/mcp-config.json; in sim mode it is cleared.
func (c *Config) Resolve() {
	if c.Root == "" {
		c.Root = workspace.Root()
	}
	c.Root = fsutil.ExpandHome(c.Root)
	if c.SystemPromptPath == "" {
		c.SystemPromptPath = workspace.SystemPromptFile(c.Root)
	}
	if c.TestCasesPath == "" {
		c.TestCasesPath = workspace.TestCasesFile(c.Root)
	}
	c.SystemPromptPath = fsutil.ExpandHome(c.SystemPromptPath)
	c.TestCasesPath = fsutil.ExpandHome(c.TestCasesPath)

	mcp := fsutil.ExpandHome(c.MCPConfigPath)
	if mcp == "" {
		mcp = workspace.MCPConfigFile(c.Root)
	}
	if c.Mode == ModeAuto || c.Mode == "" {
		c.Mode = ModeSim
		if workspace.Exists(mcp) {
			c.Mode = ModeReal
		}
	}
	if c.Mode == ModeReal {
		c.MCPConfigPath = mcp
	} else if c.Mode == ModeSim {
		c.MCPConfigPath = ""
	}
	c.LogLevel = strings.ToUpper(c.LogLevel)
}

// Validate reports every invalid setting. Call it after Resolve.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Mode {
	case ModeSim:
	case ModeReal:
		if c.MCPConfigPath == "" {
			add("MCP config path required for 'real' mode")
		}
	default:
		add("invalid mode: %s. Must be 'sim' or 'real'", c.Mode)
	}
	switch c.Suite {
	case cases.SuiteAll, cases.SuiteAssistant, cases.SuiteJudge:
	default:
		add("invalid suite: %s. Must be 'all', 'assistant', or 'judge'", c.Suite)
	}

	if c.Runs < 1 {
		add("runs must be >= 1, got %d", c.Runs)
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.InterRunDelay < 0 {
		add("inter-run delay must be >= 0, got %s", c.InterRunDelay)
	}
	if c.InterTestDelay < 0 {
		add("inter-test delay must be >= 0, got %s", c.InterTestDelay)
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"assistant", c.AssistantTimeout},
		{"judge", c.JudgeTimeout},
		{"interrogation", c.InterrogationTimeout},
		{"cleanup", c.CleanupTimeout},
	} {
		if t.d <= 0 {
			add("%s timeout must be > 0, got %s", t.name, t.d)
		}
	}

	if !workspace.Exists(c.SystemPromptPath) {
		add("system prompt not found: %s", c.SystemPromptPath)
	}
	if !workspace.Exists(c.TestCasesPath) {
		add("test cases not found: %s", c.TestCasesPath)
	}
	if c.MCPConfigPath != "" && !workspace.Exists(c.MCPConfigPath) {
		add("MCP config not found: %s", c.MCPConfigPath)
	}

	switch c.JudgeBackend {
	case judge.BackendCLI:
	case judge.BackendAnthropic:
		if c.AnthropicAPIKey == "" {
			add("judge backend %q requires ANTHROPIC_API_KEY", c.JudgeBackend)
		}
	case judge.BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			add("judge backend %q requires OPENAI_API_KEY", c.JudgeBackend)
		}
	default:
		add("invalid judge backend: %s. Must be 'cli', 'anthropic', or 'openai'", c.JudgeBackend)
	}

	switch c.LogLevel {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		add("invalid log level: %s", c.LogLevel)
	}
	return errors.Join(errs...)
}

// RetryPolicy is the policy for agent turns.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{MaxRetries: c.MaxRetries, InitialBackoff: c.InitialBackoff, Multiplier: c.BackoffMultiplier}
}

// JudgePolicy is the judge's policy: its own attempt budget and backoff, sharing the multiplier.
func (c Config) JudgePolicy() retry.Policy {
	p := judge.DefaultPolicy()
	if c.BackoffMultiplier > 0 {
		p.Multiplier = c.BackoffMultiplier
	}
	return p
}

// LiveMCP reports whether the agent runs against a real MCP server.
func (c Config) LiveMCP() bool {
	return c.Mode == ModeReal
}

// ShouldCleanGraph reports whether the graph is wiped between tests.
func (c Config) ShouldCleanGraph() bool {
	return c.CleanBetweenTests && c.LiveMCP()
}

// ShouldInterrogate reports whether a test with the given judge outcome is interrogated.
func (c Config) ShouldInterrogate(actualPass bool) bool {
	if actualPass {
		return c.InterrogatePasses
	}
	return c.InterrogateFailures
}

// Overlays returns the existing system prompt overlay files for the current mode: the test overlay, then
// the live-MCP or no-MCP overlay.
func (c Config) Overlays() []string {
	dir := workspace.FixturesDir(c.TestCasesPath)
	names := []string{workspace.TestOverlay, workspace.NoMCPOverlay}
	if c.LiveMCP() {
		names[1] = workspace.LiveMCPOverlay
	}
	var out []string
	for _, name := range names {
		p, err := fsutil.SafeJoin(dir, name)
		if err == nil && workspace.Exists(p) {
			out = append(out, p)
		}
	}
	return out
}

// OverlayPrompts reads the trimmed contents of Overlays, skipping empty files.
func (c Config) OverlayPrompts() ([]string, error) {
	var out []string
	for _, p := range c.Overlays() {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if s := strings.TrimSpace(string(b)); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// Snapshot is the portable subset of a Config stored with each run. Durations are in seconds.
type Snapshot struct {
	SystemPromptPath     string  `json:"system_prompt_path"`
	TestCasesPath        string  `json:"test_cases_path"`
	MCPConfigPath        string  `json:"mcp_config_path,omitempty"`
	Runs                 int     `json:"runs"`
	InterRunDelay        float64 `json:"inter_run_delay"`
	InterTestDelay       float64 `json:"inter_test_delay"`
	MaxRetries           int     `json:"max_retries"`
	InitialBackoff       float64 `json:"initial_backoff"`
	BackoffMultiplier    float64 `json:"backoff_multiplier"`
	AssistantTimeout     float64 `json:"assistant_timeout"`
	JudgeTimeout         float64 `json:"judge_timeout"`
	InterrogationTimeout float64 `json:"interrogation_timeout"`
	CleanupTimeout       float64 `json:"cleanup_timeout"`
	Mode                 string  `json:"mode"`
	Suite                string  `json:"suite"`
	Category             string  `json:"category,omitempty"`
	TestName             string  `json:"test_name,omitempty"`
	CleanBetweenTests    bool    `json:"clean_between_tests"`
	InterrogateFailures  bool    `json:"interrogate_failures"`
	InterrogatePasses    bool    `json:"interrogate_passes"`
	JudgeBackend         string  `json:"judge_backend"`
	JudgeModel           string  `json:"judge_model,omitempty"`
}

// Snapshot returns the portable subset of c. Secrets and the results DSN are excluded.
func (c Config) Snapshot() Snapshot {
	return Snapshot{
		SystemPromptPath:     c.SystemPromptPath,
		TestCasesPath:        c.TestCasesPath,
		MCPConfigPath:        c.MCPConfigPath,
		Runs:                 c.Runs,
		InterRunDelay:        c.InterRunDelay.Seconds(),
		InterTestDelay:       c.InterTestDelay.Seconds(),
		MaxRetries:           c.MaxRetries,
		InitialBackoff:       c.InitialBackoff.Seconds(),
		BackoffMultiplier:    c.BackoffMultiplier,
		AssistantTimeout:     c.AssistantTimeout.Seconds(),
		JudgeTimeout:         c.JudgeTimeout.Seconds(),
		InterrogationTimeout: c.InterrogationTimeout.Seconds(),
		CleanupTimeout:       c.CleanupTimeout.Seconds(),
		Mode:                 c.Mode,
		Suite:                c.Suite,
		Category:             c.Category,
		TestName:             c.TestName,
		CleanBetweenTests:    c.CleanBetweenTests,
		InterrogateFailures:  c.InterrogateFailures,
		InterrogatePasses:    c.InterrogatePasses,
		JudgeBackend:         c.JudgeBackend,
		JudgeModel:           c.JudgeModel,
	}
}
