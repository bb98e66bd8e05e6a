package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Set assigns one setting by key. Keys are the command line flag names; underscores are accepted in place
// of dashes. Durations are given in seconds or as Go duration strings.
func (c *Config) Set(key, value string) error {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "_", "-")
	value = strings.TrimSpace(value)

	var err error
	switch key {
	case "root":
		c.Root = value
	case "system-prompt":
		c.SystemPromptPath = value
	case "test-cases":
		c.TestCasesPath = value
	case "mcp-config":
		c.MCPConfigPath = value
	case "mcp-log":
		c.MCPLogPath = value
	case "agent-command":
		c.AgentCommand = value

	case "runs":
		c.Runs, err = strconv.Atoi(value)
	case "inter-run-delay":
		c.InterRunDelay, err = parseSeconds(value)
	case "inter-test-delay":
		c.InterTestDelay, err = parseSeconds(value)
	case "max-retries":
		c.MaxRetries, err = strconv.Atoi(value)
	case "initial-backoff":
		c.InitialBackoff, err = parseSeconds(value)
	case "backoff-multiplier":
		c.BackoffMultiplier, err = strconv.ParseFloat(value, 64)

	case "assistant-timeout":
		c.AssistantTimeout, err = parseSeconds(value)
	case "judge-timeout":
		c.JudgeTimeout, err = parseSeconds(value)
	case "interrogation-timeout":
		c.InterrogationTimeout, err = parseSeconds(value)
	case "cleanup-timeout":
		c.CleanupTimeout, err = parseSeconds(value)

	case "mode":
		c.Mode = strings.ToLower(value)
	case "suite":
		c.Suite = strings.ToLower(value)
	case "category":
		c.Category = value
	case "test-name":
		c.TestName = value
	case "clean-graph-between-tests":
		c.CleanBetweenTests, err = strconv.ParseBool(value)
	case "interrogate-failures":
		c.InterrogateFailures, err = strconv.ParseBool(value)
	case "interrogate-passes":
		c.InterrogatePasses, err = strconv.ParseBool(value)
	case "interrogate-all":
		var all bool
		if all, err = strconv.ParseBool(value); err == nil && all {
			c.InterrogateFailures, c.InterrogatePasses = true, true
		}

	case "judge-backend":
		c.JudgeBackend = strings.ToLower(value)
	case "judge-model":
		c.JudgeModel = value

	case "log-file":
		c.LogFile = value
	case "log-level":
		c.LogLevel = strings.ToUpper(value)
	case "results-dsn":
		c.ResultsDSN = value
	case "interrogation-log":
		c.InterrogationLog = value
	case "print-assistant-on-fail":
		c.PrintAssistantOnFail, err = strconv.ParseBool(value)
	case "verbose":
		c.Verbose, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
	return nil
}

func parseSeconds(value string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(value)
}

// LoadFile applies a flat YAML mapping of settings. Keys are as in Set.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		v := raw[k]
		switch v.(type) {
		case map[string]any, []any:
			errs = append(errs, fmt.Errorf("%s: setting %q must be a scalar", path, k))
			continue
		case nil:
			v = ""
		}
		if err := c.Set(k, fmt.Sprint(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// env is the environment layer. Timeouts are in seconds; zero means unset.
type env struct {
	MCPConfigPath        string  `env:"MCP_CONFIG_PATH"`
	MCPLogPath           string  `env:"MCP_LOG_PATH"`
	AssistantTimeout     float64 `env:"CLAUDE_TIMEOUT_ASSISTANT"`
	JudgeTimeout         float64 `env:"CLAUDE_TIMEOUT_JUDGE"`
	Timeout              float64 `env:"CLAUDE_TIMEOUT"`
	PrintAssistantOnFail string  `env:"PRINT_ASSISTANT_ON_FAIL"`
	ResultsDSN           string  `env:"AGENTJUDGE_RESULTS_DSN"`
	AgentCommand         string  `env:"AGENTJUDGE_CLAUDE_CMD"`
	AnthropicAPIKey      string  `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey         string  `env:"OPENAI_API_KEY"`
}

// ApplyEnv applies the environment layer read through lookuper. A nil lookuper reads the process environment.
func (c *Config) ApplyEnv(ctx context.Context, lookuper envconfig.Lookuper) error {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	var e env
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &e, Lookuper: lookuper}); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	setString(&c.MCPConfigPath, e.MCPConfigPath)
	setString(&c.MCPLogPath, e.MCPLogPath)
	setString(&c.ResultsDSN, e.ResultsDSN)
	setString(&c.AgentCommand, e.AgentCommand)
	setString(&c.AnthropicAPIKey, e.AnthropicAPIKey)
	setString(&c.OpenAIAPIKey, e.OpenAIAPIKey)

	if s := firstPositive(e.AssistantTimeout, e.Timeout); s > 0 {
		c.AssistantTimeout = seconds(s)
	}
	if s := firstPositive(e.JudgeTimeout, e.Timeout); s > 0 {
		c.JudgeTimeout = seconds(s)
	}
	if e.PrintAssistantOnFail != "" {
		c.PrintAssistantOnFail = true
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func firstPositive(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
