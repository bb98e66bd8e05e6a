package cli

import (
	"fmt"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/codalotl/agentjudge/internal/config"
	"github.com/codalotl/agentjudge/internal/workspace"
)

const defaultConfigFile = "agentjudge.yaml"

// envLookuper is the environment source. Nil reads the process environment.
var envLookuper envconfig.Lookuper

// configFlags lists the flags that map onto config.Config settings, in registration order.
var configFlags []string

func addConfigFlags(root *cobra.Command) {
	d := config.Default()
	fs := root.PersistentFlags()
	configFlags = configFlags[:0]
	track := func(name string) { configFlags = append(configFlags, name) }

	fs.String("root", "", "project root (default $"+workspace.EnvVarRoot+" or the working directory)")
	track("root")
	fs.String("system-prompt", "", "assistant system prompt (default <root>/src/conversational-layer/system-prompt-full.md)")
	track("system-prompt")
	fs.String("test-cases", "", "test case list, JSON or YAML (default <root>/tests/test_cases_refactored.json)")
	track("test-cases")
	fs.String("mcp-config", "", "MCP server config for real mode (default $MCP_CONFIG_PATH or <root>/tests/mcp-config.json)")
	track("mcp-config")
	fs.String("mcp-log", "", "file the MCP server logs tool calls to")
	track("mcp-log")
	fs.String("agent-command", d.AgentCommand, "agent command line (shell syntax)")
	track("agent-command")

	fs.Int("runs", d.Runs, "number of times to run the suite")
	track("runs")
	fs.Float64("inter-run-delay", d.InterRunDelay.Seconds(), "seconds to wait between runs")
	track("inter-run-delay")
	fs.Float64("inter-test-delay", d.InterTestDelay.Seconds(), "seconds to wait between tests")
	track("inter-test-delay")
	fs.Int("max-retries", d.MaxRetries, "attempts per agent call")
	track("max-retries")
	fs.Float64("initial-backoff", d.InitialBackoff.Seconds(), "seconds to wait after the first failed attempt")
	track("initial-backoff")
	fs.Float64("backoff-multiplier", d.BackoffMultiplier, "backoff growth per failed attempt")
	track("backoff-multiplier")

	fs.Float64("assistant-timeout", d.AssistantTimeout.Seconds(), "seconds per assistant call")
	track("assistant-timeout")
	fs.Float64("judge-timeout", d.JudgeTimeout.Seconds(), "seconds per judge call")
	track("judge-timeout")
	fs.Float64("interrogation-timeout", d.InterrogationTimeout.Seconds(), "seconds per interrogation question")
	track("interrogation-timeout")
	fs.Float64("cleanup-timeout", d.CleanupTimeout.Seconds(), "seconds per graph setup or cleanup")
	track("cleanup-timeout")

	fs.String("mode", d.Mode, "auto, sim or real")
	track("mode")
	fs.String("suite", d.Suite, "all, assistant or judge")
	track("suite")
	fs.String("category", "", "only run this category")
	track("category")
	fs.String("test-name", "", "only run this test")
	track("test-name")
	fs.Bool("clean-graph-between-tests", false, "delete all graph nodes before the suite and between tests (real mode)")
	track("clean-graph-between-tests")
	fs.Bool("interrogate-failures", false, "interrogate the assistant after failed judgments")
	track("interrogate-failures")
	fs.Bool("interrogate-passes", false, "interrogate the assistant after passed judgments")
	track("interrogate-passes")
	fs.Bool("interrogate-all", false, "interrogate after every judgment")
	track("interrogate-all")

	fs.String("judge-backend", d.JudgeBackend, "cli, anthropic or openai")
	track("judge-backend")
	fs.String("judge-model", "", "judge model (backend default when empty)")
	track("judge-model")

	fs.String("log-file", d.LogFile, "log file, empty for stderr only")
	track("log-file")
	fs.String("log-level", d.LogLevel, "DEBUG, INFO, WARN or ERROR")
	track("log-level")
	fs.String("results-dsn", "", "PostgreSQL DSN for the results store ($AGENTJUDGE_RESULTS_DSN)")
	track("results-dsn")
	fs.String("interrogation-log", "", "write interrogation Q&A to this JSON file")
	track("interrogation-log")
	fs.Bool("print-assistant-on-fail", false, "print the assistant response for failed tests")
	track("print-assistant-on-fail")
	fs.BoolP("verbose", "v", false, "echo agent command lines and show full failure details")
	track("verbose")
}

// loadConfig layers defaults, the settings file, the environment and explicitly set flags, then resolves
// paths and mode.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	fs := cmd.Flags()

	path, _ := fs.GetString("config")
	switch {
	case path != "":
		if err := cfg.LoadFile(path); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	case workspace.Exists(defaultConfigFile):
		if err := cfg.LoadFile(defaultConfigFile); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(cmd.Context(), envLookuper); err != nil {
		return cfg, err
	}

	for _, name := range configFlags {
		if !fs.Changed(name) {
			continue
		}
		if err := cfg.Set(name, fs.Lookup(name).Value.String()); err != nil {
			return cfg, err
		}
	}
	cfg.Resolve()
	return cfg, nil
}
