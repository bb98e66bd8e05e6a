package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/codalotl/agentjudge/internal/agents"
	"github.com/codalotl/agentjudge/internal/cases"
	"github.com/codalotl/agentjudge/internal/config"
	"github.com/codalotl/agentjudge/internal/conversation"
	"github.com/codalotl/agentjudge/internal/interrogate"
	"github.com/codalotl/agentjudge/internal/judge"
	"github.com/codalotl/agentjudge/internal/output"
	"github.com/codalotl/agentjudge/internal/report"
	"github.com/codalotl/agentjudge/internal/setup"
	"github.com/codalotl/agentjudge/internal/suite"
	"github.com/codalotl/agentjudge/internal/types"
)

func newRunCmd() *cobra.Command {
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "run",
		Short: "Run the test suite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}
			ctx, closeLog := withLogging(cmd.Context(), cfg, cmd.ErrOrStderr())
			defer closeLog()
			return runSuite(ctx, cmd, cfg)
		},
	})
	return cmd
}

func selectCases(cfg config.Config) ([]cases.Case, error) {
	all, err := cases.Load(cfg.TestCasesPath)
	if err != nil {
		return nil, err
	}
	if err := cases.Validate(all); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.TestCasesPath, err)
	}
	f := cases.Filter{Category: cfg.Category, Name: cfg.TestName, Suite: cfg.Suite}
	return f.Apply(all), nil
}

func newJudgeClient(cfg config.Config, agent agents.Invoker) judge.Client {
	switch cfg.JudgeBackend {
	case judge.BackendAnthropic:
		return judge.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.JudgeModel, cfg.JudgeTimeout)
	case judge.BackendOpenAI:
		return judge.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.JudgeModel, cfg.JudgeTimeout)
	default:
		return &judge.CLIClient{Agent: agent, Model: cfg.JudgeModel, MCPConfigPath: cfg.MCPConfigPath, Timeout: cfg.JudgeTimeout}
	}
}

func runSuite(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	log := clog.FromContext(ctx)
	out := cmd.OutOrStdout()
	console := output.NewPrinter(out, false)

	selected, err := selectCases(cfg)
	if err != nil {
		return err
	}
	overlays, err := cfg.OverlayPrompts()
	if err != nil {
		return fmt.Errorf("read prompt overlays: %w", err)
	}
	agent, err := newAgent(cfg)
	if err != nil {
		return err
	}

	base := agents.Request{
		SystemPromptPath: cfg.SystemPromptPath,
		AppendPrompts:    overlays,
		MCPConfigPath:    cfg.MCPConfigPath,
		Timeout:          cfg.AssistantTimeout,
	}
	j := judge.New(newJudgeClient(cfg, agent))
	j.Policy = cfg.JudgePolicy()

	exec := &suite.Executor{
		Agent:  agent,
		Policy: cfg.RetryPolicy(),
		Base:   base,
		Conversations: &conversation.Engine{
			Agent:  agent,
			User:   conversation.LLMUser{Agent: agent},
			Policy: cfg.RetryPolicy(),
			Base:   base,
		},
		Judge: j,
		Interrogator: &interrogate.Interrogator{
			Agent:         agent,
			MCPConfigPath: cfg.MCPConfigPath,
			Timeout:       cfg.InterrogationTimeout,
		},
		ShouldInterrogate: cfg.ShouldInterrogate,
		MCPLogPath:        cfg.MCPLogPath,
	}
	graph := &setup.Graph{Agent: agent, MCPConfigPath: cfg.MCPConfigPath, Timeout: cfg.CleanupTimeout}
	if cfg.LiveMCP() {
		exec.Fixtures = graph
	}

	s := &suite.Suite{
		Runner:         exec,
		Runs:           cfg.Runs,
		InterRunDelay:  cfg.InterRunDelay,
		InterTestDelay: cfg.InterTestDelay,
		Mode:           cfg.Mode,
		Config:         cfg.Snapshot(),
		OnResult: func(r types.TestResult) {
			if !r.Passed {
				_ = report.Failure(console, r, cfg.PrintAssistantOnFail)
			}
			if len(r.Interrogation) == 0 {
				return
			}
			if cfg.Verbose {
				fmt.Fprintf(out, "Interrogation of %s (run %d):%s\n", r.TestName, r.RunNumber, interrogate.Format(r.Interrogation, 500))
			}
			for _, m := range interrogate.UncertaintyMentions(r.Interrogation) {
				log.Info("Assistant reported uncertainty", "test", r.TestName, "run", r.RunNumber, "mention", m)
			}
		},
	}
	if cfg.ShouldCleanGraph() {
		s.Cleaner = graph
	}
	if cfg.ResultsDSN != "" && len(selected) > 0 {
		db, err := openStore(ctx, cfg.ResultsDSN)
		if err != nil {
			log.Warnf("Failed to initialize results database: %v", err)
		} else {
			defer func() {
				if err := db.Close(ctx); err != nil {
					log.Warnf("Failed to close results database: %v", err)
				}
			}()
			s.Recorder = db
		}
	}

	res := s.Run(ctx, selected)

	if err := report.Summary(console, res.Results, cfg.Mode); err != nil {
		return err
	}
	if res.RunID != 0 {
		fmt.Fprintf(out, "\nResults saved: run_id=%d (%s)\n", res.RunID, res.RunKey)
	}
	if cfg.InterrogationLog != "" && res.Results.Interrogations > 0 {
		if err := report.WriteInterrogationLog(cfg.InterrogationLog, res.Results.Results); err != nil {
			log.Warnf("Failed to write interrogation log: %v", err)
		} else {
			fmt.Fprintf(out, "Interrogation log: %s\n", cfg.InterrogationLog)
		}
	}
	if res.Results.Failed > 0 {
		return ErrTestsFailed
	}
	return nil
}

func newListCmd() *cobra.Command {
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "list",
		Short: "List the test cases selected by the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			selected, err := selectCases(cfg)
			if err != nil {
				return err
			}
			return report.List(cmd.OutOrStdout(), selected)
		},
	})
	return cmd
}

func newCheckCmd() *cobra.Command {
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "check",
		Short: "Check the agent CLI and, in real mode, the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, closeLog := withLogging(cmd.Context(), cfg, cmd.ErrOrStderr())
			defer closeLog()
			out := cmd.OutOrStdout()

			agent, err := newAgent(cfg)
			if err != nil {
				return err
			}
			version, err := agent.Version(ctx)
			if err != nil {
				return fmt.Errorf("agent CLI not usable: %w", err)
			}
			fmt.Fprintf(out, "Agent CLI: %s\n", version)
			fmt.Fprintf(out, "Mode: %s\n", cfg.Mode)
			if !cfg.LiveMCP() {
				return nil
			}
			graph := &setup.Graph{Agent: agent, MCPConfigPath: cfg.MCPConfigPath, Timeout: cfg.CleanupTimeout}
			if err := graph.Ping(ctx); err != nil {
				return fmt.Errorf("MCP server not reachable: %w", err)
			}
			fmt.Fprintf(out, "MCP server: ok (%s)\n", strings.TrimSpace(cfg.MCPConfigPath))
			return nil
		},
	})
	return cmd
}
