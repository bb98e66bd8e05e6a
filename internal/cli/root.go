package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codalotl/agentjudge/internal/agents"
	"github.com/codalotl/agentjudge/internal/config"
	"github.com/codalotl/agentjudge/internal/output"
	"github.com/codalotl/agentjudge/internal/results"
	"github.com/codalotl/agentjudge/internal/types"
)

// ErrTestsFailed is returned by the run command when at least one test failed. The summary has already
// been printed.
var ErrTestsFailed = errors.New("one or more tests failed")

// agentCLI is the agent the commands drive. *agents.Claude implements it.
type agentCLI interface {
	agents.Invoker
	Version(ctx context.Context) (string, error)
}

// store is the results database the commands use. *results.Store implements it.
type store interface {
	CreateRun(ctx context.Context, mode string, runs int, config any) (results.Run, error)
	SaveTestResult(ctx context.Context, runID int64, r types.TestResult) (int64, error)
	FinalizeRun(ctx context.Context, runID int64, suite types.SuiteResults) error
	RunSummary(ctx context.Context, runID int64) (results.Run, error)
	TestResults(ctx context.Context, runID int64) ([]results.StoredResult, error)
	FlakyTests(ctx context.Context, minRuns int, threshold float64) ([]results.FlakyTest, error)
	CategoryStats(ctx context.Context, runID int64) ([]results.CategoryStat, error)
	RecentRuns(ctx context.Context, limit int) ([]results.Run, error)
	ExportRun(ctx context.Context, runID int64, path string) error
	Close(ctx context.Context) error
}

// These function variables allow tests to stub external dependencies.
var (
	newAgent = func(cfg config.Config) (agentCLI, error) {
		var runner agents.CommandRunner
		if cfg.Verbose {
			runner = agents.ExecRunner{Printer: output.NewPrinter(os.Stderr, true)}
		}
		claude, err := agents.NewClaude(cfg.AgentCommand, runner)
		if err != nil {
			return nil, err
		}
		claude.MCPLogPath = cfg.MCPLogPath
		return claude, nil
	}
	openStore = func(ctx context.Context, dsn string) (store, error) {
		s, err := results.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
)

// Execute runs the CLI.
func Execute() error {
	root := newRootCmd(os.Stdout)
	executed, err := root.ExecuteC()
	if err != nil {
		maybePrintUsage(executed, root, err)
	}
	return err
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	root := silenceUsageAndErrors(&cobra.Command{
		Use:   "agentjudge",
		Short: "Evaluate a conversational GTD assistant with an LLM judge.",
	})
	root.SetOut(stdout)
	root.PersistentFlags().String("config", "", "YAML settings file (default ./"+defaultConfigFile+" when present)")
	addConfigFlags(root)

	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newQueryCmd())
	return root
}

func silenceUsageAndErrors(cmd *cobra.Command) *cobra.Command {
	silenceErrors(cmd)
	cmd.SilenceUsage = true
	return cmd
}

func silenceErrors(cmd *cobra.Command) *cobra.Command {
	cmd.SilenceErrors = true
	return cmd
}

func maybePrintUsage(cmd, root *cobra.Command, err error) {
	if err == nil {
		return
	}
	target := cmd
	if target == nil {
		target = root
	}
	if target == nil {
		return
	}
	if shouldShowUsage(err) {
		_ = target.Usage()
	}
}

func shouldShowUsage(err error) bool {
	msg := strings.ToLower(err.Error())
	if strings.HasPrefix(msg, "unknown command") {
		return true
	}
	if strings.HasPrefix(msg, "unknown flag") || strings.HasPrefix(msg, "unknown shorthand flag") {
		return true
	}
	if strings.Contains(msg, "accepts") && strings.Contains(msg, "arg") {
		return true
	}
	if strings.Contains(msg, "requires at least") && strings.Contains(msg, "arg") {
		return true
	}
	if strings.Contains(msg, "requires at most") && strings.Contains(msg, "arg") {
		return true
	}
	if strings.Contains(msg, "required flag") {
		return true
	}
	if strings.Contains(msg, "flag needs an argument") {
		return true
	}
	if strings.HasPrefix(msg, "invalid argument") {
		return true
	}
	return false
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
