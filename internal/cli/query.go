package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/codalotl/agentjudge/internal/report"
)

func newQueryCmd() *cobra.Command {
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "query",
		Short: "Query stored results",
	})
	cmd.PersistentFlags().Bool("json", false, "print JSON instead of tables")
	cmd.AddCommand(newQueryFlakyCmd())
	cmd.AddCommand(newQuerySummaryCmd())
	cmd.AddCommand(newQueryCategoryCmd())
	cmd.AddCommand(newQueryRunsCmd())
	cmd.AddCommand(newQueryExportCmd())
	return cmd
}

// withStore opens the configured results store for fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, db store, asJSON bool) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.ResultsDSN == "" {
		return errors.New("results database not configured: set --results-dsn or AGENTJUDGE_RESULTS_DSN")
	}
	ctx, closeLog := withLogging(cmd.Context(), cfg, cmd.ErrOrStderr())
	defer closeLog()

	db, err := openStore(ctx, cfg.ResultsDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(ctx); err != nil {
			clog.FromContext(ctx).Warnf("Failed to close results database: %v", err)
		}
	}()
	asJSON, _ := cmd.Flags().GetBool("json")
	return fn(ctx, db, asJSON)
}

func newQueryFlakyCmd() *cobra.Command {
	var minRuns int
	var threshold float64
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "flaky",
		Short: "List tests whose pass rate is unstable across runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if threshold < 0 || threshold >= 1 {
				return fmt.Errorf("invalid argument %g for --threshold: must be in [0, 1)", threshold)
			}
			return withStore(cmd, func(ctx context.Context, db store, asJSON bool) error {
				flaky, err := db.FlakyTests(ctx, minRuns, threshold)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), flaky)
				}
				return report.Flaky(cmd.OutOrStdout(), flaky, minRuns)
			})
		},
	})
	cmd.Flags().IntVar(&minRuns, "min-runs", 5, "minimum executions before a test can be flaky")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.3, "instability threshold; flaky means 0 < pass rate < 1-threshold")
	return cmd
}

func newQuerySummaryCmd() *cobra.Command {
	var runID int64
	var asCSV bool
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "summary",
		Short: "Show one run and its results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, db store, asJSON bool) error {
				run, err := db.RunSummary(ctx, runID)
				if err != nil {
					return err
				}
				rs, err := db.TestResults(ctx, runID)
				if err != nil {
					return err
				}
				switch {
				case asCSV:
					return report.WriteResultsCSV(cmd.OutOrStdout(), rs)
				case asJSON:
					return writeJSON(cmd.OutOrStdout(), map[string]any{"run": run, "test_results": rs})
				default:
					return report.RunSummary(cmd.OutOrStdout(), run, rs)
				}
			})
		},
	})
	cmd.Flags().Int64Var(&runID, "run-id", 0, "run to show (required)")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print results as CSV")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}

func newQueryCategoryCmd() *cobra.Command {
	var runID int64
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "category",
		Short: "Show pass rates per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, db store, asJSON bool) error {
				stats, err := db.CategoryStats(ctx, runID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				return report.Categories(cmd.OutOrStdout(), stats, runID)
			})
		},
	})
	cmd.Flags().Int64Var(&runID, "run-id", 0, "restrict to one run (default all runs)")
	return cmd
}

func newQueryRunsCmd() *cobra.Command {
	var limit int
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("invalid argument %d for --limit: must be >= 1", limit)
			}
			return withStore(cmd, func(ctx context.Context, db store, asJSON bool) error {
				runs, err := db.RecentRuns(ctx, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), runs)
				}
				return report.Runs(cmd.OutOrStdout(), runs)
			})
		},
	})
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs")
	return cmd
}

func newQueryExportCmd() *cobra.Command {
	var runID int64
	var path string
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "export",
		Short: "Export one run with all results, verdicts and interrogations as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, db store, asJSON bool) error {
				if err := db.ExportRun(ctx, runID, path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported run %d to %s\n", runID, path)
				return nil
			})
		},
	})
	cmd.Flags().Int64Var(&runID, "run-id", 0, "run to export (required)")
	cmd.Flags().StringVar(&path, "export-json", "", "output file (required)")
	_ = cmd.MarkFlagRequired("run-id")
	_ = cmd.MarkFlagRequired("export-json")
	return cmd
}
