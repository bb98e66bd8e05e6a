package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/codalotl/agentjudge/internal/results"
)

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{Left: tw.On, Top: tw.Off, Right: tw.On, Bottom: tw.Off},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

func renderRows(t *tablewriter.Table, rows [][]string) error {
	for _, row := range rows {
		if err := t.Append(row); err != nil {
			return err
		}
	}
	return t.Render()
}

// Flaky writes the flaky tests report.
func Flaky(w io.Writer, flaky []results.FlakyTest, minRuns int) error {
	fmt.Fprintf(w, "\n%s\nFLAKY TESTS REPORT (min %d runs)\n%s\n", rule, minRuns, rule)
	if len(flaky) == 0 {
		_, err := io.WriteString(w, "No flaky tests detected!\n")
		return err
	}
	fmt.Fprintf(w, "\nFound %d flaky tests:\n\n", len(flaky))
	rows := make([][]string, 0, len(flaky))
	for _, f := range flaky {
		rows = append(rows, []string{
			f.TestName,
			f.Category,
			fmt.Sprintf("%.1f%%", 100*f.PassRate),
			fmt.Sprintf("%d/%d", f.PassCount, f.TotalRuns),
			fmt.Sprintf("%.1fs", f.AvgDuration),
		})
	}
	return renderRows(newTable(w, "Test", "Category", "Pass rate", "Passed", "Avg duration"), rows)
}

// Categories writes per-category statistics. runID 0 labels the table as covering all runs.
func Categories(w io.Writer, stats []results.CategoryStat, runID int64) error {
	title := "CATEGORY STATISTICS (All Runs)"
	if runID != 0 {
		title = fmt.Sprintf("CATEGORY STATISTICS (Run %d)", runID)
	}
	fmt.Fprintf(w, "\n%s\n%s\n%s\n\n", rule, title, rule)
	rows := make([][]string, 0, len(stats))
	for _, c := range stats {
		rows = append(rows, []string{
			c.Category,
			fmt.Sprintf("%d/%d", c.Passed, c.Total),
			fmt.Sprintf("%.1f%%", 100*c.PassRate),
			fmt.Sprintf("%.1fs", c.AvgDuration),
		})
	}
	return renderRows(newTable(w, "Category", "Passed", "Pass rate", "Avg duration"), rows)
}

// Runs writes the recent runs table.
func Runs(w io.Writer, runs []results.Run) error {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Key,
			r.Timestamp.Local().Format(time.DateTime),
			r.Mode,
			fmt.Sprintf("%d/%d", r.PassedCount, r.TestCount),
			strconv.Itoa(r.RunsCount),
			fmt.Sprintf("%.1fs", r.Duration),
		})
	}
	return renderRows(newTable(w, "Run", "Key", "Started", "Mode", "Passed", "Runs", "Duration"), rows)
}

// RunSummary writes one run's header followed by its results.
func RunSummary(w io.Writer, run results.Run, rs []results.StoredResult) error {
	fmt.Fprintf(w, "\n%s\nRUN %d (%s)\n%s\n", rule, run.ID, run.Key, rule)
	fmt.Fprintf(w, "Started: %s\n", run.Timestamp.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Mode: %s\n", run.Mode)
	fmt.Fprintf(w, "Passed: %d/%d (%.1f%%)\n", run.PassedCount, run.TestCount, percent(run.PassedCount, run.TestCount))
	fmt.Fprintf(w, "Failed: %d\n", run.FailedCount)
	fmt.Fprintf(w, "Duration: %.1fs\n\n", run.Duration)

	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{
			r.TestName,
			r.Category,
			strconv.Itoa(r.RunNumber),
			status,
			strconv.Itoa(r.RetryCount),
			fmt.Sprintf("%.1fs", r.Duration),
			truncate(strings.ReplaceAll(r.Reason, "\n", " "), 60),
		})
	}
	return renderRows(newTable(w, "Test", "Category", "Run", "Result", "Retries", "Duration", "Reason"), rows)
}

// WriteResultsCSV writes stored results as CSV, one row per result.
func WriteResultsCSV(w io.Writer, rs []results.StoredResult) error {
	cw := csv.NewWriter(w)
	header := []string{
		"run_id",
		"test_name",
		"category",
		"run_number",
		"passed",
		"expected_pass",
		"actual_pass",
		"retry_count",
		"duration",
		"reason",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rs {
		record := []string{
			strconv.FormatInt(r.RunID, 10),
			r.TestName,
			r.Category,
			strconv.Itoa(r.RunNumber),
			strconv.FormatBool(r.Passed),
			strconv.FormatBool(r.ExpectedPass),
			strconv.FormatBool(r.ActualPass),
			strconv.Itoa(r.RetryCount),
			formatFloat(r.Duration),
			r.Reason,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	// Nudge so values like 1.005 round up at 2 decimal places.
	rounded := math.Round((v+math.Copysign(1e-9, v))*100) / 100
	if rounded == 0 {
		return "0"
	}
	s := strconv.FormatFloat(rounded, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
