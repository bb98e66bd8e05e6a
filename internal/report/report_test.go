package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codalotl/agentjudge/internal/cases"
	"github.com/codalotl/agentjudge/internal/output"
	"github.com/codalotl/agentjudge/internal/results"
	"github.com/codalotl/agentjudge/internal/types"
)

func TestSummaryCapsFailures(t *testing.T) {
	var s types.SuiteResults
	for i := 0; i < 25; i++ {
		s.Add(types.TestResult{TestName: fmt.Sprintf("t%02d", i), Category: "Capture", RunNumber: 1, Reason: strings.Repeat("x", 150)})
	}
	s.Add(types.TestResult{TestName: "ok", Category: "Update", RunNumber: 1, Passed: true, Interrogation: []types.QAPair{{Question: "q"}}})
	s.DurationSeconds = 12.34

	var buf bytes.Buffer
	require.NoError(t, Summary(output.NewPrinter(&buf, false), s, "sim"))
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "\n"+rule+"\nTEST SUITE SUMMARY\n"+rule+"\nMode: sim\n"), out)
	require.Contains(t, out, "Total tests: 26\n")
	require.Contains(t, out, "Passed: 1 (3.8%)\n")
	require.Contains(t, out, "Failed: 25\n")
	require.Contains(t, out, "Duration: 12.3s\n")
	require.Contains(t, out, "Interrogations: 1\n")
	require.Contains(t, out, "  Capture: 0/25 (0.0%)\n  Update: 1/1 (100.0%)\n")
	require.Contains(t, out, "  - t19 (run 1): "+strings.Repeat("x", 100)+"\n")
	require.NotContains(t, out, "t20 (run 1)")
	require.Contains(t, out, "  ... and 5 more\n")
}

func TestSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summary(output.NewPrinter(&buf, false), types.SuiteResults{}, "real"))
	require.Contains(t, buf.String(), "Passed: 0 (0.0%)")
	require.NotContains(t, buf.String(), "Failed Tests")
	require.NotContains(t, buf.String(), "Interrogations")
}

func TestFailure(t *testing.T) {
	r := types.TestResult{TestName: "a", RunNumber: 2, Reason: "Judge FAIL", AssistantResponse: " Done \n"}

	var buf bytes.Buffer
	require.NoError(t, Failure(output.NewPrinter(&buf, false), r, false))
	require.Equal(t, "FAIL a (run 2): Judge FAIL\n", buf.String())

	buf.Reset()
	require.NoError(t, Failure(output.NewPrinter(&buf, false), r, true))
	require.Equal(t, "FAIL a (run 2): Judge FAIL\n--- assistant response ---\nDone\n--- end ---\n", buf.String())
}

func TestList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, List(&buf, []cases.Case{{Name: "a", Category: "Capture"}, {Name: "b", Category: "Update"}}))
	require.Equal(t, "a (Capture)\nb (Update)\n", buf.String())
}

func TestWriteInterrogationLog(t *testing.T) {
	rs := []types.TestResult{
		{TestName: "a", RunNumber: 1},
		{TestName: "b", Category: "Capture", RunNumber: 1, Interrogation: []types.QAPair{{Question: "q", Answer: "a"}}},
	}
	path := filepath.Join(t.TempDir(), "interrogation.json")
	require.NoError(t, WriteInterrogationLog(path, rs))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []InterrogationEntry
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].TestName)
	require.Equal(t, "a", got[0].Interrogation[0].Answer)

	require.NotNil(t, InterrogationLog(nil))
}

func TestFlakyReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Flaky(&buf, nil, 5))
	require.Contains(t, buf.String(), "FLAKY TESTS REPORT (min 5 runs)")
	require.Contains(t, buf.String(), "No flaky tests detected!")

	buf.Reset()
	require.NoError(t, Flaky(&buf, []results.FlakyTest{{TestName: "capture_simple", Category: "Capture", TotalRuns: 4, PassCount: 2, PassRate: 0.5, AvgDuration: 3}}, 3))
	require.Contains(t, buf.String(), "Found 1 flaky tests")
	require.Contains(t, buf.String(), "capture_simple")
	require.Contains(t, buf.String(), "50.0%")
	require.Contains(t, buf.String(), "2/4")
}

func TestCategoriesAndRuns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Categories(&buf, []results.CategoryStat{{Category: "Capture", Total: 4, Passed: 3, PassRate: 0.75}}, 0))
	require.Contains(t, buf.String(), "CATEGORY STATISTICS (All Runs)")
	require.Contains(t, buf.String(), "75.0%")

	buf.Reset()
	require.NoError(t, Categories(&buf, nil, 7))
	require.Contains(t, buf.String(), "CATEGORY STATISTICS (Run 7)")

	buf.Reset()
	require.NoError(t, Runs(&buf, []results.Run{{ID: 3, Key: "01JKEY", Timestamp: time.Now(), Mode: "real", TestCount: 5, PassedCount: 4, RunsCount: 1}}))
	require.Contains(t, buf.String(), "01JKEY")
	require.Contains(t, buf.String(), "4/5")
}

func TestWriteResultsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResultsCSV(&buf, []results.StoredResult{
		{RunID: 1, TestName: "a", Category: "Capture", RunNumber: 1, Passed: true, ActualPass: true, ExpectedPass: true, Duration: 1.005, Reason: "ok, done"},
	}))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "test_name", records[0][1])
	require.Equal(t, []string{"1", "a", "Capture", "1", "true", "true", "true", "0", "1.01", "ok, done"}, records[1])
}

func TestFormatFloat(t *testing.T) {
	tests := map[float64]string{0: "0", 1.5: "1.5", 2: "2", 1.005: "1.01", -0.001: "0"}
	for in, want := range tests {
		require.Equal(t, want, formatFloat(in), "input %v", in)
	}
}
