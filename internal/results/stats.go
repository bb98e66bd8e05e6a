package results

import "context"

// FlakyTest is the pass history of one (test, category) pair.
type FlakyTest struct {
	TestName    string  `json:"test_name"`
	Category    string  `json:"category"`
	TotalRuns   int     `json:"total_runs"`
	PassCount   int     `json:"pass_count"`
	FailCount   int     `json:"fail_count"`
	PassRate    float64 `json:"pass_rate"`
	AvgDuration float64 `json:"avg_duration"`
}

// IsFlaky reports whether a history of total executions with passed passes is flaky: at least minRuns
// executions and a pass rate strictly between 0 and 1-threshold.
func IsFlaky(total, passed, minRuns int, threshold float64) bool {
	if total <= 0 || total < minRuns {
		return false
	}
	rate := float64(passed) / float64(total)
	return rate > 0 && rate < 1-threshold
}

// FlakyTests returns the flaky tests across all runs, least stable first.
func (s *Store) FlakyTests(ctx context.Context, minRuns int, threshold float64) ([]FlakyTest, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT test_name, category, COUNT(*)::int, COUNT(*) FILTER (WHERE passed)::int, AVG(duration)
		   FROM test_results
		  GROUP BY test_name, category
		  ORDER BY COUNT(*) FILTER (WHERE passed)::float8 / COUNT(*), test_name, category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []FlakyTest{}
	for rows.Next() {
		var f FlakyTest
		if err := rows.Scan(&f.TestName, &f.Category, &f.TotalRuns, &f.PassCount, &f.AvgDuration); err != nil {
			return nil, err
		}
		if !IsFlaky(f.TotalRuns, f.PassCount, minRuns, threshold) {
			continue
		}
		f.FailCount = f.TotalRuns - f.PassCount
		f.PassRate = float64(f.PassCount) / float64(f.TotalRuns)
		out = append(out, f)
	}
	return out, rows.Err()
}

// CategoryStat aggregates results of one category.
type CategoryStat struct {
	Category    string  `json:"category"`
	Total       int     `json:"total"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	PassRate    float64 `json:"pass_rate"`
	AvgDuration float64 `json:"avg_duration"`
}

// CategoryStats aggregates by category. runID 0 covers every run.
func (s *Store) CategoryStats(ctx context.Context, runID int64) ([]CategoryStat, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT category, COUNT(*)::int, COUNT(*) FILTER (WHERE passed)::int, AVG(duration)
		   FROM test_results
		  WHERE $1::bigint = 0 OR run_id = $1
		  GROUP BY category
		  ORDER BY category`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CategoryStat{}
	for rows.Next() {
		var c CategoryStat
		if err := rows.Scan(&c.Category, &c.Total, &c.Passed, &c.AvgDuration); err != nil {
			return nil, err
		}
		c.Failed = c.Total - c.Passed
		if c.Total > 0 {
			c.PassRate = float64(c.Passed) / float64(c.Total)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
