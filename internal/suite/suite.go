package suite

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/oklog/ulid/v2"

	"github.com/codalotl/agentjudge/internal/cases"
	"github.com/codalotl/agentjudge/internal/results"
	"github.com/codalotl/agentjudge/internal/types"
)

// Runner executes a single case. *Executor implements it.
type Runner interface {
	Execute(ctx context.Context, c cases.Case, runNumber int) types.TestResult
}

// Recorder persists a suite as it executes. *results.Store implements it.
type Recorder interface {
	CreateRun(ctx context.Context, mode string, runs int, config any) (results.Run, error)
	SaveTestResult(ctx context.Context, runID int64, r types.TestResult) (int64, error)
	FinalizeRun(ctx context.Context, runID int64, suite types.SuiteResults) error
}

// sleep waits d or until ctx is done. Tests replace it.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Suite repeats a case list Runs times.
type Suite struct {
	Runner Runner
	// Recorder is optional. A failure to create the run disables it for the rest of the suite.
	Recorder Recorder
	// Cleaner wipes graph state before the suite and between tests when set.
	Cleaner Fixtures

	Runs           int
	InterRunDelay  time.Duration
	InterTestDelay time.Duration

	// Mode and Config are stored on the run record.
	Mode   string
	Config any

	// OnResult is called after each test, in order.
	OnResult func(types.TestResult)
}

// Outcome is a completed suite with the identity of its run record.
type Outcome struct {
	Results types.SuiteResults
	// RunID is 0 when nothing was recorded.
	RunID  int64
	RunKey string
}

// Run executes cs. An empty case list yields an empty result without creating a run.
func (s *Suite) Run(ctx context.Context, cs []cases.Case) Outcome {
	log := clog.FromContext(ctx)
	started := time.Now()
	runs := max(s.Runs, 1)

	log.Infof("Starting test suite in %s mode", s.Mode)
	log.Infof("Runs: %d, Inter-run delay: %s", runs, s.InterRunDelay)

	var out Outcome
	out.Results.Results = []types.TestResult{}
	if len(cs) == 0 {
		log.Warn("No test cases matched filters")
		return out
	}
	log.Infof("Selected %d test cases", len(cs))

	rec := s.Recorder
	if rec != nil {
		run, err := rec.CreateRun(ctx, s.Mode, runs, s.Config)
		if err != nil {
			log.Warnf("Failed to initialize results database: %v", err)
			rec = nil
		} else {
			out.RunID, out.RunKey = run.ID, run.Key
		}
	}
	if out.RunKey == "" {
		out.RunKey = ulid.Make().String()
	}
	log = log.With("run_key", out.RunKey)
	ctx = clog.WithLogger(ctx, log)

	if s.Cleaner != nil {
		log.Info("Performing initial graph cleanup")
		if err := s.Cleaner.Clean(ctx); err != nil {
			log.Warnf("Initial graph cleanup failed, continuing anyway: %v", err)
		}
	}

	for runNum := 1; runNum <= runs; runNum++ {
		if runs > 1 {
			log.Infof("=== Run %d/%d ===", runNum, runs)
		}
		for i, c := range cs {
			log.Info("Starting test", "test", c.Name, "run", runNum, "of", runs)
			r := s.execute(ctx, c, runNum)
			out.Results.Add(r)

			if rec != nil {
				if _, err := rec.SaveTestResult(ctx, out.RunID, r); err != nil {
					log.Warnf("Failed to save test result to DB: %v", err)
				}
			}
			if r.Passed {
				log.Info("PASS", "test", r.TestName, "duration", r.DurationSeconds)
			} else {
				log.Warn("FAIL", "test", r.TestName, "reason", r.Reason, "duration", r.DurationSeconds)
			}
			if s.OnResult != nil {
				s.OnResult(r)
			}

			last := i == len(cs)-1
			if !last && s.InterTestDelay > 0 {
				if err := sleep(ctx, s.InterTestDelay); err != nil {
					log.Warnf("Inter-test delay interrupted: %v", err)
				}
			}
			if !last && s.Cleaner != nil {
				log.Debug("Cleaning graph before next test")
				if err := s.Cleaner.Clean(ctx); err != nil {
					log.Warnf("Graph cleanup failed between tests: %v", err)
				}
			}
		}
		if runNum < runs {
			log.Infof("Run %d complete, waiting %s...", runNum, s.InterRunDelay)
			if err := sleep(ctx, s.InterRunDelay); err != nil {
				log.Warnf("Inter-run delay interrupted: %v", err)
			}
		}
	}

	out.Results.DurationSeconds = time.Since(started).Seconds()
	if rec != nil {
		if err := rec.FinalizeRun(ctx, out.RunID, out.Results); err != nil {
			log.Warnf("Failed to update run counts: %v", err)
		}
	}
	log.Infof("Test suite complete: %d/%d passed", out.Results.Passed, out.Results.Total)
	log.Infof("Total duration: %.1fs", out.Results.DurationSeconds)
	return out
}

// execute runs one case. A panic becomes a failed result so the remaining cases still run.
func (s *Suite) execute(ctx context.Context, c cases.Case, runNum int) (r types.TestResult) {
	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			clog.FromContext(ctx).Error("Test panicked", "test", c.Name, "run", runNum, "panic", p)
			r = types.TestResult{
				TestName:        c.Name,
				Category:        c.Category,
				RunNumber:       runNum,
				ExpectedPass:    c.ExpectsPass(),
				Reason:          fmt.Sprintf("Unexpected error: %v", p),
				DurationSeconds: time.Since(started).Seconds(),
			}
		}
	}()
	return s.Runner.Execute(ctx, c, runNum)
}
