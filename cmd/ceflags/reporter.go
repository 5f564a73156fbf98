package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jihwankim/ceflags/pkg/ceengine"
	"github.com/jihwankim/ceflags/pkg/flagset"
	"github.com/jihwankim/ceflags/pkg/reporting"
	"github.com/jihwankim/ceflags/pkg/rundir"
	"github.com/jihwankim/ceflags/pkg/workerctx"
)

// runReporter satisfies ceengine.Reporter by fanning telemetry out to the
// run directory's on-disk artifacts, the console progress reporter, and
// (optionally) the Prometheus gauges — and accumulates enough state along
// the way to build the terminal RunReport once the engine returns.
type runReporter struct {
	run       *rundir.RunDir
	progress  *reporting.ProgressReporter
	metrics   *reporting.Metrics
	direction workerctx.Direction

	mu         sync.Mutex
	fs         *flagset.FlagSet
	iteration  int
	baseline   float64
	ranked     []rundir.RankedVariation
	promotions []reporting.PromotionRecord
	startTime  time.Time
}

var _ ceengine.Reporter = (*runReporter)(nil)

func newRunReporter(run *rundir.RunDir, progress *reporting.ProgressReporter, metrics *reporting.Metrics, direction workerctx.Direction) *runReporter {
	return &runReporter{run: run, progress: progress, metrics: metrics, direction: direction, startTime: time.Now()}
}

func (r *runReporter) IterationStart(iteration int, fs *flagset.FlagSet) {
	r.mu.Lock()
	r.iteration = iteration
	r.fs = fs
	r.ranked = nil
	r.mu.Unlock()

	r.progress.IterationStart(iteration, fs)
	_ = r.run.Log(fmt.Sprintf("iteration %d start", iteration))
}

func (r *runReporter) Baseline(iteration int, score float64) {
	r.mu.Lock()
	r.baseline = score
	r.mu.Unlock()

	r.progress.Baseline(iteration, score)
	if r.metrics != nil {
		r.metrics.SetBaseline(score)
		r.metrics.SetIteration(iteration)
	}
	_ = r.run.AppendLeaderboard(r.fs.CommandLine(), score)
}

func (r *runReporter) Perturbation(iteration int, tag workerctx.PerturbationTag, score float64) {
	r.mu.Lock()
	r.ranked = append(r.ranked, rundir.RankedVariation{FlagIndex: tag.FlagIndex, CandidateState: tag.CandidateState, Score: score})
	r.mu.Unlock()

	r.progress.Perturbation(iteration, tag, score)
}

func (r *runReporter) Promotion(iteration int, tag workerctx.PerturbationTag, score float64) {
	r.mu.Lock()
	baseline := r.baseline
	name := ""
	if r.fs != nil && tag.FlagIndex < r.fs.FlagCount() {
		name = r.fs.FlagAt(tag.FlagIndex).Name
	}
	r.promotions = append(r.promotions, reporting.PromotionRecord{
		Iteration: iteration,
		FlagName:  name,
		FlagIndex: tag.FlagIndex,
		State:     tag.CandidateState,
		Score:     score,
		Baseline:  baseline,
	})
	r.mu.Unlock()

	r.progress.Promotion(iteration, tag, score)
}

func (r *runReporter) Pessimized(iteration int, tag workerctx.PerturbationTag, score float64) {
	r.progress.Pessimized(iteration, tag, score)
}

func (r *runReporter) IterationEnd(iteration int, promoted bool) {
	r.mu.Lock()
	fs := r.fs
	baseline := r.baseline
	ranked := make([]rundir.RankedVariation, len(r.ranked))
	copy(ranked, r.ranked)
	r.mu.Unlock()

	sortRanked(ranked, r.direction)

	if fs != nil {
		_ = r.run.WriteIteration(iteration, fs, baseline, ranked)
	}
	r.progress.IterationEnd(iteration, promoted)
}

// sortRanked orders ranked the same way ceengine's internal fan-out sort
// does (best-to-worst, then FlagIndex, then CandidateState), since
// Perturbation callbacks arrive in pool-completion order, not score order.
func sortRanked(ranked []rundir.RankedVariation, dir workerctx.Direction) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			if dir == workerctx.Maximize {
				return ranked[i].Score > ranked[j].Score
			}
			return ranked[i].Score < ranked[j].Score
		}
		if ranked[i].FlagIndex != ranked[j].FlagIndex {
			return ranked[i].FlagIndex < ranked[j].FlagIndex
		}
		return ranked[i].CandidateState < ranked[j].CandidateState
	})
}

func (r *runReporter) buildReport(outcome *ceengine.Outcome) *reporting.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &reporting.RunReport{
		RunID:         filepath.Base(r.run.Root()),
		Context:       "ceflags run",
		StartTime:     r.startTime,
		EndTime:       time.Now(),
		Duration:      time.Since(r.startTime).String(),
		Status:        reporting.StatusCompleted,
		TerminateOn:   outcome.TerminateOn,
		Iterations:    outcome.Iterations,
		FinalScore:    outcome.FinalScore,
		BaselineScore: r.baseline,
		Promotions:    r.promotions,
	}
}
