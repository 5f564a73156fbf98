// Package ceengine implements the Combined Elimination driver: baseline
// measurement, per-flag fan-out, promotion of the single best improving
// change, optional pessimization of regressors, and termination.
package ceengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/jihwankim/ceflags/pkg/flagset"
	"github.com/jihwankim/ceflags/pkg/pool"
	"github.com/jihwankim/ceflags/pkg/workerctx"
)

// Reporter receives per-iteration telemetry. All methods are called from
// the engine's single goroutine. Implementations are cmd/ceflags's
// runReporter (which writes the pkg/rundir artifacts) and pkg/reporting's
// ProgressReporter; a nil Reporter is valid (no telemetry).
type Reporter interface {
	IterationStart(iteration int, fs *flagset.FlagSet)
	Baseline(iteration int, score float64)
	Perturbation(iteration int, tag workerctx.PerturbationTag, score float64)
	Promotion(iteration int, tag workerctx.PerturbationTag, score float64)
	Pessimized(iteration int, tag workerctx.PerturbationTag, score float64)
	IterationEnd(iteration int, promoted bool)
}

// Options configures a run of the CE loop.
type Options struct {
	// DropPessimizingFlags excludes every perturbation that did not beat
	// the baseline (a "regressor") after each iteration's promotion,
	// pruning the search space. This corrects the inverted
	// `score < baseline` reading found in some source variants — see
	// DESIGN.md, Open Question 1.
	DropPessimizingFlags bool

	// MaxIterations bounds the loop as a safety net; 0 means unbounded
	// (the loop still always terminates per spec.md §8 invariant 5).
	MaxIterations int

	// ShouldStop is polled between iterations (not within one) so an
	// operator can request a graceful stop without violating "the driver
	// has no cancel protocol" for jobs already submitted.
	ShouldStop func() bool
}

// Engine runs the CE loop against a single FlagSet, mutating it in place.
type Engine struct {
	fs       *flagset.FlagSet
	pool     *pool.Pool
	wc       workerctx.Context
	opts     Options
	reporter Reporter
}

// New builds an Engine. wc is used only to read Direction/WorstSortable;
// actual compile/benchmark work happens inside pool's workers.
func New(fs *flagset.FlagSet, p *pool.Pool, wc workerctx.Context, opts Options, reporter Reporter) *Engine {
	return &Engine{fs: fs, pool: p, wc: wc, opts: opts, reporter: reporter}
}

// Outcome is the terminal state of a Run.
type Outcome struct {
	Iterations  int
	FinalScore  float64
	TerminateOn string // "no-perturbations" | "local-optimum" | "max-iterations" | "stopped"
}

// Run executes the CE loop until termination. Per spec.md §4.6 step 1, a
// baseline compile/benchmark failure on the very first iteration is fatal.
func (e *Engine) Run(ctx context.Context) (*Outcome, error) {
	iteration := 0
	var lastBaseline float64

	for {
		iteration++
		if e.reporter != nil {
			e.reporter.IterationStart(iteration, e.fs)
		}

		if e.opts.MaxIterations > 0 && iteration > e.opts.MaxIterations {
			return &Outcome{Iterations: iteration - 1, FinalScore: lastBaseline, TerminateOn: "max-iterations"}, nil
		}

		baseline, err := e.measureBaseline(ctx)
		if err != nil {
			return nil, fmt.Errorf("ceengine: iteration %d: baseline measurement failed: %w", iteration, err)
		}
		lastBaseline = baseline
		if e.reporter != nil {
			e.reporter.Baseline(iteration, baseline)
		}

		perturbations := e.fanOutTargets()
		if len(perturbations) == 0 {
			// Termination A: no flag has any alternative left.
			if e.reporter != nil {
				e.reporter.IterationEnd(iteration, false)
			}
			return &Outcome{Iterations: iteration, FinalScore: baseline, TerminateOn: "no-perturbations"}, nil
		}

		results := e.runFanOut(ctx, iteration, perturbations)
		sortResults(results, e.wc.Direction())

		best := results[0]
		if !e.wc.Direction().Beats(best.score, baseline) {
			// Termination B: baseline is a local optimum.
			if e.reporter != nil {
				e.reporter.IterationEnd(iteration, false)
			}
			return &Outcome{Iterations: iteration, FinalScore: baseline, TerminateOn: "local-optimum"}, nil
		}

		// Promotion: move the single best-improving flag, excluding its
		// prior state only (never the promoted state's siblings — Open
		// Question 2).
		prior := e.fs.Flags[best.tag.FlagIndex].State
		e.fs.Flags[best.tag.FlagIndex].State = best.tag.CandidateState
		e.fs.Flags[best.tag.FlagIndex].Exclude(prior)
		if e.reporter != nil {
			e.reporter.Promotion(iteration, best.tag, best.score)
		}

		if e.opts.DropPessimizingFlags {
			for _, r := range results {
				if r.tag == best.tag {
					continue
				}
				if !e.wc.Direction().Beats(r.score, baseline) {
					e.fs.Flags[r.tag.FlagIndex].Exclude(r.tag.CandidateState)
					if e.reporter != nil {
						e.reporter.Pessimized(iteration, r.tag, r.score)
					}
				}
			}
		}

		if e.reporter != nil {
			e.reporter.IterationEnd(iteration, true)
		}

		if e.opts.ShouldStop != nil && e.opts.ShouldStop() {
			return &Outcome{Iterations: iteration, FinalScore: best.score, TerminateOn: "stopped"}, nil
		}
	}
}

func (e *Engine) measureBaseline(ctx context.Context) (float64, error) {
	e.pool.Submit(workerctx.Job{Flags: e.fs.CommandLine(), Tag: nil})
	r := <-e.pool.Results()
	if r.Score == nil {
		return 0, fmt.Errorf("baseline did not produce a score")
	}
	return *r.Score, nil
}

// fanOutTargets enumerates every (flag_idx, candidate_state) pair across
// every flag's OtherStates(), per spec.md §4.6 step 2.
func (e *Engine) fanOutTargets() []workerctx.PerturbationTag {
	var out []workerctx.PerturbationTag
	for fi, f := range e.fs.Flags {
		for _, st := range f.OtherStates() {
			out = append(out, workerctx.PerturbationTag{FlagIndex: fi, CandidateState: st})
		}
	}
	return out
}

type scoredTag struct {
	tag   workerctx.PerturbationTag
	score float64
}

func (e *Engine) runFanOut(ctx context.Context, iteration int, tags []workerctx.PerturbationTag) []scoredTag {
	for _, tag := range tags {
		perturbed := e.fs.WithPerturbation(tag.FlagIndex, tag.CandidateState)
		t := tag
		e.pool.Submit(workerctx.Job{Flags: perturbed.CommandLine(), Tag: &t})
	}

	worst := e.wc.Direction().WorstSortable()
	out := make([]scoredTag, 0, len(tags))
	for range tags {
		r := <-e.pool.Results()
		score := worst
		if r.Score != nil {
			score = *r.Score
		}
		out = append(out, scoredTag{tag: *r.Job.Tag, score: score})
		if e.reporter != nil {
			e.reporter.Perturbation(iteration, *r.Job.Tag, score)
		}
	}
	return out
}

// sortResults orders by score in the improving direction, then by
// (FlagIndex, CandidateState) to make the best-pair tie-break
// deterministic per spec.md §4.6.
func sortResults(results []scoredTag, dir workerctx.Direction) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			if dir == workerctx.Maximize {
				return results[i].score > results[j].score
			}
			return results[i].score < results[j].score
		}
		if results[i].tag.FlagIndex != results[j].tag.FlagIndex {
			return results[i].tag.FlagIndex < results[j].tag.FlagIndex
		}
		return results[i].tag.CandidateState < results[j].tag.CandidateState
	})
}
