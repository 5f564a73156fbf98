// Package minimize implements MinimizeEngine: a delta-debugging style
// reduction that narrows a reference FlagSet's non-default flags down to
// a 1-minimal subset that still reproduces a target score — no single
// remaining flag can be dropped without losing reproduction.
package minimize

import (
	"context"
	"fmt"

	"github.com/jihwankim/ceflags/pkg/flagset"
	"github.com/jihwankim/ceflags/pkg/pool"
	"github.com/jihwankim/ceflags/pkg/workerctx"
)

// Reporter receives bisection telemetry. A nil Reporter is valid.
type Reporter interface {
	Probe(activeCount int, reproduced bool, score *float64)
}

// Engine runs the reduction against a reference FlagSet and target score.
type Engine struct {
	pool     *pool.Pool
	wc       workerctx.Context
	reporter Reporter

	// Tolerance is the maximum absolute distance from Target that still
	// counts as "reproduced", since benchmark measurements are noisy.
	Tolerance float64
}

// New builds a minimization Engine.
func New(p *pool.Pool, wc workerctx.Context, reporter Reporter) *Engine {
	return &Engine{pool: p, wc: wc, reporter: reporter}
}

// active is a single non-default flag setting carried through reduction.
type active struct {
	flagIdx int
	state   int
}

// Run narrows fs's non-default flags to a 1-minimal subset reproducing
// target within e.Tolerance. The returned FlagSet has every dropped flag
// reset to state 0 (default); fs itself is untouched.
func (e *Engine) Run(ctx context.Context, fs *flagset.FlagSet, target float64) (*flagset.FlagSet, error) {
	var actives []active
	for fi, f := range fs.Flags {
		if f.State != 0 {
			actives = append(actives, active{flagIdx: fi, state: f.State})
		}
	}

	if len(actives) == 0 {
		return fs.Clone(), nil
	}

	reproduced, _, err := e.probe(ctx, fs, actives, target)
	if err != nil {
		return nil, err
	}
	if !reproduced {
		return nil, fmt.Errorf("minimize: full flag set does not reproduce target score %v", target)
	}

	minimal, err := e.reduce(ctx, fs, actives, target)
	if err != nil {
		return nil, err
	}
	return materialize(fs, minimal), nil
}

// reduce is the ddmin loop (Zeller's delta debugging, generalized from
// "reproduces the failure" to "reproduces the target score"): split the
// active set into n chunks, try each chunk alone, then each chunk's
// complement; on any success restart from the smaller set at a coarser
// granularity, otherwise refine the granularity. Unlike a single-level
// two-way split, complement testing lets it find a minimal set even when
// the required flags land in different chunks — it never has to verify
// a sub-chunk against the rest of the world, since "the rest of the
// world" is exactly what a complement probe holds fixed.
func (e *Engine) reduce(ctx context.Context, fs *flagset.FlagSet, actives []active, target float64) ([]active, error) {
	n := 2
	for len(actives) >= 2 {
		chunks := splitChunks(actives, n)

		if reduced, err := e.tryChunks(ctx, fs, chunks, target); err != nil {
			return nil, err
		} else if reduced != nil {
			actives = reduced
			if n > 2 {
				n--
			}
			continue
		}

		if reduced, err := e.tryComplements(ctx, fs, actives, chunks, target); err != nil {
			return nil, err
		} else if reduced != nil {
			actives = reduced
			if n > 2 {
				n--
			}
			continue
		}

		if n >= len(actives) {
			break
		}
		n = minInt(n*2, len(actives))
	}
	return actives, nil
}

func (e *Engine) tryChunks(ctx context.Context, fs *flagset.FlagSet, chunks [][]active, target float64) ([]active, error) {
	for _, chunk := range chunks {
		ok, _, err := e.probe(ctx, fs, chunk, target)
		if err != nil {
			return nil, err
		}
		if ok {
			return chunk, nil
		}
	}
	return nil, nil
}

func (e *Engine) tryComplements(ctx context.Context, fs *flagset.FlagSet, actives []active, chunks [][]active, target float64) ([]active, error) {
	for _, chunk := range chunks {
		complement := subtract(actives, chunk)
		if len(complement) == 0 || len(complement) == len(actives) {
			continue
		}
		ok, _, err := e.probe(ctx, fs, complement, target)
		if err != nil {
			return nil, err
		}
		if ok {
			return complement, nil
		}
	}
	return nil, nil
}

// probe compiles+benchmarks the candidate subset and reports whether the
// resulting score reproduces target within tolerance.
func (e *Engine) probe(ctx context.Context, fs *flagset.FlagSet, subset []active, target float64) (bool, *float64, error) {
	candidate := materialize(fs, subset)
	e.pool.Submit(workerctx.Job{Flags: candidate.CommandLine(), Tag: nil})
	r := <-e.pool.Results()

	reproduced := false
	if r.Score != nil {
		diff := *r.Score - target
		if diff < 0 {
			diff = -diff
		}
		reproduced = diff <= e.Tolerance
	}
	if e.reporter != nil {
		e.reporter.Probe(len(subset), reproduced, r.Score)
	}
	return reproduced, r.Score, nil
}

// materialize builds a clone of fs with every flag reset to state 0
// except those named in subset.
func materialize(fs *flagset.FlagSet, subset []active) *flagset.FlagSet {
	clone := fs.Clone()
	for _, f := range clone.Flags {
		f.State = 0
	}
	for _, a := range subset {
		clone.Flags[a.flagIdx].State = a.state
	}
	return clone
}

// splitChunks partitions actives into n contiguous, near-equal chunks.
// n is clamped to [1, len(actives)].
func splitChunks(actives []active, n int) [][]active {
	if n > len(actives) {
		n = len(actives)
	}
	if n < 1 {
		n = 1
	}

	chunks := make([][]active, 0, n)
	base := len(actives) / n
	rem := len(actives) % n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		chunks = append(chunks, actives[start:start+size])
		start += size
	}
	return chunks
}

func subtract(all, remove []active) []active {
	excluded := make(map[int]struct{}, len(remove))
	for _, a := range remove {
		excluded[a.flagIdx] = struct{}{}
	}
	out := make([]active, 0, len(all)-len(remove))
	for _, a := range all {
		if _, skip := excluded[a.flagIdx]; !skip {
			out = append(out, a)
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
