// Package pool implements the BuildBenchmarkPool: a fixed-size group of
// workers, each owning an exclusive scratch directory, that consume
// (flags, tag) jobs and emit (job, score-or-failure) results.
//
// Workers are goroutines, not separate OS processes — the process-level
// isolation the spec cares about (crash/timeout containment of the
// compiler and benchmark children) is achieved at the os/exec boundary
// inside a WorkerContext implementation, per the design-note resolution
// recorded in SPEC_FULL.md. A worker goroutine blocking or panicking inside a
// WorkerContext is still a bug; what the pool isolates is subprocess
// failure, exactly as spec.md §5's design note asks for.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jihwankim/ceflags/pkg/cache"
	"github.com/jihwankim/ceflags/pkg/workerctx"
)

// Pool is a fixed-size BuildBenchmarkPool.
type Pool struct {
	n       int
	cache   *cache.Cache
	jobs    chan workerctx.Job
	results chan workerctx.Result
	wg      sync.WaitGroup

	// onResult is invoked (from the worker goroutine) whenever a result is
	// produced — the hook the /metrics exporter attaches to. benchmarkTime
	// is zero for cache hits and compile failures, since no benchmark ran.
	onResult func(result workerctx.Result, cacheHit bool, benchmarkTime time.Duration)
}

// New creates an n-worker Pool sharing cache c. Start launches the workers
// once their WorkerContexts are constructed.
func New(n int, c *cache.Cache) *Pool {
	return &Pool{
		n:       n,
		cache:   c,
		jobs:    make(chan workerctx.Job, n),
		results: make(chan workerctx.Result, n),
	}
}

// OnResult registers a callback invoked (from the worker goroutine, so it
// must be safe to call concurrently) whenever a result is produced. Used
// by the metrics exporter; optional.
func (p *Pool) OnResult(f func(result workerctx.Result, cacheHit bool, benchmarkTime time.Duration)) {
	p.onResult = f
}

type cacheHit = bool

// Start initializes every worker's WorkerContext concurrently (spec.md
// §4.2) and, once all succeed, launches the worker goroutines. ctxs must
// have length n, one already-constructed WorkerContext per worker.
func (p *Pool) Start(ctx context.Context, ctxs []workerctx.Context) error {
	initErrs := make([]error, len(ctxs))
	var initWG sync.WaitGroup
	for i, wc := range ctxs {
		initWG.Add(1)
		go func(i int, wc workerctx.Context) {
			defer initWG.Done()
			initErrs[i] = wc.InitWorkspace(ctx)
		}(i, wc)
	}
	initWG.Wait()
	for i, err := range initErrs {
		if err != nil {
			return &InitError{WorkerIndex: i, Err: err}
		}
	}

	for i, wc := range ctxs {
		p.wg.Add(1)
		go p.runWorker(ctx, i, wc)
	}
	return nil
}

// runWorker is the per-worker event loop from spec.md §4.4.
func (p *Pool) runWorker(ctx context.Context, idx int, wc workerctx.Context) {
	defer p.wg.Done()
	for job := range p.jobs {
		if job.Flags == nil && job.Tag == nil {
			// Sentinel: zero-value Job with neither flags nor tag closes
			// this worker down.
			return
		}

		outcome, err := wc.Compile(ctx, job.Flags)
		if err != nil || !outcome.OK {
			p.emit(workerctx.Result{Job: job, Score: nil}, false, 0)
			continue
		}

		key := outcome.ChecksumHex()
		if cached, ok := p.cache.Get(key); ok {
			p.emit(workerctx.Result{Job: job, Score: &cached}, true, 0)
			continue
		}

		start := time.Now()
		score, err := wc.Benchmark(ctx)
		elapsed := time.Since(start)
		if err != nil || score == nil {
			p.emit(workerctx.Result{Job: job, Score: nil}, false, elapsed)
			continue
		}
		p.cache.Put(key, *score)
		p.emit(workerctx.Result{Job: job, Score: score}, false, elapsed)
	}
}

func (p *Pool) emit(r workerctx.Result, hit bool, benchmarkTime time.Duration) {
	if p.onResult != nil {
		p.onResult(r, hit, benchmarkTime)
	}
	p.results <- r
}

// Submit enqueues a job. Blocks if the internal buffer is full.
func (p *Pool) Submit(j workerctx.Job) {
	p.jobs <- j
}

// Results returns the channel results are emitted on.
func (p *Pool) Results() <-chan workerctx.Result {
	return p.results
}

// Shutdown pushes n sentinel jobs (one per worker) and waits for every
// worker to exit.
func (p *Pool) Shutdown() {
	for i := 0; i < p.n; i++ {
		p.jobs <- workerctx.Job{}
	}
	p.wg.Wait()
	close(p.jobs)
	close(p.results)
}

// InitError is returned by Start when a worker's InitWorkspace call
// fails — a fatal, process-exiting condition per spec.md §7.
type InitError struct {
	WorkerIndex int
	Err         error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("pool: worker %d failed to init workspace: %v", e.WorkerIndex, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
