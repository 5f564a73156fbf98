package minimize

import (
	"context"
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/jihwankim/ceflags/pkg/cache"
	"github.com/jihwankim/ceflags/pkg/flagset"
	"github.com/jihwankim/ceflags/pkg/pool"
	"github.com/jihwankim/ceflags/pkg/workerctx"
)

// scoredCtx scores a command line with an arbitrary pure function, so
// bisection scenarios can be driven without a real compiler.
type scoredCtx struct {
	score func(flags []string) float64
}

func (s *scoredCtx) InitWorkspace(ctx context.Context) error { return nil }
func (s *scoredCtx) AvailableBenchmarkTypes() []string       { return []string{"fake"} }
func (s *scoredCtx) Direction() workerctx.Direction          { return workerctx.Minimize }

func (s *scoredCtx) Compile(ctx context.Context, flags []string) (workerctx.CompileOutcome, error) {
	return workerctx.CompileOutcome{OK: true, Checksum: sha256.Sum256([]byte(strings.Join(flags, "|")))}, nil
}

func (s *scoredCtx) Benchmark(ctx context.Context) (*float64, error) {
	v := s.score(nil)
	return &v, nil
}

// contextualScoredCtx threads the most recently compiled flags through to
// Benchmark, the way a real WorkerContext (compile artifact, then measure
// it) behaves.
type contextualScoredCtx struct {
	score    func(flags []string) float64
	compiled []string
}

func (s *contextualScoredCtx) InitWorkspace(ctx context.Context) error { return nil }
func (s *contextualScoredCtx) AvailableBenchmarkTypes() []string       { return []string{"fake"} }
func (s *contextualScoredCtx) Direction() workerctx.Direction          { return workerctx.Minimize }

func (s *contextualScoredCtx) Compile(ctx context.Context, flags []string) (workerctx.CompileOutcome, error) {
	s.compiled = flags
	return workerctx.CompileOutcome{OK: true, Checksum: sha256.Sum256([]byte(strings.Join(flags, "|")))}, nil
}

func (s *contextualScoredCtx) Benchmark(ctx context.Context) (*float64, error) {
	v := s.score(s.compiled)
	return &v, nil
}

func buildActiveFlagSet(names ...string) *flagset.FlagSet {
	fs := flagset.New("")
	for _, name := range names {
		f := flagset.NewFlag(name, []string{"", "-" + name})
		f.State = 1
		fs.Add(f)
	}
	return fs
}

func has(flags []string, token string) bool {
	for _, f := range flags {
		if f == token {
			return true
		}
	}
	return false
}

func TestMinimizeRequiredFlagsSplitAcrossHalves(t *testing.T) {
	// Five active flags; only B and E are required to reproduce the
	// target score, and they fall on opposite sides of the first
	// bisection split (the odd item goes to the first chunk ->
	// first=[A,B,C], second=[D,E]).
	fs := buildActiveFlagSet("a", "b", "c", "d", "e")
	fc := &contextualScoredCtx{score: func(flags []string) float64 {
		if has(flags, "-b") && has(flags, "-e") {
			return 100
		}
		return 0
	}}

	p := pool.New(1, cache.New())
	if err := p.Start(context.Background(), []workerctx.Context{fc}); err != nil {
		t.Fatalf("pool.Start: %v", err)
	}
	defer p.Shutdown()

	e := New(p, fc, nil)
	e.Tolerance = 0.01

	minimal, err := e.Run(context.Background(), fs, 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, f := range minimal.Flags {
		want := f.Name == "b" || f.Name == "e"
		got := f.State != 0
		if got != want {
			t.Fatalf("flag %d (%s): state!=0 is %v, want %v", i, f.Name, got, want)
		}
	}
}

func TestMinimizeSingleRequiredFlag(t *testing.T) {
	fs := buildActiveFlagSet("a", "b", "c")
	fc := &contextualScoredCtx{score: func(flags []string) float64 {
		if has(flags, "-b") {
			return 42
		}
		return 0
	}}

	p := pool.New(1, cache.New())
	if err := p.Start(context.Background(), []workerctx.Context{fc}); err != nil {
		t.Fatalf("pool.Start: %v", err)
	}
	defer p.Shutdown()

	e := New(p, fc, nil)
	minimal, err := e.Run(context.Background(), fs, 42)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	active := 0
	for _, f := range minimal.Flags {
		if f.State != 0 {
			active++
			if f.Name != "b" {
				t.Fatalf("unexpected flag %q left active", f.Name)
			}
		}
	}
	if active != 1 {
		t.Fatalf("got %d active flags, want 1", active)
	}
}

func TestMinimizeNoActiveFlagsReturnsEmptyClone(t *testing.T) {
	fs := flagset.New("-O2")
	fs.Add(flagset.NewFlag("a", []string{"", "-a"})) // stays at state 0

	fc := &scoredCtx{score: func(flags []string) float64 { return 0 }}
	p := pool.New(1, cache.New())
	if err := p.Start(context.Background(), []workerctx.Context{fc}); err != nil {
		t.Fatalf("pool.Start: %v", err)
	}
	defer p.Shutdown()

	e := New(p, fc, nil)
	minimal, err := e.Run(context.Background(), fs, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if minimal.Flags[0].State != 0 {
		t.Fatal("expected the untouched flag set to come back unchanged")
	}
}

func TestMinimizeUnreproducibleTargetErrors(t *testing.T) {
	fs := buildActiveFlagSet("a")
	fc := &contextualScoredCtx{score: func(flags []string) float64 { return 0 }}

	p := pool.New(1, cache.New())
	if err := p.Start(context.Background(), []workerctx.Context{fc}); err != nil {
		t.Fatalf("pool.Start: %v", err)
	}
	defer p.Shutdown()

	e := New(p, fc, nil)
	if _, err := e.Run(context.Background(), fs, 999); err == nil {
		t.Fatal("expected an error when the full flag set cannot reproduce the target")
	}
}
