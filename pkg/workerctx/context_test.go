package workerctx

import (
	"context"
	"math"
	"testing"
)

func TestMinimizeWorstSortableIsPositiveInfinity(t *testing.T) {
	if got := Minimize.WorstSortable(); !math.IsInf(got, 1) {
		t.Fatalf("got %v, want +Inf", got)
	}
}

func TestMaximizeWorstSortableIsNegativeInfinity(t *testing.T) {
	if got := Maximize.WorstSortable(); !math.IsInf(got, -1) {
		t.Fatalf("got %v, want -Inf", got)
	}
}

func TestMinimizeBeatsLowerScore(t *testing.T) {
	if !Minimize.Beats(5, 10) {
		t.Fatal("expected 5 to beat 10 under Minimize")
	}
	if Minimize.Beats(10, 5) {
		t.Fatal("expected 10 not to beat 5 under Minimize")
	}
	if Minimize.Beats(5, 5) {
		t.Fatal("expected equal scores not to beat each other")
	}
}

func TestMaximizeBeatsHigherScore(t *testing.T) {
	if !Maximize.Beats(10, 5) {
		t.Fatal("expected 10 to beat 5 under Maximize")
	}
	if Maximize.Beats(5, 10) {
		t.Fatal("expected 5 not to beat 10 under Maximize")
	}
}

func TestChecksumHexEncodesLowercaseHex(t *testing.T) {
	outcome := CompileOutcome{OK: true}
	outcome.Checksum[0] = 0xab
	outcome.Checksum[31] = 0x0f

	hex := outcome.ChecksumHex()
	if len(hex) != 64 {
		t.Fatalf("got length %d, want 64", len(hex))
	}
	if hex[0:2] != "ab" {
		t.Fatalf("got first byte %q, want ab", hex[0:2])
	}
	if hex[62:64] != "0f" {
		t.Fatalf("got last byte %q, want 0f", hex[62:64])
	}
}

type stubContext struct{ direction Direction }

func (s stubContext) InitWorkspace(ctx context.Context) error { return nil }
func (s stubContext) AvailableBenchmarkTypes() []string       { return nil }
func (s stubContext) Compile(ctx context.Context, flags []string) (CompileOutcome, error) {
	return CompileOutcome{}, nil
}
func (s stubContext) Benchmark(ctx context.Context) (*float64, error) { return nil, nil }
func (s stubContext) Direction() Direction                            { return s.direction }

func TestWorstSortableForwardsContextDirection(t *testing.T) {
	if got := WorstSortable(stubContext{direction: Maximize}); got != math.Inf(-1) {
		t.Fatalf("got %v, want -Inf", got)
	}
	if got := WorstSortable(stubContext{direction: Minimize}); got != math.Inf(1) {
		t.Fatalf("got %v, want +Inf", got)
	}
}
