package rundir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jihwankim/ceflags/pkg/flagset"
)

func sampleFlagSet() *flagset.FlagSet {
	fs := flagset.New("-O2")
	f := flagset.NewFlag("tree-vectorize", []string{"-fno-tree-vectorize", "-ftree-vectorize"})
	f.State = 1
	fs.Add(f)
	return fs
}

func TestNewCreatesLayout(t *testing.T) {
	base := t.TempDir()
	r, err := New(base)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if !strings.HasPrefix(r.Root(), base) {
		t.Fatalf("root %q not under base %q", r.Root(), base)
	}
	for _, name := range []string{"log.txt", "global_leaderboard.live"} {
		if _, err := os.Stat(filepath.Join(r.Root(), name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}
}

func TestNewRunsAreUniquelyNamed(t *testing.T) {
	base := t.TempDir()
	r1, err := New(base)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r1.Close()
	r2, err := New(base)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r2.Close()

	if r1.Root() == r2.Root() {
		t.Fatalf("expected distinct run directories, both got %q", r1.Root())
	}
}

func TestWorkerDirCreatesExclusiveSubdir(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	dir, err := r.WorkerDir(3)
	if err != nil {
		t.Fatalf("WorkerDir: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected worker dir to exist: %v", err)
	}
	if filepath.Base(dir) != "3" {
		t.Fatalf("got worker dir %q, want basename 3", dir)
	}
}

func TestLogAppendsLines(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.Log("hello"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := r.Log("world"); err != nil {
		t.Fatalf("Log: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(r.Root(), "log.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), string(data))
	}
	if !strings.Contains(lines[0], "hello") || !strings.Contains(lines[1], "world") {
		t.Fatalf("unexpected log content: %q", string(data))
	}
}

func TestAppendLeaderboardWritesCSVRows(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.AppendLeaderboard([]string{"-O2", "-ftree-vectorize"}, 12.5); err != nil {
		t.Fatalf("AppendLeaderboard: %v", err)
	}
	if err := r.AppendLeaderboard([]string{"-O2"}, 15.0); err != nil {
		t.Fatalf("AppendLeaderboard: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(r.Root(), "global_leaderboard.live"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d rows, want 2: %q", len(lines), string(data))
	}
	if !strings.Contains(lines[0], "-O2 -ftree-vectorize") || !strings.Contains(lines[0], "12.5") {
		t.Fatalf("unexpected first row: %q", lines[0])
	}
}

func TestWriteIterationProducesThreeArtifacts(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	fs := sampleFlagSet()
	ranked := []RankedVariation{
		{FlagIndex: 0, CandidateState: 0, Score: 20},
		{FlagIndex: 0, CandidateState: 1, Score: 10},
	}

	if err := r.WriteIteration(1, fs, 15, ranked); err != nil {
		t.Fatalf("WriteIteration: %v", err)
	}

	human, err := os.ReadFile(filepath.Join(r.Root(), "iteration.1"))
	if err != nil {
		t.Fatalf("reading iteration.1: %v", err)
	}
	if !strings.Contains(string(human), "iteration 1") || !strings.Contains(string(human), "baseline: 15") {
		t.Fatalf("unexpected human summary: %q", string(human))
	}
	if !strings.Contains(string(human), "flag=0 state=1 score=10") {
		t.Fatalf("expected ranked variation line in summary: %q", string(human))
	}

	flagsLine, err := os.ReadFile(filepath.Join(r.Root(), "iteration.1.flags"))
	if err != nil {
		t.Fatalf("reading iteration.1.flags: %v", err)
	}
	if strings.TrimSpace(string(flagsLine)) != "-O2 -ftree-vectorize" {
		t.Fatalf("got flags line %q, want '-O2 -ftree-vectorize'", string(flagsLine))
	}

	cfg, err := os.ReadFile(filepath.Join(r.Root(), "iteration.1.config"))
	if err != nil {
		t.Fatalf("reading iteration.1.config: %v", err)
	}
	decoded, err := flagset.Decode(cfg)
	if err != nil {
		t.Fatalf("decoding iteration.1.config: %v", err)
	}
	if decoded.Flags[0].State != 1 {
		t.Fatalf("decoded config lost promoted state: %+v", decoded.Flags[0])
	}
}

func TestRankedVariationTagRoundTrips(t *testing.T) {
	rv := RankedVariation{FlagIndex: 2, CandidateState: 1, Score: 9}
	tag := rv.Tag()
	if tag.FlagIndex != 2 || tag.CandidateState != 1 {
		t.Fatalf("got tag %+v, want {FlagIndex:2 CandidateState:1}", tag)
	}
}

func TestCloseClosesOpenFilesWithoutError(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
