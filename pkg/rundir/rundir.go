// Package rundir lays out and writes the on-disk artifacts of one
// ceflags invocation: workspace/YYYYMMDD-HHMMSS-XXXX/, per-worker
// subdirectories, the driver log, per-iteration snapshots, and the
// append-only global leaderboard.
package rundir

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jihwankim/ceflags/pkg/flagset"
	"github.com/jihwankim/ceflags/pkg/workerctx"
)

const alphanum = "abcdefghijklmnopqrstuvwxyz0123456789"

// RunDir manages one run's directory tree.
type RunDir struct {
	root string

	leaderboard *os.File
	logFile     *os.File
}

// New creates <baseDir>/<timestamp>-<suffix>/ and opens its
// log and leaderboard files.
func New(baseDir string) (*RunDir, error) {
	suffix, err := randomSuffix(4)
	if err != nil {
		return nil, fmt.Errorf("rundir: generating run suffix: %w", err)
	}
	name := fmt.Sprintf("%s-%s", time.Now().Format("20060102-150405"), suffix)
	root := filepath.Join(baseDir, name)

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("rundir: creating run directory: %w", err)
	}

	logFile, err := os.Create(filepath.Join(root, "log.txt"))
	if err != nil {
		return nil, fmt.Errorf("rundir: creating log.txt: %w", err)
	}

	leaderboard, err := os.Create(filepath.Join(root, "global_leaderboard.live"))
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("rundir: creating global_leaderboard.live: %w", err)
	}

	return &RunDir{root: root, leaderboard: leaderboard, logFile: logFile}, nil
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphanum[int(b)%len(alphanum)]
	}
	return string(out), nil
}

// Root returns the run directory's path.
func (r *RunDir) Root() string { return r.root }

// WorkerDir returns (creating if needed) the exclusive subdirectory for
// worker idx.
func (r *RunDir) WorkerDir(idx int) (string, error) {
	dir := filepath.Join(r.root, fmt.Sprintf("%d", idx))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("rundir: creating worker %d directory: %w", idx, err)
	}
	return dir, nil
}

// Log writes one line to log.txt, flushed immediately — every iteration
// artifact here is write-once and never reopened, so a flush per append
// is the crash-safety mechanism the driver relies on.
func (r *RunDir) Log(line string) error {
	if _, err := fmt.Fprintf(r.logFile, "[%s] %s\n", time.Now().Format(time.RFC3339), line); err != nil {
		return err
	}
	return r.logFile.Sync()
}

// AppendLeaderboard appends one CSV row (flags, score) to
// global_leaderboard.live and flushes.
func (r *RunDir) AppendLeaderboard(flags []string, score float64) error {
	line := fmt.Sprintf("%q,%g\n", strings.Join(flags, " "), score)
	if _, err := r.leaderboard.WriteString(line); err != nil {
		return err
	}
	return r.leaderboard.Sync()
}

// WriteIteration writes the three per-iteration artifacts spec.md §6
// requires: iteration.N (human-readable), iteration.N.flags (whitespace
// command line), iteration.N.config (full Config serialization).
func (r *RunDir) WriteIteration(n int, fs *flagset.FlagSet, baseline float64, ranked []RankedVariation) error {
	var human strings.Builder
	fmt.Fprintf(&human, "iteration %d\n", n)
	fmt.Fprintf(&human, "baseline: %g\n", baseline)
	fmt.Fprintf(&human, "flags: %s\n\n", strings.Join(fs.CommandLine(), " "))
	fmt.Fprintf(&human, "ranked variations:\n")
	for _, rv := range ranked {
		fmt.Fprintf(&human, "  flag=%d state=%d score=%g\n", rv.FlagIndex, rv.CandidateState, rv.Score)
	}
	if err := os.WriteFile(filepath.Join(r.root, fmt.Sprintf("iteration.%d", n)), []byte(human.String()), 0644); err != nil {
		return fmt.Errorf("rundir: writing iteration.%d: %w", n, err)
	}

	flagsLine := strings.Join(fs.CommandLine(), " ") + "\n"
	if err := os.WriteFile(filepath.Join(r.root, fmt.Sprintf("iteration.%d.flags", n)), []byte(flagsLine), 0644); err != nil {
		return fmt.Errorf("rundir: writing iteration.%d.flags: %w", n, err)
	}

	encoded, err := flagset.Encode(fs)
	if err != nil {
		return fmt.Errorf("rundir: encoding iteration.%d.config: %w", n, err)
	}
	if err := os.WriteFile(filepath.Join(r.root, fmt.Sprintf("iteration.%d.config", n)), encoded, 0644); err != nil {
		return fmt.Errorf("rundir: writing iteration.%d.config: %w", n, err)
	}

	return nil
}

// RankedVariation is one (tag, score) pair from a CE fan-out, the shape
// WriteIteration's human-readable dump records. Callers are expected to
// pass ranked in best-to-worst order; WriteIteration does not sort it.
type RankedVariation struct {
	FlagIndex      int
	CandidateState int
	Score          float64
}

// Tag converts back to a workerctx.PerturbationTag.
func (rv RankedVariation) Tag() workerctx.PerturbationTag {
	return workerctx.PerturbationTag{FlagIndex: rv.FlagIndex, CandidateState: rv.CandidateState}
}

// Close closes the run directory's open files.
func (r *RunDir) Close() error {
	err1 := r.logFile.Close()
	err2 := r.leaderboard.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
