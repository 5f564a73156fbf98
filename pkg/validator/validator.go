// Package validator implements FlagValidator: a concurrent smoke-test pass
// that compiles empty input under every (flag, state) combination and
// records miscompiling states as exclusions.
package validator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/jihwankim/ceflags/pkg/flagset"
)

// job is one (flag index, state index) smoke-test unit.
type job struct {
	flagIdx, stateIdx int
}

// outcome is the result of smoke-testing one job.
type outcome struct {
	job job
	ok  bool
}

// Validator smoke-tests every flag state via a compiler binary.
type Validator struct {
	CC      string
	Workers int
}

// New builds a Validator for the given compiler path. Workers defaults to
// runtime.NumCPU() when <= 0.
func New(cc string, workers int) *Validator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Validator{CC: cc, Workers: workers}
}

// Run smoke-tests every (flag, state) pair in fs concurrently, recording
// miscompiling states as exclusions in place, per spec.md §4.2's
// work-queue protocol. It does not prune fully-excluded flags or reset
// State — call fs.Prune() afterward, as spec.md's post-pass requires.
func (v *Validator) Run(ctx context.Context, fs *flagset.FlagSet) error {
	jobs := make(chan job, v.Workers)
	outcomes := make(chan outcome, v.Workers)

	var wg sync.WaitGroup
	for i := 0; i < v.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if j.flagIdx < 0 {
					return // sentinel: this worker is done
				}
				flag := fs.FlagAt(j.flagIdx)
				ok := v.smokeTest(ctx, flag.Value(j.stateIdx))
				outcomes <- outcome{job: j, ok: ok}
			}
		}()
	}

	go func() {
		for fi := 0; fi < fs.FlagCount(); fi++ {
			flag := fs.FlagAt(fi)
			for _, st := range flag.AllStates() {
				jobs <- job{flagIdx: fi, stateIdx: st}
			}
		}
		for i := 0; i < v.Workers; i++ {
			jobs <- job{flagIdx: -1, stateIdx: -1}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(outcomes)
		close(done)
	}()

	for o := range outcomes {
		if !o.ok {
			fs.FlagAt(o.job.flagIdx).Exclude(o.job.stateIdx)
		}
	}
	<-done

	return nil
}

// smokeTest runs `cc -fno-diagnostics-color -S -o /dev/null <flag> -x c -`
// against empty stdin, per spec.md §4.2/§6, and reports whether the
// compiler accepted it (exit status only — stdout/stderr are diagnostic).
func (v *Validator) smokeTest(ctx context.Context, flagToken string) bool {
	args := []string{"-fno-diagnostics-color", "-S", "-o", "/dev/null"}
	if flagToken != "" {
		args = append(args, flagToken)
	}
	args = append(args, "-x", "c", "-")

	cmd := exec.CommandContext(ctx, v.CC, args...)
	cmd.Stdin = bytes.NewReader(nil)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return false
	}
	return true
}

// Error wraps a validator failure unrelated to any single flag state (e.g.
// the compiler binary itself cannot be invoked).
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("validator: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }
