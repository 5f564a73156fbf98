package validator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jihwankim/ceflags/pkg/flagset"
)

// fakeCC writes a shell script standing in for a compiler: it exits
// non-zero whenever rejected appears among its arguments, exit zero
// otherwise. Real smoke tests shell out to a compiler binary, so this
// gives Validator.Run a real subprocess to drive without depending on
// one being installed.
func fakeCC(t *testing.T, rejected string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakecc.sh")
	script := "#!/bin/sh\nfor a in \"$@\"; do\n  if [ \"$a\" = \"" + rejected + "\" ]; then\n    exit 1\n  fi\ndone\nexit 0\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRunExcludesRejectedState(t *testing.T) {
	cc := fakeCC(t, "-fbad-flag")

	fs := flagset.New("")
	f := flagset.NewFlag("x", []string{"", "-fbad-flag"})
	fs.Add(f)

	v := New(cc, 2)
	if err := v.Run(context.Background(), fs); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fs.Flags[0].IsExcluded(0) {
		t.Fatal("default (empty) state should never be excluded")
	}
	if !fs.Flags[0].IsExcluded(1) {
		t.Fatal("expected the rejected state to be excluded")
	}
}

func TestRunLeavesAcceptedStatesUnexcluded(t *testing.T) {
	cc := fakeCC(t, "-never-matches")

	fs := flagset.New("")
	fs.Add(flagset.NewFlag("a", []string{"", "-fa"}))
	fs.Add(flagset.NewFlag("b", []string{"", "-fb1", "-fb2"}))

	v := New(cc, 0) // Workers <= 0 should default to NumCPU, not hang.
	if err := v.Run(context.Background(), fs); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for fi, f := range fs.Flags {
		for _, st := range f.AllStates() {
			if f.IsExcluded(st) {
				t.Fatalf("flag %d state %d unexpectedly excluded", fi, st)
			}
		}
	}
}

func TestRunHandlesMultipleFlagsConcurrently(t *testing.T) {
	cc := fakeCC(t, "-reject-me")

	fs := flagset.New("")
	fs.Add(flagset.NewFlag("a", []string{"", "-reject-me"}))
	fs.Add(flagset.NewFlag("b", []string{"", "-keep-me"}))
	fs.Add(flagset.NewFlag("c", []string{"", "-reject-me"}))

	v := New(cc, 4)
	if err := v.Run(context.Background(), fs); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !fs.Flags[0].IsExcluded(1) {
		t.Fatal("flag a's state 1 should be excluded")
	}
	if fs.Flags[1].IsExcluded(1) {
		t.Fatal("flag b's state 1 should not be excluded")
	}
	if !fs.Flags[2].IsExcluded(1) {
		t.Fatal("flag c's state 1 should be excluded")
	}
}
