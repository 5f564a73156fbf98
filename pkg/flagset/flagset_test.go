package flagset

import (
	"path/filepath"
	"reflect"
	"testing"
)

func buildSample() *FlagSet {
	fs := New("-O2")
	a := NewFlag("tree-vectorize", []string{"-fno-tree-vectorize", "-ftree-vectorize"})
	a.State = 1
	fs.Add(a)

	b := NewFlag("unroll-loops", []string{"-fno-unroll-loops", "-funroll-loops"})
	b.Exclude(1)
	fs.Add(b)

	return fs
}

func TestCommandLineSkipsDefaultState(t *testing.T) {
	fs := buildSample()
	got := fs.CommandLine()
	want := []string{"-O2", "-ftree-vectorize"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	fs := buildSample()
	clone := fs.Clone()
	clone.Flags[0].State = 0
	clone.Flags[1].Exclude(0)

	if fs.Flags[0].State != 1 {
		t.Fatal("mutating clone's flag state leaked into original")
	}
	if fs.Flags[1].IsExcluded(0) {
		t.Fatal("mutating clone's exclusions leaked into original")
	}
}

func TestWithPerturbation(t *testing.T) {
	fs := buildSample()
	perturbed := fs.WithPerturbation(0, 0)

	if perturbed.Flags[0].State != 0 {
		t.Fatalf("got state %d, want 0", perturbed.Flags[0].State)
	}
	if fs.Flags[0].State != 1 {
		t.Fatal("WithPerturbation mutated the original FlagSet")
	}
}

func TestPruneDropsFullyExcludedFlags(t *testing.T) {
	fs := buildSample()
	// Exclude every state of the unroll-loops flag.
	fs.Flags[1].Exclude(0)

	fs.Prune()

	if fs.FlagCount() != 1 {
		t.Fatalf("got %d flags after Prune, want 1", fs.FlagCount())
	}
	if fs.Flags[0].Name != "tree-vectorize" {
		t.Fatalf("got remaining flag %q, want tree-vectorize", fs.Flags[0].Name)
	}
}

func TestPruneResetsStateToFirstValid(t *testing.T) {
	fs := New("-O2")
	f := NewFlag("x", []string{"a", "b", "c"})
	f.State = 1
	f.Exclude(1)
	fs.Add(f)

	fs.Prune()

	if fs.Flags[0].State != 0 {
		t.Fatalf("got State %d after Prune, want 0 (first valid state)", fs.Flags[0].State)
	}
}

func TestValidateRejectsExcludedCurrentState(t *testing.T) {
	fs := buildSample()
	fs.Flags[0].Exclude(1) // flag's current state is 1

	if err := fs.Validate(); err == nil {
		t.Fatal("expected Validate to reject a flag whose current state is excluded")
	}
}

func TestValidateRejectsNoValidStates(t *testing.T) {
	fs := New("-O2")
	f := NewFlag("x", []string{"a", "b"})
	f.Exclude(0)
	f.Exclude(1)
	fs.Add(f)

	if err := fs.Validate(); err == nil {
		t.Fatal("expected Validate to reject a flag with no valid states")
	}
}

func TestEncodeDecodeRoundTripsExclusions(t *testing.T) {
	fs := buildSample()

	data, err := Encode(fs)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.BaseOpt != fs.BaseOpt {
		t.Fatalf("got BaseOpt %q, want %q", decoded.BaseOpt, fs.BaseOpt)
	}
	if decoded.FlagCount() != fs.FlagCount() {
		t.Fatalf("got %d flags, want %d", decoded.FlagCount(), fs.FlagCount())
	}
	if !decoded.Flags[1].IsExcluded(1) {
		t.Fatal("decoded FlagSet lost the unroll-loops exclusion")
	}
	if decoded.Flags[0].State != 1 {
		t.Fatalf("decoded tree-vectorize state = %d, want 1", decoded.Flags[0].State)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fs := buildSample()
	path := filepath.Join(t.TempDir(), "flags.yaml")

	if err := Save(fs, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.FlagCount() != fs.FlagCount() {
		t.Fatalf("got %d flags, want %d", loaded.FlagCount(), fs.FlagCount())
	}
	if loaded.CommandLine()[0] != "-O2" {
		t.Fatalf("got base opt %q, want -O2", loaded.CommandLine()[0])
	}
}

func TestDecodeRejectsMismatchedNStates(t *testing.T) {
	bad := []byte("base_opt: -O2\nflags:\n  - name: x\n    values: [a, b]\n    state: 0\n    n_states: 3\n")
	if _, err := Decode(bad); err == nil {
		t.Fatal("expected Decode to reject a flag record with mismatched n_states")
	}
}
