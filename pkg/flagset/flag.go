// Package flagset models a compiler flag-configuration space: an ordered
// collection of multi-valued categorical flags, each with a current state
// and a set of excluded (miscompiling, or promoted-away) states.
package flagset

import "fmt"

// Flag is a single multi-valued categorical compiler flag.
//
// Values[0] must be the no-op/default variant — the emission logic in
// FlagSet.CommandLine relies on State == 0 meaning "don't emit anything for
// this flag".
type Flag struct {
	Name       string
	Values     []string
	State      int
	Exclusions map[int]struct{}
}

// NewFlag builds a Flag at its default (state 0) with no exclusions.
func NewFlag(name string, values []string) *Flag {
	if len(values) == 0 {
		panic(fmt.Sprintf("flagset: flag %q has no values", name))
	}
	return &Flag{
		Name:       name,
		Values:     values,
		State:      0,
		Exclusions: make(map[int]struct{}),
	}
}

// AllStates returns every state index, valid or not.
func (f *Flag) AllStates() []int {
	out := make([]int, len(f.Values))
	for i := range f.Values {
		out[i] = i
	}
	return out
}

// ValidStates returns state indices not in Exclusions.
func (f *Flag) ValidStates() []int {
	var out []int
	for i := range f.Values {
		if _, excluded := f.Exclusions[i]; !excluded {
			out = append(out, i)
		}
	}
	return out
}

// OtherStates returns valid states other than the current one — the
// perturbation candidates for a single CE fan-out step.
func (f *Flag) OtherStates() []int {
	var out []int
	for _, s := range f.ValidStates() {
		if s != f.State {
			out = append(out, s)
		}
	}
	return out
}

// Render returns the literal token(s) for the current state.
func (f *Flag) Render() string {
	return f.Values[f.State]
}

// Value returns the literal token(s) for an arbitrary state, satisfying
// pkg/validator's Flag interface.
func (f *Flag) Value(state int) string {
	return f.Values[state]
}

// Exclude marks a state as ineligible. It is a no-op if state is already
// excluded.
func (f *Flag) Exclude(state int) {
	if f.Exclusions == nil {
		f.Exclusions = make(map[int]struct{})
	}
	f.Exclusions[state] = struct{}{}
}

// IsExcluded reports whether state is in Exclusions.
func (f *Flag) IsExcluded(state int) bool {
	_, excluded := f.Exclusions[state]
	return excluded
}

// Clone deep-copies the flag, including its exclusion set.
func (f *Flag) Clone() *Flag {
	values := make([]string, len(f.Values))
	copy(values, f.Values)
	excl := make(map[int]struct{}, len(f.Exclusions))
	for k := range f.Exclusions {
		excl[k] = struct{}{}
	}
	return &Flag{
		Name:       f.Name,
		Values:     values,
		State:      f.State,
		Exclusions: excl,
	}
}

// FlagSet is an ordered collection of flags plus the global optimization
// token, materializing into a compiler command line.
type FlagSet struct {
	BaseOpt string
	Flags   []*Flag
}

// New builds an empty FlagSet with the given base optimization token
// (e.g. "-O2").
func New(baseOpt string) *FlagSet {
	return &FlagSet{BaseOpt: baseOpt}
}

// Add appends a flag to the set.
func (fs *FlagSet) Add(f *Flag) {
	fs.Flags = append(fs.Flags, f)
}

// FlagCount returns the number of flags, satisfying pkg/validator's
// FlagSet interface.
func (fs *FlagSet) FlagCount() int { return len(fs.Flags) }

// FlagAt returns the i-th flag, satisfying pkg/validator's FlagSet
// interface.
func (fs *FlagSet) FlagAt(i int) *Flag { return fs.Flags[i] }

// Prune drops every flag left with zero valid states after validation and
// resets the remaining flags' State to their first valid state, per
// spec.md §4.2's post-pass.
func (fs *FlagSet) Prune() {
	kept := fs.Flags[:0]
	for _, f := range fs.Flags {
		valid := f.ValidStates()
		if len(valid) == 0 {
			continue
		}
		f.State = valid[0]
		kept = append(kept, f)
	}
	fs.Flags = kept
}

// CommandLine concatenates BaseOpt with the rendered token of every flag
// whose State != 0 (state 0 is always "no-op / default").
func (fs *FlagSet) CommandLine() []string {
	out := make([]string, 0, len(fs.Flags)+1)
	if fs.BaseOpt != "" {
		out = append(out, fs.BaseOpt)
	}
	for _, f := range fs.Flags {
		if f.State != 0 {
			out = append(out, f.Render())
		}
	}
	return out
}

// Clone deep-copies the FlagSet.
func (fs *FlagSet) Clone() *FlagSet {
	clone := &FlagSet{BaseOpt: fs.BaseOpt, Flags: make([]*Flag, len(fs.Flags))}
	for i, f := range fs.Flags {
		clone.Flags[i] = f.Clone()
	}
	return clone
}

// WithPerturbation returns a clone of fs with a single flag moved to
// candidateState — the fan-out step's "perturbed config copy".
func (fs *FlagSet) WithPerturbation(flagIdx, candidateState int) *FlagSet {
	clone := fs.Clone()
	clone.Flags[flagIdx].State = candidateState
	return clone
}

// Validate checks the two invariants from the data model: no flag's State
// is excluded, and every flag has at least one valid state.
func (fs *FlagSet) Validate() error {
	for _, f := range fs.Flags {
		if f.IsExcluded(f.State) {
			return fmt.Errorf("flagset: flag %q current state %d is excluded", f.Name, f.State)
		}
		if len(f.ValidStates()) == 0 {
			return fmt.Errorf("flagset: flag %q has no valid states", f.Name)
		}
	}
	return nil
}
