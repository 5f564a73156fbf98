package flagset

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// record is the structured-text serialization form from spec.md §4.1: a
// base_opt plus a list of flag records carrying state, n_states and
// exclusions explicitly, so Decode(Encode(x)) round-trips faithfully even
// though Flag itself carries Exclusions as a map.
type record struct {
	BaseOpt string       `yaml:"base_opt"`
	Flags   []flagRecord `yaml:"flags"`
}

type flagRecord struct {
	Name       string   `yaml:"name"`
	Values     []string `yaml:"values"`
	State      int      `yaml:"state"`
	NStates    int      `yaml:"n_states"`
	Exclusions []int    `yaml:"exclusions"`
}

// Encode marshals a FlagSet to its YAML structured-record form.
func Encode(fs *FlagSet) ([]byte, error) {
	rec := record{BaseOpt: fs.BaseOpt}
	for _, f := range fs.Flags {
		excl := make([]int, 0, len(f.Exclusions))
		for s := range f.Exclusions {
			excl = append(excl, s)
		}
		sort.Ints(excl)
		rec.Flags = append(rec.Flags, flagRecord{
			Name:       f.Name,
			Values:     f.Values,
			State:      f.State,
			NStates:    len(f.Values),
			Exclusions: excl,
		})
	}
	return yaml.Marshal(&rec)
}

// Decode parses a FlagSet from its YAML structured-record form,
// reconstructing State, NStates and Exclusions faithfully.
func Decode(data []byte) (*FlagSet, error) {
	var rec record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("flagset: decode: %w", err)
	}

	fs := New(rec.BaseOpt)
	for _, fr := range rec.Flags {
		if len(fr.Values) == 0 {
			return nil, fmt.Errorf("flagset: decode: flag %q has no values", fr.Name)
		}
		if fr.NStates != 0 && fr.NStates != len(fr.Values) {
			return nil, fmt.Errorf("flagset: decode: flag %q n_states %d does not match %d values", fr.Name, fr.NStates, len(fr.Values))
		}
		f := NewFlag(fr.Name, fr.Values)
		f.State = fr.State
		for _, s := range fr.Exclusions {
			f.Exclude(s)
		}
		fs.Add(f)
	}
	return fs, nil
}

// Load reads and decodes a FlagSet from path.
func Load(path string) (*FlagSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flagset: load %s: %w", path, err)
	}
	return Decode(data)
}

// Save encodes and writes a FlagSet to path.
func Save(fs *FlagSet, path string) error {
	data, err := Encode(fs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("flagset: save %s: %w", path, err)
	}
	return nil
}
