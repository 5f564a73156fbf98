// Package runspec models a reproducible CE search invocation as a
// structured YAML document — the Kubernetes-flavored envelope (kind,
// apiVersion, metadata) the teacher uses for scenarios, repurposed so a
// single file can pin every --config-equivalent CLI flag for a ceflags
// run and be checked into version control.
package runspec

import "time"

// RunSpec is a complete, reproducible ceflags invocation.
type RunSpec struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       Spec     `yaml:"spec"`
}

// Metadata carries diagnostic identity, not behavior.
type Metadata struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// Spec is the behavioral body of a RunSpec.
type Spec struct {
	// Mode is "search" (CEEngine) or "minimize" (MinimizeEngine).
	Mode string `yaml:"mode"`

	// Context is the registered WorkerContext name (e.g. "execution",
	// "archive").
	Context string `yaml:"context"`

	// Benchmark selects one of the context's AvailableBenchmarkTypes().
	Benchmark string `yaml:"benchmark"`

	// CC is the compiler binary path.
	CC string `yaml:"cc"`

	// ConfigPath points at the starting flagset.FlagSet YAML.
	ConfigPath string `yaml:"config_path"`

	// Processes is the BuildBenchmarkPool worker count (0 = host CPUs).
	Processes int `yaml:"processes,omitempty"`

	// DropPessimizingFlags enables CEEngine's regressor-pruning pass.
	DropPessimizingFlags bool `yaml:"drop_pessimizing_flags,omitempty"`

	// SetupWorkspaceOnly runs InitWorkspace on every worker and exits,
	// without entering the CE loop — used to pre-warm worker directories.
	SetupWorkspaceOnly bool `yaml:"setup_workspace_only,omitempty"`

	// MinimizeTarget is the score MinimizeEngine must reproduce; only
	// meaningful when Mode == "minimize".
	MinimizeTarget float64 `yaml:"minimize_target,omitempty"`

	// BenchmarkTimeout bounds each benchmark invocation.
	BenchmarkTimeout time.Duration `yaml:"benchmark_timeout,omitempty"`
}
