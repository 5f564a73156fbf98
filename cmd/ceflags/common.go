package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/jihwankim/ceflags/pkg/config"
	"github.com/jihwankim/ceflags/pkg/reporting"
	"github.com/jihwankim/ceflags/pkg/runspec"
	rsparser "github.com/jihwankim/ceflags/pkg/runspec/parser"
	rsvalidator "github.com/jihwankim/ceflags/pkg/runspec/validator"
	"github.com/jihwankim/ceflags/pkg/workerctx"
	"github.com/jihwankim/ceflags/pkg/workerctx/archivectx"
	"github.com/jihwankim/ceflags/pkg/workerctx/execctx"
)

// availableContexts lists the registered WorkerContext families and the
// benchmark names each advertises, for the "unknown --context/--benchmark"
// diagnostic spec.md §6 requires.
var availableContexts = map[string][]string{
	"execution": {"execution", "size"},
	"archive":   {"size"},
}

func loadAppConfig() (*config.Config, *reporting.Logger, error) {
	cfg, err := config.Load(appConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading application config: %w", err)
	}

	logLevel := reporting.LogLevel(cfg.Framework.LogLevel)
	if verbose {
		logLevel = reporting.LogLevelDebug
	}

	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: reporting.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stdout,
	})

	if err := cfg.Validate(); err != nil {
		return nil, logger, fmt.Errorf("invalid application config: %w", err)
	}

	return cfg, logger, nil
}

// loadRunSpec parses a RunSpec document from specPath, applies any --set
// key=value overrides, and validates the result, logging any warnings the
// validator accumulates. A run.go/minimize.go caller uses the returned
// RunSpec's fields as defaults for whichever of its own flags the operator
// didn't set explicitly (checked via cmd.Flags().Changed), so a pinned
// RunSpec file can be overridden piecemeal from the command line.
func loadRunSpec(specPath string, setOverrides []string, logger *reporting.Logger) (*runspec.RunSpec, error) {
	rs, err := rsparser.New(nil).ParseFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("loading run spec: %w", err)
	}

	overrides, err := rsparser.ParseOverrides(setOverrides)
	if err != nil {
		return nil, fmt.Errorf("parsing --set overrides: %w", err)
	}
	if err := rsparser.ApplyOverrides(rs, overrides); err != nil {
		return nil, fmt.Errorf("applying --set overrides: %w", err)
	}

	v := rsvalidator.New()
	if err := v.Validate(rs); err != nil {
		return nil, fmt.Errorf("invalid run spec:\n%s", v.GetReport())
	}
	if v.HasWarnings() {
		logger.Warn("run spec warnings", "report", v.GetReport())
	}

	return rs, nil
}

func resolveProcesses(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// newWorkerContexts builds one WorkerContext per worker for the named
// context family. sourcePath/tarballPath/dockerImage are only consumed by
// the families that need them; an unused value is ignored rather than
// rejected, since the CLI doesn't know in advance which flags a given
// --context cares about.
func newWorkerContexts(
	contextName string,
	n int,
	cc string,
	benchmark string,
	sourcePath string,
	tarballPath string,
	configureArgs []string,
	buildTarget string,
	artifactRel string,
	dockerImage string,
	workerDir func(idx int) (string, error),
	timeout time.Duration,
) ([]workerctx.Context, error) {
	benchmarks, ok := availableContexts[contextName]
	if !ok {
		return nil, fmt.Errorf("unknown --context %q; valid contexts: execution, archive", contextName)
	}
	if benchmark != "" && !contains(benchmarks, benchmark) {
		return nil, fmt.Errorf("unknown --benchmark %q for context %q; valid benchmarks: %v", benchmark, contextName, benchmarks)
	}

	ctxs := make([]workerctx.Context, n)
	for i := 0; i < n; i++ {
		dir, err := workerDir(i)
		if err != nil {
			return nil, fmt.Errorf("preparing worker %d directory: %w", i, err)
		}

		switch contextName {
		case "execution":
			obj := execctx.Execution
			if benchmark == string(execctx.Size) {
				obj = execctx.Size
			}
			ctxs[i] = execctx.New(cc, sourcePath, dir, obj, timeout)

		case "archive":
			ac := archivectx.New(cc, tarballPath, dir, configureArgs, buildTarget, artifactRel, timeout)
			if dockerImage != "" {
				runner, err := archivectx.NewDockerRunner(dockerImage)
				if err != nil {
					return nil, fmt.Errorf("worker %d: starting docker runner: %w", i, err)
				}
				ac.Docker = runner
			}
			ctxs[i] = ac

		default:
			return nil, fmt.Errorf("unknown --context %q", contextName)
		}
	}
	return ctxs, nil
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
