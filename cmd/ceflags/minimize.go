package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jihwankim/ceflags/pkg/cache"
	"github.com/jihwankim/ceflags/pkg/flagset"
	"github.com/jihwankim/ceflags/pkg/minimize"
	"github.com/jihwankim/ceflags/pkg/pool"
	"github.com/jihwankim/ceflags/pkg/reporting"
	"github.com/jihwankim/ceflags/pkg/rundir"
)

var minimizeCmd = &cobra.Command{
	Use:   "minimize",
	Args:  cobra.NoArgs,
	Short: "Narrow a known-good flag set to a minimal subset reproducing a target score",
	Long:  `Runs delta-debugging reduction (chunk and complement probes, starting from a two-way split) over a flag set's non-default flags to find the smallest subset that still reproduces a target score, within --tolerance.`,
	RunE:  runMinimize,
}

func init() {
	minimizeCmd.Flags().IntP("processes", "j", 0, "worker pool size (0 = host CPU count)")
	minimizeCmd.Flags().String("context", "execution", "worker context family (execution, archive)")
	minimizeCmd.Flags().String("benchmark", "", "benchmark name within the selected context")
	minimizeCmd.Flags().String("config", "", "path to the flag set YAML to minimize (required)")
	minimizeCmd.Flags().String("cc", "", "compiler binary (overrides application config)")
	minimizeCmd.Flags().Float64("target", 0, "score the minimized flag set must reproduce (required)")
	minimizeCmd.Flags().Float64("tolerance", 0, "acceptable |score - target| deviation (overrides application config)")
	minimizeCmd.Flags().String("source", "", "source file path (execution context)")
	minimizeCmd.Flags().String("tarball", "", "source tarball path (archive context)")
	minimizeCmd.Flags().StringArray("configure-arg", nil, "extra ./configure argument (archive context, repeatable)")
	minimizeCmd.Flags().String("build-target", "all", "make target (archive context)")
	minimizeCmd.Flags().String("artifact", "", "built artifact path relative to the unpacked source root (archive context)")
	minimizeCmd.Flags().String("docker-image", "", "run archive builds inside this Docker image instead of on the host")
	minimizeCmd.Flags().String("workspace", "./workspace", "base directory under which run directories are created")
	minimizeCmd.Flags().String("output", "", "path to write the minimized flag set (default: <config>.minimized)")
	minimizeCmd.Flags().String("spec", "", "path to a RunSpec YAML pinning this invocation's parameters")
	minimizeCmd.Flags().StringArray("set", nil, "override a RunSpec field (key=value, repeatable)")
}

func runMinimize(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadAppConfig()
	if err != nil {
		return err
	}

	processes, _ := cmd.Flags().GetInt("processes")
	contextName, _ := cmd.Flags().GetString("context")
	benchmark, _ := cmd.Flags().GetString("benchmark")
	configPath, _ := cmd.Flags().GetString("config")
	cc, _ := cmd.Flags().GetString("cc")
	target, _ := cmd.Flags().GetFloat64("target")
	tolerance, _ := cmd.Flags().GetFloat64("tolerance")
	sourcePath, _ := cmd.Flags().GetString("source")
	tarballPath, _ := cmd.Flags().GetString("tarball")
	configureArgs, _ := cmd.Flags().GetStringArray("configure-arg")
	buildTarget, _ := cmd.Flags().GetString("build-target")
	artifactRel, _ := cmd.Flags().GetString("artifact")
	dockerImage, _ := cmd.Flags().GetString("docker-image")
	workspaceDir, _ := cmd.Flags().GetString("workspace")
	outputPath, _ := cmd.Flags().GetString("output")
	specPath, _ := cmd.Flags().GetString("spec")
	setOverrides, _ := cmd.Flags().GetStringArray("set")

	if specPath != "" {
		rs, err := loadRunSpec(specPath, setOverrides, logger)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("context") && rs.Spec.Context != "" {
			contextName = rs.Spec.Context
		}
		if !cmd.Flags().Changed("benchmark") && rs.Spec.Benchmark != "" {
			benchmark = rs.Spec.Benchmark
		}
		if !cmd.Flags().Changed("cc") && rs.Spec.CC != "" {
			cc = rs.Spec.CC
		}
		if !cmd.Flags().Changed("config") && rs.Spec.ConfigPath != "" {
			configPath = rs.Spec.ConfigPath
		}
		if !cmd.Flags().Changed("processes") && rs.Spec.Processes != 0 {
			processes = rs.Spec.Processes
		}
		if !cmd.Flags().Changed("target") && rs.Spec.MinimizeTarget != 0 {
			target = rs.Spec.MinimizeTarget
		}
	}

	if configPath == "" {
		return fmt.Errorf("--config is required")
	}
	if cc == "" {
		cc = cfg.Compiler.CC
	}
	if cc == "" {
		return fmt.Errorf("no compiler configured: pass --cc or set compiler.cc in the application config")
	}
	if tolerance == 0 {
		tolerance = cfg.Engine.MinimizeTolerance
	}
	if outputPath == "" {
		outputPath = configPath + ".minimized"
	}
	n := resolveProcesses(processes)

	fs, err := flagset.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading flag set: %w", err)
	}

	run, err := rundir.New(workspaceDir)
	if err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	defer run.Close()
	logger.Info("run directory created", "path", run.Root())

	ctxs, err := newWorkerContexts(contextName, n, cc, benchmark, sourcePath, tarballPath, configureArgs, buildTarget, artifactRel, dockerImage, run.WorkerDir, cfg.Pool.BenchmarkTime)
	if err != nil {
		return err
	}

	c := cache.New()
	p := pool.New(n, c)

	rootCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := p.Start(rootCtx, ctxs); err != nil {
		return fmt.Errorf("starting worker pool: %w", err)
	}

	progress := reporting.NewProgressReporter(reporting.FormatText, logger)
	engine := minimize.New(p, ctxs[0], progress)
	engine.Tolerance = tolerance

	minimized, err := engine.Run(rootCtx, fs, target)
	p.Shutdown()
	if err != nil {
		return fmt.Errorf("minimization failed: %w", err)
	}

	if err := flagset.Save(minimized, outputPath); err != nil {
		return fmt.Errorf("saving minimized flag set: %w", err)
	}

	logger.Info("minimization complete", "flags", len(minimized.Flags), "output", outputPath)
	return nil
}
