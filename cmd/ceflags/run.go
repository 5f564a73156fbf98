package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihwankim/ceflags/pkg/cache"
	"github.com/jihwankim/ceflags/pkg/ceengine"
	"github.com/jihwankim/ceflags/pkg/flagset"
	"github.com/jihwankim/ceflags/pkg/gracefulstop"
	"github.com/jihwankim/ceflags/pkg/pool"
	"github.com/jihwankim/ceflags/pkg/reporting"
	"github.com/jihwankim/ceflags/pkg/rundir"
	"github.com/jihwankim/ceflags/pkg/workerctx"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Run a Combined Elimination flag search",
	Long:  `Loads a flag set and runs the CE loop to convergence, writing per-iteration artifacts to a run directory.`,
	RunE:  runSearch,
}

func init() {
	runCmd.Flags().IntP("processes", "j", 0, "worker pool size (0 = host CPU count)")
	runCmd.Flags().String("context", "execution", "worker context family (execution, archive)")
	runCmd.Flags().String("benchmark", "", "benchmark name within the selected context")
	runCmd.Flags().String("config", "", "path to the starting flag set YAML (required)")
	runCmd.Flags().String("cc", "", "compiler binary (overrides application config)")
	runCmd.Flags().Bool("setup-workspace-only", false, "initialize every worker's workspace and exit")
	runCmd.Flags().Bool("drop-pessimizing-flags", false, "drop regressing perturbations from the search space each iteration")
	runCmd.Flags().String("metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9101); empty disables")
	runCmd.Flags().String("source", "", "source file path (execution context)")
	runCmd.Flags().String("tarball", "", "source tarball path (archive context)")
	runCmd.Flags().StringArray("configure-arg", nil, "extra ./configure argument (archive context, repeatable)")
	runCmd.Flags().String("build-target", "all", "make target (archive context)")
	runCmd.Flags().String("artifact", "", "built artifact path relative to the unpacked source root (archive context)")
	runCmd.Flags().String("docker-image", "", "run archive builds inside this Docker image instead of on the host")
	runCmd.Flags().String("workspace", "./workspace", "base directory under which run directories are created")
	runCmd.Flags().Int("max-iterations", 0, "bound the CE loop (0 = unbounded)")
	runCmd.Flags().String("stop-file", "", "path polled for a graceful-stop request (overrides application config)")
	runCmd.Flags().Duration("timeout", 0, "per-benchmark timeout (0 = application config pool.benchmark_timeout)")
	runCmd.Flags().String("spec", "", "path to a RunSpec YAML pinning this invocation's parameters")
	runCmd.Flags().StringArray("set", nil, "override a RunSpec field (key=value, repeatable)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadAppConfig()
	if err != nil {
		return err
	}

	processes, _ := cmd.Flags().GetInt("processes")
	contextName, _ := cmd.Flags().GetString("context")
	benchmark, _ := cmd.Flags().GetString("benchmark")
	configPath, _ := cmd.Flags().GetString("config")
	cc, _ := cmd.Flags().GetString("cc")
	setupOnly, _ := cmd.Flags().GetBool("setup-workspace-only")
	dropPessimizing, _ := cmd.Flags().GetBool("drop-pessimizing-flags")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	sourcePath, _ := cmd.Flags().GetString("source")
	tarballPath, _ := cmd.Flags().GetString("tarball")
	configureArgs, _ := cmd.Flags().GetStringArray("configure-arg")
	buildTarget, _ := cmd.Flags().GetString("build-target")
	artifactRel, _ := cmd.Flags().GetString("artifact")
	dockerImage, _ := cmd.Flags().GetString("docker-image")
	workspaceDir, _ := cmd.Flags().GetString("workspace")
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	stopFile, _ := cmd.Flags().GetString("stop-file")
	timeout, _ := cmd.Flags().GetDuration("timeout")
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
		if !cmd.Flags().Changed("drop-pessimizing-flags") && rs.Spec.DropPessimizingFlags {
			dropPessimizing = true
		}
		if !cmd.Flags().Changed("setup-workspace-only") && rs.Spec.SetupWorkspaceOnly {
			setupOnly = true
		}
		if !cmd.Flags().Changed("timeout") && rs.Spec.BenchmarkTimeout != 0 {
			timeout = rs.Spec.BenchmarkTimeout
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
	if metricsAddr == "" && cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Addr
	}
	if timeout == 0 {
		timeout = cfg.Pool.BenchmarkTime
	}
	if stopFile == "" {
		stopFile = cfg.Emergency.StopFile
	}
	if maxIterations == 0 {
		maxIterations = cfg.Engine.MaxIterations
	}
	n := resolveProcesses(processes)

	fs, err := flagset.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading flag set: %w", err)
	}
	if cfg.Compiler.BaseOpt != "" && fs.BaseOpt == "" {
		fs.BaseOpt = cfg.Compiler.BaseOpt
	}

	run, err := rundir.New(workspaceDir)
	if err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	defer run.Close()
	logger.Info("run directory created", "path", run.Root())

	ctxs, err := newWorkerContexts(contextName, n, cc, benchmark, sourcePath, tarballPath, configureArgs, buildTarget, artifactRel, dockerImage, run.WorkerDir, timeout)
	if err != nil {
		return err
	}

	c := cache.New()
	p := pool.New(n, c)

	var metrics *reporting.Metrics
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if metricsAddr != "" {
		metrics = reporting.NewMetrics()
		p.OnResult(func(r workerctx.Result, cacheHit bool, benchmarkTime time.Duration) {
			metrics.ObserveJob(r.Score != nil, cacheHit)
			if benchmarkTime > 0 {
				metrics.ObserveBenchmarkDuration(benchmarkTime)
			}
			metrics.SetCacheSize(c.Len())
		})
		go func() {
			if err := metrics.Serve(rootCtx, metricsAddr); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		logger.Info("metrics endpoint enabled", "addr", metricsAddr)
	}

	if err := p.Start(rootCtx, ctxs); err != nil {
		return fmt.Errorf("starting worker pool: %w", err)
	}

	if setupOnly {
		logger.Info("workspace initialized, exiting (--setup-workspace-only)")
		p.Shutdown()
		return nil
	}

	stopper := gracefulstop.New(gracefulstop.Config{StopFile: stopFile, EnableSignalHandlers: true})
	stopper.Start(rootCtx)

	textFormat := reporting.FormatText
	if len(cfg.Reporting.Formats) > 0 {
		textFormat = reporting.OutputFormat(cfg.Reporting.Formats[0])
	}
	progress := reporting.NewProgressReporter(textFormat, logger)
	reporter := newRunReporter(run, progress, metrics, ctxs[0].Direction())

	engine := ceengine.New(fs, p, ctxs[0], ceengine.Options{
		DropPessimizingFlags: dropPessimizing,
		MaxIterations:        maxIterations,
		ShouldStop:           stopper.ShouldStop,
	}, reporter)

	outcome, err := engine.Run(rootCtx)
	p.Shutdown()
	if err != nil {
		return fmt.Errorf("CE search failed: %w", err)
	}

	logger.Info("CE search complete", "iterations", outcome.Iterations, "final_score", outcome.FinalScore, "terminated_on", outcome.TerminateOn)

	storage, err := reporting.NewStorage(cfg.Reporting.OutputDir, cfg.Reporting.KeepLastN, logger)
	if err != nil {
		return fmt.Errorf("creating report storage: %w", err)
	}
	report := reporter.buildReport(outcome)
	if _, err := storage.SaveReport(report); err != nil {
		logger.Warn("failed to save run report", "error", err)
	}
	progress.ReportRun(report)

	if err := flagset.Save(fs, configPath+".final"); err != nil {
		logger.Warn("failed to save final flag set", "error", err)
	}

	return nil
}
