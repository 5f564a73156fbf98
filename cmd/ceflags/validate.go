package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jihwankim/ceflags/pkg/flagset"
	"github.com/jihwankim/ceflags/pkg/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Args:  cobra.NoArgs,
	Short: "Smoke-test every flag state and write back a pruned flag set",
	Long:  `Runs a single-shot compile smoke test for every (flag, state) pair, excludes the ones the compiler rejects, and writes a pruned flag set.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().Int("workers", 0, "validation worker count (0 = host CPU count)")
	validateCmd.Flags().String("config", "", "path to the flag set YAML to validate (required)")
	validateCmd.Flags().String("cc", "", "compiler binary (overrides application config)")
	validateCmd.Flags().String("output", "", "path to write the pruned flag set (default: overwrite --config)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadAppConfig()
	if err != nil {
		return err
	}

	workers, _ := cmd.Flags().GetInt("workers")
	configPath, _ := cmd.Flags().GetString("config")
	cc, _ := cmd.Flags().GetString("cc")
	outputPath, _ := cmd.Flags().GetString("output")

	if configPath == "" {
		return fmt.Errorf("--config is required")
	}
	if cc == "" {
		cc = cfg.Compiler.CC
	}
	if cc == "" {
		return fmt.Errorf("no compiler configured: pass --cc or set compiler.cc in the application config")
	}
	if outputPath == "" {
		outputPath = configPath
	}

	fs, err := flagset.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading flag set: %w", err)
	}
	before := fs.FlagCount()

	rootCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	v := validator.New(cc, resolveProcesses(workers))
	if err := v.Run(rootCtx, fs); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	fs.Prune()

	if err := flagset.Save(fs, outputPath); err != nil {
		return fmt.Errorf("saving pruned flag set: %w", err)
	}

	logger.Info("validation complete", "flags_before", before, "flags_after", fs.FlagCount(), "output", outputPath)
	return nil
}
