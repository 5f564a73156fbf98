package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	appConfigPath string
	verbose       bool
	version       = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "ceflags",
	Short: "Combined Elimination compiler flag search",
	Long: `ceflags searches a C compiler's flag configuration space via Combined
Elimination: measure a baseline, perturb every flag by one state, promote the
single best improving change, repeat until no improvement remains. It also
minimizes a known-good flag set down to the smallest subset that reproduces
a target score.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&appConfigPath, "app-config", "", "ceflags application config file (default ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(minimizeCmd)
	rootCmd.AddCommand(validateCmd)
}

// Commands are defined in separate files:
// - runCmd in run.go
// - minimizeCmd in minimize.go
// - validateCmd in validate.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
