package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"arbiter-hq/arbiter/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Arbiter - tool invocation authorization engine",
	Long: `Arbiter is a policy engine for authorizing tool invocations made through
a gateway.

It provides:
  - A declarative policy language (APL) with permit/forbid effects,
    action and resource scoping, and typed conditions over principal
    tags and call input parameters
  - Deny-override, default-deny evaluation with enforce and log-only modes
  - Schema-validated policies: unknown actions and mistyped parameter
    references are rejected before a policy is ever stored
  - A natural-language compiler that turns plain statements into policies`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		_, err := logging.New(logging.Config{Level: level, Format: "text"})
		return err
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
