package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var logLevel string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "convergefs",
	Short: "A filesystem reconciliation tool",
	Long: `convergefs brings filesystem objects into convergence with their declared
state. Declarations live in a TOML manifest; each one names a path with
desired content or source, ownership, mode and recursion behavior, and a
reconciliation pass performs the minimal, checksum-driven writes needed,
backing up existing content first.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newPlanCommand())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Print the version number of convergefs`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("convergefs version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}
