// Package cmd holds ucg_info's cobra command tree: one file per
// subcommand, the same layout as the repo's other cobra CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ucg-engine/pkg/config"
)

// rootCmd brackets every subcommand run with the library's
// call-once-before-any-context global_init/global_cleanup (§6, §9):
// ucg_info is a host application like any other, so it follows the
// same contract a real caller must before touching a context.
var rootCmd = &cobra.Command{
	Use:   "ucg_info",
	Short: "Report what the local ucg build and configuration would do",
	Long: `ucg_info is a diagnostic-only tool: it never opens a transport or joins
a collective. Each subcommand reports one fact about the local build
or configuration.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if status := config.GlobalInit(); status.Failed() {
			return fmt.Errorf("%s", status.Message)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if status := config.GlobalCleanup(); status.Failed() {
			return fmt.Errorf("%s", status.Message)
		}
		return nil
	},
}

// Execute runs the root command, exiting the process non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ucg_info: %v\n", err)
		os.Exit(1)
	}
}
