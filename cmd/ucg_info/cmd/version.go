package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ucg-engine/internal/engine"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the library API version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ucg version %d.%d\n", engine.APIVersionMajor, engine.APIVersionMinor)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
