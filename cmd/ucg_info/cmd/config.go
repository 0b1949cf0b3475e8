package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ucg-engine/pkg/config"
)

var configHelp = map[string]string{
	"PLANC":        "which plugins to load; \"all\" or comma-separated names",
	"LOG_LEVEL":    "one of fatal,error,warn,info,debug,trace",
	"USE_MT_MUTEX": "if multi-thread mode, pick mutex (y) vs spinlock (n)",
	"PLANC_PATH":   "where to search plugin libraries",
}

var configFile string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Dump the full config table with help text",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printConfig()
	},
}

func init() {
	configCmd.Flags().StringVar(&configFile, "file", "", "config file to load in addition to env vars and defaults")
	rootCmd.AddCommand(configCmd)
}

func printConfig() error {
	cfg, status := config.Read(configFile)
	if status.Failed() {
		return fmt.Errorf("failed to load configuration: %s", status.Message)
	}
	defer cfg.Release()
	fmt.Printf("%-14s %-30s # %s\n", "PLANC", cfg.PlanC, configHelp["PLANC"])
	fmt.Printf("%-14s %-30s # %s\n", "LOG_LEVEL", cfg.LogLevel, configHelp["LOG_LEVEL"])
	fmt.Printf("%-14s %-30t # %s\n", "USE_MT_MUTEX", cfg.UseMTMutex, configHelp["USE_MT_MUTEX"])
	fmt.Printf("%-14s %-30s # %s\n", "PLANC_PATH", cfg.PlanCPath, configHelp["PLANC_PATH"])
	for coll, attr := range cfg.PlanAttr {
		fmt.Printf("%-14s %-30s # plan-attribute override for %s\n", coll+"_ATTR", attr, coll)
	}
	return nil
}
