package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/braidworks/braid/config"
)

var rootCmd = &cobra.Command{
	Use:   "braid",
	Short: "Braid is a runtime for hierarchical, tool-using agent tasks",
	Long: `Braid executes agent tasks that call tools and nested sub-tasks,
streams every event as it happens and reconstructs the full call tree
from the event log, live or after the fact.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the braid configuration file")
}

// loadConfig resolves the configuration for a command invocation.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	config.LoadDotEnv(".env")
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}
