package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/braidworks/braid"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of braid",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("braid version %s\n", braid.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
