package main

import (
	"fmt"

	aituberflow "github.com/oboroge0/AITuberFlow-sub001"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of aituberflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "aituberflow version %s\n", aituberflow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
