package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobenrich/internal/model"
)

var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jobenrich %s (enrichment schema v%d)\n", version, model.CurrentEnrichmentVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
