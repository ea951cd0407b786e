package main

import (
	"github.com/spf13/cobra"

	"github.com/sheetbuilder/sheetbuilder/internal/api"
	"github.com/sheetbuilder/sheetbuilder/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "sheetbuilder",
	Short: "PDF sheet composition service for large-format printing",
	Long: `Sheetbuilder packs the pages of an uploaded PDF onto fixed-width print
sheets: consecutive pages stack top to bottom onto 317 mm wide sheets of
one uniform height, with optional page rotation and whole-document
reversal.

The server provides:
  - Asynchronous composition jobs with live progress streams
  - Idempotent submissions: equivalent uploads share one job
  - A recent-result cache answering duplicate submissions instantly`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.sheetbuilder/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "sheetbuilder home directory (default: ~/.sheetbuilder)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
