package cmd

import (
	tablewriterservice "github.com/RobsonDevCode/nugetexplorer/internal/cmdLineWriters/tablewriter"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "list the enabled package sources",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

var sourcesOutput string

type sourcesResponse struct {
	Sources []models.PackageSource `json:"sources"`
}

func runSources(cmd *cobra.Command, args []string) error {
	if err := validateOutput(sourcesOutput); err != nil {
		return err
	}

	sources, err := services.Analyzer.ListPackageSources(cmd.Context())
	if err != nil {
		return err
	}

	if sourcesOutput == outputJson {
		return writeJson(cmd.OutOrStdout(), sourcesResponse{Sources: sources})
	}

	tablewriterservice.DisplaySourcesTable(cmd.OutOrStdout(), sources)
	return nil
}

func init() {
	sourcesCmd.Flags().StringVarP(&sourcesOutput, "output", "o", outputTable, "Output format (table, json)")

	rootCmd.AddCommand(sourcesCmd)
}
