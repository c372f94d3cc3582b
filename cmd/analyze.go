package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tablewriterservice "github.com/RobsonDevCode/nugetexplorer/internal/cmdLineWriters/tablewriter"
	"github.com/RobsonDevCode/nugetexplorer/internal/constants/exportExcelOptions"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	excelexportservice "github.com/RobsonDevCode/nugetexplorer/internal/services/excelExportService"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [id@version ...]",
	Short: "analyze packages for updates, vulnerabilities and license changes",
	Long: `analyze packages for updates, vulnerabilities and license changes.

		   Packages are given as id@version arguments, read from a project file with --project, or both.
		   Duplicate references are analyzed once.`,
	RunE: runAnalyze,
}

var analyzeFlags struct {
	project              string
	framework            string
	includePrerelease    bool
	checkUpdates         bool
	checkVulnerabilities bool
	checkLicenses        bool
	severity             string
	output               string
	export               bool
	stats                bool
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := validateOutput(analyzeFlags.output); err != nil {
		return err
	}

	packages, err := services.ProjectReader.ParsePackageArgs(args)
	if err != nil {
		return err
	}

	framework := analyzeFlags.framework
	exportName := ""
	if analyzeFlags.project != "" {
		project, err := services.ProjectReader.ReadCsProject(ctx, analyzeFlags.project)
		if err != nil {
			return err
		}

		for _, unversioned := range project.Unversioned {
			fmt.Fprint(cmd.ErrOrStderr(), color.YellowString("\n skipping %s, it has no version in %s", unversioned, filepath.Base(analyzeFlags.project)))
		}

		packages = append(packages, project.Packages...)
		exportName = project.Name
		if framework == "" {
			framework = project.Framework
		}
	}

	if len(packages) == 0 {
		return fmt.Errorf("no packages to analyze, pass id@version arguments or --project")
	}

	options := models.AnalysisOptions{
		TargetFramework:      framework,
		IncludePrerelease:    analyzeFlags.includePrerelease,
		CheckUpdates:         analyzeFlags.checkUpdates,
		CheckVulnerabilities: analyzeFlags.checkVulnerabilities,
		CheckLicenses:        analyzeFlags.checkLicenses,
		MinimumSeverity:      models.SeverityFilterFromString(analyzeFlags.severity),
	}

	result, err := services.Analyzer.AnalyzePackages(ctx, packages, options)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeFlags.output == outputJson {
		if err := writeJson(out, result); err != nil {
			return err
		}
	} else {
		tablewriterservice.DisplayAnalysis(out, result)
	}

	if err := exportIfRequested(cmd, result, exportName); err != nil {
		return err
	}

	if analyzeFlags.stats {
		return printStats(cmd)
	}

	return nil
}

func exportIfRequested(cmd *cobra.Command, result models.PackageAnalysisResult, name string) error {
	export := analyzeFlags.export
	if !export && analyzeFlags.output == outputTable && isInteractive() {
		choice, err := excelexportservice.SelectExportToExcel()
		if err != nil {
			return err
		}
		export = choice == exportExcelOptions.Yes
	}

	if !export {
		return nil
	}

	path, err := excelexportservice.ExportAnalysis(result, excelexportservice.SaveFileTo, name)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nYour file has been saved to: %s\n", path)
	return nil
}

func printStats(cmd *cobra.Command) error {
	samples, err := services.Stats.Snapshot()
	if err != nil {
		return fmt.Errorf("error gathering stats: %w", err)
	}

	tablewriterservice.DisplayStatsTable(cmd.ErrOrStderr(), samples)
	return nil
}

func isInteractive() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writeJson(w io.Writer, value interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("error encoding json output: %w", err)
	}

	return nil
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFlags.project, "project", "p", "", "Read package references from a .csproj file")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.framework, "framework", "f", "", "Target framework, e.g. net8.0 (defaults to the project's)")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.includePrerelease, "prerelease", false, "Include prerelease versions")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.checkUpdates, "check-updates", true, "Check for package updates")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.checkVulnerabilities, "check-vulnerabilities", true, "Check for security vulnerabilities")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.checkLicenses, "check-licenses", true, "Check for license changes")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.severity, "severity", "s", "all", "Minimum vulnerability severity (all, low, medium, high, critical)")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.output, "output", "o", outputTable, "Output format (table, json)")
	analyzeCmd.Flags().BoolVarP(&analyzeFlags.export, "export", "e", false, "Export the analysis to an Excel workbook")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.stats, "stats", false, "Print runtime counters after the analysis")

	rootCmd.AddCommand(analyzeCmd)
}
