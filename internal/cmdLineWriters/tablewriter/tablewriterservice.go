package tablewriterservice

import (
	"fmt"
	"io"
	"strconv"

	"github.com/RobsonDevCode/nugetexplorer/internal/constants/tableHeaders"
	"github.com/RobsonDevCode/nugetexplorer/internal/extensions"
	"github.com/RobsonDevCode/nugetexplorer/internal/metrics"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

func newTable(w io.Writer, maxWidth int) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.On}},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNormal}, //wrap long content like summary and description
				Alignment:    tw.CellAlignment{Global: tw.AlignCenter},
				ColMaxWidths: tw.CellWidth{Global: maxWidth},
			},
		}),
	)
}

func DisplayAnalysis(w io.Writer, result models.PackageAnalysisResult) {
	DisplayPackagesTable(w, result.Packages)
	DisplayVulnerabilitiesTable(w, result.Packages)
	DisplayLicenseTable(w, result.Packages)
	DisplaySummaryTable(w, result.Summary)
}

func DisplayPackagesTable(w io.Writer, packages []models.PackageAnalysis) {
	if len(packages) == 0 {
		fmt.Fprint(w, color.YellowString("\n No packages to analyze\n"))
		return
	}

	fmt.Fprintf(w, "\n Analyzed %d packages: \n", len(packages))
	table := newTable(w, 20)
	table.Header(tableHeaders.PackageTableHeaders)

	for _, pkg := range packages {
		latestStable, latestPrerelease, change := "-", "-", "-"
		if pkg.Updates != nil {
			latestStable = pkg.Updates.LatestStableVersion
			latestPrerelease = extensions.ValueOrDash(pkg.Updates.LatestPrereleaseVersion)
			change = colorChange(pkg.Updates.VersionChangeType)
		}

		licenseChange := "-"
		if pkg.License != nil {
			licenseChange = colorSeverity(pkg.License.Severity)
		}

		table.Append([]string{
			pkg.Id,
			pkg.CurrentVersion,
			latestStable,
			latestPrerelease,
			change,
			strconv.Itoa(len(pkg.Vulnerabilities)),
			licenseChange,
		})
	}

	table.Render()
}

func DisplayVulnerabilitiesTable(w io.Writer, packages []models.PackageAnalysis) {
	vulnerabilities := extensions.FlattenVulnerabilities(packages)
	if len(vulnerabilities) == 0 {
		fmt.Fprint(w, color.GreenString("\n No Package Vulnerabilities!\n"))
		return
	}

	fmt.Fprintf(w, "\n Found %d Package Vulnerabilities: \n", len(vulnerabilities))
	table := newTable(w, 25)
	table.Header(tableHeaders.VulnerabilityTableHeaders)

	for _, vulnerability := range vulnerabilities {
		published := "-"
		if !vulnerability.PublishedAt.IsZero() {
			published = vulnerability.PublishedAt.Format("2006-01-02")
		}

		table.Append([]string{
			vulnerability.PackageId,
			vulnerability.CurrentVersion,
			vulnerability.Id,
			vulnerability.CveId,
			colorSeverity(vulnerability.Severity),
			extensions.TruncateString(vulnerability.Summary, 50),
			vulnerability.VulnerableVersionRange,
			vulnerability.FirstPatchedVersion,
			published,
		})
	}

	fmt.Fprintf(w, "\n%s\n", color.HiMagentaString("Export to Excel to see full results"))
	table.Render()
}

func DisplayLicenseTable(w io.Writer, packages []models.PackageAnalysis) {
	changes := extensions.LicenseChanges(packages)
	if len(changes) == 0 {
		return
	}

	fmt.Fprint(w, color.YellowString("\n License Changes: \n"))
	table := newTable(w, 20)
	table.Header(tableHeaders.LicenseTableHeaders)

	for _, pkg := range changes {
		latest := "-"
		if pkg.Updates != nil {
			latest = pkg.Updates.LatestStableVersion
		}

		table.Append([]string{
			pkg.Id,
			pkg.CurrentVersion,
			latest,
			pkg.License.CurrentLicense,
			pkg.License.LatestLicense,
			colorSeverity(pkg.License.Severity),
			extensions.TruncateString(pkg.License.Description, 80),
		})
	}

	table.Render()
}

func DisplaySummaryTable(w io.Writer, summary models.AnalysisSummary) {
	fmt.Fprint(w, "\n Summary: \n")
	table := newTable(w, 12)
	table.Header(tableHeaders.SummaryTableHeaders)

	table.Append([]string{
		strconv.Itoa(summary.TotalPackages),
		strconv.Itoa(summary.PackagesWithUpdates),
		strconv.Itoa(summary.UpToDate),
		strconv.Itoa(summary.VulnerablePackages),
		strconv.Itoa(summary.PackagesWithLicenseChanges),
		strconv.Itoa(summary.SeverityCounts.Critical),
		strconv.Itoa(summary.SeverityCounts.High),
		strconv.Itoa(summary.SeverityCounts.Medium),
		strconv.Itoa(summary.SeverityCounts.Low),
	})

	table.Render()
}

func DisplaySourcesTable(w io.Writer, sources []models.PackageSource) {
	if len(sources) == 0 {
		fmt.Fprint(w, color.YellowString("\n No package sources configured\n"))
		return
	}

	fmt.Fprint(w, "\n Package Sources: \n")
	table := newTable(w, 60)
	table.Header(tableHeaders.SourceTableHeaders)

	for _, source := range sources {
		table.Append([]string{
			source.Name,
			source.Url,
			extensions.YesNo(source.IsEnabled),
			extensions.YesNo(source.IsOfficial),
			extensions.YesNo(source.RequiresAuth),
			extensions.YesNo(source.IsAuthenticated),
		})
	}

	table.Render()
}

func DisplayStatsTable(w io.Writer, samples []metrics.Sample) {
	if len(samples) == 0 {
		return
	}

	fmt.Fprint(w, "\n Runtime Stats: \n")
	table := newTable(w, 80)
	table.Header(tableHeaders.StatsTableHeaders)

	for _, sample := range samples {
		table.Append([]string{sample.Name, strconv.FormatFloat(sample.Value, 'f', -1, 64)})
	}

	table.Render()
}

func colorSeverity(severity models.SeverityLevel) string {
	switch severity {
	case models.SeverityCritical:
		return color.HiRedString(severity.String())
	case models.SeverityHigh:
		return color.RedString(severity.String())
	case models.SeverityMedium:
		return color.YellowString(severity.String())
	default:
		return severity.String()
	}
}

func colorChange(change models.VersionChangeType) string {
	switch change {
	case models.VersionChangeMajor:
		return color.RedString(change.String())
	case models.VersionChangeMinor:
		return color.YellowString(change.String())
	case models.VersionChangePatch:
		return color.GreenString(change.String())
	default:
		return change.String()
	}
}
