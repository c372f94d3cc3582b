package excelexportservice

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/RobsonDevCode/nugetexplorer/internal/constants/exportExcelOptions"
	"github.com/RobsonDevCode/nugetexplorer/internal/constants/tableHeaders"
	"github.com/RobsonDevCode/nugetexplorer/internal/extensions"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	"github.com/xuri/excelize/v2"
)

const SaveFileTo = "./export"

const (
	packageSheetName       = "Packages"
	vulnerabilitySheetName = "Vulnerabilities"
	licenseSheetName       = "Licenses"
	summarySheetName       = "Summary"
)

// ExportAnalysis writes the analysis to a timestamped workbook under dir and returns its path.
func ExportAnalysis(result models.PackageAnalysisResult, dir string, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating directory %s, %w", dir, err)
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", packageSheetName); err != nil {
		return "", fmt.Errorf("error naming sheet %s, %w", packageSheetName, err)
	}

	for _, sheet := range []string{vulnerabilitySheetName, licenseSheetName, summarySheetName} {
		if _, err := file.NewSheet(sheet); err != nil {
			return "", fmt.Errorf("error creating sheet %s, %w", sheet, err)
		}
	}

	writers := []func(*excelize.File, models.PackageAnalysisResult) error{
		writePackages,
		writeVulnerabilities,
		writeLicenses,
		writeSummary,
	}
	for _, write := range writers {
		if err := write(file, result); err != nil {
			return "", err
		}
	}

	if name == "" {
		name = "analysis"
	}

	fileName := fmt.Sprintf("packages_%s_%s.xlsx", name, time.Now().Format("2006-01-02T15-04-05"))
	fullPath := filepath.Join(dir, fileName)

	if err := file.SaveAs(fullPath); err != nil {
		return "", fmt.Errorf("failed to save excel to %s, %w", fullPath, err)
	}

	return fullPath, nil
}

func SelectExportToExcel() (string, error) {
	prompt := &survey.Select{
		Message: "Export Package Analysis",
		Options: exportExcelOptions.ExcelOptions,
	}

	var selectedIndex int
	err := survey.AskOne(prompt, &selectedIndex)
	if err != nil {
		return "", fmt.Errorf("selection error: %w", err)
	}

	return exportExcelOptions.ExcelOptions[selectedIndex], nil
}

func writePackages(file *excelize.File, result models.PackageAnalysisResult) error {
	rows := make([][]interface{}, 0, len(result.Packages))
	for _, pkg := range result.Packages {
		latestStable, latestPrerelease, change := "", "", ""
		if pkg.Updates != nil {
			latestStable = pkg.Updates.LatestStableVersion
			latestPrerelease = extensions.ValueOrDash(pkg.Updates.LatestPrereleaseVersion)
			change = pkg.Updates.VersionChangeType.String()
		}

		licenseChange := ""
		if pkg.License != nil {
			licenseChange = pkg.License.Severity.String()
		}

		rows = append(rows, []interface{}{
			pkg.Id,
			pkg.CurrentVersion,
			latestStable,
			latestPrerelease,
			change,
			len(pkg.Vulnerabilities),
			licenseChange,
		})
	}

	return writeSheet(file, packageSheetName, tableHeaders.PackageTableHeaders, rows)
}

func writeVulnerabilities(file *excelize.File, result models.PackageAnalysisResult) error {
	vulnerabilities := extensions.FlattenVulnerabilities(result.Packages)
	rows := make([][]interface{}, 0, len(vulnerabilities))
	for _, vulnerability := range vulnerabilities {
		published := ""
		if !vulnerability.PublishedAt.IsZero() {
			published = vulnerability.PublishedAt.Format("2006-01-02")
		}

		rows = append(rows, []interface{}{
			vulnerability.PackageId,
			vulnerability.CurrentVersion,
			vulnerability.Id,
			vulnerability.CveId,
			vulnerability.Severity.String(),
			vulnerability.Summary,
			vulnerability.VulnerableVersionRange,
			vulnerability.FirstPatchedVersion,
			published,
		})
	}

	return writeSheet(file, vulnerabilitySheetName, tableHeaders.VulnerabilityTableHeaders, rows)
}

func writeLicenses(file *excelize.File, result models.PackageAnalysisResult) error {
	changes := extensions.LicenseChanges(result.Packages)
	rows := make([][]interface{}, 0, len(changes))
	for _, pkg := range changes {
		latest := ""
		if pkg.Updates != nil {
			latest = pkg.Updates.LatestStableVersion
		}

		rows = append(rows, []interface{}{
			pkg.Id,
			pkg.CurrentVersion,
			latest,
			pkg.License.CurrentLicense,
			pkg.License.LatestLicense,
			pkg.License.Severity.String(),
			pkg.License.Description,
		})
	}

	return writeSheet(file, licenseSheetName, tableHeaders.LicenseTableHeaders, rows)
}

func writeSummary(file *excelize.File, result models.PackageAnalysisResult) error {
	summary := result.Summary
	row := []interface{}{
		summary.TotalPackages,
		summary.PackagesWithUpdates,
		summary.UpToDate,
		summary.VulnerablePackages,
		summary.PackagesWithLicenseChanges,
		summary.SeverityCounts.Critical,
		summary.SeverityCounts.High,
		summary.SeverityCounts.Medium,
		summary.SeverityCounts.Low,
	}

	return writeSheet(file, summarySheetName, tableHeaders.SummaryTableHeaders, [][]interface{}{row})
}

func writeSheet(file *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("error writing header of %s, %w", sheet, err)
		}
	}

	for i := range rows {
		row := i + 2 // excel is 1 index and skip headers
		if err := file.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &rows[i]); err != nil {
			return fmt.Errorf("error writing row %d of %s, %w", row, sheet, err)
		}
	}

	return nil
}
