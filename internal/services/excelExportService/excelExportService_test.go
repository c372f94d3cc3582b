package excelexportservice

import (
	"testing"

	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportAnalysis(t *testing.T) {
	result := models.PackageAnalysisResult{
		Summary: models.AnalysisSummary{TotalPackages: 2, PackagesWithUpdates: 1, UpToDate: 1, VulnerablePackages: 1,
			PackagesWithLicenseChanges: 1, SeverityCounts: models.SeverityCounts{Critical: 1}},
		Packages: []models.PackageAnalysis{
			{
				Id: "FluentAssertions", CurrentVersion: "6.12.0",
				Updates: &models.UpdateInfo{LatestStableVersion: "8.0.0", VersionChangeType: models.VersionChangeMajor},
				License: &models.LicenseChange{CurrentLicense: "Apache-2.0", LatestLicense: "Commercial", HasChanged: true,
					Severity: models.SeverityCritical, Description: "Package changed from Apache-2.0 to commercial/proprietary license"},
				Vulnerabilities: []models.Vulnerability{},
			},
			{
				Id: "System.Text.Json", CurrentVersion: "8.0.0",
				Vulnerabilities: []models.Vulnerability{{Id: "GHSA-hh2w-p6rv-4g7w", CveId: "CVE-2024-43485", Severity: models.SeverityCritical}},
			},
		},
	}

	path, err := ExportAnalysis(result, t.TempDir(), "orders")
	require.NoError(t, err)
	assert.Contains(t, path, "packages_orders_")

	file, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, []string{"Packages", "Vulnerabilities", "Licenses", "Summary"}, file.GetSheetList())

	value, err := file.GetCellValue("Packages", "A2")
	require.NoError(t, err)
	assert.Equal(t, "FluentAssertions", value)

	value, err = file.GetCellValue("Vulnerabilities", "D2")
	require.NoError(t, err)
	assert.Equal(t, "CVE-2024-43485", value)

	value, err = file.GetCellValue("Licenses", "F2")
	require.NoError(t, err)
	assert.Equal(t, "critical", value)

	value, err = file.GetCellValue("Summary", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2", value)
}
