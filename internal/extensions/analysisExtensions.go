package extensions

import (
	"slices"
	"strings"

	"github.com/RobsonDevCode/nugetexplorer/internal/models"
)

// PackageVulnerability is a vulnerability together with the package it was reported for.
type PackageVulnerability struct {
	PackageId      string
	CurrentVersion string
	models.Vulnerability
}

// FlattenVulnerabilities lists every vulnerability of the batch, most severe first.
func FlattenVulnerabilities(packages []models.PackageAnalysis) []PackageVulnerability {
	var result []PackageVulnerability
	for _, pkg := range packages {
		for _, vulnerability := range pkg.Vulnerabilities {
			result = append(result, PackageVulnerability{
				PackageId:      pkg.Id,
				CurrentVersion: pkg.CurrentVersion,
				Vulnerability:  vulnerability,
			})
		}
	}

	slices.SortStableFunc(result, func(a, b PackageVulnerability) int {
		if a.Severity != b.Severity {
			return int(b.Severity) - int(a.Severity)
		}
		return strings.Compare(a.PackageId, b.PackageId)
	})

	return result
}

// LicenseChanges returns the packages whose license changed, most severe first.
func LicenseChanges(packages []models.PackageAnalysis) []models.PackageAnalysis {
	var result []models.PackageAnalysis
	for _, pkg := range packages {
		if pkg.License != nil && pkg.License.HasChanged {
			result = append(result, pkg)
		}
	}

	slices.SortStableFunc(result, func(a, b models.PackageAnalysis) int {
		return int(b.License.Severity) - int(a.License.Severity)
	})

	return result
}
