package licenseanalyzerservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	packagesourceservice "github.com/RobsonDevCode/nugetexplorer/internal/services/packageSourceService"
	"go.uber.org/zap"
)

const (
	unknownLicense = "Unknown"
	customLicense  = "Custom License (see URL)"
)

var (
	permissiveLicenses = []string{"MIT", "Apache-2.0", "BSD-2-Clause", "BSD-3-Clause", "ISC", "0BSD"}
	copyleftLicenses   = []string{"GPL-2.0", "GPL-3.0", "AGPL-3.0", "LGPL-2.1", "LGPL-3.0"}
	proprietaryMarkers = []string{"commercial", "proprietary", "closed-source", "closed source"}
)

// urlMarkers maps a license url to a license by substring, in priority order.
var urlMarkers = []struct {
	marker  string
	license string
}{
	{"MIT", "MIT"},
	{"Apache", "Apache-2.0"},
	{"GPL", "GPL"},
}

var fullNames = map[string]string{
	"mit license":        "MIT",
	"apache license 2.0": "Apache-2.0",
}

type severityRule struct {
	name     string
	matches  func(current, latest string) bool
	severity models.SeverityLevel
}

// severityRules is evaluated top to bottom and the first match wins. Empty strings stand for
// an absent license.
var severityRules = []severityRule{
	{"license added", func(current, latest string) bool { return current == "" && latest != "" }, models.SeverityLow},
	{"license removed", func(current, latest string) bool { return current != "" && latest == "" }, models.SeverityMedium},
	{"became proprietary", func(current, latest string) bool { return isProprietary(latest) && !isProprietary(current) }, models.SeverityCritical},
	{"permissive to copyleft", func(current, latest string) bool { return isCopyleft(latest) && isPermissive(current) }, models.SeverityHigh},
	{"left permissive", func(current, latest string) bool { return isPermissive(current) && !isPermissive(latest) }, models.SeverityHigh},
	{"other change", func(current, latest string) bool { return true }, models.SeverityMedium},
}

type LicenseAnalyzerService interface {
	CheckLicenseChange(ctx context.Context, pkg models.PackageReference, latestVersion string) (*models.LicenseChange, error)
}

type LicenseAnalyzer struct {
	sources packagesourceservice.PackageSourceService
	logger  *zap.Logger
}

func NewLicenseAnalyzer(sources packagesourceservice.PackageSourceService, logger *zap.Logger) *LicenseAnalyzer {
	return &LicenseAnalyzer{
		sources: sources,
		logger:  logger,
	}
}

// CheckLicenseChange compares the license of the referenced version with the license of
// latestVersion. It returns nil when both normalize to the same license. Failures other than
// cancellation are logged and reported as no change.
func (l *LicenseAnalyzer) CheckLicenseChange(ctx context.Context, pkg models.PackageReference, latestVersion string) (*models.LicenseChange, error) {
	change, err := l.checkLicenseChange(ctx, pkg, latestVersion)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		l.logger.Error("failed to check license change", zap.String("package", pkg.Id), zap.Error(err))
		return nil, nil
	}

	return change, nil
}

func (l *LicenseAnalyzer) checkLicenseChange(ctx context.Context, pkg models.PackageReference, latestVersion string) (*models.LicenseChange, error) {
	currentLicense, err := l.sources.GetPackageLicense(ctx, pkg.Id, pkg.Version)
	if err != nil {
		return nil, fmt.Errorf("error getting license of %s: %w", pkg, err)
	}

	latestLicense, err := l.sources.GetPackageLicense(ctx, pkg.Id, latestVersion)
	if err != nil {
		return nil, fmt.Errorf("error getting license of %s@%s: %w", pkg.Id, latestVersion, err)
	}

	return CompareLicenses(currentLicense, latestLicense), nil
}

// CompareLicenses classifies the transition from current to latest, or returns nil when the
// normalized licenses are equal.
func CompareLicenses(current string, latest string) *models.LicenseChange {
	normalizedCurrent := Normalize(current)
	normalizedLatest := Normalize(latest)

	if strings.EqualFold(normalizedCurrent, normalizedLatest) {
		return nil
	}

	severity := Classify(normalizedCurrent, normalizedLatest)

	return &models.LicenseChange{
		CurrentLicense:    displayName(normalizedCurrent),
		LatestLicense:     displayName(normalizedLatest),
		HasChanged:        true,
		Severity:          severity,
		Description:       describe(normalizedCurrent, normalizedLatest, severity),
		CurrentLicenseUrl: urlOrNil(current),
		LatestLicenseUrl:  urlOrNil(latest),
	}
}

// Normalize maps license urls and common full names to short identifiers. An empty result
// means no license. Normalize(Normalize(x)) == Normalize(x).
func Normalize(license string) string {
	license = strings.TrimSpace(license)
	if license == "" {
		return ""
	}

	if isUrl(license) {
		for _, candidate := range urlMarkers {
			if containsFold(license, candidate.marker) {
				return candidate.license
			}
		}

		return customLicense
	}

	if shortName, ok := fullNames[strings.ToLower(license)]; ok {
		return shortName
	}

	return license
}

func Classify(current string, latest string) models.SeverityLevel {
	for _, rule := range severityRules {
		if rule.matches(current, latest) {
			return rule.severity
		}
	}

	return models.SeverityMedium
}

func describe(current string, latest string, severity models.SeverityLevel) string {
	current = displayName(current)
	latest = displayName(latest)

	switch severity {
	case models.SeverityCritical:
		return fmt.Sprintf("Package changed from %s to commercial/proprietary license", current)
	case models.SeverityHigh:
		return fmt.Sprintf("Package license changed from %s to %s (more restrictive)", current, latest)
	case models.SeverityMedium:
		return fmt.Sprintf("Package license changed from %s to %s", current, latest)
	case models.SeverityLow:
		return "Package now includes license information (improvement)"
	default:
		return fmt.Sprintf("License changed from %s to %s", current, latest)
	}
}

func displayName(license string) string {
	if license == "" {
		return unknownLicense
	}

	return license
}

func urlOrNil(license string) *string {
	license = strings.TrimSpace(license)
	if !isUrl(license) {
		return nil
	}

	return &license
}

func isUrl(license string) bool {
	lower := strings.ToLower(license)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isPermissive(license string) bool {
	return containsAny(license, permissiveLicenses)
}

func isCopyleft(license string) bool {
	return containsAny(license, copyleftLicenses)
}

func isProprietary(license string) bool {
	return containsAny(license, proprietaryMarkers)
}

func containsAny(license string, candidates []string) bool {
	if license == "" {
		return false
	}

	for _, candidate := range candidates {
		if containsFold(license, candidate) {
			return true
		}
	}

	return false
}

func containsFold(s string, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
