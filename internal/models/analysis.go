package models

type AnalysisOptions struct {
	TargetFramework      string
	IncludePrerelease    bool
	CheckUpdates         bool
	CheckVulnerabilities bool
	CheckLicenses        bool
	MinimumSeverity      SeverityLevel
}

func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		CheckUpdates:         true,
		CheckVulnerabilities: true,
		CheckLicenses:        true,
		MinimumSeverity:      SeverityAll,
	}
}

type UpdateInfo struct {
	LatestStableVersion     string            `json:"latestStableVersion"`
	LatestPrereleaseVersion *string           `json:"latestPrereleaseVersion"`
	VersionChangeType       VersionChangeType `json:"versionChangeType"`
	IsCompatible            bool              `json:"isCompatible"`
	ReleaseNotesUrl         *string           `json:"releaseNotesUrl"`
}

type LicenseChange struct {
	CurrentLicense    string        `json:"currentLicense"`
	LatestLicense     string        `json:"latestLicense"`
	HasChanged        bool          `json:"hasChanged"`
	Severity          SeverityLevel `json:"severity"`
	Description       string        `json:"description"`
	CurrentLicenseUrl *string       `json:"currentLicenseUrl"`
	LatestLicenseUrl  *string       `json:"latestLicenseUrl"`
}

type PackageAnalysis struct {
	Id              string          `json:"id"`
	CurrentVersion  string          `json:"currentVersion"`
	Updates         *UpdateInfo     `json:"updates"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	License         *LicenseChange  `json:"license"`
}

// DegradedAnalysis is the record reported for a package whose analysis failed.
func DegradedAnalysis(pkg PackageReference) PackageAnalysis {
	return PackageAnalysis{
		Id:              pkg.Id,
		CurrentVersion:  pkg.Version,
		Vulnerabilities: []Vulnerability{},
	}
}

type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

func (s *SeverityCounts) Add(level SeverityLevel) {
	switch level {
	case SeverityCritical:
		s.Critical++
	case SeverityHigh:
		s.High++
	case SeverityMedium:
		s.Medium++
	case SeverityLow:
		s.Low++
	}
}

func (s SeverityCounts) Total() int {
	return s.Critical + s.High + s.Medium + s.Low
}

type AnalysisSummary struct {
	TotalPackages              int            `json:"totalPackages"`
	PackagesWithUpdates        int            `json:"packagesWithUpdates"`
	VulnerablePackages         int            `json:"vulnerablePackages"`
	PackagesWithLicenseChanges int            `json:"packagesWithLicenseChanges"`
	UpToDate                   int            `json:"upToDate"`
	SeverityCounts             SeverityCounts `json:"severityCounts"`
}

type PackageAnalysisResult struct {
	Summary  AnalysisSummary   `json:"summary"`
	Packages []PackageAnalysis `json:"packages"`
}
