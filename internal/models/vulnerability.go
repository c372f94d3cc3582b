package models

import "time"

// Vulnerability is a single advisory affecting an exact package version.
type Vulnerability struct {
	Id                     string        `json:"id"`
	CveId                  string        `json:"cveId,omitempty"`
	Summary                string        `json:"summary"`
	Severity               SeverityLevel `json:"severity"`
	Url                    string        `json:"url,omitempty"`
	VulnerableVersionRange string        `json:"vulnerableVersionRange,omitempty"`
	FirstPatchedVersion    string        `json:"firstPatchedVersion,omitempty"`
	PublishedAt            time.Time     `json:"publishedAt"`
}

func FilterBySeverity(vulnerabilities []Vulnerability, minimum SeverityLevel) []Vulnerability {
	result := make([]Vulnerability, 0, len(vulnerabilities))
	for _, vulnerability := range vulnerabilities {
		if vulnerability.Severity >= minimum {
			result = append(result, vulnerability)
		}
	}

	return result
}
