package models

import "time"

type Advisory struct {
	GhsaId          string                  `json:"ghsa_id"`
	CveId           string                  `json:"cve_id"`
	HtmlUrl         string                  `json:"html_url"`
	Summary         string                  `json:"summary"`
	Description     string                  `json:"description"`
	Severity        string                  `json:"severity"`
	PublishedAt     time.Time               `json:"published_at"`
	WithdrawnAt     *time.Time              `json:"withdrawn_at"`
	Vulnerabilities []AdvisoryVulnerability `json:"vulnerabilities"`
}

type AdvisoryVulnerability struct {
	Package                Package `json:"package"`
	VulnerableVersionRange string  `json:"vulnerable_version_range"`
	FirstPatchedVersion    string  `json:"first_patched_version"`
}

type Package struct {
	Ecosystem string `json:"ecosystem"`
	Name      string `json:"name"`
}

type Error struct {
	Message          string `json:"message"`
	DocumentationUrl string `json:"documentation_url"`
}
