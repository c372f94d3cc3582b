package models

// PackageMetadata is what a single feed knows about one exact package version.
type PackageMetadata struct {
	Id         string
	Version    string
	License    string
	LicenseUrl string
	ProjectUrl string
}

// ResolvedLicense prefers the license expression and falls back to the license url.
func (m *PackageMetadata) ResolvedLicense() string {
	if m == nil {
		return ""
	}

	if m.License != "" {
		return m.License
	}

	return m.LicenseUrl
}
