package models

type FlatContainerVersions struct {
	Versions []string `json:"versions"`
}

type RegistrationIndex struct {
	Count int                `json:"count"`
	Items []RegistrationPage `json:"items"`
}

type RegistrationPage struct {
	Id    string             `json:"@id"`
	Lower string             `json:"lower"`
	Upper string             `json:"upper"`
	Items []RegistrationLeaf `json:"items"`
}

type RegistrationLeaf struct {
	Id           string       `json:"@id"`
	CatalogEntry CatalogEntry `json:"catalogEntry"`
}

type CatalogEntry struct {
	Id                string `json:"id"`
	Version           string `json:"version"`
	LicenseExpression string `json:"licenseExpression"`
	LicenseUrl        string `json:"licenseUrl"`
	ProjectUrl        string `json:"projectUrl"`
	Listed            *bool  `json:"listed"`
}

func (c CatalogEntry) IsListed() bool {
	return c.Listed == nil || *c.Listed
}
