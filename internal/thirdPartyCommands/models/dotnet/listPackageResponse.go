package dotnetmodels

// ListPackageResponse is the output of `dotnet list package --format json`.
type ListPackageResponse struct {
	Version  int               `json:"version"`
	Projects []ProjectPackages `json:"projects"`
}

type ProjectPackages struct {
	Path       string              `json:"path"`
	Frameworks []FrameworkPackages `json:"frameworks"`
}

type FrameworkPackages struct {
	Framework        string            `json:"framework"`
	TopLevelPackages []TopLevelPackage `json:"topLevelPackages"`
}

type TopLevelPackage struct {
	Id               string `json:"id"`
	RequestedVersion string `json:"requestedVersion"`
	ResolvedVersion  string `json:"resolvedVersion"`
}

// Versions maps each top level package id to its resolved version, falling back to the
// requested one. The first framework that lists a package wins.
func (r ListPackageResponse) Versions() map[string]string {
	versions := make(map[string]string)
	for _, project := range r.Projects {
		for _, framework := range project.Frameworks {
			for _, pkg := range framework.TopLevelPackages {
				if _, ok := versions[pkg.Id]; ok {
					continue
				}

				version := pkg.ResolvedVersion
				if version == "" {
					version = pkg.RequestedVersion
				}
				if version != "" {
					versions[pkg.Id] = version
				}
			}
		}
	}

	return versions
}
