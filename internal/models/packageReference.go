package models

type PackageReference struct {
	Id      string `json:"id"`
	Version string `json:"version"`
}

func (p PackageReference) String() string {
	return p.Id + "@" + p.Version
}

// Distinct keeps the first occurrence of each (id, version) pair, preserving input order.
func Distinct(packages []PackageReference) []PackageReference {
	seen := make(map[PackageReference]struct{}, len(packages))
	result := make([]PackageReference, 0, len(packages))

	for _, pkg := range packages {
		if _, ok := seen[pkg]; ok {
			continue
		}
		seen[pkg] = struct{}{}
		result = append(result, pkg)
	}

	return result
}
