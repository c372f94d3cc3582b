package models

type ServiceIndex struct {
	Version   string            `json:"version"`
	Resources []ServiceResource `json:"resources"`
}

type ServiceResource struct {
	Id   string `json:"@id"`
	Type string `json:"@type"`
}

// Resource returns the url of the first resource matching one of the types, in preference order.
func (s ServiceIndex) Resource(types ...string) (string, bool) {
	for _, resourceType := range types {
		for _, resource := range s.Resources {
			if resource.Type == resourceType {
				return resource.Id, true
			}
		}
	}

	return "", false
}
