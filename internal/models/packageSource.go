package models

type PackageSource struct {
	Name            string `json:"name"`
	Url             string `json:"url"`
	IsEnabled       bool   `json:"isEnabled"`
	IsOfficial      bool   `json:"isOfficial"`
	RequiresAuth    bool   `json:"requiresAuth"`
	IsAuthenticated bool   `json:"isAuthenticated"`

	Username string `json:"-"`
	Password string `json:"-"`
}
