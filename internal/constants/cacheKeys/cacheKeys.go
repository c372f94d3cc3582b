package cachekeys

const (
	Sources      = "sources"
	Versions     = "versions"
	License      = "license"
	ProjectUrl   = "projecturl"
	ServiceIndex = "serviceindex"
)

const ConfiguredSources = Sources + ":configured"
