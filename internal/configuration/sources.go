package configuration

import (
	"context"
	"strings"

	"github.com/RobsonDevCode/nugetexplorer/internal/models"
)

const officialRegistryHost = "nuget.org"

type SourceLoader interface {
	LoadSources(ctx context.Context) ([]models.PackageSource, error)
}

// FileSourceLoader serves package sources from the loaded configuration file.
type FileSourceLoader struct {
	config *Config
}

func NewFileSourceLoader(config *Config) *FileSourceLoader {
	return &FileSourceLoader{
		config: config,
	}
}

func (l *FileSourceLoader) LoadSources(ctx context.Context) ([]models.PackageSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sources := make([]models.PackageSource, 0, len(l.config.PackageSources))
	for _, settings := range l.config.PackageSources {
		sources = append(sources, settings.ToPackageSource())
	}

	return sources, nil
}

func (s PackageSourceSettings) ToPackageSource() models.PackageSource {
	source := models.PackageSource{
		Name:       s.Name,
		Url:        s.Url,
		IsEnabled:  s.Enabled == nil || *s.Enabled,
		IsOfficial: strings.Contains(strings.ToLower(s.Url), officialRegistryHost),
	}

	if s.Credentials != nil {
		source.Username = s.Credentials.Username
		source.Password = s.Credentials.Password
		source.RequiresAuth = s.Credentials.Username != ""
		source.IsAuthenticated = s.Credentials.Username != "" && s.Credentials.Password != ""
	}

	return source
}
