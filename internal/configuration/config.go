package configuration

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const FilePath = "configuration/configuration.yaml"

const (
	NugetOrgName = "nuget.org"
	NugetOrgUrl  = "https://api.nuget.org/v3/index.json"
	GithubApiUrl = "https://api.github.com/"
)

var ErrInvalidConfiguration = errors.New("invalid configuration")

type Config struct {
	PackageSources              []PackageSourceSettings     `yaml:"package_sources"`
	VulnerabilityClientSettings VulnerabilityClientSettings `yaml:"vulnerability_client_settings"`
	HttpClientSettings          HttpClientSettings          `yaml:"http_client_settings"`
	CacheSettings               CacheSettings               `yaml:"cache_settings"`
	AnalysisSettings            AnalysisSettings            `yaml:"analysis_settings"`
	Logging                     LoggingSettings             `yaml:"logging"`
}

type PackageSourceSettings struct {
	Name        string             `yaml:"name"`
	Url         string             `yaml:"url"`
	Enabled     *bool              `yaml:"enabled"`
	Credentials *SourceCredentials `yaml:"credentials"`
}

type SourceCredentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type VulnerabilityClientSettings struct {
	BaseUrl string `yaml:"base_url"`
	PAT     string `yaml:"personal_access_token"`
}

type HttpClientSettings struct {
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

type CacheSettings struct {
	SourcesTTL  time.Duration `yaml:"sources_ttl"`
	VersionsTTL time.Duration `yaml:"versions_ttl"`
	MetadataTTL time.Duration `yaml:"metadata_ttl"`
}

type AnalysisSettings struct {
	// MaxConcurrency bounds per-package fan-out. Zero selects the default, a negative
	// value removes the bound.
	MaxConcurrency int `yaml:"max_concurrency"`
}

type LoggingSettings struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	config := &Config{
		PackageSources: []PackageSourceSettings{
			{Name: NugetOrgName, Url: NugetOrgUrl},
		},
		VulnerabilityClientSettings: VulnerabilityClientSettings{
			BaseUrl: GithubApiUrl,
		},
	}
	config.applyDefaults()

	return config
}

// Load reads the yaml file at path. A missing file yields the defaults (nuget.org only).
func Load(path string) (*Config, error) {
	if path == "" {
		path = FilePath
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	if len(config.PackageSources) == 0 {
		config.PackageSources = Default().PackageSources
	}
	config.applyDefaults()
	config.expandEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.PackageSources))
	for i, source := range c.PackageSources {
		if source.Name == "" {
			return fmt.Errorf("%w: package source %d has no name", ErrInvalidConfiguration, i)
		}
		if _, ok := seen[source.Name]; ok {
			return fmt.Errorf("%w: duplicate package source %q", ErrInvalidConfiguration, source.Name)
		}
		seen[source.Name] = struct{}{}

		if err := validateUrl(source.Url); err != nil {
			return fmt.Errorf("%w: package source %q: %v", ErrInvalidConfiguration, source.Name, err)
		}
	}

	if err := validateUrl(c.VulnerabilityClientSettings.BaseUrl); err != nil {
		return fmt.Errorf("%w: vulnerability client: %v", ErrInvalidConfiguration, err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.VulnerabilityClientSettings.BaseUrl == "" {
		c.VulnerabilityClientSettings.BaseUrl = GithubApiUrl
	}
	if c.HttpClientSettings.Timeout == 0 {
		c.HttpClientSettings.Timeout = 30 * time.Second
	}
	if c.HttpClientSettings.RequestsPerSecond == 0 {
		c.HttpClientSettings.RequestsPerSecond = 20
	}
	if c.HttpClientSettings.Burst == 0 {
		c.HttpClientSettings.Burst = 10
	}
	if c.CacheSettings.SourcesTTL == 0 {
		c.CacheSettings.SourcesTTL = time.Hour
	}
	if c.CacheSettings.VersionsTTL == 0 {
		c.CacheSettings.VersionsTTL = time.Hour
	}
	if c.CacheSettings.MetadataTTL == 0 {
		c.CacheSettings.MetadataTTL = 24 * time.Hour
	}
	if c.AnalysisSettings.MaxConcurrency == 0 {
		c.AnalysisSettings.MaxConcurrency = 8
	}
}

func (c *Config) expandEnv() {
	c.VulnerabilityClientSettings.PAT = os.ExpandEnv(c.VulnerabilityClientSettings.PAT)
	for i := range c.PackageSources {
		if credentials := c.PackageSources[i].Credentials; credentials != nil {
			credentials.Username = os.ExpandEnv(credentials.Username)
			credentials.Password = os.ExpandEnv(credentials.Password)
		}
	}
}

func validateUrl(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("error parsing url %q: %w", raw, err)
	}

	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("url %q must be absolute", raw)
	}

	return nil
}
