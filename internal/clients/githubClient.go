package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	clientmodels "github.com/RobsonDevCode/nugetexplorer/internal/clients/models"
	"github.com/RobsonDevCode/nugetexplorer/internal/configuration"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const nugetEcosystem = "nuget"

// GitHub caps a page of global advisories at 100
const advisoriesPerPage = 100

type VulnerabilityClientService interface {
	GetVulnerabilities(ctx context.Context, pkg models.PackageReference) ([]models.Vulnerability, error)
}

// GithubClient queries the GitHub advisory database for advisories affecting an exact version.
type GithubClient struct {
	client              *http.Client
	cb                  *gobreaker.CircuitBreaker
	limiter             *rate.Limiter
	baseUrl             *url.URL
	personalAccessToken string
}

func NewGithubClient(config *configuration.Config, logger *zap.Logger) (*GithubClient, error) {
	baseUrl, err := url.Parse(config.VulnerabilityClientSettings.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("error parsing base url to a url type, %w", err)
	}

	return &GithubClient{
		client:              newHttpClient(config.HttpClientSettings),
		cb:                  newCircuitBreaker("github-advisories", logger),
		limiter:             newRateLimiter(config.HttpClientSettings),
		baseUrl:             baseUrl,
		personalAccessToken: config.VulnerabilityClientSettings.PAT,
	}, nil
}

func (c *GithubClient) GetVulnerabilities(ctx context.Context, pkg models.PackageReference) ([]models.Vulnerability, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := c.buildAdvisoriesQuery(pkg)

	cbResult, err := c.cb.Execute(func() (interface{}, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create http request: %w", err)
		}

		request.Header.Set("Accept", "application/vnd.github+json")
		request.Header.Set("User-Agent", userAgent)
		if c.personalAccessToken != "" {
			request.Header.Set("Authorization", "token "+c.personalAccessToken)
		}

		response, err := c.client.Do(request)
		if err != nil {
			return nil, fmt.Errorf("client response error: %w", err)
		}
		defer response.Body.Close()

		if response.StatusCode != http.StatusOK {
			return nil, handleClientError(response)
		}

		var advisories []clientmodels.Advisory
		if err := json.NewDecoder(response.Body).Decode(&advisories); err != nil {
			return nil, fmt.Errorf("error decoding advisories for %s: %w", pkg, err)
		}

		return advisories, nil
	})
	if err != nil {
		return nil, err
	}

	advisories, ok := cbResult.([]clientmodels.Advisory)
	if !ok {
		return nil, fmt.Errorf("unexpected response type when converting response")
	}

	return mapAdvisories(pkg, advisories), nil
}

func (c *GithubClient) buildAdvisoriesQuery(pkg models.PackageReference) string {
	endpoint := c.baseUrl.JoinPath("advisories")

	query := url.Values{}
	query.Set("ecosystem", nugetEcosystem)
	query.Set("affects", pkg.String())
	query.Set("per_page", fmt.Sprintf("%d", advisoriesPerPage))
	endpoint.RawQuery = query.Encode()

	return endpoint.String()
}

func mapAdvisories(pkg models.PackageReference, advisories []clientmodels.Advisory) []models.Vulnerability {
	result := make([]models.Vulnerability, 0, len(advisories))

	for _, advisory := range advisories {
		if advisory.WithdrawnAt != nil {
			continue
		}

		vulnerability := models.Vulnerability{
			Id:          advisory.GhsaId,
			CveId:       advisory.CveId,
			Summary:     advisory.Summary,
			Severity:    mapSeverity(advisory.Severity),
			Url:         advisory.HtmlUrl,
			PublishedAt: advisory.PublishedAt,
		}

		for _, affected := range advisory.Vulnerabilities {
			if strings.EqualFold(affected.Package.Name, pkg.Id) {
				vulnerability.VulnerableVersionRange = affected.VulnerableVersionRange
				vulnerability.FirstPatchedVersion = affected.FirstPatchedVersion
				break
			}
		}

		result = append(result, vulnerability)
	}

	return result
}

// Advisories without a rating ("unknown") are reported as low so every finding has a real level.
func mapSeverity(severity string) models.SeverityLevel {
	level, err := models.ParseSeverity(severity)
	if err != nil || level == models.SeverityAll {
		return models.SeverityLow
	}

	return level
}
