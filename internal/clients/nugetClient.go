package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	cache "github.com/RobsonDevCode/nugetexplorer/internal/caching"
	clientmodels "github.com/RobsonDevCode/nugetexplorer/internal/clients/models"
	"github.com/RobsonDevCode/nugetexplorer/internal/configuration"
	cachekeys "github.com/RobsonDevCode/nugetexplorer/internal/constants/cacheKeys"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	packageBaseAddress = "PackageBaseAddress/3.0.0"
	registrations360   = "RegistrationsBaseUrl/3.6.0"
	registrations340   = "RegistrationsBaseUrl/3.4.0"
	registrations      = "RegistrationsBaseUrl"
)

// RegistryClientService talks to a single package source per call.
// A package the source does not carry is not an error: ListVersions returns an empty
// list and GetMetadata returns nil.
type RegistryClientService interface {
	ListVersions(ctx context.Context, source models.PackageSource, packageId string) ([]string, error)
	GetMetadata(ctx context.Context, source models.PackageSource, packageId string, version string) (*models.PackageMetadata, error)
}

type NugetClient struct {
	client     *http.Client
	limiter    *rate.Limiter
	cache      *cache.Cache
	sourcesTTL time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewNugetClient(config *configuration.Config, cache *cache.Cache, logger *zap.Logger) *NugetClient {
	return &NugetClient{
		client:     newHttpClient(config.HttpClientSettings),
		limiter:    newRateLimiter(config.HttpClientSettings),
		cache:      cache,
		sourcesTTL: config.CacheSettings.SourcesTTL,
		logger:     logger,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *NugetClient) ListVersions(ctx context.Context, source models.PackageSource, packageId string) ([]string, error) {
	index, err := c.serviceIndex(ctx, source)
	if err != nil {
		return nil, err
	}

	baseAddress, ok := index.Resource(packageBaseAddress)
	if !ok {
		return nil, fmt.Errorf("source %s does not expose %s", source.Name, packageBaseAddress)
	}

	url := fmt.Sprintf("%s/%s/index.json", strings.TrimSuffix(baseAddress, "/"), strings.ToLower(packageId))

	var result clientmodels.FlatContainerVersions
	found, err := c.getJSON(ctx, source, url, &result)
	if err != nil {
		return nil, fmt.Errorf("error listing versions of %s from %s: %w", packageId, source.Name, err)
	}
	if !found {
		return []string{}, nil
	}

	return result.Versions, nil
}

func (c *NugetClient) GetMetadata(ctx context.Context, source models.PackageSource, packageId string, version string) (*models.PackageMetadata, error) {
	index, err := c.serviceIndex(ctx, source)
	if err != nil {
		return nil, err
	}

	registrationBase, ok := index.Resource(registrations360, registrations340, registrations)
	if !ok {
		return nil, fmt.Errorf("source %s does not expose a registration resource", source.Name)
	}

	url := fmt.Sprintf("%s/%s/index.json", strings.TrimSuffix(registrationBase, "/"), strings.ToLower(packageId))

	var registration clientmodels.RegistrationIndex
	found, err := c.getJSON(ctx, source, url, &registration)
	if err != nil {
		return nil, fmt.Errorf("error reading registration of %s from %s: %w", packageId, source.Name, err)
	}
	if !found {
		return nil, nil
	}

	for _, page := range registration.Items {
		if !pageMayContain(page, version) {
			continue
		}

		leaves := page.Items
		if leaves == nil {
			var fullPage clientmodels.RegistrationPage
			found, err := c.getJSON(ctx, source, page.Id, &fullPage)
			if err != nil {
				return nil, fmt.Errorf("error reading registration page %s: %w", page.Id, err)
			}
			if !found {
				continue
			}
			leaves = fullPage.Items
		}

		for _, leaf := range leaves {
			entry := leaf.CatalogEntry
			if !entry.IsListed() || !sameVersion(entry.Version, version) {
				continue
			}

			return &models.PackageMetadata{
				Id:         entry.Id,
				Version:    entry.Version,
				License:    entry.LicenseExpression,
				LicenseUrl: entry.LicenseUrl,
				ProjectUrl: entry.ProjectUrl,
			}, nil
		}
	}

	return nil, nil
}

func (c *NugetClient) serviceIndex(ctx context.Context, source models.PackageSource) (clientmodels.ServiceIndex, error) {
	key := cache.Key(cachekeys.ServiceIndex, source.Url)

	return cache.GetOrSet(ctx, c.cache, key, c.sourcesTTL,
		func(ctx context.Context) (clientmodels.ServiceIndex, error) {
			var index clientmodels.ServiceIndex
			found, err := c.getJSON(ctx, source, source.Url, &index)
			if err != nil {
				return clientmodels.ServiceIndex{}, fmt.Errorf("error reading service index of %s: %w", source.Name, err)
			}
			if !found {
				return clientmodels.ServiceIndex{}, fmt.Errorf("service index of %s: %w", source.Name, ErrPackageNotFound)
			}

			return index, nil
		})
}

// getJSON decodes the response into out. A 404 reports found=false without counting
// against the source's circuit breaker.
func (c *NugetClient) getJSON(ctx context.Context, source models.PackageSource, url string, out interface{}) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	cbResult, err := c.breakerFor(source.Name).Execute(func() (interface{}, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, fmt.Errorf("failed to create http request: %w", err)
		}

		request.Header.Set("Accept", "application/json")
		request.Header.Set("User-Agent", userAgent)
		if source.Username != "" {
			request.SetBasicAuth(source.Username, source.Password)
		}

		response, err := c.client.Do(request)
		if err != nil {
			return false, fmt.Errorf("client response error: %w", err)
		}
		defer response.Body.Close()

		if response.StatusCode == http.StatusNotFound {
			return false, nil
		}

		if response.StatusCode != http.StatusOK {
			return false, handleClientError(response)
		}

		if err := json.NewDecoder(response.Body).Decode(out); err != nil {
			return false, fmt.Errorf("error decoding response from %s: %w", url, err)
		}

		return true, nil
	})
	if err != nil {
		return false, err
	}

	found, ok := cbResult.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected response type when converting response")
	}

	return found, nil
}

func (c *NugetClient) breakerFor(sourceName string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	breaker, ok := c.breakers[sourceName]
	if !ok {
		breaker = newCircuitBreaker("nuget-"+sourceName, c.logger)
		c.breakers[sourceName] = breaker
	}

	return breaker
}

func pageMayContain(page clientmodels.RegistrationPage, version string) bool {
	target, err := semver.NewVersion(version)
	if err != nil {
		return true
	}

	lower, lowerErr := semver.NewVersion(page.Lower)
	upper, upperErr := semver.NewVersion(page.Upper)
	if lowerErr != nil || upperErr != nil {
		return true
	}

	return !target.LessThan(lower) && !target.GreaterThan(upper)
}

func sameVersion(a string, b string) bool {
	left, leftErr := semver.NewVersion(a)
	right, rightErr := semver.NewVersion(b)
	if leftErr != nil || rightErr != nil {
		return strings.EqualFold(a, b)
	}

	return left.Equal(right)
}
