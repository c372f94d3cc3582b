package packagesourceservice

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/Masterminds/semver/v3"
	cache "github.com/RobsonDevCode/nugetexplorer/internal/caching"
	"github.com/RobsonDevCode/nugetexplorer/internal/clients"
	"github.com/RobsonDevCode/nugetexplorer/internal/configuration"
	cachekeys "github.com/RobsonDevCode/nugetexplorer/internal/constants/cacheKeys"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type PackageSourceService interface {
	GetConfiguredSources(ctx context.Context) ([]models.PackageSource, error)
	GetAllVersions(ctx context.Context, packageId string, includePrerelease bool) ([]string, error)
	GetPackageLicense(ctx context.Context, packageId string, version string) (string, error)
	GetProjectUrl(ctx context.Context, packageId string, version string) (string, error)
}

type FailureRecorder interface {
	SourceFailure(source string, operation string)
}

// PackageSourceManager presents every enabled feed as one catalogue. A feed that fails is
// logged and skipped; only cancellation of the caller's context is returned as an error.
type PackageSourceManager struct {
	sourceLoader configuration.SourceLoader
	registry     clients.RegistryClientService
	cache        *cache.Cache
	ttl          configuration.CacheSettings
	logger       *zap.Logger
	failures     FailureRecorder
}

func NewPackageSourceManager(sourceLoader configuration.SourceLoader,
	registry clients.RegistryClientService,
	cache *cache.Cache,
	ttl configuration.CacheSettings,
	logger *zap.Logger,
	failures FailureRecorder) *PackageSourceManager {
	return &PackageSourceManager{
		sourceLoader: sourceLoader,
		registry:     registry,
		cache:        cache,
		ttl:          ttl,
		logger:       logger,
		failures:     failures,
	}
}

func (m *PackageSourceManager) GetConfiguredSources(ctx context.Context) ([]models.PackageSource, error) {
	return cache.GetOrSet(ctx, m.cache, cachekeys.ConfiguredSources, m.ttl.SourcesTTL,
		func(ctx context.Context) ([]models.PackageSource, error) {
			sources, err := m.sourceLoader.LoadSources(ctx)
			if err != nil {
				return nil, fmt.Errorf("error loading package sources: %w", err)
			}

			enabled := make([]models.PackageSource, 0, len(sources))
			for _, source := range sources {
				if source.IsEnabled {
					enabled = append(enabled, source)
				}
			}

			m.logger.Info("loaded enabled package sources", zap.Int("count", len(enabled)))
			return enabled, nil
		})
}

// GetAllVersions unions the versions of every enabled feed, deduplicated by semantic
// version equality and sorted newest first.
func (m *PackageSourceManager) GetAllVersions(ctx context.Context, packageId string, includePrerelease bool) ([]string, error) {
	key := cache.Key(cachekeys.Versions, packageId, strconv.FormatBool(includePrerelease))

	return cache.GetOrSet(ctx, m.cache, key, m.ttl.VersionsTTL, func(ctx context.Context) ([]string, error) {
		sources, err := m.GetConfiguredSources(ctx)
		if err != nil {
			return nil, err
		}

		perSource := make([][]string, len(sources))

		group, gCtx := errgroup.WithContext(ctx)
		for i, source := range sources {
			group.Go(func() error {
				versions, err := m.registry.ListVersions(gCtx, source, packageId)
				if err != nil {
					m.sourceFailed(source, "list_versions", packageId, "", err)
					return nil
				}

				perSource[i] = versions
				return nil
			})
		}
		_ = group.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		return MergeVersions(includePrerelease, perSource...), nil
	})
}

func (m *PackageSourceManager) GetPackageLicense(ctx context.Context, packageId string, version string) (string, error) {
	key := cache.Key(cachekeys.License, packageId, version)

	return cache.GetOrSet(ctx, m.cache, key, m.ttl.MetadataTTL, func(ctx context.Context) (string, error) {
		metadata, err := m.firstMetadata(ctx, packageId, version)
		if err != nil {
			return "", err
		}

		return metadata.ResolvedLicense(), nil
	})
}

func (m *PackageSourceManager) GetProjectUrl(ctx context.Context, packageId string, version string) (string, error) {
	key := cache.Key(cachekeys.ProjectUrl, packageId, version)

	return cache.GetOrSet(ctx, m.cache, key, m.ttl.MetadataTTL, func(ctx context.Context) (string, error) {
		metadata, err := m.firstMetadata(ctx, packageId, version)
		if err != nil || metadata == nil {
			return "", err
		}

		return metadata.ProjectUrl, nil
	})
}

// firstMetadata walks sources in configured order and returns the first one that knows the
// exact version. A nil result with a nil error means no source had it.
func (m *PackageSourceManager) firstMetadata(ctx context.Context, packageId string, version string) (*models.PackageMetadata, error) {
	sources, err := m.GetConfiguredSources(ctx)
	if err != nil {
		return nil, err
	}

	for _, source := range sources {
		metadata, err := m.registry.GetMetadata(ctx, source, packageId, version)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			m.sourceFailed(source, "get_metadata", packageId, version, err)
			continue
		}

		if metadata != nil {
			return metadata, nil
		}
	}

	return nil, nil
}

func (m *PackageSourceManager) sourceFailed(source models.PackageSource, operation string, packageId string, version string, err error) {
	m.logger.Warn("failed to query package source",
		zap.String("source", source.Name),
		zap.String("operation", operation),
		zap.String("package", packageId),
		zap.String("version", version),
		zap.Error(err))

	if m.failures != nil {
		m.failures.SourceFailure(source.Name, operation)
	}
}

// MergeVersions is order independent: any permutation of the inputs gives the same result.
// Build metadata is dropped and strings that are not semantic versions are skipped.
func MergeVersions(includePrerelease bool, versionLists ...[]string) []string {
	unique := make(map[string]*semver.Version)

	for _, versions := range versionLists {
		for _, raw := range versions {
			parsed, err := semver.NewVersion(raw)
			if err != nil {
				continue
			}

			if !includePrerelease && parsed.Prerelease() != "" {
				continue
			}

			version, err := parsed.SetMetadata("")
			if err != nil {
				continue
			}
			unique[version.String()] = &version
		}
	}

	collection := make(semver.Collection, 0, len(unique))
	for _, version := range unique {
		collection = append(collection, version)
	}
	sort.Sort(sort.Reverse(collection))

	result := make([]string, 0, len(collection))
	for _, version := range collection {
		result = append(result, version.String())
	}

	return result
}
