package updatecheckerservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	packagesourceservice "github.com/RobsonDevCode/nugetexplorer/internal/services/packageSourceService"
	"go.uber.org/zap"
)

var ErrInvalidVersion = errors.New("invalid semantic version")

type UpdateCheckerService interface {
	CheckForUpdate(ctx context.Context, pkg models.PackageReference, options models.AnalysisOptions) (*models.UpdateInfo, error)
}

type changeRule struct {
	matches    func(current, latest *semver.Version) bool
	changeType models.VersionChangeType
}

// changeRules is evaluated top to bottom and the first match wins, so a major bump that
// also raises minor and patch is still Major.
var changeRules = []changeRule{
	{func(current, latest *semver.Version) bool { return latest.Major() > current.Major() }, models.VersionChangeMajor},
	{func(current, latest *semver.Version) bool { return latest.Minor() > current.Minor() }, models.VersionChangeMinor},
	{func(current, latest *semver.Version) bool { return latest.Patch() > current.Patch() }, models.VersionChangePatch},
}

type UpdateChecker struct {
	sources packagesourceservice.PackageSourceService
	logger  *zap.Logger
}

func NewUpdateChecker(sources packagesourceservice.PackageSourceService, logger *zap.Logger) *UpdateChecker {
	return &UpdateChecker{
		sources: sources,
		logger:  logger,
	}
}

// CheckForUpdate returns nil when the package is current or no versions are known. An
// unparseable current version is reported as ErrInvalidVersion and cancellation is returned
// as is; any other failure is logged and reported as no update.
func (u *UpdateChecker) CheckForUpdate(ctx context.Context, pkg models.PackageReference, options models.AnalysisOptions) (*models.UpdateInfo, error) {
	current, err := semver.NewVersion(pkg.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %s@%s", ErrInvalidVersion, pkg.Id, pkg.Version)
	}

	info, err := u.checkForUpdate(ctx, pkg, current, options)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		u.logger.Error("failed to check for updates", zap.String("package", pkg.Id), zap.Error(err))
		return nil, nil
	}

	return info, nil
}

func (u *UpdateChecker) checkForUpdate(ctx context.Context, pkg models.PackageReference, current *semver.Version, options models.AnalysisOptions) (*models.UpdateInfo, error) {
	allVersions, err := u.sources.GetAllVersions(ctx, pkg.Id, options.IncludePrerelease)
	if err != nil {
		return nil, fmt.Errorf("error getting versions for %s: %w", pkg.Id, err)
	}

	parsed := parseVersions(allVersions)
	if len(parsed) == 0 {
		u.logger.Warn("no versions found for package", zap.String("package", pkg.Id))
		return nil, nil
	}

	latestStable, latestPrerelease := latestVersions(parsed, options.IncludePrerelease)
	latest := latestStable
	if latest == nil {
		latest = parsed[0]
	}

	if !current.LessThan(latest) {
		return nil, nil
	}

	projectUrl, err := u.sources.GetProjectUrl(ctx, pkg.Id, latest.String())
	if err != nil {
		return nil, fmt.Errorf("error getting project url for %s@%s: %w", pkg.Id, latest, err)
	}

	info := &models.UpdateInfo{
		LatestStableVersion: latest.String(),
		VersionChangeType:   ClassifyChange(current, latest),
		IsCompatible:        isCompatible(options.TargetFramework),
		ReleaseNotesUrl:     ReleaseNotesUrl(projectUrl, latest.String()),
	}
	if latestPrerelease != nil {
		prerelease := latestPrerelease.String()
		info.LatestPrereleaseVersion = &prerelease
	}

	return info, nil
}

// ClassifyChange returns None when no rule matches, for example when only the prerelease
// label differs.
func ClassifyChange(current, latest *semver.Version) models.VersionChangeType {
	for _, rule := range changeRules {
		if rule.matches(current, latest) {
			return rule.changeType
		}
	}

	return models.VersionChangeNone
}

// ReleaseNotesUrl points GitHub projects at the release tag of the version and returns any
// other project url unchanged.
func ReleaseNotesUrl(projectUrl string, version string) *string {
	if projectUrl == "" {
		return nil
	}

	if strings.Contains(strings.ToLower(projectUrl), "github.com") {
		releaseUrl := strings.TrimRight(projectUrl, "/") + "/releases/tag/v" + version
		return &releaseUrl
	}

	return &projectUrl
}

// parseVersions returns the parseable versions sorted newest first.
func parseVersions(versions []string) []*semver.Version {
	parsed := make(semver.Collection, 0, len(versions))
	for _, raw := range versions {
		version, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		parsed = append(parsed, version)
	}
	sort.Sort(sort.Reverse(parsed))

	return parsed
}

func latestVersions(sorted []*semver.Version, includePrerelease bool) (stable *semver.Version, prerelease *semver.Version) {
	for _, version := range sorted {
		if version.Prerelease() == "" {
			if stable == nil {
				stable = version
			}
		} else if includePrerelease && prerelease == nil {
			prerelease = version
		}

		if stable != nil && (prerelease != nil || !includePrerelease) {
			break
		}
	}

	return stable, prerelease
}

// isCompatible has no framework data to check against yet.
// TODO: compare the target framework with the dependency groups of the registration catalog entry.
func isCompatible(_ string) bool {
	return true
}
