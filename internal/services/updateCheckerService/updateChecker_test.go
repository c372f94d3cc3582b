package updatecheckerservice

import (
	"context"
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSources struct {
	versions    []string
	versionsErr error
	projectUrl  string
	projectErr  error

	requestedPrerelease bool
	requestedUrlVersion string
}

func (f *fakeSources) GetConfiguredSources(ctx context.Context) ([]models.PackageSource, error) {
	return nil, nil
}

func (f *fakeSources) GetAllVersions(ctx context.Context, packageId string, includePrerelease bool) ([]string, error) {
	f.requestedPrerelease = includePrerelease
	return f.versions, f.versionsErr
}

func (f *fakeSources) GetPackageLicense(ctx context.Context, packageId string, version string) (string, error) {
	return "", nil
}

func (f *fakeSources) GetProjectUrl(ctx context.Context, packageId string, version string) (string, error) {
	f.requestedUrlVersion = version
	return f.projectUrl, f.projectErr
}

func check(t *testing.T, sources *fakeSources, version string, options models.AnalysisOptions) (*models.UpdateInfo, error) {
	t.Helper()
	checker := NewUpdateChecker(sources, zap.NewNop())
	return checker.CheckForUpdate(context.Background(), models.PackageReference{Id: "Newtonsoft.Json", Version: version}, options)
}

func TestCheckForUpdate_ChangeTypes(t *testing.T) {
	tests := []struct {
		name     string
		latest   string
		expected models.VersionChangeType
	}{
		{name: "major", latest: "2.0.0", expected: models.VersionChangeMajor},
		{name: "minor", latest: "1.3.0", expected: models.VersionChangeMinor},
		{name: "patch", latest: "1.2.4", expected: models.VersionChangePatch},
		{name: "major wins over larger minor and patch", latest: "2.5.9", expected: models.VersionChangeMajor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := &fakeSources{versions: []string{tt.latest, "1.2.3", "1.0.0"}}

			info, err := check(t, sources, "1.2.3", models.DefaultAnalysisOptions())
			require.NoError(t, err)
			require.NotNil(t, info)
			assert.Equal(t, tt.latest, info.LatestStableVersion)
			assert.Equal(t, tt.expected, info.VersionChangeType)
			assert.True(t, info.IsCompatible)
		})
	}
}

func TestCheckForUpdate_AlreadyCurrent(t *testing.T) {
	for _, current := range []string{"1.2.3", "1.3.0"} {
		info, err := check(t, &fakeSources{versions: []string{"1.2.3", "1.2.0"}}, current, models.DefaultAnalysisOptions())
		require.NoError(t, err)
		assert.Nil(t, info, current)
	}
}

func TestCheckForUpdate_NoVersions(t *testing.T) {
	info, err := check(t, &fakeSources{}, "1.0.0", models.DefaultAnalysisOptions())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestCheckForUpdate_InvalidVersion(t *testing.T) {
	info, err := check(t, &fakeSources{versions: []string{"1.0.0"}}, "not.a.version", models.DefaultAnalysisOptions())
	assert.ErrorIs(t, err, ErrInvalidVersion)
	assert.Nil(t, info)
}

func TestCheckForUpdate_SourceErrorIsNoUpdate(t *testing.T) {
	info, err := check(t, &fakeSources{versionsErr: errors.New("boom")}, "1.0.0", models.DefaultAnalysisOptions())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestCheckForUpdate_CancellationIsReturned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker := NewUpdateChecker(&fakeSources{versionsErr: context.Canceled}, zap.NewNop())

	_, err := checker.CheckForUpdate(ctx, models.PackageReference{Id: "Serilog", Version: "1.0.0"}, models.DefaultAnalysisOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckForUpdate_Prerelease(t *testing.T) {
	sources := &fakeSources{versions: []string{"3.0.0-rc.1", "2.1.0", "2.0.0"}}
	options := models.DefaultAnalysisOptions()
	options.IncludePrerelease = true

	info, err := check(t, sources, "2.0.0", options)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, sources.requestedPrerelease)
	assert.Equal(t, "2.1.0", info.LatestStableVersion)
	require.NotNil(t, info.LatestPrereleaseVersion)
	assert.Equal(t, "3.0.0-rc.1", *info.LatestPrereleaseVersion)
	assert.Equal(t, "2.1.0", sources.requestedUrlVersion)
}

func TestCheckForUpdate_PrereleaseOnlyFallsBackToLatest(t *testing.T) {
	sources := &fakeSources{versions: []string{"1.0.0-beta.2", "1.0.0-beta.1"}}
	options := models.DefaultAnalysisOptions()
	options.IncludePrerelease = true

	info, err := check(t, sources, "1.0.0-beta.1", options)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "1.0.0-beta.2", info.LatestStableVersion)
	assert.Equal(t, models.VersionChangeNone, info.VersionChangeType)
}

func TestCheckForUpdate_ReleaseNotesFromProjectUrl(t *testing.T) {
	sources := &fakeSources{versions: []string{"13.0.3"}, projectUrl: "https://github.com/JamesNK/Newtonsoft.Json/"}

	info, err := check(t, sources, "12.0.1", models.DefaultAnalysisOptions())
	require.NoError(t, err)
	require.NotNil(t, info.ReleaseNotesUrl)
	assert.Equal(t, "https://github.com/JamesNK/Newtonsoft.Json/releases/tag/v13.0.3", *info.ReleaseNotesUrl)
}

func TestReleaseNotesUrl(t *testing.T) {
	assert.Nil(t, ReleaseNotesUrl("", "1.0.0"))

	raw := ReleaseNotesUrl("https://www.newtonsoft.com/json", "1.0.0")
	require.NotNil(t, raw)
	assert.Equal(t, "https://www.newtonsoft.com/json", *raw)

	github := ReleaseNotesUrl("https://GitHub.com/serilog/serilog", "3.1.1")
	require.NotNil(t, github)
	assert.Equal(t, "https://GitHub.com/serilog/serilog/releases/tag/v3.1.1", *github)
}

func TestChangeRules_EachRuleMatchesItsOwnBump(t *testing.T) {
	current := semver.MustParse("1.2.3")
	bumps := map[models.VersionChangeType]*semver.Version{
		models.VersionChangeMajor: semver.MustParse("2.0.0"),
		models.VersionChangeMinor: semver.MustParse("1.3.0"),
		models.VersionChangePatch: semver.MustParse("1.2.4"),
	}

	for _, rule := range changeRules {
		latest, ok := bumps[rule.changeType]
		require.True(t, ok, rule.changeType.String())
		assert.True(t, rule.matches(current, latest), rule.changeType.String())
	}
	assert.Equal(t, models.VersionChangeNone, ClassifyChange(current, semver.MustParse("1.2.3")))
}

func TestCheckForUpdate_TargetFrameworkDoesNotHideUpdate(t *testing.T) {
	options := models.DefaultAnalysisOptions()
	options.TargetFramework = "net48"

	info, err := check(t, &fakeSources{versions: []string{"13.0.3", "12.0.3"}}, "12.0.3", options)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "13.0.3", info.LatestStableVersion)
	assert.True(t, info.IsCompatible)
}
