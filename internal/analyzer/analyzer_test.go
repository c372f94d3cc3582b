package analyzer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	cache "github.com/RobsonDevCode/nugetexplorer/internal/caching"
	"github.com/RobsonDevCode/nugetexplorer/internal/configuration"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	licenseanalyzerservice "github.com/RobsonDevCode/nugetexplorer/internal/services/licenseAnalyzerService"
	packagesourceservice "github.com/RobsonDevCode/nugetexplorer/internal/services/packageSourceService"
	updatecheckerservice "github.com/RobsonDevCode/nugetexplorer/internal/services/updateCheckerService"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSources struct {
	versions map[string][]string
	licenses map[string]string
	sources  []models.PackageSource
}

func (f *fakeSources) GetConfiguredSources(ctx context.Context) ([]models.PackageSource, error) {
	return f.sources, nil
}

func (f *fakeSources) GetAllVersions(ctx context.Context, packageId string, includePrerelease bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.versions[packageId], nil
}

func (f *fakeSources) GetPackageLicense(ctx context.Context, packageId string, version string) (string, error) {
	return f.licenses[packageId+"@"+version], nil
}

func (f *fakeSources) GetProjectUrl(ctx context.Context, packageId string, version string) (string, error) {
	return "", nil
}

type fakeVulnerabilities struct {
	byPackage map[string][]models.Vulnerability
	err       error
}

func (f *fakeVulnerabilities) GetVulnerabilities(ctx context.Context, pkg models.PackageReference) ([]models.Vulnerability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.byPackage[pkg.String()], f.err
}

type countingRecorder struct {
	failures     atomic.Int32
	observations atomic.Int32
}

func (r *countingRecorder) PackageFailure() {
	r.failures.Add(1)
}

func (r *countingRecorder) ObserveAnalysis(duration time.Duration) {
	r.observations.Add(1)
}

func vulnerability(id string, severity models.SeverityLevel) models.Vulnerability {
	return models.Vulnerability{Id: id, Severity: severity}
}

func newTestAnalyzer(sources *fakeSources, vulnerabilities *fakeVulnerabilities, recorder Recorder) *Analyzer {
	logger := zap.NewNop()
	return NewAnalyzer(sources,
		updatecheckerservice.NewUpdateChecker(sources, logger),
		vulnerabilities,
		licenseanalyzerservice.NewLicenseAnalyzer(sources, logger),
		4,
		logger,
		recorder)
}

func batchFixture() (*fakeSources, *fakeVulnerabilities) {
	sources := &fakeSources{
		versions: map[string][]string{
			"Newtonsoft.Json":  {"13.0.3", "12.0.3"},
			"Serilog":          {"3.1.1"},
			"FluentAssertions": {"8.0.0", "6.12.0"},
		},
		licenses: map[string]string{
			"Newtonsoft.Json@12.0.3":  "MIT",
			"Newtonsoft.Json@13.0.3":  "MIT",
			"FluentAssertions@6.12.0": "Apache-2.0",
			"FluentAssertions@8.0.0":  "Xceed Community License (commercial)",
		},
	}
	vulnerabilities := &fakeVulnerabilities{byPackage: map[string][]models.Vulnerability{
		"Newtonsoft.Json@12.0.3": {vulnerability("GHSA-5crp-9r3c-p9vr", models.SeverityHigh)},
		"Serilog@3.1.1": {
			vulnerability("GHSA-1", models.SeverityLow),
			vulnerability("GHSA-2", models.SeverityMedium),
			vulnerability("GHSA-3", models.SeverityCritical),
		},
	}}

	return sources, vulnerabilities
}

func TestAnalyzePackages(t *testing.T) {
	sources, vulnerabilities := batchFixture()
	recorder := &countingRecorder{}
	analyzer := newTestAnalyzer(sources, vulnerabilities, recorder)

	packages := []models.PackageReference{
		{Id: "Newtonsoft.Json", Version: "12.0.3"},
		{Id: "Serilog", Version: "3.1.1"},
		{Id: "Newtonsoft.Json", Version: "12.0.3"},
		{Id: "FluentAssertions", Version: "6.12.0"},
	}

	result, err := analyzer.AnalyzePackages(context.Background(), packages, models.DefaultAnalysisOptions())
	require.NoError(t, err)

	require.Len(t, result.Packages, 3)
	assert.Equal(t, "Newtonsoft.Json", result.Packages[0].Id)
	assert.Equal(t, "Serilog", result.Packages[1].Id)
	assert.Equal(t, "FluentAssertions", result.Packages[2].Id)

	newtonsoft := result.Packages[0]
	require.NotNil(t, newtonsoft.Updates)
	assert.Equal(t, "13.0.3", newtonsoft.Updates.LatestStableVersion)
	assert.Equal(t, models.VersionChangeMajor, newtonsoft.Updates.VersionChangeType)
	assert.Nil(t, newtonsoft.License)

	serilog := result.Packages[1]
	assert.Nil(t, serilog.Updates)
	assert.Nil(t, serilog.License)
	assert.Len(t, serilog.Vulnerabilities, 3)

	fluent := result.Packages[2]
	require.NotNil(t, fluent.License)
	assert.Equal(t, models.SeverityCritical, fluent.License.Severity)

	summary := result.Summary
	assert.Equal(t, 3, summary.TotalPackages)
	assert.Equal(t, 2, summary.PackagesWithUpdates)
	assert.Equal(t, 1, summary.UpToDate)
	assert.Equal(t, summary.TotalPackages, summary.UpToDate+summary.PackagesWithUpdates)
	assert.Equal(t, 2, summary.VulnerablePackages)
	assert.Equal(t, 1, summary.PackagesWithLicenseChanges)
	assert.Equal(t, models.SeverityCounts{Critical: 1, High: 1, Medium: 1, Low: 1}, summary.SeverityCounts)
	assert.Equal(t, int32(0), recorder.failures.Load())
	assert.Equal(t, int32(1), recorder.observations.Load())
}

func TestAnalyzePackages_MalformedVersionIsIsolated(t *testing.T) {
	sources, vulnerabilities := batchFixture()
	vulnerabilities.byPackage["Serilog@not-a-version"] = []models.Vulnerability{vulnerability("GHSA-9", models.SeverityHigh)}
	recorder := &countingRecorder{}
	analyzer := newTestAnalyzer(sources, vulnerabilities, recorder)

	packages := []models.PackageReference{
		{Id: "Serilog", Version: "not-a-version"},
		{Id: "Newtonsoft.Json", Version: "12.0.3"},
	}

	result, err := analyzer.AnalyzePackages(context.Background(), packages, models.DefaultAnalysisOptions())
	require.NoError(t, err)
	require.Len(t, result.Packages, 2)

	degraded := result.Packages[0]
	assert.Equal(t, "not-a-version", degraded.CurrentVersion)
	assert.Nil(t, degraded.Updates)
	assert.Nil(t, degraded.License)
	assert.NotNil(t, degraded.Vulnerabilities)
	assert.Empty(t, degraded.Vulnerabilities)

	assert.NotNil(t, result.Packages[1].Updates)
	assert.Equal(t, 2, result.Summary.TotalPackages)
	assert.Equal(t, int32(1), recorder.failures.Load())
}

func TestAnalyzePackages_VulnerabilityFeedFailureDegradesPackage(t *testing.T) {
	sources, _ := batchFixture()
	analyzer := newTestAnalyzer(sources, &fakeVulnerabilities{err: errors.New("rate limited")}, nil)

	result, err := analyzer.AnalyzePackages(context.Background(),
		[]models.PackageReference{{Id: "Newtonsoft.Json", Version: "12.0.3"}},
		models.DefaultAnalysisOptions())
	require.NoError(t, err)

	require.Len(t, result.Packages, 1)
	assert.Nil(t, result.Packages[0].Updates)
	assert.Equal(t, 1, result.Summary.UpToDate)
}

func TestAnalyzePackages_SeverityFilterIsMonotonic(t *testing.T) {
	sources, vulnerabilities := batchFixture()
	analyzer := newTestAnalyzer(sources, vulnerabilities, nil)
	packages := []models.PackageReference{
		{Id: "Newtonsoft.Json", Version: "12.0.3"},
		{Id: "Serilog", Version: "3.1.1"},
	}

	levels := []models.SeverityLevel{models.SeverityAll, models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical}
	expected := []int{4, 4, 3, 2, 1}

	previous := -1
	for i, level := range levels {
		options := models.DefaultAnalysisOptions()
		options.MinimumSeverity = level

		result, err := analyzer.AnalyzePackages(context.Background(), packages, options)
		require.NoError(t, err)

		total := result.Summary.SeverityCounts.Total()
		assert.Equal(t, expected[i], total, level.String())
		if previous >= 0 {
			assert.LessOrEqual(t, total, previous)
		}
		previous = total
	}
}

func TestAnalyzePackages_ChecksCanBeDisabled(t *testing.T) {
	sources, vulnerabilities := batchFixture()
	analyzer := newTestAnalyzer(sources, vulnerabilities, nil)

	options := models.AnalysisOptions{CheckUpdates: false, CheckVulnerabilities: false, CheckLicenses: true}
	result, err := analyzer.AnalyzePackages(context.Background(),
		[]models.PackageReference{{Id: "FluentAssertions", Version: "6.12.0"}}, options)
	require.NoError(t, err)

	analysis := result.Packages[0]
	assert.Nil(t, analysis.Updates)
	assert.Nil(t, analysis.License, "license check needs an update candidate")
	assert.Empty(t, analysis.Vulnerabilities)
}

func TestAnalyzePackages_Cancelled(t *testing.T) {
	sources, vulnerabilities := batchFixture()
	analyzer := newTestAnalyzer(sources, vulnerabilities, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analyzer.AnalyzePackages(ctx, []models.PackageReference{{Id: "Serilog", Version: "3.1.1"}}, models.DefaultAnalysisOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

type blockingUpdateChecker struct {
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (b *blockingUpdateChecker) CheckForUpdate(ctx context.Context, pkg models.PackageReference, options models.AnalysisOptions) (*models.UpdateInfo, error) {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.peak {
		b.peak = b.inFlight
	}
	b.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	b.mu.Lock()
	b.inFlight--
	b.mu.Unlock()
	return nil, nil
}

func TestAnalyzePackages_RespectsConcurrencyLimit(t *testing.T) {
	checker := &blockingUpdateChecker{}
	analyzer := NewAnalyzer(&fakeSources{}, checker, &fakeVulnerabilities{}, nil, 2, zap.NewNop(), nil)

	packages := make([]models.PackageReference, 0, 10)
	for _, version := range []string{"1.0.0", "1.0.1", "1.0.2", "1.0.3", "1.0.4", "1.0.5", "1.0.6", "1.0.7", "1.0.8", "1.0.9"} {
		packages = append(packages, models.PackageReference{Id: "Polly", Version: version})
	}

	result, err := analyzer.AnalyzePackages(context.Background(), packages, models.DefaultAnalysisOptions())
	require.NoError(t, err)
	assert.Len(t, result.Packages, 10)
	assert.LessOrEqual(t, checker.peak, 2)
}

func TestListPackageSources(t *testing.T) {
	sources := &fakeSources{sources: []models.PackageSource{{Name: "nuget.org", Url: "https://api.nuget.org/v3/index.json", IsEnabled: true, IsOfficial: true}}}
	analyzer := NewAnalyzer(sources, nil, nil, nil, 0, zap.NewNop(), nil)

	listed, err := analyzer.ListPackageSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sources.sources, listed)
}

func TestBuildSummary_Empty(t *testing.T) {
	summary := BuildSummary(nil)
	assert.Equal(t, models.AnalysisSummary{}, summary)
}

type slowRegistry struct {
	delay    time.Duration
	versions []string
}

func (r *slowRegistry) ListVersions(ctx context.Context, source models.PackageSource, packageId string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.delay):
		return r.versions, nil
	}
}

func (r *slowRegistry) GetMetadata(ctx context.Context, source models.PackageSource, packageId string, version string) (*models.PackageMetadata, error) {
	return nil, nil
}

type staticLoader struct {
	sources []models.PackageSource
}

func (l staticLoader) LoadSources(ctx context.Context) ([]models.PackageSource, error) {
	return l.sources, nil
}

// failingFor fails the feed lookup for a single package shortly after it is called.
type failingFor struct {
	pkg string
}

func (f failingFor) GetVulnerabilities(ctx context.Context, pkg models.PackageReference) ([]models.Vulnerability, error) {
	if pkg.String() != f.pkg {
		return nil, nil
	}
	time.Sleep(10 * time.Millisecond)
	return nil, errors.New("403 rate limit exceeded")
}

func TestAnalyzePackages_FailedPackageDoesNotAffectSharedLookups(t *testing.T) {
	logger := zap.NewNop()
	loader := staticLoader{sources: []models.PackageSource{{Name: "nuget.org", Url: "https://api.nuget.org/v3/index.json", IsEnabled: true}}}
	ttl := configuration.CacheSettings{SourcesTTL: time.Hour, VersionsTTL: time.Hour, MetadataTTL: time.Hour}
	batch := []models.PackageReference{
		{Id: "Serilog", Version: "1.0.0"},
		{Id: "Serilog", Version: "2.0.0"},
	}

	for run := 0; run < 10; run++ {
		registry := &slowRegistry{delay: 50 * time.Millisecond, versions: []string{"1.0.0", "2.0.0", "3.0.0"}}
		sources := packagesourceservice.NewPackageSourceManager(loader, registry, cache.NewCache(), ttl, logger, nil)
		analyzer := NewAnalyzer(sources,
			updatecheckerservice.NewUpdateChecker(sources, logger),
			failingFor{pkg: "Serilog@2.0.0"},
			licenseanalyzerservice.NewLicenseAnalyzer(sources, logger),
			4,
			logger,
			nil)

		result, err := analyzer.AnalyzePackages(context.Background(), batch, models.DefaultAnalysisOptions())
		require.NoError(t, err)
		require.Len(t, result.Packages, 2)

		healthy := result.Packages[0]
		require.NotNil(t, healthy.Updates, "run %d", run)
		assert.Equal(t, "3.0.0", healthy.Updates.LatestStableVersion)
		assert.Equal(t, models.VersionChangeMajor, healthy.Updates.VersionChangeType)

		assert.Nil(t, result.Packages[1].Updates, "failed package is reported as degraded")
	}
}
