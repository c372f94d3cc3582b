package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/RobsonDevCode/nugetexplorer/internal/metrics"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	projectreaderservice "github.com/RobsonDevCode/nugetexplorer/internal/services/projectReaderService"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingAnalyzer struct {
	packages []models.PackageReference
	options  models.AnalysisOptions
}

func (r *recordingAnalyzer) AnalyzePackages(ctx context.Context, packages []models.PackageReference, options models.AnalysisOptions) (models.PackageAnalysisResult, error) {
	r.packages = packages
	r.options = options

	analyses := make([]models.PackageAnalysis, 0, len(packages))
	for _, pkg := range models.Distinct(packages) {
		analyses = append(analyses, models.DegradedAnalysis(pkg))
	}

	return models.PackageAnalysisResult{
		Summary:  models.AnalysisSummary{TotalPackages: len(analyses), UpToDate: len(analyses)},
		Packages: analyses,
	}, nil
}

func (r *recordingAnalyzer) ListPackageSources(ctx context.Context) ([]models.PackageSource, error) {
	return []models.PackageSource{{Name: "nuget.org", Url: "https://api.nuget.org/v3/index.json", IsEnabled: true, IsOfficial: true}}, nil
}

func useServices(t *testing.T) *recordingAnalyzer {
	t.Helper()
	analyzer := &recordingAnalyzer{}
	services = &Services{
		Analyzer:      analyzer,
		ProjectReader: projectreaderservice.NewProjectReader(nil, zap.NewNop()),
		Stats:         metrics.NewCollector(),
	}
	t.Cleanup(func() { services = nil })

	return analyzer
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyzeCommand_Json(t *testing.T) {
	analyzer := useServices(t)

	output, err := execute(t, "analyze", "Serilog@3.1.1", "Dapper@2.1.28", "--severity", "HIGH", "--check-licenses=false", "-o", "json")
	require.NoError(t, err)

	assert.Len(t, analyzer.packages, 2)
	assert.Equal(t, models.SeverityHigh, analyzer.options.MinimumSeverity)
	assert.False(t, analyzer.options.CheckLicenses)
	assert.True(t, analyzer.options.CheckUpdates)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &decoded))
	assert.Contains(t, decoded, "summary")
	assert.Contains(t, decoded, "packages")
	assert.Contains(t, output, "\n  \"summary\"")
}

func TestAnalyzeCommand_UnknownSeverityFallsBackToAll(t *testing.T) {
	analyzer := useServices(t)

	_, err := execute(t, "analyze", "Serilog@3.1.1", "--severity", "urgent", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, models.SeverityAll, analyzer.options.MinimumSeverity)
}

func TestAnalyzeCommand_InvalidInput(t *testing.T) {
	useServices(t)

	_, err := execute(t, "analyze", "-o", "json", "--severity", "all")
	assert.ErrorContains(t, err, "no packages to analyze")

	_, err = execute(t, "analyze", "Serilog", "-o", "json")
	assert.ErrorContains(t, err, "expected id@version")

	_, err = execute(t, "analyze", "Serilog@3.1.1", "-o", "xml")
	assert.ErrorContains(t, err, "unsupported output")
}

func TestSourcesCommand_Json(t *testing.T) {
	useServices(t)

	output, err := execute(t, "sources", "-o", "json")
	require.NoError(t, err)

	var decoded sourcesResponse
	require.NoError(t, json.Unmarshal([]byte(output), &decoded))
	require.Len(t, decoded.Sources, 1)
	assert.True(t, decoded.Sources[0].IsOfficial)
	assert.Contains(t, output, "\"isAuthenticated\"")
}

func TestExecuteContext_ClosesServicesWhenCommandFails(t *testing.T) {
	useServices(t)
	closed := 0
	services.Close = func() { closed++ }

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"analyze", "-o", "json"})

	err := executeContext(context.Background())
	assert.ErrorContains(t, err, "no packages to analyze")
	assert.Equal(t, 1, closed)
	assert.Nil(t, services)
}
