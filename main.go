package main

import (
	"fmt"

	"github.com/RobsonDevCode/nugetexplorer/cmd"
	"github.com/RobsonDevCode/nugetexplorer/internal/analyzer"
	cache "github.com/RobsonDevCode/nugetexplorer/internal/caching"
	"github.com/RobsonDevCode/nugetexplorer/internal/clients"
	"github.com/RobsonDevCode/nugetexplorer/internal/configuration"
	"github.com/RobsonDevCode/nugetexplorer/internal/logging"
	"github.com/RobsonDevCode/nugetexplorer/internal/metrics"
	licenseanalyzerservice "github.com/RobsonDevCode/nugetexplorer/internal/services/licenseAnalyzerService"
	packagesourceservice "github.com/RobsonDevCode/nugetexplorer/internal/services/packageSourceService"
	projectreaderservice "github.com/RobsonDevCode/nugetexplorer/internal/services/projectReaderService"
	updatecheckerservice "github.com/RobsonDevCode/nugetexplorer/internal/services/updateCheckerService"
	dotnetcommands "github.com/RobsonDevCode/nugetexplorer/internal/thirdPartyCommands/dotnetCommands"
	"go.uber.org/zap"
)

func main() {
	// cant DI directly into the command so we use a setter
	cmd.SetServiceFactory(buildServices)
	cmd.Execute()
}

func buildServices(configPath string, logLevel string) (*cmd.Services, error) {
	config, err := configuration.Load(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel == "" {
		logLevel = config.Logging.Level
	}

	logger, err := logging.NewLogger(logLevel)
	if err != nil {
		return nil, fmt.Errorf("error creating logger: %w", err)
	}

	collector := metrics.NewCollector()
	cacheInstance := cache.NewCache(cache.WithObserver(collector))

	nugetClient := clients.NewNugetClient(config, cacheInstance, logger)
	githubClient, err := clients.NewGithubClient(config, logger)
	if err != nil {
		return nil, err
	}

	sourceManager := packagesourceservice.NewPackageSourceManager(
		configuration.NewFileSourceLoader(config),
		nugetClient,
		cacheInstance,
		config.CacheSettings,
		logger,
		collector)

	updateChecker := updatecheckerservice.NewUpdateChecker(sourceManager, logger)
	licenseAnalyzer := licenseanalyzerservice.NewLicenseAnalyzer(sourceManager, logger)
	packageAnalyzer := analyzer.NewAnalyzer(sourceManager,
		updateChecker,
		githubClient,
		licenseAnalyzer,
		config.AnalysisSettings.MaxConcurrency,
		logger,
		collector)

	logger.Debug("services ready",
		zap.Int("sources", len(config.PackageSources)),
		zap.Int("maxConcurrency", config.AnalysisSettings.MaxConcurrency))

	return &cmd.Services{
		Analyzer:      packageAnalyzer,
		ProjectReader: projectreaderservice.NewProjectReader(dotnetcommands.NewDotnetCommandExecutor(), logger),
		Stats:         collector,
		Close: func() {
			cacheInstance.Close()
			_ = logger.Sync()
		},
	}, nil
}
