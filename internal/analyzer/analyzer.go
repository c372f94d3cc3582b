package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/RobsonDevCode/nugetexplorer/internal/clients"
	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	licenseanalyzerservice "github.com/RobsonDevCode/nugetexplorer/internal/services/licenseAnalyzerService"
	packagesourceservice "github.com/RobsonDevCode/nugetexplorer/internal/services/packageSourceService"
	updatecheckerservice "github.com/RobsonDevCode/nugetexplorer/internal/services/updateCheckerService"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type PackageAnalyzerService interface {
	AnalyzePackages(ctx context.Context, packages []models.PackageReference, options models.AnalysisOptions) (models.PackageAnalysisResult, error)
	ListPackageSources(ctx context.Context) ([]models.PackageSource, error)
}

type Recorder interface {
	PackageFailure()
	ObserveAnalysis(duration time.Duration)
}

// Analyzer fans a batch out one unit per distinct package. A unit that fails is reported as a
// degraded record; only cancellation of the batch context fails the whole call.
type Analyzer struct {
	sources         packagesourceservice.PackageSourceService
	updateChecker   updatecheckerservice.UpdateCheckerService
	vulnerabilities clients.VulnerabilityClientService
	licenses        licenseanalyzerservice.LicenseAnalyzerService
	maxConcurrency  int
	logger          *zap.Logger
	recorder        Recorder
}

// NewAnalyzer bounds the fan-out at maxConcurrency units; zero or less runs every unit at once.
func NewAnalyzer(sources packagesourceservice.PackageSourceService,
	updateChecker updatecheckerservice.UpdateCheckerService,
	vulnerabilities clients.VulnerabilityClientService,
	licenses licenseanalyzerservice.LicenseAnalyzerService,
	maxConcurrency int,
	logger *zap.Logger,
	recorder Recorder) *Analyzer {
	return &Analyzer{
		sources:         sources,
		updateChecker:   updateChecker,
		vulnerabilities: vulnerabilities,
		licenses:        licenses,
		maxConcurrency:  maxConcurrency,
		logger:          logger,
		recorder:        recorder,
	}
}

func (a *Analyzer) AnalyzePackages(ctx context.Context, packages []models.PackageReference, options models.AnalysisOptions) (models.PackageAnalysisResult, error) {
	start := time.Now()
	distinct := models.Distinct(packages)
	a.logger.Info("starting package analysis", zap.Int("packages", len(distinct)))

	results := make([]models.PackageAnalysis, len(distinct))

	group, gCtx := errgroup.WithContext(ctx)
	if a.maxConcurrency > 0 {
		group.SetLimit(a.maxConcurrency)
	}

	for i, pkg := range distinct {
		group.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()

			default:
				analysis, err := a.analyzePackage(gCtx, pkg, options)
				if err != nil {
					if ctxErr := gCtx.Err(); ctxErr != nil {
						return ctxErr
					}

					a.logger.Error("failed to analyze package", zap.Stringer("package", pkg), zap.Error(err))
					if a.recorder != nil {
						a.recorder.PackageFailure()
					}
					analysis = models.DegradedAnalysis(pkg)
				}

				results[i] = analysis
				return nil
			}
		})
	}

	if err := group.Wait(); err != nil {
		return models.PackageAnalysisResult{}, fmt.Errorf("package analysis cancelled: %w", err)
	}

	// a cancelled parent always surfaces, even if every unit happened to finish
	if err := ctx.Err(); err != nil {
		return models.PackageAnalysisResult{}, fmt.Errorf("package analysis cancelled: %w", err)
	}

	result := models.PackageAnalysisResult{
		Summary:  BuildSummary(results),
		Packages: results,
	}

	elapsed := time.Since(start)
	if a.recorder != nil {
		a.recorder.ObserveAnalysis(elapsed)
	}
	a.logger.Info("package analysis finished",
		zap.Int("packages", result.Summary.TotalPackages),
		zap.Int("withUpdates", result.Summary.PackagesWithUpdates),
		zap.Int("vulnerable", result.Summary.VulnerablePackages),
		zap.Duration("elapsed", elapsed))

	return result, nil
}

func (a *Analyzer) ListPackageSources(ctx context.Context) ([]models.PackageSource, error) {
	sources, err := a.sources.GetConfiguredSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing package sources: %w", err)
	}

	return sources, nil
}

func (a *Analyzer) analyzePackage(ctx context.Context, pkg models.PackageReference, options models.AnalysisOptions) (models.PackageAnalysis, error) {
	a.logger.Debug("analyzing package", zap.Stringer("package", pkg))

	var (
		updates         *models.UpdateInfo
		license         *models.LicenseChange
		vulnerabilities []models.Vulnerability
	)

	group, gCtx := errgroup.WithContext(ctx)

	if options.CheckUpdates {
		group.Go(func() error {
			var err error
			updates, err = a.updateChecker.CheckForUpdate(gCtx, pkg, options)
			if err != nil {
				return err
			}

			// the license of the candidate version is only known once the update check is done
			if options.CheckLicenses && updates != nil {
				license, err = a.licenses.CheckLicenseChange(gCtx, pkg, updates.LatestStableVersion)
				if err != nil {
					return err
				}
			}

			return nil
		})
	}

	if options.CheckVulnerabilities {
		group.Go(func() error {
			var err error
			vulnerabilities, err = a.vulnerabilities.GetVulnerabilities(gCtx, pkg)
			if err != nil {
				return fmt.Errorf("error getting vulnerabilities for %s: %w", pkg, err)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return models.PackageAnalysis{}, err
	}

	return models.PackageAnalysis{
		Id:              pkg.Id,
		CurrentVersion:  pkg.Version,
		Updates:         updates,
		Vulnerabilities: models.FilterBySeverity(vulnerabilities, options.MinimumSeverity),
		License:         license,
	}, nil
}

// BuildSummary counts over already filtered analyses.
func BuildSummary(analyses []models.PackageAnalysis) models.AnalysisSummary {
	summary := models.AnalysisSummary{TotalPackages: len(analyses)}

	for _, analysis := range analyses {
		if analysis.Updates != nil {
			summary.PackagesWithUpdates++
		}

		if len(analysis.Vulnerabilities) > 0 {
			summary.VulnerablePackages++
		}

		if analysis.License != nil && analysis.License.HasChanged {
			summary.PackagesWithLicenseChanges++
		}

		for _, vulnerability := range analysis.Vulnerabilities {
			summary.SeverityCounts.Add(vulnerability.Severity)
		}
	}
	summary.UpToDate = summary.TotalPackages - summary.PackagesWithUpdates

	return summary
}
