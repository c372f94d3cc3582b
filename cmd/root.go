package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RobsonDevCode/nugetexplorer/internal/analyzer"
	"github.com/RobsonDevCode/nugetexplorer/internal/configuration"
	"github.com/RobsonDevCode/nugetexplorer/internal/metrics"
	projectreaderservice "github.com/RobsonDevCode/nugetexplorer/internal/services/projectReaderService"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const (
	outputTable = "table"
	outputJson  = "json"
)

type StatsSource interface {
	Snapshot() ([]metrics.Sample, error)
}

// Services is everything the commands need, built once the global flags are parsed.
type Services struct {
	Analyzer      analyzer.PackageAnalyzerService
	ProjectReader projectreaderservice.ProjectReaderService
	Stats         StatsSource
	Close         func()
}

type ServiceFactory func(configPath string, logLevel string) (*Services, error)

var (
	serviceFactory ServiceFactory
	services       *Services

	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "nugetexplorer",
	Short: "analyze NuGet packages for updates, vulnerabilities and license changes",
	Long: `nugetexplorer checks NuGet package references against every configured feed.

		   For each package it reports the newest available versions, known security
		   advisories and whether the license changed in the newer version.`,
	SilenceUsage:      true,
	PersistentPreRunE: initServices,
}

// cant DI directly into the command so we use a setter
func SetServiceFactory(factory ServiceFactory) {
	serviceFactory = factory
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := executeContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %s", err.Error()))
		os.Exit(1)
	}
}

// executeContext closes the services on every exit path, failed commands included.
func executeContext(ctx context.Context) error {
	defer closeServices()

	return rootCmd.ExecuteContext(ctx)
}

func initServices(cmd *cobra.Command, args []string) error {
	if services != nil {
		return nil
	}

	if serviceFactory == nil {
		return fmt.Errorf("no service factory configured")
	}

	built, err := serviceFactory(configPath, logLevel)
	if err != nil {
		return fmt.Errorf("error starting command line: %w", err)
	}

	services = built
	return nil
}

func closeServices() {
	if services != nil && services.Close != nil {
		services.Close()
	}
	services = nil
}

func validateOutput(output string) error {
	if output != outputTable && output != outputJson {
		return fmt.Errorf("unsupported output %q, expected %s or %s", output, outputTable, outputJson)
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configuration.FilePath, "Path to the yaml configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides the configuration file")
}
