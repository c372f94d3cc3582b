package projectreaderservice

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RobsonDevCode/nugetexplorer/internal/models"
	dotnetcommands "github.com/RobsonDevCode/nugetexplorer/internal/thirdPartyCommands/dotnetCommands"
	"go.uber.org/zap"
)

type ProjectReaderService interface {
	ReadCsProject(ctx context.Context, path string) (CsProject, error)
	ParsePackageArgs(args []string) ([]models.PackageReference, error)
}

type csPackageReference struct {
	Include        string `xml:"Include,attr"`
	VersionAttr    string `xml:"Version,attr"`
	VersionElement string `xml:"Version"`
}

type csProjectFile struct {
	Framework         string               `xml:"PropertyGroup>TargetFramework"`
	Frameworks        string               `xml:"PropertyGroup>TargetFrameworks"`
	PackageReferences []csPackageReference `xml:"ItemGroup>PackageReference"`
}

// CsProject is the part of an SDK style project file needed to analyze its packages.
// Unversioned lists references whose version is managed elsewhere, for example centrally.
type CsProject struct {
	Name        string
	Framework   string
	Packages    []models.PackageReference
	Unversioned []string
}

type ProjectReader struct {
	dotnet dotnetcommands.DotnetCommandService
	logger *zap.Logger
}

// NewProjectReader uses dotnet, when not nil, to resolve references without a version.
func NewProjectReader(dotnet dotnetcommands.DotnetCommandService, logger *zap.Logger) *ProjectReader {
	return &ProjectReader{
		dotnet: dotnet,
		logger: logger,
	}
}

func (r *ProjectReader) ReadCsProject(ctx context.Context, path string) (CsProject, error) {
	if err := ctx.Err(); err != nil {
		return CsProject{}, err
	}

	if !strings.HasSuffix(strings.ToLower(path), ".csproj") {
		return CsProject{}, fmt.Errorf("unsupported project file %s, expected a .csproj", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return CsProject{}, fmt.Errorf("error reading csproj file %s error: %w", path, err)
	}

	var file csProjectFile
	if err := xml.Unmarshal(content, &file); err != nil {
		return CsProject{}, fmt.Errorf("error unmarshalling xml file %s error: %w", path, err)
	}

	project := CsProject{
		Name:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Framework: firstFramework(file),
		Packages:  make([]models.PackageReference, 0, len(file.PackageReferences)),
	}

	for _, reference := range file.PackageReferences {
		id := strings.TrimSpace(reference.Include)
		if id == "" {
			continue
		}

		version := strings.TrimSpace(reference.VersionAttr)
		if version == "" {
			version = strings.TrimSpace(reference.VersionElement)
		}

		if version == "" {
			project.Unversioned = append(project.Unversioned, id)
			continue
		}

		project.Packages = append(project.Packages, models.PackageReference{Id: id, Version: version})
	}

	if len(project.Unversioned) > 0 && r.dotnet != nil {
		r.resolveUnversioned(ctx, path, &project)
	}

	return project, nil
}

// resolveUnversioned leaves a reference in Unversioned when the sdk cannot resolve it.
func (r *ProjectReader) resolveUnversioned(ctx context.Context, path string, project *CsProject) {
	response, err := r.dotnet.ListPackages(ctx, path)
	if err != nil {
		r.logger.Warn("could not resolve package versions with the dotnet sdk", zap.String("project", path), zap.Error(err))
		return
	}

	// package ids are case-insensitive and the sdk may not echo the project's casing
	versions := make(map[string]string)
	for id, version := range response.Versions() {
		versions[strings.ToLower(id)] = version
	}

	remaining := project.Unversioned[:0]
	for _, id := range project.Unversioned {
		version, ok := versions[strings.ToLower(id)]
		if !ok {
			remaining = append(remaining, id)
			continue
		}

		project.Packages = append(project.Packages, models.PackageReference{Id: id, Version: version})
	}
	project.Unversioned = remaining
}

// ParsePackageArgs reads references written as id@version.
func (r *ProjectReader) ParsePackageArgs(args []string) ([]models.PackageReference, error) {
	packages := make([]models.PackageReference, 0, len(args))
	for _, arg := range args {
		id, version, found := strings.Cut(arg, "@")
		id = strings.TrimSpace(id)
		version = strings.TrimSpace(version)

		if !found || id == "" || version == "" {
			return nil, fmt.Errorf("invalid package %q, expected id@version", arg)
		}

		packages = append(packages, models.PackageReference{Id: id, Version: version})
	}

	return packages, nil
}

func firstFramework(file csProjectFile) string {
	if file.Framework != "" {
		return strings.TrimSpace(file.Framework)
	}

	framework, _, _ := strings.Cut(file.Frameworks, ";")
	return strings.TrimSpace(framework)
}
