package dotnetcommands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"

	dotnetmodels "github.com/RobsonDevCode/nugetexplorer/internal/thirdPartyCommands/models/dotnet"
)

type DotnetCommandService interface {
	ListPackages(ctx context.Context, projectPath string) (dotnetmodels.ListPackageResponse, error)
}

type DotnetCommandExecutor struct {
	binary string
}

func NewDotnetCommandExecutor() *DotnetCommandExecutor {
	return &DotnetCommandExecutor{binary: "dotnet"}
}

// ListPackages asks the SDK for the top level packages of a project, which resolves versions
// the project file does not state itself, such as centrally managed ones.
func (d *DotnetCommandExecutor) ListPackages(ctx context.Context, projectPath string) (dotnetmodels.ListPackageResponse, error) {
	cmd := exec.CommandContext(ctx, d.binary, "list", projectPath, "package", "--format", "json")
	cmd.Env = os.Environ()

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return dotnetmodels.ListPackageResponse{}, fmt.Errorf("dotnet list package failed for %s: %v %s", projectPath, exitError, exitError.Stderr)
		}

		return dotnetmodels.ListPackageResponse{}, fmt.Errorf("failed to run dotnet list package for %s: %w", projectPath, err)
	}

	return parseListPackageOutput(projectPath, output)
}

func parseListPackageOutput(projectPath string, output []byte) (dotnetmodels.ListPackageResponse, error) {
	var result dotnetmodels.ListPackageResponse
	if err := json.Unmarshal(output, &result); err != nil {
		return dotnetmodels.ListPackageResponse{}, fmt.Errorf("failed to parse dotnet list package output for %s: %w", projectPath, err)
	}

	return result, nil
}
