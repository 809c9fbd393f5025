package projectroot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// GoModFile is the fallback marker when no migration project file is found.
const GoModFile = "go.mod"

// maxIterations bounds the upward directory traversal.
const maxIterations = 16

var (
	// ErrProjectRootNotFound is returned when no directory holds a marker.
	ErrProjectRootNotFound = errors.New("unable to find project root")

	// ErrInvalidProjectRoot is returned when an explicit root does not exist.
	ErrInvalidProjectRoot = errors.New("invalid project root")
)

// Find returns the absolute project root. An explicit PGUNIT_PROJECT_ROOT
// wins. Otherwise markers are tried in order: the traversal first looks for
// the nearest directory holding markers[0], then markers[1], and so on.
// With no markers, go.mod is used. The CI workspace directories are used
// only when no marker is found.
func Find(logger *slog.Logger, markers ...string) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(markers) == 0 {
		markers = []string{GoModFile}
	}

	if projectRoot := os.Getenv(EnvProjectRoot); projectRoot != "" {
		logger.Debug("using project root from environment",
			"var", EnvProjectRoot,
			"project_root", projectRoot,
		)
		return validate(projectRoot)
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for _, marker := range markers {
		if dir, ok := findUpward(workingDir, marker); ok {
			logger.Debug("found project root",
				"project_root", dir,
				"marker", marker,
			)
			return dir, nil
		}
	}

	// CI workspaces are only a fallback for runs started outside the
	// checkout.
	if IsGitHubActions() {
		workspace := os.Getenv(EnvGitHubWorkspace)
		logger.Debug("using project root from GitHub Actions workspace", "project_root", workspace)
		return validate(workspace)
	}

	if IsGitLabCI() {
		projectDir := os.Getenv(EnvGitLabProjectDir)
		logger.Debug("using project root from GitLab CI project directory", "project_root", projectDir)
		return validate(projectDir)
	}

	return "", fmt.Errorf("%w: no %v above %s", ErrProjectRootNotFound, markers, workingDir)
}

// findUpward walks from startDir towards the filesystem root and returns the
// first directory that contains marker.
func findUpward(startDir, marker string) (string, bool) {
	currentDir := startDir
	for i := 0; i < maxIterations; i++ {
		if exists(filepath.Join(currentDir, marker)) {
			return currentDir, true
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}
	return "", false
}

func validate(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidProjectRoot, dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidProjectRoot, abs)
	}
	return abs, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
