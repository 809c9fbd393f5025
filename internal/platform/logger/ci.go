package logger

import (
	"log/slog"
	"os"

	"github.com/phrazzld/pgunit/internal/projectroot"
)

// ciVariables are run identifiers worth attaching to every record so CI
// logs can be matched to a pipeline run.
var ciVariables = map[string]string{
	"GITHUB_RUN_ID":    "ci_run_id",
	"GITHUB_WORKFLOW":  "ci_workflow",
	"GITHUB_JOB":       "ci_job",
	"CI_PIPELINE_ID":   "ci_run_id",
	"CI_JOB_NAME":      "ci_job",
	"BUILD_NUMBER":     "ci_run_id",
	"CIRCLE_BUILD_NUM": "ci_run_id",
}

// ciAttrs returns the CI metadata for the current environment, or nil
// outside CI.
func ciAttrs() []slog.Attr {
	if !projectroot.IsCI() {
		return nil
	}

	attrs := []slog.Attr{slog.Bool("ci", true), slog.String("ci_provider", ciProvider())}
	seen := map[string]bool{}
	for env, key := range ciVariables {
		if value := os.Getenv(env); value != "" && !seen[key] {
			seen[key] = true
			attrs = append(attrs, slog.String(key, value))
		}
	}
	return attrs
}

func ciProvider() string {
	switch {
	case os.Getenv(projectroot.EnvGitHubActions) != "":
		return "github"
	case os.Getenv(projectroot.EnvGitLabCI) != "":
		return "gitlab"
	case os.Getenv(projectroot.EnvJenkinsURL) != "":
		return "jenkins"
	case os.Getenv(projectroot.EnvCircleCI) != "":
		return "circleci"
	case os.Getenv(projectroot.EnvTravisCI) != "":
		return "travis"
	default:
		return "unknown"
	}
}
