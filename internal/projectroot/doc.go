// Package projectroot locates the directory migration tooling runs from and
// provides the environment helpers that go with it.
//
// `go test` runs each package from its own directory, while the migration
// tool expects to find its project file (sqitch.conf or a migrations
// directory) relative to the repository root. Find resolves that root from:
//
//  1. the PGUNIT_PROJECT_ROOT environment variable (explicit override)
//  2. an upward traversal from the working directory looking for marker files
//  3. GITHUB_WORKSPACE when running under GitHub Actions
//  4. CI_PROJECT_DIR when running under GitLab CI
//
// MaskSensitiveValue keeps credentials out of log output.
package projectroot
