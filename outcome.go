package pgunit

import (
	"strings"

	"github.com/phrazzld/pgunit/internal/runner"
)

// Output markers the migration tools print on success.
const (
	// VerifyMarker is printed by a passing verify.
	VerifyMarker = "Verify successful"

	// CommitMarker is echoed by psql when the seed transaction commits.
	CommitMarker = "COMMIT"
)

// outcome decides whether a command result counts as success.
type outcome func(runner.Result) bool

func deployed(res runner.Result) bool {
	return res.OK()
}

func reverted(res runner.Result) bool {
	return res.OK()
}

func verified(res runner.Result) bool {
	return res.OK() && strings.Contains(res.Stdout, VerifyMarker)
}

func seeded(res runner.Result) bool {
	return res.OK() && strings.Contains(res.Stdout, CommitMarker)
}
