package pgunit

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultNamePrefix is used by NewName when no prefix is given.
const DefaultNamePrefix = "pgunit"

// NewName returns a fresh tenant name of the form <prefix>_<12 hex digits>.
// The prefix must itself be a valid identifier of at most 43 bytes for the
// result to be accepted by New.
func NewName(prefix string) string {
	if prefix == "" {
		prefix = DefaultNamePrefix
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + id[:12]
}
