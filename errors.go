package pgunit

import (
	"errors"

	"github.com/phrazzld/pgunit/internal/migrate"
)

// Construction errors.
var (
	// ErrMissingSchemaName is returned by New for an empty tenant name.
	ErrMissingSchemaName = migrate.ErrMissingSchemaName

	// ErrInvalidSchemaName is returned by New for a name that is not a plain
	// SQL identifier of at most 56 bytes.
	ErrInvalidSchemaName = migrate.ErrInvalidSchemaName

	// ErrConfigNotFound is returned by New when the migration project file
	// or directory is missing from the project root.
	ErrConfigNotFound = migrate.ErrConfigNotFound
)

// Provisioning errors.
var (
	// ErrSessionOpen is returned by Init when the tenant already holds a
	// root session.
	ErrSessionOpen = errors.New("root session already open")

	// ErrTenantExists is returned by Init when the tenant role already
	// exists. The underlying *pgconn.PgError remains reachable.
	ErrTenantExists = errors.New("tenant already exists")
)
