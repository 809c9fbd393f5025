package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/phrazzld/pgunit/config"
	"github.com/phrazzld/pgunit/internal/runner"
)

// RegistryPrefix prefixes the tenant name to form its registry schema.
const RegistryPrefix = "sqitch_"

// maxSchemaLength keeps RegistryPrefix+name within PostgreSQL's 63 byte
// identifier limit.
const maxSchemaLength = 63 - len(RegistryPrefix)

var schemaPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var (
	// ErrMissingSchemaName is returned when a tenant name is empty.
	ErrMissingSchemaName = errors.New("missing schema name")

	// ErrInvalidSchemaName is returned when a tenant name is not a plain
	// SQL identifier.
	ErrInvalidSchemaName = errors.New("invalid schema name")

	// ErrConfigNotFound is returned when the migration project file or
	// directory does not exist.
	ErrConfigNotFound = errors.New("no configuration found")

	// ErrMissingSeedFile is returned when Seed is called without a path.
	ErrMissingSeedFile = errors.New("missing seed file")

	// ErrSeedFileNotFound is returned when the seed path does not exist.
	ErrSeedFileNotFound = errors.New("seed file not found")

	// ErrUnknownChange is returned when a named change is not in the plan.
	ErrUnknownChange = errors.New("unknown change")

	// ErrVerifyFailed is returned when deployed state does not match.
	ErrVerifyFailed = errors.New("verify failed")
)

// Driver runs migration operations for one tenant.
type Driver interface {
	// Deploy applies all pending changes, or changes up to migration.
	Deploy(ctx context.Context, migration string) runner.Result
	// Revert reverts all changes, or changes after migration.
	Revert(ctx context.Context, migration string) runner.Result
	// Verify checks deployed changes, or changes up to migration.
	Verify(ctx context.Context, migration string) runner.Result
	// Seed runs a SQL file, relative to the project root, as the tenant.
	Seed(ctx context.Context, filePath string) runner.Result
	// Credentials renders the tenant credentials as environment assignments.
	Credentials() string
	// Registry returns the registry schema name.
	Registry() string
	// Close releases connections held by the driver.
	Close() error
}

// ValidateSchema checks a tenant name. Names are embedded unquoted in SQL
// and command arguments, so only plain identifiers are accepted.
func ValidateSchema(schema string) error {
	if schema == "" {
		return ErrMissingSchemaName
	}
	if len(schema) > maxSchemaLength {
		return fmt.Errorf("%w: %q is longer than %d bytes", ErrInvalidSchemaName, schema, maxSchemaLength)
	}
	if !schemaPattern.MatchString(schema) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidSchemaName, schema, schemaPattern)
	}
	return nil
}

// RegistrySchema returns the registry schema for a tenant.
func RegistrySchema(schema string) string {
	return RegistryPrefix + schema
}

// Credentials renders the libpq credential assignments for a tenant.
func Credentials(schema string) string {
	return fmt.Sprintf("PGUSER=%s PGPASSWORD=%s", schema, schema)
}

// New returns the driver selected by cfg.Migration.Tool. A nil runner
// runs commands from cfg.ProjectRoot.
func New(schema string, cfg *config.Config, r runner.Runner, logger *slog.Logger) (Driver, error) {
	switch cfg.Migration.Tool {
	case config.ToolGoose:
		return NewGooseDriver(schema, cfg, r, logger)
	case config.ToolSqitch, "":
		return NewSqitchDriver(schema, cfg, r, logger)
	default:
		return nil, fmt.Errorf("unsupported migration tool %q", cfg.Migration.Tool)
	}
}

// withProjectRoot returns cfg, or a copy of it rooted at the working
// directory when ProjectRoot is empty.
func withProjectRoot(cfg *config.Config) (*config.Config, error) {
	if cfg.ProjectRoot != "" {
		return cfg, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}
	rooted := *cfg
	rooted.ProjectRoot = wd
	return &rooted, nil
}

func defaults(cfg *config.Config, r runner.Runner, logger *slog.Logger) (runner.Runner, *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = runner.New(cfg.ProjectRoot, logger)
	}
	return r, logger
}
