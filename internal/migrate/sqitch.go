package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phrazzld/pgunit/config"
	"github.com/phrazzld/pgunit/internal/runner"
)

// SqitchDriver runs the sqitch CLI with the tenant's credentials and
// registry.
type SqitchDriver struct {
	schema string
	bin    string
	db     config.DatabaseConfig
	runner runner.Runner
	seeder *Seeder
	logger *slog.Logger
}

// NewSqitchDriver validates schema and checks that the sqitch project file
// exists under the project root.
func NewSqitchDriver(schema string, cfg *config.Config, r runner.Runner, logger *slog.Logger) (*SqitchDriver, error) {
	if err := ValidateSchema(schema); err != nil {
		return nil, err
	}
	cfg, err := withProjectRoot(cfg)
	if err != nil {
		return nil, err
	}

	confPath := filepath.Join(cfg.ProjectRoot, cfg.Migration.ConfigFile)
	if info, err := os.Stat(confPath); err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: no %s found in %s",
			ErrConfigNotFound, filepath.Base(cfg.Migration.ConfigFile), cfg.ProjectRoot)
	}

	r, logger = defaults(cfg, r, logger)
	return &SqitchDriver{
		schema: schema,
		bin:    cfg.Migration.SqitchBin,
		db:     cfg.Database,
		runner: r,
		seeder: NewSeeder(schema, cfg, r),
		logger: logger.With("tenant", schema, "tool", config.ToolSqitch),
	}, nil
}

// Credentials returns "PGUSER=<schema> PGPASSWORD=<schema>".
func (d *SqitchDriver) Credentials() string {
	return Credentials(d.schema)
}

// Registry returns the registry schema passed to --registry.
func (d *SqitchDriver) Registry() string {
	return RegistrySchema(d.schema)
}

// Deploy runs `sqitch deploy [<change>] --registry sqitch_<schema>`.
func (d *SqitchDriver) Deploy(ctx context.Context, migration string) runner.Result {
	return d.run(ctx, d.command(migration, "deploy"))
}

// Revert runs `sqitch revert -y [<change>] --registry sqitch_<schema>`.
func (d *SqitchDriver) Revert(ctx context.Context, migration string) runner.Result {
	return d.run(ctx, d.command(migration, "revert", "-y"))
}

// Verify runs `sqitch verify [<change>] --registry sqitch_<schema>`.
func (d *SqitchDriver) Verify(ctx context.Context, migration string) runner.Result {
	return d.run(ctx, d.command(migration, "verify"))
}

// Seed runs a SQL file through psql as the tenant.
func (d *SqitchDriver) Seed(ctx context.Context, filePath string) runner.Result {
	return d.seeder.Seed(ctx, filePath)
}

// Close is a no-op; the CLI holds no connections between calls.
func (d *SqitchDriver) Close() error {
	return nil
}

func (d *SqitchDriver) command(migration string, action ...string) runner.Command {
	args := append([]string{}, action...)
	if migration != "" {
		args = append(args, migration)
	}
	args = append(args, "--registry", d.Registry())

	return runner.Command{
		Env:  d.db.ClientEnv(d.schema, d.schema),
		Name: d.bin,
		Args: args,
	}
}

func (d *SqitchDriver) run(ctx context.Context, cmd runner.Command) runner.Result {
	d.logger.DebugContext(ctx, "sqitch", "args", cmd.Args)
	return d.runner.Run(ctx, cmd)
}
