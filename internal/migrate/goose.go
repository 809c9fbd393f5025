package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/pgunit/config"
	"github.com/phrazzld/pgunit/internal/runner"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

// VersionTable is the goose version table, kept in the registry schema.
const VersionTable = "goose_db_version"

// GooseDriver applies goose SQL migrations in process. Changes are named by
// the part of the file name after the version prefix, so 00002_view.sql is
// the change "view".
type GooseDriver struct {
	schema   string
	dir      string
	dsn      string
	seeder   *Seeder
	logger   *slog.Logger
	db       *sql.DB
	provider *goose.Provider
}

// NewGooseDriver validates schema and checks that the migrations directory
// exists under the project root. No connection is made until the first
// operation, since the tenant role may not exist yet.
func NewGooseDriver(schema string, cfg *config.Config, r runner.Runner, logger *slog.Logger) (*GooseDriver, error) {
	if err := ValidateSchema(schema); err != nil {
		return nil, err
	}
	cfg, err := withProjectRoot(cfg)
	if err != nil {
		return nil, err
	}

	dir := cfg.Migration.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.ProjectRoot, dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: no %s directory found in %s",
			ErrConfigNotFound, cfg.Migration.Dir, cfg.ProjectRoot)
	}

	r, logger = defaults(cfg, r, logger)
	return &GooseDriver{
		schema: schema,
		dir:    dir,
		dsn:    cfg.Database.TenantURL(schema),
		seeder: NewSeeder(schema, cfg, r),
		logger: logger.With("tenant", schema, "tool", config.ToolGoose),
	}, nil
}

// Credentials returns "PGUSER=<schema> PGPASSWORD=<schema>".
func (d *GooseDriver) Credentials() string {
	return Credentials(d.schema)
}

// Registry returns the schema holding the goose version table.
func (d *GooseDriver) Registry() string {
	return RegistrySchema(d.schema)
}

// Deploy applies all pending migrations, or those up to migration.
func (d *GooseDriver) Deploy(ctx context.Context, migration string) runner.Result {
	command := d.describe("up", migration)
	p, err := d.open()
	if err != nil {
		return runner.Failure(command, err)
	}

	var results []*goose.MigrationResult
	if migration == "" {
		results, err = p.Up(ctx)
	} else {
		version, ok := d.version(p, migration)
		if !ok {
			return runner.Failure(command, fmt.Errorf("%w: %q", ErrUnknownChange, migration))
		}
		results, err = p.UpTo(ctx, version)
	}
	if err != nil {
		return runner.Failure(command, fmt.Errorf("deploy failed: %w", err))
	}

	if len(results) == 0 {
		return runner.Success(command, "Nothing to deploy (up-to-date)\n")
	}
	return runner.Success(command, d.report("Deploying changes to", "+", results))
}

// Revert reverts all migrations, or those after migration.
func (d *GooseDriver) Revert(ctx context.Context, migration string) runner.Result {
	command := d.describe("down-to", migration)
	p, err := d.open()
	if err != nil {
		return runner.Failure(command, err)
	}

	var target int64
	if migration != "" {
		version, ok := d.version(p, migration)
		if !ok {
			return runner.Failure(command, fmt.Errorf("%w: %q", ErrUnknownChange, migration))
		}
		target = version
	}

	results, err := p.DownTo(ctx, target)
	if err != nil {
		return runner.Failure(command, fmt.Errorf("revert failed: %w", err))
	}

	if len(results) == 0 {
		return runner.Success(command, "No changes deployed\n")
	}
	return runner.Success(command, d.report("Reverting changes from", "-", results))
}

// Verify checks that every migration up to migration (or every known
// migration) is applied.
func (d *GooseDriver) Verify(ctx context.Context, migration string) runner.Result {
	command := d.describe("verify", migration)
	p, err := d.open()
	if err != nil {
		return runner.Failure(command, err)
	}

	statuses, err := p.Status(ctx)
	if err != nil {
		return runner.Failure(command, fmt.Errorf("verify failed: %w", err))
	}

	out, missing, err := verifyReport(d.schema, statuses, migration)
	if err != nil {
		return runner.Failure(command, err)
	}
	if missing > 0 {
		return runner.Result{
			Command:  command,
			Stdout:   out,
			ExitCode: 1,
			Err:      fmt.Errorf("%w: %d change(s) not deployed", ErrVerifyFailed, missing),
		}
	}
	return runner.Success(command, out)
}

// verifyReport renders the verify output for statuses and counts the
// changes that are not applied. It checks every migration up to and
// including the named one, or all of them. A name missing from statuses is
// ErrUnknownChange.
func verifyReport(schema string, statuses []*goose.MigrationStatus, migration string) (string, int, error) {
	sorted := append([]*goose.MigrationStatus{}, statuses...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Source.Version < sorted[j].Source.Version
	})

	var target int64 = -1
	if migration != "" {
		sources := make([]*goose.Source, 0, len(sorted))
		for _, status := range sorted {
			sources = append(sources, status.Source)
		}
		version, ok := versionOf(sources, migration)
		if !ok {
			return "", 0, fmt.Errorf("%w: %q", ErrUnknownChange, migration)
		}
		target = version
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Verifying %s\n", schema)
	missing := 0
	for _, status := range sorted {
		if target >= 0 && status.Source.Version > target {
			break
		}
		if status.State == goose.StateApplied {
			fmt.Fprintf(&out, "  * %s .. ok\n", changeName(status.Source.Path))
			continue
		}
		missing++
		fmt.Fprintf(&out, "  * %s .. not deployed\n", changeName(status.Source.Path))
	}

	if missing > 0 {
		out.WriteString("Verify failed\n")
	} else {
		out.WriteString("Verify successful\n")
	}
	return out.String(), missing, nil
}

// Seed runs a SQL file through psql as the tenant.
func (d *GooseDriver) Seed(ctx context.Context, filePath string) runner.Result {
	return d.seeder.Seed(ctx, filePath)
}

// Close closes the tenant connection pool. A later operation reopens it.
func (d *GooseDriver) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	d.provider = nil
	return err
}

// open lazily connects as the tenant and builds the goose provider with its
// version table in the registry schema.
func (d *GooseDriver) open() (*goose.Provider, error) {
	if d.provider != nil {
		return d.provider, nil
	}

	db, err := sql.Open("pgx", d.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open tenant connection: %w", err)
	}

	store, err := database.NewStore(database.DialectPostgres, d.Registry()+"."+VersionTable)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create goose store: %w", err)
	}

	provider, err := goose.NewProvider("", db, os.DirFS(d.dir), goose.WithStore(store))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create goose provider: %w", err)
	}

	d.db = db
	d.provider = provider
	return provider, nil
}

// version looks up the version of the named change.
func (d *GooseDriver) version(p *goose.Provider, migration string) (int64, bool) {
	return versionOf(p.ListSources(), migration)
}

func versionOf(sources []*goose.Source, migration string) (int64, bool) {
	for _, source := range sources {
		if changeName(source.Path) == migration {
			return source.Version, true
		}
	}
	return 0, false
}

func (d *GooseDriver) describe(action, migration string) string {
	parts := []string{Credentials(d.schema), "goose", action}
	if migration != "" {
		parts = append(parts, migration)
	}
	parts = append(parts, "--registry", d.Registry())
	return strings.Join(parts, " ")
}

func (d *GooseDriver) report(header, marker string, results []*goose.MigrationResult) string {
	var out strings.Builder
	fmt.Fprintf(&out, "%s %s\n", header, d.schema)
	for _, result := range results {
		fmt.Fprintf(&out, "  %s %s .. ok\n", marker, changeName(result.Source.Path))
	}
	return out.String()
}

// changeName maps "00002_view.sql" to "view".
func changeName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if _, name, ok := strings.Cut(base, "_"); ok {
		return name
	}
	return base
}
