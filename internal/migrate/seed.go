package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phrazzld/pgunit/config"
	"github.com/phrazzld/pgunit/internal/runner"
)

// Seeder runs SQL files through psql as the tenant role.
type Seeder struct {
	schema string
	root   string
	bin    string
	db     config.DatabaseConfig
	runner runner.Runner
}

// NewSeeder returns a Seeder for schema.
func NewSeeder(schema string, cfg *config.Config, r runner.Runner) *Seeder {
	return &Seeder{
		schema: schema,
		root:   cfg.ProjectRoot,
		bin:    cfg.Migration.PsqlBin,
		db:     cfg.Database,
		runner: r,
	}
}

// Resolve returns the absolute path of filePath, relative paths being taken
// from the project root.
func (s *Seeder) Resolve(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filepath.Clean(filePath)
	}
	return filepath.Join(s.root, filePath)
}

// Seed runs `psql [-d <database>] -f <file>` with the tenant credentials.
func (s *Seeder) Seed(ctx context.Context, filePath string) runner.Result {
	if filePath == "" {
		return runner.Failure("seed", ErrMissingSeedFile)
	}

	fullPath := s.Resolve(filePath)
	if _, err := os.Stat(fullPath); err != nil {
		return runner.Failure("seed "+filePath,
			fmt.Errorf("%w: file %s doesn't exist", ErrSeedFileNotFound, fullPath))
	}

	// Without a configured name psql falls back to the inherited PGDATABASE.
	var args []string
	if s.db.Name != "" {
		args = append(args, "-d", s.db.Name)
	}
	args = append(args, "-f", fullPath)

	return s.runner.Run(ctx, runner.Command{
		Env:  s.db.ClientEnv(s.schema, s.schema),
		Name: s.bin,
		Args: args,
	})
}
