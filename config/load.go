package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/pgunit/internal/projectroot"
	"github.com/spf13/viper"
)

// ErrDatabaseNotConfigured is returned when no root database host, user or
// name is available. Test helpers use it to skip instead of fail.
var ErrDatabaseNotConfigured = errors.New("database connection not configured")

// envBindings maps configuration keys to the environment variables that
// can provide them, in order of precedence.
var envBindings = map[string][]string{
	"database.host":         {"PGUNIT_DATABASE_HOST", "PGHOST"},
	"database.port":         {"PGUNIT_DATABASE_PORT", "PGPORT"},
	"database.user":         {"PGUNIT_DATABASE_USER", "PGUSER"},
	"database.password":     {"PGUNIT_DATABASE_PASSWORD", "PGPASSWORD"},
	"database.name":         {"PGUNIT_DATABASE_NAME", "PGDATABASE"},
	"database.sslmode":      {"PGUNIT_DATABASE_SSLMODE", "PGSSLMODE"},
	"database.max_conns":    {"PGUNIT_DATABASE_MAX_CONNS"},
	"migration.tool":        {"PGUNIT_MIGRATION_TOOL"},
	"migration.config_file": {"PGUNIT_MIGRATION_CONFIG_FILE"},
	"migration.dir":         {"PGUNIT_MIGRATION_DIR"},
	"migration.sqitch_bin":  {"PGUNIT_MIGRATION_SQITCH_BIN"},
	"migration.psql_bin":    {"PGUNIT_MIGRATION_PSQL_BIN"},
	"log.level":             {"PGUNIT_LOG_LEVEL", "LOG_LEVEL"},
	"project_root":          {projectroot.EnvProjectRoot},
}

var validate = validator.New()

type loadOptions struct {
	configFile  string
	projectRoot string
	logger      *slog.Logger
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

// WithConfigFile reads settings from path instead of searching for
// pgunit.yaml in the working directory. A missing file is an error.
func WithConfigFile(path string) LoadOption {
	return func(o *loadOptions) { o.configFile = path }
}

// WithProjectRoot overrides the project root.
func WithProjectRoot(dir string) LoadOption {
	return func(o *loadOptions) { o.projectRoot = dir }
}

// WithLogger sets the logger used while resolving the project root.
func WithLogger(logger *slog.Logger) LoadOption {
	return func(o *loadOptions) { o.logger = logger }
}

// Load reads configuration from the config file and environment variables.
// Environment variables take precedence over values from the config file.
// It returns a validated Config with ProjectRoot resolved.
func Load(opts ...LoadOption) (*Config, error) {
	o := loadOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", o.configFile, err)
		}
	} else {
		v.SetConfigName("pgunit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if o.projectRoot != "" {
		cfg.ProjectRoot = o.projectRoot
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ResolveProjectRoot(o.logger); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("database.max_conns", d.Database.MaxConns)
	v.SetDefault("migration.tool", d.Migration.Tool)
	v.SetDefault("migration.config_file", d.Migration.ConfigFile)
	v.SetDefault("migration.dir", d.Migration.Dir)
	v.SetDefault("migration.sqitch_bin", d.Migration.SqitchBin)
	v.SetDefault("migration.psql_bin", d.Migration.PsqlBin)
	v.SetDefault("log.level", d.Log.Level)
}

// Validate checks the configuration. A missing root host, user or database
// name is reported as ErrDatabaseNotConfigured.
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
		return fmt.Errorf("config validation failed: %w", ErrDatabaseNotConfigured)
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// ResolveProjectRoot makes ProjectRoot absolute, locating it when empty.
// The nearest directory holding the migration project (sqitch.conf or the
// goose migrations directory) wins, then the nearest go.mod, then the
// working directory.
func (c *Config) ResolveProjectRoot(logger *slog.Logger) error {
	if c.ProjectRoot != "" {
		abs, err := filepath.Abs(c.ProjectRoot)
		if err != nil {
			return fmt.Errorf("failed to resolve project root %s: %w", c.ProjectRoot, err)
		}
		c.ProjectRoot = abs
		return nil
	}

	marker := c.Migration.ConfigFile
	if c.Migration.Tool == ToolGoose {
		marker = c.Migration.Dir
	}

	root, err := projectroot.Find(logger, marker, projectroot.GoModFile)
	switch {
	case err == nil:
		c.ProjectRoot = root
	case errors.Is(err, projectroot.ErrProjectRootNotFound):
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return fmt.Errorf("failed to get current working directory: %w", wdErr)
		}
		c.ProjectRoot = wd
	default:
		return fmt.Errorf("failed to resolve project root: %w", err)
	}
	return nil
}
