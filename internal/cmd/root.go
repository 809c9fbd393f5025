// Package cmd implements the pgunit command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/pgunit"
	"github.com/phrazzld/pgunit/config"
	"github.com/phrazzld/pgunit/internal/platform/logger"
	"github.com/spf13/cobra"
)

// ErrOperationFailed is returned when a migration operation reports false.
var ErrOperationFailed = errors.New("operation failed")

var (
	configFile string
	rootDir    string
	tool       string
	logLevel   string

	log = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "pgunit",
	Short: "Provision throwaway PostgreSQL tenants and migrate them",
	Long: `pgunit creates an isolated role and schema pair (a tenant) in a shared
PostgreSQL database, runs sqitch or goose migrations against it, and drops it
again.

The root connection is configured through PGUNIT_DATABASE_* variables, the
libpq PGHOST/PGPORT/PGUSER/PGPASSWORD/PGDATABASE variables, or pgunit.yaml.

Migration commands exit with status 1 when the operation fails.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: pgunit.yaml in the working directory)")
	flags.StringVar(&rootDir, "root", "", "Project root holding sqitch.conf or the goose migrations")
	flags.StringVar(&tool, "tool", "", "Migration tool: sqitch or goose")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, ErrOperationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level := logLevel
	if level == "" {
		level = os.Getenv("PGUNIT_LOG_LEVEL")
	}
	if level == "" {
		level = config.Default().Log.Level
	}
	l, err := logger.Setup(config.LogConfig{Level: level})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	log = l
	return nil
}

// loadConfig loads configuration and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	var opts []config.LoadOption
	opts = append(opts, config.WithLogger(log))
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if rootDir != "" {
		opts = append(opts, config.WithProjectRoot(rootDir))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}

	// The config file may set log.level; --log-level still wins.
	if logLevel == "" && cfg.Log.Level != "" {
		l, err := logger.Setup(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to set up logging: %w", err)
		}
		log = l
	}

	if tool != "" && tool != cfg.Migration.Tool {
		cfg.Migration.Tool = tool
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if rootDir == "" {
			cfg.ProjectRoot = ""
			if err := cfg.ResolveProjectRoot(log); err != nil {
				return nil, err
			}
		}
	}
	return cfg, nil
}

// openTenant builds the Tenant named by the first argument.
func openTenant(args []string) (*pgunit.Tenant, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return pgunit.New(args[0], cfg, pgunit.WithLogger(log))
}

// optionalArg returns args[i], or "" when absent.
func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
