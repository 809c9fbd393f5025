// Package pgunittest provisions pgunit tenants from tests.
//
// Integration tests call New to get an initialized tenant that is destroyed
// when the test finishes:
//
//	func TestOrders(t *testing.T) {
//		tenant := pgunittest.New(t, pgunittest.WithPrefix("orders"))
//		require.True(t, tenant.Deploy(ctx, ""))
//		require.True(t, tenant.Seed(ctx, "data/seeding.sql"))
//	}
//
// New skips the test when no database is configured, so the same suite
// runs without a database in plain unit-test runs.
package pgunittest

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/phrazzld/pgunit"
	"github.com/phrazzld/pgunit/config"
	"github.com/phrazzld/pgunit/internal/platform/logger"
	"github.com/stretchr/testify/require"
)

type options struct {
	name       string
	prefix     string
	cfg        *config.Config
	loadOpts   []config.LoadOption
	tenantOpts []pgunit.Option
	logLevel   slog.Level
}

// Option configures New.
type Option func(*options)

// WithName uses name instead of a generated tenant name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithPrefix sets the prefix of the generated tenant name.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithConfig uses cfg instead of loading configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLoadOptions passes opts to config.Load.
func WithLoadOptions(opts ...config.LoadOption) Option {
	return func(o *options) { o.loadOpts = append(o.loadOpts, opts...) }
}

// WithTenantOptions passes opts to pgunit.New.
func WithTenantOptions(opts ...pgunit.Option) Option {
	return func(o *options) { o.tenantOpts = append(o.tenantOpts, opts...) }
}

// WithLogLevel sets the level of the test logger. The default is debug.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) { o.logLevel = level }
}

// ShouldSkip reports whether no root database connection is configured.
func ShouldSkip() bool {
	_, err := config.Load()
	return errors.Is(err, config.ErrDatabaseNotConfigured)
}

// New creates and initializes a tenant, registering its destruction with
// t.Cleanup. It skips the test when no database is configured and fails it
// on any other setup error. When Init fails because the role already exists,
// for example with WithName, the existing tenant is left in place.
func New(t testing.TB, opts ...Option) *pgunit.Tenant {
	t.Helper()

	o := options{logLevel: slog.LevelDebug}
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.NewTestLogger(t, o.logLevel)

	cfg := o.cfg
	if cfg == nil {
		var err error
		cfg, err = config.Load(append([]config.LoadOption{config.WithLogger(log)}, o.loadOpts...)...)
		if errors.Is(err, config.ErrDatabaseNotConfigured) {
			t.Skip("PGUNIT_DATABASE_* or PGHOST/PGUSER/PGDATABASE not set - skipping integration test")
		}
		require.NoError(t, err, "Failed to load pgunit configuration")
	}

	name := o.name
	if name == "" {
		name = pgunit.NewName(o.prefix)
	}

	tenant, err := pgunit.New(name, cfg, append([]pgunit.Option{pgunit.WithLogger(log)}, o.tenantOpts...)...)
	require.NoError(t, err, "Failed to create tenant %s", name)

	// Registered before Init so a partially created tenant is dropped too.
	// A tenant that already existed belongs to someone else and is only
	// released.
	var existing bool
	t.Cleanup(func() {
		if existing {
			_ = tenant.Close()
			return
		}
		if err := tenant.Destroy(context.Background()); err != nil {
			t.Errorf("Failed to destroy tenant %s: %v", name, err)
		}
	})

	err = tenant.Init(context.Background())
	existing = errors.Is(err, pgunit.ErrTenantExists)
	require.NoError(t, err, "Failed to initialize tenant %s", name)
	return tenant
}
