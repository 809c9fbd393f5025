//go:build integration

package pgunit_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/phrazzld/pgunit"
	"github.com/phrazzld/pgunit/config"
	"github.com/phrazzld/pgunit/internal/platform/logger"
	"github.com/phrazzld/pgunit/internal/platform/postgres"
	"github.com/phrazzld/pgunit/pgunittest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, tool string) *config.Config {
	t.Helper()

	root, err := filepath.Abs(filepath.Join("testdata", "project"))
	require.NoError(t, err)

	cfg, err := config.Load(config.WithProjectRoot(root))
	if errors.Is(err, config.ErrDatabaseNotConfigured) {
		t.Skip("database not configured - skipping integration test")
	}
	require.NoError(t, err)

	cfg.Migration.Tool = tool
	return cfg
}

func requireBinary(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not installed - skipping integration test", name)
		}
	}
}

// rootQuery runs sql on a fresh root session.
func rootQuery(t *testing.T, cfg *config.Config, sql string) postgres.Result {
	t.Helper()

	session, err := postgres.Open(context.Background(), cfg.Database, logger.NewTestLogger(t, slog.LevelDebug))
	require.NoError(t, err)
	defer session.Close()

	res, err := session.Execute(context.Background(), sql)
	require.NoError(t, err)
	return res
}

func TestTenantLifecycle(t *testing.T) {
	for _, tool := range []string{config.ToolSqitch, config.ToolGoose} {
		t.Run(tool, func(t *testing.T) {
			cfg := loadConfig(t, tool)
			requireBinary(t, cfg.Migration.PsqlBin)
			if tool == config.ToolSqitch {
				requireBinary(t, cfg.Migration.SqitchBin)
			}

			ctx := context.Background()
			tenant := pgunittest.New(t, pgunittest.WithConfig(cfg), pgunittest.WithPrefix("spu"))

			status, err := tenant.Inspect(ctx)
			require.NoError(t, err)
			assert.True(t, status.Provisioned())

			t.Run("deploy and verify", func(t *testing.T) {
				assert.True(t, tenant.Deploy(ctx, "view"))
				assert.True(t, tenant.Verify(ctx, "view"))
			})

			t.Run("unknown change", func(t *testing.T) {
				assert.False(t, tenant.Deploy(ctx, "unknownchange"))
				assert.False(t, tenant.Revert(ctx, "unknownchange"))
			})

			t.Run("revert", func(t *testing.T) {
				assert.True(t, tenant.Revert(ctx, "init"))
				assert.False(t, tenant.Verify(ctx, "view"))
				assert.True(t, tenant.Verify(ctx, "init"))
			})

			t.Run("seed", func(t *testing.T) {
				assert.False(t, tenant.Seed(ctx, ""))
				assert.False(t, tenant.Seed(ctx, "nonexistent.sql"))

				require.True(t, tenant.Seed(ctx, "data/seeding.sql"))
				res := rootQuery(t, cfg, fmt.Sprintf("SELECT count(*) AS n FROM %s.seeded", tenant.Schema()))
				assert.EqualValues(t, 2, res.Rows[0]["n"])

				rootQuery(t, cfg, fmt.Sprintf("DROP TABLE %s.seeded", tenant.Schema()))
				assert.True(t, tenant.Seed(ctx, "./data/seeding.sql"))
			})
		})
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	cfg := loadConfig(t, config.ToolGoose)
	ctx := context.Background()

	tenant, err := pgunit.New(pgunit.NewName("spu"), cfg, pgunit.WithLogger(logger.NewTestLogger(t, slog.LevelDebug)))
	require.NoError(t, err)

	require.NoError(t, tenant.Init(ctx))
	require.True(t, tenant.Deploy(ctx, ""))

	require.NoError(t, tenant.Destroy(ctx))
	status, err := tenant.Inspect(ctx)
	require.NoError(t, err)
	assert.True(t, status.Absent())

	require.NoError(t, tenant.Destroy(ctx))
	assert.Equal(t, pgunit.StateTornDown, tenant.State())
}

func TestInitDuplicateTenant(t *testing.T) {
	cfg := loadConfig(t, config.ToolGoose)
	ctx := context.Background()

	first := pgunittest.New(t, pgunittest.WithConfig(cfg), pgunittest.WithPrefix("dup"))

	second, err := pgunit.New(first.Schema(), cfg)
	require.NoError(t, err)
	defer second.Close()

	err = second.Init(ctx)
	assert.ErrorIs(t, err, pgunit.ErrTenantExists)
	assert.ErrorIs(t, err, postgres.ErrRoleExists)
}

func TestConcurrentTenants(t *testing.T) {
	cfg := loadConfig(t, config.ToolGoose)
	ctx := context.Background()

	a := pgunittest.New(t, pgunittest.WithConfig(cfg), pgunittest.WithPrefix("par"))
	b := pgunittest.New(t, pgunittest.WithConfig(cfg), pgunittest.WithPrefix("par"))
	require.NotEqual(t, a.Schema(), b.Schema())

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i, tenant := range []*pgunit.Tenant{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = tenant.Deploy(ctx, "") && tenant.Verify(ctx, "")
		}()
	}
	wg.Wait()
	assert.Equal(t, []bool{true, true}, results)

	require.NoError(t, a.Destroy(ctx))

	statusA, err := a.Inspect(ctx)
	require.NoError(t, err)
	assert.True(t, statusA.Absent())

	statusB, err := b.Inspect(ctx)
	require.NoError(t, err)
	assert.True(t, statusB.Provisioned())
	assert.True(t, b.Verify(ctx, "view"))
}
