// Package pgunit provisions isolated PostgreSQL tenants for tests and runs
// schema migrations against them.
//
// A tenant is a superuser role, a schema of the same name and a registry
// schema (sqitch_<name>) where the migration tool keeps its bookkeeping.
// Each test creates its own tenant, so suites can run in parallel against
// one database without seeing each other's objects:
//
//	tenant, err := pgunit.New(pgunit.NewName("orders"), cfg)
//	if err != nil {
//		return err
//	}
//	if err := tenant.Init(ctx); err != nil {
//		return err
//	}
//	defer tenant.Destroy(ctx)
//
//	if !tenant.Deploy(ctx, "") || !tenant.Verify(ctx, "") {
//		return errors.New("migrations did not apply")
//	}
//
// Init and Destroy return errors, since a failure there means the test
// environment itself is broken. Deploy, Revert, Verify and Seed return
// booleans so tests can assert expected failures directly.
package pgunit
