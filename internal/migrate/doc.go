// Package migrate drives schema migrations against one tenant.
//
// A Driver is bound to a tenant name at construction and runs every
// operation with the tenant's own credentials (the role name doubles as its
// password) and with bookkeeping kept in the tenant's private registry
// schema, sqitch_<name>. Operations return runner.Result values; deciding
// whether an outcome counts as success is left to the caller.
//
// SqitchDriver shells out to the sqitch command-line tool. GooseDriver runs
// goose migrations in process. Both seed through psql.
package migrate
