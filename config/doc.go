// Package config handles configuration loading, parsing, and validation for
// pgunit. Settings come from an optional pgunit.yaml file, PGUNIT_ prefixed
// environment variables and, as fallbacks, the libpq variables (PGHOST,
// PGUSER, ...) so existing .env based setups keep working.
//
// The loaded Config is passed explicitly to every component; nothing reads
// the process environment after Load returns.
package config
