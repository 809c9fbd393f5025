// Package postgres provides the privileged SQL session pgunit uses for
// tenant DDL and catalog inspection, plus classification of PostgreSQL
// errors into the sentinel errors callers check with errors.Is.
//
// The session is a pgxpool.Pool opened from config.DatabaseConfig. It is
// owned by exactly one tenant and closed once.
package postgres
