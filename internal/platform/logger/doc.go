// Package logger provides structured logging for pgunit.
//
// It uses the standard library log/slog package: JSON output with a
// configurable level for the CLI, and helpers that capture or forward log
// output inside tests.
package logger
