package pgunittest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/pgunit"
	"github.com/phrazzld/pgunit/config"
	"github.com/phrazzld/pgunit/internal/migrate"
	"github.com/phrazzld/pgunit/internal/platform/postgres"
	"github.com/phrazzld/pgunit/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTB captures cleanups and failures so New can fail without
// failing the enclosing test.
type recordingTB struct {
	*testing.T

	mu       sync.Mutex
	cleanups []func()
	errors   []string
	failed   bool
}

func (r *recordingTB) Cleanup(f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups = append(r.cleanups, f)
}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingTB) FailNow() {
	r.mu.Lock()
	r.failed = true
	r.mu.Unlock()
	runtime.Goexit()
}

func (r *recordingTB) runCleanups() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
}

// runNew calls New on its own goroutine, as FailNow exits it.
func runNew(t *testing.T, opts ...Option) *recordingTB {
	tb := &recordingTB{T: t}
	done := make(chan struct{})
	go func() {
		defer close(done)
		New(tb, opts...)
	}()
	<-done
	return tb
}

type stubDriver struct{ schema string }

func (d stubDriver) Deploy(context.Context, string) runner.Result {
	return runner.Success("deploy", "")
}

func (d stubDriver) Revert(context.Context, string) runner.Result {
	return runner.Success("revert", "")
}

func (d stubDriver) Verify(context.Context, string) runner.Result {
	return runner.Success("verify", "")
}

func (d stubDriver) Seed(context.Context, string) runner.Result {
	return runner.Success("seed", "")
}

func (d stubDriver) Credentials() string {
	return migrate.Credentials(d.schema)
}

func (d stubDriver) Registry() string {
	return migrate.RegistrySchema(d.schema)
}

func (d stubDriver) Close() error {
	return nil
}

// stubSession records batches and fails the CREATE batch with createErr.
type stubSession struct {
	mu        sync.Mutex
	createErr error
	batches   []string
	closed    bool
}

func (s *stubSession) Execute(context.Context, string, ...any) (postgres.Result, error) {
	return postgres.Result{}, nil
}

func (s *stubSession) ExecBatch(_ context.Context, sql string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, sql)
	if strings.HasPrefix(sql, "CREATE USER") {
		return s.createErr
	}
	return nil
}

func (s *stubSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *stubSession) dropped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, batch := range s.batches {
		if strings.Contains(batch, "DROP USER") {
			return true
		}
	}
	return false
}

func stubOptions(name string, session *stubSession) []Option {
	open := func(context.Context, config.DatabaseConfig, *slog.Logger) (pgunit.Session, error) {
		return session, nil
	}
	return []Option{
		WithName(name),
		WithConfig(config.Default()),
		WithTenantOptions(pgunit.WithDriver(stubDriver{schema: name}), pgunit.WithSessionOpener(open)),
	}
}

func TestNewCleanup(t *testing.T) {
	tests := []struct {
		name        string
		createErr   error
		wantFailed  bool
		wantDropped bool
	}{
		{
			name:        "created tenant is destroyed",
			wantDropped: true,
		},
		{
			name:        "existing tenant is left in place",
			createErr:   postgres.MapError(&pgconn.PgError{Code: "42710", Message: `role "shared_tenant" already exists`}),
			wantFailed:  true,
			wantDropped: false,
		},
		{
			name:        "partially created tenant is destroyed",
			createErr:   postgres.MapError(&pgconn.PgError{Code: "42501", Message: "permission denied to create schema"}),
			wantFailed:  true,
			wantDropped: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session := &stubSession{createErr: tc.createErr}

			tb := runNew(t, stubOptions("shared_tenant", session)...)
			require.Equal(t, tc.wantFailed, tb.failed, "errors: %v", tb.errors)
			require.Len(t, tb.cleanups, 1)

			tb.runCleanups()
			assert.Equal(t, tc.wantDropped, session.dropped())
			assert.True(t, session.closed)
		})
	}
}
