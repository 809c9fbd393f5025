package pgunit

import (
	"context"
	"log/slog"

	"github.com/phrazzld/pgunit/config"
	"github.com/phrazzld/pgunit/internal/platform/postgres"
	"github.com/phrazzld/pgunit/internal/runner"
	"github.com/stretchr/testify/mock"
)

// MockDriver mocks the migrate.Driver interface
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Deploy(ctx context.Context, migration string) runner.Result {
	return m.Called(ctx, migration).Get(0).(runner.Result)
}

func (m *MockDriver) Revert(ctx context.Context, migration string) runner.Result {
	return m.Called(ctx, migration).Get(0).(runner.Result)
}

func (m *MockDriver) Verify(ctx context.Context, migration string) runner.Result {
	return m.Called(ctx, migration).Get(0).(runner.Result)
}

func (m *MockDriver) Seed(ctx context.Context, filePath string) runner.Result {
	return m.Called(ctx, filePath).Get(0).(runner.Result)
}

func (m *MockDriver) Credentials() string {
	return m.Called().String(0)
}

func (m *MockDriver) Registry() string {
	return m.Called().String(0)
}

func (m *MockDriver) Close() error {
	return m.Called().Error(0)
}

// MockSession mocks the Session interface
type MockSession struct {
	mock.Mock
}

func (m *MockSession) Execute(ctx context.Context, sql string, args ...any) (postgres.Result, error) {
	ret := m.Called(ctx, sql, args)
	return ret.Get(0).(postgres.Result), ret.Error(1)
}

func (m *MockSession) ExecBatch(ctx context.Context, sql string) error {
	return m.Called(ctx, sql).Error(0)
}

func (m *MockSession) Close() {
	m.Called()
}

// sessionOpener returns a SessionOpener handing out s and counting calls.
func sessionOpener(s Session, err error, calls *int) SessionOpener {
	return func(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Session, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
