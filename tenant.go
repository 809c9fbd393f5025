package pgunit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/pgunit/config"
	"github.com/phrazzld/pgunit/internal/migrate"
	"github.com/phrazzld/pgunit/internal/platform/postgres"
	"github.com/phrazzld/pgunit/internal/runner"
)

// State is the provisioning state of a Tenant.
type State int

const (
	// StateUnprovisioned means Init has not succeeded yet.
	StateUnprovisioned State = iota
	// StateActive means the role and schemas were created.
	StateActive
	// StateTornDown means Destroy completed.
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUnprovisioned:
		return "unprovisioned"
	case StateActive:
		return "active"
	case StateTornDown:
		return "torn-down"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// registryTables are the sqitch bookkeeping tables plus the goose version
// table, in drop order.
var registryTables = []string{
	"releases",
	"projects",
	"changes",
	"tags",
	"dependencies",
	"events",
	migrate.VersionTable,
}

// Session is a privileged database session used for tenant DDL.
type Session interface {
	Execute(ctx context.Context, sql string, args ...any) (postgres.Result, error)
	ExecBatch(ctx context.Context, sql string) error
	Close()
}

// SessionOpener opens a root Session.
type SessionOpener func(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Session, error)

// OpenSession opens a pgx pool with the root credentials.
func OpenSession(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Session, error) {
	exec, err := postgres.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// Option configures a Tenant.
type Option func(*Tenant)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tenant) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithDriver replaces the migration driver selected from the config.
func WithDriver(d migrate.Driver) Option {
	return func(t *Tenant) { t.driver = d }
}

// WithSessionOpener replaces OpenSession.
func WithSessionOpener(open SessionOpener) Option {
	return func(t *Tenant) { t.openSession = open }
}

// WithRunner sets the runner used by the migration driver for external
// commands.
func WithRunner(r runner.Runner) Option {
	return func(t *Tenant) { t.runner = r }
}

// Tenant manages one isolated role and its schemas. A Tenant is not safe
// for concurrent use; distinct tenants are.
type Tenant struct {
	schema      string
	cfg         *config.Config
	driver      migrate.Driver
	runner      runner.Runner
	openSession SessionOpener
	logger      *slog.Logger

	session Session
	state   State
}

// New returns a Tenant named schema. The name is validated and, unless a
// driver is supplied, the migration driver for cfg.Migration.Tool is
// built, which fails when its project file is missing. A nil cfg means
// config.Default().
func New(schema string, cfg *config.Config, opts ...Option) (*Tenant, error) {
	if err := migrate.ValidateSchema(schema); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}

	t := &Tenant{
		schema:      schema,
		cfg:         cfg,
		openSession: OpenSession,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("tenant", schema)

	if t.driver == nil {
		d, err := migrate.New(schema, cfg, t.runner, t.logger)
		if err != nil {
			return nil, err
		}
		t.driver = d
	}
	return t, nil
}

// Schema returns the tenant name, which is also its role and schema name.
func (t *Tenant) Schema() string {
	return t.schema
}

// Registry returns the registry schema name.
func (t *Tenant) Registry() string {
	return t.driver.Registry()
}

// Credentials returns the tenant credentials as "PGUSER=<name> PGPASSWORD=<name>".
func (t *Tenant) Credentials() string {
	return t.driver.Credentials()
}

// State returns the provisioning state observed by this Tenant.
func (t *Tenant) State() State {
	return t.state
}

// Init opens the root session and creates the role, schema and registry
// schema in one batch. The session stays open until Destroy or Close, also
// when the batch fails, so a partially created tenant can be destroyed.
func (t *Tenant) Init(ctx context.Context) error {
	if t.session != nil {
		return ErrSessionOpen
	}

	s, err := t.openSession(ctx, t.cfg.Database, t.logger)
	if err != nil {
		return fmt.Errorf("failed to open root session: %w", err)
	}
	t.session = s

	if err := s.ExecBatch(ctx, createSQL(t.schema)); err != nil {
		if postgres.IsDuplicateObject(err) {
			return fmt.Errorf("%w: role %s: %w", ErrTenantExists, t.schema, err)
		}
		return fmt.Errorf("failed to create tenant %s: %w", t.schema, err)
	}

	t.state = StateActive
	t.logger.InfoContext(ctx, "tenant created", "registry", t.Registry())
	return nil
}

// Deploy applies all pending changes, or changes up to migration.
func (t *Tenant) Deploy(ctx context.Context, migration string) bool {
	return t.interpret(ctx, "deploy", t.driver.Deploy(ctx, migration), deployed)
}

// Revert reverts all changes, or changes after migration.
func (t *Tenant) Revert(ctx context.Context, migration string) bool {
	return t.interpret(ctx, "revert", t.driver.Revert(ctx, migration), reverted)
}

// Verify reports whether all changes, or changes up to migration, are
// deployed and pass their checks.
func (t *Tenant) Verify(ctx context.Context, migration string) bool {
	return t.interpret(ctx, "verify", t.driver.Verify(ctx, migration), verified)
}

// Seed runs a SQL file, relative to the project root, as the tenant. It
// reports true only when the file's transaction committed.
func (t *Tenant) Seed(ctx context.Context, filePath string) bool {
	return t.interpret(ctx, "seed", t.driver.Seed(ctx, filePath), seeded)
}

// Destroy drops the registry tables, both schemas and the role, then closes
// the root session whatever the outcome. It opens a session when none is
// held and succeeds when the tenant is already gone.
func (t *Tenant) Destroy(ctx context.Context) error {
	if err := t.driver.Close(); err != nil {
		t.logger.WarnContext(ctx, "failed to close migration driver", "error", err)
	}

	if t.session == nil {
		s, err := t.openSession(ctx, t.cfg.Database, t.logger)
		if err != nil {
			return fmt.Errorf("failed to open root session: %w", err)
		}
		t.session = s
	}
	defer t.closeSession()

	if err := t.session.ExecBatch(ctx, dropSQL(t.schema)); err != nil {
		return fmt.Errorf("failed to destroy tenant %s: %w", t.schema, err)
	}

	t.state = StateTornDown
	t.logger.InfoContext(ctx, "tenant destroyed")
	return nil
}

// Close releases the root session and driver connections without touching
// the database objects.
func (t *Tenant) Close() error {
	t.closeSession()
	return t.driver.Close()
}

// Status reports which of a tenant's objects exist.
type Status struct {
	Role     bool `json:"role"`
	Schema   bool `json:"schema"`
	Registry bool `json:"registry"`
}

// Provisioned reports whether every object exists.
func (s Status) Provisioned() bool {
	return s.Role && s.Schema && s.Registry
}

// Absent reports whether no object exists.
func (s Status) Absent() bool {
	return !s.Role && !s.Schema && !s.Registry
}

const inspectSQL = `SELECT
	EXISTS (SELECT 1 FROM pg_catalog.pg_roles WHERE rolname = $1) AS role,
	EXISTS (SELECT 1 FROM pg_catalog.pg_namespace WHERE nspname = $1) AS schema,
	EXISTS (SELECT 1 FROM pg_catalog.pg_namespace WHERE nspname = $2) AS registry`

// Inspect queries the catalog for the tenant's role and schemas. Without an
// open session it uses a temporary one.
func (t *Tenant) Inspect(ctx context.Context) (Status, error) {
	s := t.session
	if s == nil {
		var err error
		s, err = t.openSession(ctx, t.cfg.Database, t.logger)
		if err != nil {
			return Status{}, fmt.Errorf("failed to open root session: %w", err)
		}
		defer s.Close()
	}

	res, err := s.Execute(ctx, inspectSQL, t.schema, t.Registry())
	if err != nil {
		return Status{}, fmt.Errorf("failed to inspect tenant %s: %w", t.schema, err)
	}
	if len(res.Rows) != 1 {
		return Status{}, fmt.Errorf("failed to inspect tenant %s: expected 1 row, got %d", t.schema, len(res.Rows))
	}

	row := res.Rows[0]
	var status Status
	var ok bool
	if status.Role, ok = row["role"].(bool); !ok {
		return Status{}, errors.New("unexpected catalog result for role")
	}
	if status.Schema, ok = row["schema"].(bool); !ok {
		return Status{}, errors.New("unexpected catalog result for schema")
	}
	if status.Registry, ok = row["registry"].(bool); !ok {
		return Status{}, errors.New("unexpected catalog result for registry")
	}
	return status, nil
}

func (t *Tenant) interpret(ctx context.Context, op string, res runner.Result, ok outcome) bool {
	if ok(res) {
		t.logger.DebugContext(ctx, op+" succeeded", "command", res.Command)
		return true
	}
	t.logger.DebugContext(ctx, op+" failed",
		"command", res.Command,
		"exit_code", res.ExitCode,
		"output", res.Diagnostic(),
	)
	return false
}

func (t *Tenant) closeSession() {
	if t.session != nil {
		t.session.Close()
		t.session = nil
	}
}

// createSQL builds the provisioning batch. The name has been validated as
// a plain identifier, so it is embedded as is.
func createSQL(schema string) string {
	registry := migrate.RegistrySchema(schema)
	return fmt.Sprintf(
		"CREATE USER %[1]s WITH SUPERUSER PASSWORD '%[1]s'; "+
			"CREATE SCHEMA IF NOT EXISTS %[1]s; "+
			"CREATE SCHEMA IF NOT EXISTS %[2]s;",
		schema, registry)
}

func dropSQL(schema string) string {
	registry := migrate.RegistrySchema(schema)
	var b strings.Builder
	for _, table := range registryTables {
		fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s.%s; ", registry, table)
	}
	fmt.Fprintf(&b, "DROP SCHEMA IF EXISTS %s CASCADE; ", registry)
	fmt.Fprintf(&b, "DROP SCHEMA IF EXISTS %s CASCADE; ", schema)
	fmt.Fprintf(&b, "DROP USER IF EXISTS %s;", schema)
	return b.String()
}
