package config

import (
	"fmt"
	"net/url"
	"strconv"
)

// Supported migration tools.
const (
	ToolSqitch = "sqitch"
	ToolGoose  = "goose"
)

// Config holds all pgunit configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Migration MigrationConfig `mapstructure:"migration" validate:"required"`
	Log       LogConfig       `mapstructure:"log" validate:"required"`
	// ProjectRoot is the directory commands run in and relative paths
	// resolve against. Resolved by Load when left empty.
	ProjectRoot string `mapstructure:"project_root"`
}

// DatabaseConfig holds the root (privileged) connection settings used for
// tenant DDL. Tenants reuse Host, Port, Name and SSLMode with their own
// credentials.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int32  `mapstructure:"max_conns" validate:"gte=0"`
}

// MigrationConfig selects and locates the migration tool.
type MigrationConfig struct {
	Tool string `mapstructure:"tool" validate:"required,oneof=sqitch goose"`
	// ConfigFile is the sqitch project file, relative to ProjectRoot.
	ConfigFile string `mapstructure:"config_file" validate:"required"`
	// Dir holds goose migrations, relative to ProjectRoot.
	Dir       string `mapstructure:"dir" validate:"required"`
	SqitchBin string `mapstructure:"sqitch_bin" validate:"required"`
	PsqlBin   string `mapstructure:"psql_bin" validate:"required"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// Default returns a Config carrying every default value. Database host,
// user and name are left empty.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "prefer",
		},
		Migration: MigrationConfig{
			Tool:       ToolSqitch,
			ConfigFile: "sqitch.conf",
			Dir:        "migrations",
			SqitchBin:  "sqitch",
			PsqlBin:    "psql",
		},
		Log: LogConfig{Level: "info"},
	}
}

// URL returns the root connection string, including pool sizing understood
// by pgxpool.
func (c DatabaseConfig) URL() string {
	q := url.Values{}
	if c.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(int(c.MaxConns)))
	}
	return c.buildURL(c.User, c.Password, q)
}

// TenantURL returns a connection string authenticating as the tenant role
// (whose password equals its name) with search_path set to its schema.
func (c DatabaseConfig) TenantURL(schema string) string {
	q := url.Values{}
	q.Set("search_path", schema)
	return c.buildURL(schema, schema, q)
}

func (c DatabaseConfig) buildURL(user, password string, q url.Values) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}

	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ClientEnv returns the libpq environment for a command-line client that
// connects as user with password. Connection settings left empty are
// omitted so the inherited environment still applies.
func (c DatabaseConfig) ClientEnv(user, password string) []string {
	env := []string{
		"PGUSER=" + user,
		"PGPASSWORD=" + password,
	}
	if c.Host != "" {
		env = append(env, "PGHOST="+c.Host)
	}
	if c.Port > 0 {
		env = append(env, "PGPORT="+strconv.Itoa(c.Port))
	}
	if c.Name != "" {
		env = append(env, "PGDATABASE="+c.Name)
	}
	if c.SSLMode != "" {
		env = append(env, "PGSSLMODE="+c.SSLMode)
	}
	return env
}
