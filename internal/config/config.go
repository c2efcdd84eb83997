package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LeaseBackendKind identifies which mutual-exclusion backend the coordinator
// should construct.
type LeaseBackendKind string

const (
	LeaseBackendNone         LeaseBackendKind = ""
	LeaseBackendMemory       LeaseBackendKind = "memory"
	LeaseBackendRedis        LeaseBackendKind = "redis"
	LeaseBackendSQLAdvisory  LeaseBackendKind = "sql_advisory"
	LeaseBackendSQLNamedLock LeaseBackendKind = "sql_namedlock"
	LeaseBackendSQLRow       LeaseBackendKind = "sql_row"
)

// AuditBackendKind identifies which dispatch history backend the coordinator
// should construct.
type AuditBackendKind string

const (
	AuditBackendNone   AuditBackendKind = ""
	AuditBackendMemory AuditBackendKind = "memory"
	AuditBackendRedis  AuditBackendKind = "redis"
	AuditBackendSQL    AuditBackendKind = "sql"
)

// DatabaseDriver identifies the SQL dialect backing SQL-based lease/audit
// backends.
type DatabaseDriver string

const (
	DriverMySQL    DatabaseDriver = "mysql"
	DriverPostgres DatabaseDriver = "postgres"
	DriverSQLite   DatabaseDriver = "sqlite"
)

// Config holds all coordinator configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds the minimal HTTP surface (health, readiness, metrics,
// job status) settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds SQL connection settings, used when a SQL-based lease
// or audit backend is selected.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds connection settings, used when a Redis-based lease or
// audit backend is selected.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CoordinatorConfig is the option table of spec.md §4.9.
type CoordinatorConfig struct {
	TickInterval           time.Duration    `mapstructure:"tick_interval"`
	WindowLookback         time.Duration    `mapstructure:"window_lookback"`
	WindowLookahead        time.Duration    `mapstructure:"window_lookahead"`
	LeaseTTL               time.Duration    `mapstructure:"lease_ttl"`
	Namespace              string           `mapstructure:"namespace"`
	LeaseBackend           LeaseBackendKind `mapstructure:"lease_backend"`
	AuditBackend           AuditBackendKind `mapstructure:"audit_backend"`
	EnableAudit            bool             `mapstructure:"enable_audit"`
	EnableDispatchRecovery bool             `mapstructure:"enable_dispatch_recovery"`
	RecoveryWindow         time.Duration    `mapstructure:"recovery_window"`
	RecoveryStartupJitter  time.Duration    `mapstructure:"recovery_startup_jitter"`
	TimeZone               string           `mapstructure:"time_zone"`
	ShutdownTimeout        time.Duration    `mapstructure:"shutdown_timeout"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/railscron/")

	v.SetEnvPrefix("RAILSCRON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "railscron")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", true)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "railscron")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("coordinator.tick_interval", 5*time.Second)
	v.SetDefault("coordinator.window_lookback", 120*time.Second)
	v.SetDefault("coordinator.window_lookahead", 0*time.Second)
	v.SetDefault("coordinator.lease_ttl", 60*time.Second)
	v.SetDefault("coordinator.namespace", "railscron")
	v.SetDefault("coordinator.lease_backend", string(LeaseBackendNone))
	v.SetDefault("coordinator.audit_backend", string(AuditBackendNone))
	v.SetDefault("coordinator.enable_audit", false)
	v.SetDefault("coordinator.enable_dispatch_recovery", true)
	v.SetDefault("coordinator.recovery_window", 86400*time.Second)
	v.SetDefault("coordinator.recovery_startup_jitter", 5*time.Second)
	v.SetDefault("coordinator.time_zone", "")
	v.SetDefault("coordinator.shutdown_timeout", 30*time.Second)
}

// ConfigurationError aggregates every violation Violations() found into
// one error. It carries only that list: no code, wrapped error or HTTP
// status.
type ConfigurationError struct {
	Violations []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Violations, "; "))
}

// Violations reports every required/range-bound setting that fails
// validation, without raising. Returns nil when the config is valid.
func (c *Config) Violations() []string {
	var violations []string

	if c.Database.Name == "" {
		violations = append(violations, "database name is required")
	}

	co := c.Coordinator
	if co.TickInterval <= 0 {
		violations = append(violations, "coordinator.tick_interval must be > 0")
	}
	if co.WindowLookback < 0 {
		violations = append(violations, "coordinator.window_lookback must be >= 0")
	}
	if co.WindowLookahead < 0 {
		violations = append(violations, "coordinator.window_lookahead must be >= 0")
	}
	if co.LeaseTTL <= 0 {
		violations = append(violations, "coordinator.lease_ttl must be > 0")
	}
	if co.Namespace == "" {
		violations = append(violations, "coordinator.namespace must be non-empty")
	}
	if co.RecoveryWindow <= 0 {
		violations = append(violations, "coordinator.recovery_window must be > 0")
	}
	if co.RecoveryStartupJitter < 0 {
		violations = append(violations, "coordinator.recovery_startup_jitter must be >= 0")
	}
	if co.TimeZone != "" {
		if _, err := time.LoadLocation(co.TimeZone); err != nil {
			violations = append(violations, fmt.Sprintf("coordinator.time_zone invalid: %v", err))
		}
	}

	return violations
}

// Validate raises a *ConfigurationError concatenating every violation
// Violations() finds, or nil if the config is valid.
func (c *Config) Validate() error {
	violations := c.Violations()
	if len(violations) == 0 {
		return nil
	}
	return &ConfigurationError{Violations: violations}
}

// Location resolves the configured time zone, falling back to time.Local.
func (c *CoordinatorConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// DSN returns the SQL connection string for MySQL/Postgres drivers. SQLite
// uses Database.Name directly as a file path (or ":memory:").
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case string(DriverMySQL):
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.Name)
	case string(DriverPostgres):
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	default:
		return ""
	}
}

// IsSQL returns true if a SQL driver (MySQL, Postgres or SQLite) is configured.
func (c *DatabaseConfig) IsSQL() bool {
	switch c.Driver {
	case string(DriverMySQL), string(DriverPostgres), string(DriverSQLite):
		return true
	default:
		return false
	}
}

// IsMySQL returns true if the MySQL driver is configured.
func (c *DatabaseConfig) IsMySQL() bool {
	return c.Driver == string(DriverMySQL)
}

// IsPostgres returns true if the PostgreSQL driver is configured.
func (c *DatabaseConfig) IsPostgres() bool {
	return c.Driver == string(DriverPostgres)
}

// IsSQLite returns true if the SQLite driver is configured.
func (c *DatabaseConfig) IsSQLite() bool {
	return c.Driver == string(DriverSQLite)
}
