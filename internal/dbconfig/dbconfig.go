// Package dbconfig resolves database connection settings from an
// optional YAML profile, an optional .env file and the process
// environment. Profile values win, the environment fills gaps and
// validation applies defaults, so the same binary runs from a checked-in
// profile in one place and from bare PG* variables in another.
package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"csvpg/internal/storage"
)

// Drivers understood by the storage registry.
const (
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverSQLServer = "sqlserver"
)

// ImportDefaults carries per-profile import tuning. Zero values mean
// "use the built-in default".
type ImportDefaults struct {
	Namespace  string `yaml:"namespace"`
	SampleRows int    `yaml:"sample_rows"`
	BatchSize  int    `yaml:"batch_size"`
}

// Config is one resolved connection profile.
type Config struct {
	Driver string `yaml:"driver"`
	// DSN is a complete connection string. When set it wins over the
	// discrete fields below.
	DSN string `yaml:"dsn"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`

	Import ImportDefaults `yaml:"import"`
}

// Overrides carry caller-supplied settings, typically command-line
// flags, that win over the profile and the environment alike.
type Overrides struct {
	Driver string
	DSN    string
}

// Load resolves a configuration.
//
// envPath names a .env file to load first; empty means "load ./.env if
// present". profilePath names a YAML profile; empty skips the profile.
// Environment variables fill any field the profile left blank:
//
//	DATABASE_URL | POSTGRES_URL | DB_URL   -> DSN
//	DB_DRIVER                              -> Driver
//	PGHOST | DB_HOST                       -> Host
//	PGPORT | DB_PORT                       -> Port
//	PGDATABASE | DB_NAME                   -> Database
//	PGUSER | DB_USER                       -> User
//	PGPASSWORD | DB_PASSWORD               -> Password
//	PGSSLMODE | DB_SSLMODE                 -> SSLMode
func Load(profilePath, envPath string, over Overrides) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envPath, err)
		}
	} else {
		// Ambient .env is optional.
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if profilePath != "" {
		raw, err := os.ReadFile(profilePath)
		if err != nil {
			return nil, fmt.Errorf("read profile %s: %w", profilePath, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", profilePath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if over.Driver != "" {
		cfg.Driver = over.Driver
	}
	if over.DSN != "" {
		cfg.DSN = over.DSN
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if c.DSN == "" {
		c.DSN = envOr("DATABASE_URL", "POSTGRES_URL", "DB_URL")
	}
	if c.Driver == "" {
		c.Driver = envOr("DB_DRIVER")
	}
	if c.Host == "" {
		c.Host = envOr("PGHOST", "DB_HOST")
	}
	if c.Port == 0 {
		if p := envOr("PGPORT", "DB_PORT"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", p, err)
			}
			c.Port = n
		}
	}
	if c.Database == "" {
		c.Database = envOr("PGDATABASE", "DB_NAME")
	}
	if c.User == "" {
		c.User = envOr("PGUSER", "DB_USER")
	}
	if c.Password == "" {
		c.Password = envOr("PGPASSWORD", "DB_PASSWORD")
	}
	if c.SSLMode == "" {
		c.SSLMode = envOr("PGSSLMODE", "DB_SSLMODE")
	}
	return nil
}

func (c *Config) validate() error {
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	switch c.Driver {
	case DriverPostgres, DriverSQLite, DriverSQLServer:
	default:
		return fmt.Errorf("unknown driver %q (want %s, %s or %s)",
			c.Driver, DriverPostgres, DriverSQLite, DriverSQLServer)
	}

	if c.DSN != "" {
		return nil
	}

	if c.Driver == DriverSQLite {
		return fmt.Errorf("driver %s needs a dsn (the database file path)", DriverSQLite)
	}

	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
		if c.Driver == DriverSQLServer {
			c.Port = 1433
		}
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}

	var missing []string
	if c.Database == "" {
		missing = append(missing, "PGDATABASE/DB_NAME")
	}
	if c.User == "" {
		missing = append(missing, "PGUSER/DB_USER")
	}
	if c.Password == "" {
		missing = append(missing, "PGPASSWORD/DB_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing database settings: %s (set DATABASE_URL or the discrete variables)",
			strings.Join(missing, ", "))
	}
	return nil
}

// ConnString renders the connection string the driver receives. An
// explicit DSN passes through untouched.
func (c *Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.Driver {
	case DriverSQLServer:
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			RawQuery: url.Values{"database": []string{c.Database}}.Encode(),
		}
		return u.String()
	default:
		return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode)
	}
}

// Redacted renders the connection string with the password masked, for
// logs and error messages.
func (c *Config) Redacted() string {
	return redactDSN(c.ConnString())
}

// Storage adapts the profile to the storage registry's config.
func (c *Config) Storage() storage.Config {
	return storage.Config{Driver: c.Driver, DSN: c.ConnString()}
}

func redactDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil {
			return u.Redacted()
		}
	}
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}

func envOr(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
