package cli

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cybertec-postgresql/pgscript/internal/runner"
	"github.com/cybertec-postgresql/pgscript/pkg/types"
	"gopkg.in/yaml.v3"
)

// Config is an alias for the shared Config type
type Config = types.Config

// ConfigError is an alias for the shared ConfigError type
type ConfigError = types.ConfigError

// DefaultConfigFile is read from the working directory when present
const DefaultConfigFile = "pgscript.yaml"

// EnvPrefix prefixes every environment variable read by ApplyEnv
const EnvPrefix = "PGSCRIPT_"

// DefaultConfig provides default configuration values
var DefaultConfig = Config{
	ConnectionString: "",
	Driver:           "pgx",
	MigrationsTable:  runner.DefaultTable,
	SearchPath:       ".",
	Workers:          4,
	Timeout:          5 * time.Minute,
	Isolated:         false,
	Format:           "text",
	Verbose:          false,
}

// LoadConfig layers defaults, the config file and the environment. An explicit
// path must exist; otherwise DefaultConfigFile is read only if it exists.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig

	required := path != ""
	if !required {
		path = DefaultConfigFile
	}
	if err := LoadConfigFile(&cfg, path, required); err != nil {
		return nil, err
	}
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current value; unknown keys are rejected.
func LoadConfigFile(c *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && stderrors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !stderrors.Is(err, io.EOF) {
		return &ConfigError{
			Field:      "config",
			Message:    fmt.Sprintf("cannot parse %s: %v", path, err),
			Suggestion: "Valid keys are connection, driver, table, path, workers, timeout, isolated, format and verbose",
		}
	}
	return nil
}

// ApplyEnv overlays PGSCRIPT_* variables onto c. The libpq PG* variables are
// not read here; pgx honours them for any part the connection string omits.
func ApplyEnv(c *Config, getenv func(string) string) error {
	if v := getenv(EnvPrefix + "CONNECTION"); v != "" {
		c.ConnectionString = v
	}
	if v := getenv(EnvPrefix + "DRIVER"); v != "" {
		c.Driver = v
	}
	if v := getenv(EnvPrefix + "TABLE"); v != "" {
		c.MigrationsTable = v
	}
	if v := getenv(EnvPrefix + "PATH"); v != "" {
		c.SearchPath = v
	}
	if v := getenv(EnvPrefix + "WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("WORKERS", v, "an integer such as 4")
		}
		c.Workers = n
	}
	if v := getenv(EnvPrefix + "TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("TIMEOUT", v, "a duration such as 30s or 5m")
		}
		c.Timeout = d
	}
	if v := getenv(EnvPrefix + "ISOLATED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("ISOLATED", v, "true or false")
		}
		c.Isolated = b
	}
	if v := getenv(EnvPrefix + "FORMAT"); v != "" {
		c.Format = v
	}
	if v := getenv(EnvPrefix + "VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("VERBOSE", v, "true or false")
		}
		c.Verbose = b
	}
	return nil
}

func envError(name, value, want string) *ConfigError {
	return &ConfigError{
		Field:      EnvPrefix + name,
		Message:    fmt.Sprintf("cannot parse %q", value),
		Suggestion: "Set it to " + want,
	}
}

// ApplyFlagsToConfig applies command-line flag values to configuration. Zero
// values leave the configuration unchanged.
func ApplyFlagsToConfig(c *Config, connection, driver, table, format string, timeout time.Duration,
	workers int, isolated, verbose bool) {

	if connection != "" {
		c.ConnectionString = connection
	}
	if driver != "" {
		c.Driver = driver
	}
	if table != "" {
		c.MigrationsTable = table
	}
	if format != "" {
		c.Format = format
	}
	if timeout != 0 {
		c.Timeout = timeout
	}
	if workers != 0 {
		c.Workers = workers
	}
	if isolated {
		c.Isolated = true
	}
	if verbose {
		c.Verbose = true
	}
}
