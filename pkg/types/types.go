package types

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config holds runtime configuration combining a config file, environment
// variables, flags and defaults
type Config struct {
	// Database connection
	ConnectionString string `yaml:"connection"` // URI or key=value; PG* variables fill the gaps for pgx
	Driver           string `yaml:"driver"`     // pgx, postgres or sqlite
	MigrationsTable  string `yaml:"table"`      // Optionally schema-qualified

	// Loading
	SearchPath string `yaml:"path"`    // Root of the script tree
	Workers    int    `yaml:"workers"` // Parallel parse workers

	// Execution
	Timeout  time.Duration `yaml:"timeout"`  // Per-migration timeout, 0 disables it
	Isolated bool          `yaml:"isolated"` // Run against a scratch database (pgx only)

	// Output
	Format  string `yaml:"format"`  // text or json
	Verbose bool   `yaml:"verbose"` // Enable debug logging
}

// TempDatabase represents a scratch PostgreSQL database
type TempDatabase struct {
	Name             string // e.g., "pgscript_test_20260105_150405_a3f9c2b1"
	CreatedAt        time.Time
	ConnectionString string
}

// ConfigError represents an invalid configuration value
type ConfigError struct {
	Field      string
	Message    string
	Suggestion string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	if e.Suggestion != "" {
		msg += "\nSuggestion: " + e.Suggestion
	}
	return msg
}

// Validate checks the configuration before anything connects
func (c *Config) Validate() error {
	switch c.Driver {
	case "", "pgx", "postgres":
	case "sqlite":
		if c.ConnectionString == "" {
			return &ConfigError{
				Field:      "connection",
				Message:    "the sqlite driver needs a database file",
				Suggestion: "Pass --connection file:path/to/db.sqlite",
			}
		}
	default:
		return &ConfigError{
			Field:      "driver",
			Message:    fmt.Sprintf("unknown driver %q", c.Driver),
			Suggestion: "Use pgx, postgres or sqlite",
		}
	}

	if c.Timeout < 0 {
		return &ConfigError{
			Field:      "timeout",
			Message:    fmt.Sprintf("timeout must not be negative, got %v", c.Timeout),
			Suggestion: "Use 0 to disable the timeout, or a duration such as 30s",
		}
	}

	if c.Workers < 1 {
		return &ConfigError{
			Field:      "workers",
			Message:    fmt.Sprintf("at least one worker is required, got %d", c.Workers),
			Suggestion: "Use --workers 1 for sequential parsing",
		}
	}

	parts := strings.Split(c.MigrationsTable, ".")
	if len(parts) > 2 || slices.Contains(parts, "") {
		return &ConfigError{
			Field:      "table",
			Message:    fmt.Sprintf("invalid table name %q", c.MigrationsTable),
			Suggestion: "Use table or schema.table",
		}
	}

	switch c.Format {
	case "", "text", "json":
	default:
		return &ConfigError{
			Field:      "format",
			Message:    fmt.Sprintf("unknown output format %q", c.Format),
			Suggestion: "Use text or json",
		}
	}

	if c.Isolated && c.Driver != "" && c.Driver != "pgx" {
		return &ConfigError{
			Field:      "isolated",
			Message:    fmt.Sprintf("isolated runs are not supported by driver %q", c.Driver),
			Suggestion: "Use the pgx driver to run against a scratch database",
		}
	}

	return nil
}
