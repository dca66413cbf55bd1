package database

import (
	"context"
	"fmt"

	"github.com/cybertec-postgresql/pgscript/internal/errors"
	"github.com/cybertec-postgresql/pgscript/pkg/types"
)

// Open connects using the adapter selected by config.Driver. An empty driver
// means pgx.
func Open(ctx context.Context, config *types.Config) (DB, error) {
	switch config.Driver {
	case "", DriverPgx:
		return NewPool(ctx, config)
	case DriverPostgres, DriverSQLite:
		return NewSQLDB(ctx, config.Driver, config.ConnectionString)
	default:
		return nil, &errors.ConnectionError{
			Message:    fmt.Sprintf("unknown driver %q", config.Driver),
			Suggestion: "Use one of: " + DriverPgx + ", " + DriverPostgres + ", " + DriverSQLite,
		}
	}
}
