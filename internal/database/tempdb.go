package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cybertec-postgresql/pgscript/pkg/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tempDatabasePrefix = "pgscript_test_"

// CreateTempDatabase creates an empty scratch database on the admin pool's
// server. Migrations can be applied there without touching the target schema.
func CreateTempDatabase(ctx context.Context, adminPool *Pool) (*types.TempDatabase, error) {
	timestamp := time.Now().Format("20060102_150405")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	dbName := fmt.Sprintf("%s%s_%s", tempDatabasePrefix, timestamp, suffix)

	_, err := adminPool.Pool.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize())
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary database: %w", err)
	}

	// Keep every original option (sslmode, credentials...) and swap the database
	connConfig := adminPool.Pool.Config().ConnConfig
	connString := fmt.Sprintf("host=%s port=%d user=%s dbname=%s",
		connConfig.Host, connConfig.Port, connConfig.User, dbName)
	if connConfig.Password != "" {
		connString += " password=" + quoteConnValue(connConfig.Password)
	}
	if connConfig.TLSConfig == nil {
		connString += " sslmode=disable"
	}

	return &types.TempDatabase{
		Name:             dbName,
		CreatedAt:        time.Now(),
		ConnectionString: connString,
	}, nil
}

// DestroyTempDatabase drops a database created by CreateTempDatabase
func DestroyTempDatabase(ctx context.Context, adminPool *Pool, tempDB *types.TempDatabase) error {
	if tempDB == nil {
		return nil
	}
	_, err := adminPool.Pool.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{tempDB.Name}.Sanitize()+" WITH (FORCE)")
	if err != nil {
		return fmt.Errorf("failed to drop temporary database %s: %w", tempDB.Name, err)
	}
	return nil
}

// quoteConnValue quotes a key=value connection string value
func quoteConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
