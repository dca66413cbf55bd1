package runner

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/cybertec-postgresql/pgscript/internal/database"
	"github.com/jackc/pgx/v5"
)

// DefaultTable is the record table used when none is configured
const DefaultTable = "pgscript_migrations"

// Store persists unit records. Every method takes the Session to run on, so
// record changes join the transaction of the script they describe.
type Store struct {
	table         string // Sanitized, possibly schema qualified
	timestampType string
}

// NewStore creates a store over table for the given driver. A dotted table
// name is treated as schema.table.
func NewStore(table, driver string) *Store {
	if table == "" {
		table = DefaultTable
	}
	ts := "timestamptz"
	if driver == database.DriverSQLite {
		ts = "TIMESTAMP"
	}
	return &Store{
		table:         pgx.Identifier(strings.Split(table, ".")).Sanitize(),
		timestampType: ts,
	}
}

// Table returns the quoted table name
func (st *Store) Table() string {
	return st.table
}

// Init creates the record table if it does not exist
func (st *Store) Init(ctx context.Context, s database.Session) error {
	_, err := s.Execute(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	kind        text NOT NULL,
	name        text NOT NULL,
	up_script   text NOT NULL,
	down_script text NOT NULL,
	executed_at %s,
	PRIMARY KEY (kind, name)
)`, st.table, st.timestampType))
	if err != nil {
		return fmt.Errorf("failed to create record table %s: %w", st.table, err)
	}
	return nil
}

// Get returns the record of a unit, or nil when it has none
func (st *Store) Get(ctx context.Context, s database.Session, kind UnitKind, name string) (*Record, error) {
	rec := &Record{Kind: kind, Name: name}
	var executedAt sql.NullTime
	err := s.QueryRow(ctx,
		"SELECT up_script, down_script, executed_at FROM "+st.table+" WHERE kind = $1 AND name = $2",
		kind.String(), name,
	).Scan(&rec.UpScript, &rec.DownScript, &executedAt)
	if stderrors.Is(err, database.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s %s: %w", kind, name, err)
	}
	rec.ExecutedAt = timePtr(executedAt)
	return rec, nil
}

// List returns every record ordered by kind and name
func (st *Store) List(ctx context.Context, s database.Session) ([]*Record, error) {
	rows, err := s.Query(ctx, "SELECT kind, name, up_script, down_script, executed_at FROM "+st.table+" ORDER BY kind, name")
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			kind       string
			executedAt sql.NullTime
			rec        Record
		)
		if err := rows.Scan(&kind, &rec.Name, &rec.UpScript, &rec.DownScript, &executedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		k, ok := parseUnitKind(kind)
		if !ok {
			return nil, fmt.Errorf("record %s has unknown kind %q", rec.Name, kind)
		}
		rec.Kind = k
		rec.ExecutedAt = timePtr(executedAt)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// Save inserts or replaces the record of a unit
func (st *Store) Save(ctx context.Context, s database.Session, rec *Record) error {
	var executedAt any
	if rec.ExecutedAt != nil {
		executedAt = rec.ExecutedAt.UTC()
	}
	_, err := s.Execute(ctx, `INSERT INTO `+st.table+` (kind, name, up_script, down_script, executed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (kind, name) DO UPDATE SET
	up_script = excluded.up_script,
	down_script = excluded.down_script,
	executed_at = excluded.executed_at`,
		rec.Kind.String(), rec.Name, rec.UpScript, rec.DownScript, executedAt)
	if err != nil {
		return fmt.Errorf("failed to save record %s %s: %w", rec.Kind, rec.Name, err)
	}
	return nil
}

// Delete removes the record of a unit. Deleting a missing record is not an error.
func (st *Store) Delete(ctx context.Context, s database.Session, kind UnitKind, name string) error {
	_, err := s.Execute(ctx, "DELETE FROM "+st.table+" WHERE kind = $1 AND name = $2", kind.String(), name)
	if err != nil {
		return fmt.Errorf("failed to delete record %s %s: %w", kind, name, err)
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
