package database

import (
	"context"
	stderrors "errors"
)

// Supported driver names
const (
	DriverPgx      = "pgx"      // jackc/pgx connection pool
	DriverPostgres = "postgres" // database/sql with lib/pq
	DriverSQLite   = "sqlite"   // database/sql with modernc.org/sqlite
)

// ErrNoRows is returned by Row.Scan when the query selected nothing, whatever
// the driver
var ErrNoRows = stderrors.New("no rows in result set")

// NamedArgs passed as the only argument binds @name placeholders by name
type NamedArgs map[string]any

// Row is the result of QueryRow
type Row interface {
	Scan(dest ...any) error
}

// Rows is the result of Query. Callers must Close it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Session executes statements, either directly or inside a transaction
type Session interface {
	Execute(ctx context.Context, sql string, args ...any) (int64, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// TxFunc is the body of a transaction
type TxFunc func(ctx context.Context, s Session) error

// DB is a database handle that can also run transactions
type DB interface {
	Session

	// ExecuteInTransaction commits when fn returns nil and rolls back
	// otherwise, including when fn panics.
	ExecuteInTransaction(ctx context.Context, fn TxFunc) error

	// Driver returns one of DriverPgx, DriverPostgres or DriverSQLite
	Driver() string

	Close()
}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error {
	return f(dest...)
}

// errRow is a Row whose Scan always fails, used when the query itself failed
type errRow struct{ err error }

func (r errRow) Scan(...any) error {
	return r.err
}
