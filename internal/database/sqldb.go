package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/cybertec-postgresql/pgscript/internal/errors"
	"github.com/cybertec-postgresql/pgscript/internal/scan"
	_ "github.com/lib/pq"  // registers the "postgres" driver
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLDB implements DB over database/sql for the postgres and sqlite drivers
type SQLDB struct {
	db     *sql.DB
	driver string
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// NewSQLDB opens and pings a database/sql handle for driver
func NewSQLDB(ctx context.Context, driver, dsn string) (*SQLDB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, &errors.ConnectionError{
			Message:    fmt.Sprintf("unsupported database/sql driver %q", driver),
			Suggestion: "Use one of: " + DriverPgx + ", " + DriverPostgres + ", " + DriverSQLite,
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &errors.ConnectionError{
			Message: fmt.Sprintf("invalid connection configuration: %v", err),
		}
	}
	if driver == DriverSQLite {
		// A single connection serialises writers and keeps in-memory databases shared
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &errors.ConnectionError{
			Message:    fmt.Sprintf("failed to connect: %v", err),
			Suggestion: "Verify the database is running and accessible with the provided connection string",
		}
	}

	return &SQLDB{db: db, driver: driver}, nil
}

// Driver implements DB
func (d *SQLDB) Driver() string {
	return d.driver
}

// Execute implements Session
func (d *SQLDB) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	return sqlExecute(ctx, d.db, d.driver, query, args)
}

// QueryRow implements Session
func (d *SQLDB) QueryRow(ctx context.Context, query string, args ...any) Row {
	return sqlQueryRow(ctx, d.db, d.driver, query, args)
}

// Query implements Session
func (d *SQLDB) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return sqlQuery(ctx, d.db, d.driver, query, args)
}

// ExecuteInTransaction implements DB
func (d *SQLDB) ExecuteInTransaction(ctx context.Context, fn TxFunc) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &sqlSession{q: tx, driver: d.driver}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
			return stderrors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the underlying handle
func (d *SQLDB) Close() {
	_ = d.db.Close()
}

// sqlSession runs statements inside a database/sql transaction
type sqlSession struct {
	q      sqlQuerier
	driver string
}

func (s *sqlSession) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	return sqlExecute(ctx, s.q, s.driver, query, args)
}

func (s *sqlSession) QueryRow(ctx context.Context, query string, args ...any) Row {
	return sqlQueryRow(ctx, s.q, s.driver, query, args)
}

func (s *sqlSession) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return sqlQuery(ctx, s.q, s.driver, query, args)
}

func sqlExecute(ctx context.Context, q sqlQuerier, driver, query string, args []any) (int64, error) {
	query, args, err := bind(driver, query, args)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Not every driver reports affected rows for multi-statement scripts
		return 0, nil
	}
	return n, nil
}

func sqlQueryRow(ctx context.Context, q sqlQuerier, driver, query string, args []any) Row {
	query, args, err := bind(driver, query, args)
	if err != nil {
		return errRow{err: err}
	}
	row := q.QueryRowContext(ctx, query, args...)
	return rowFunc(func(dest ...any) error {
		if err := row.Scan(dest...); err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return ErrNoRows
			}
			return err
		}
		return nil
	})
}

func sqlQuery(ctx context.Context, q sqlQuerier, driver, query string, args []any) (Rows, error) {
	query, args, err := bind(driver, query, args)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{Rows: rows}, nil
}

type sqlRows struct {
	*sql.Rows
}

func (r *sqlRows) Close() {
	_ = r.Rows.Close()
}

// bind adapts placeholders and arguments to the driver. Without arguments the
// query is passed through untouched so multi-statement scripts keep working.
func bind(driver, query string, args []any) (string, []any, error) {
	if len(args) == 0 {
		return query, args, nil
	}

	if len(args) == 1 {
		if named, ok := args[0].(NamedArgs); ok {
			if driver != DriverSQLite {
				return "", nil, fmt.Errorf("named arguments are not supported by driver %q", driver)
			}
			bound := make([]any, 0, len(named))
			for k, v := range named {
				bound = append(bound, sql.Named(k, v))
			}
			return query, bound, nil
		}
	}

	if driver == DriverSQLite {
		rebound, err := Rebind(query)
		if err != nil {
			return "", nil, err
		}
		return rebound, args, nil
	}
	return query, args, nil
}

// Rebind rewrites PostgreSQL $n placeholders outside quotes into SQLite's ?n
// form, which binds the same positional argument.
func Rebind(query string) (string, error) {
	if !strings.Contains(query, "$") {
		return query, nil
	}

	var b strings.Builder
	b.Grow(len(query))
	var st scan.State
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '$' && !st.Quoted() && i+1 < len(query) && isDigit(query[i+1]) {
			b.WriteByte('?')
			continue
		}
		b.WriteByte(c)

		next, err := scan.Step(query, i, st)
		if err != nil {
			return "", fmt.Errorf("failed to rebind placeholders: %w", err)
		}
		st = next
	}
	return b.String(), nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
