package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Kind classifies a parse or classification failure
type Kind int

const (
	KindUnknown Kind = iota
	FunctionNotFound
	FunctionNameMalformed
	ParameterListMalformed
	ParameterNameMalformed
	ParameterTypeMalformed
	ParameterDefaultMalformed
	MigrationNotFound
	Unbalanced
)

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case FunctionNotFound:
		return "function not found"
	case FunctionNameMalformed:
		return "function name malformed"
	case ParameterListMalformed:
		return "parameter list malformed"
	case ParameterNameMalformed:
		return "parameter name malformed"
	case ParameterTypeMalformed:
		return "parameter type malformed"
	case ParameterDefaultMalformed:
		return "parameter default malformed"
	case MigrationNotFound:
		return "migration not found"
	case Unbalanced:
		return "unbalanced quotes or brackets"
	default:
		return "parse error"
	}
}

// Error lets a Kind act as an errors.Is target, e.g. errors.Is(err, FunctionNotFound)
func (k Kind) Error() string {
	return k.String()
}

// ErrNoResource is returned when every classifier attempt failed
var ErrNoResource = stderrors.New("no SQL resource found")

// ParseError represents SQL parsing failure
type ParseError struct {
	Kind    Kind
	File    string
	Message string
	Err     error // Underlying failure, typically a scan error
}

func (e *ParseError) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying error to errors.Is/As
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewParseError creates a new ParseError
func NewParseError(kind Kind, file, message string) *ParseError {
	return &ParseError{
		Kind:    kind,
		File:    file,
		Message: message,
	}
}

// WrapParseError creates a ParseError caused by err
func WrapParseError(kind Kind, file, message string, err error) *ParseError {
	return &ParseError{
		Kind:    kind,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IsParseError reports whether err is (or wraps) a ParseError
func IsParseError(err error) bool {
	var pe *ParseError
	return stderrors.As(err, &pe)
}

// IsUnbalanced reports whether err was caused by unbalanced quoting or nesting.
// Such failures are unrecoverable for the script that produced them.
func IsUnbalanced(err error) bool {
	return stderrors.Is(err, Unbalanced)
}

// DownMigrationNotDefinedError is raised at load time when an up migration has no
// sibling down migration
type DownMigrationNotDefinedError struct {
	UpPath   string
	DownPath string
}

func (e *DownMigrationNotDefinedError) Error() string {
	return fmt.Sprintf("down migration not defined: %s has no sibling %s", e.UpPath, e.DownPath)
}

// NewDownMigrationNotDefinedError creates a new DownMigrationNotDefinedError
func NewDownMigrationNotDefinedError(upPath, downPath string) *DownMigrationNotDefinedError {
	return &DownMigrationNotDefinedError{
		UpPath:   upPath,
		DownPath: downPath,
	}
}

// ConnectionError represents database connection failure
type ConnectionError struct {
	Message    string
	Suggestion string
}

func (e *ConnectionError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// MigrationError represents a failed migration step
type MigrationError struct {
	Migration string
	Direction string // up, down or test
	Op        string // execute, record, transaction
	Err       error
}

func (e *MigrationError) Error() string {
	if code := e.SQLState(); code != "" {
		return fmt.Sprintf("migration %s (%s) failed during %s: [%s] %v", e.Migration, e.Direction, e.Op, code, e.Err)
	}
	return fmt.Sprintf("migration %s (%s) failed during %s: %v", e.Migration, e.Direction, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// SQLState returns the PostgreSQL error code if the failure came from the server,
// through either pgx or lib/pq
func (e *MigrationError) SQLState() string {
	var pgErr *pgconn.PgError
	if stderrors.As(e.Err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if stderrors.As(e.Err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// NewMigrationError creates a new MigrationError
func NewMigrationError(migration, direction, op string, err error) *MigrationError {
	return &MigrationError{
		Migration: migration,
		Direction: direction,
		Op:        op,
		Err:       err,
	}
}
