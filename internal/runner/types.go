package runner

import (
	"strings"
	"time"

	"github.com/cybertec-postgresql/pgscript/internal/parser"
	"github.com/cybertec-postgresql/pgscript/internal/registry"
)

// Status is the outcome of a runner operation
type Status int

const (
	StatusOK Status = iota
	StatusScriptFailed
	StatusRecordFailed
	StatusCanceled
)

// String returns a string representation of Status
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusScriptFailed:
		return "script failed"
	case StatusRecordFailed:
		return "record failed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// UnitKind tells migration units apart from function units
type UnitKind int

const (
	UnitMigration UnitKind = iota
	UnitFunction
)

// String returns the name stored in the kind column
func (k UnitKind) String() string {
	switch k {
	case UnitMigration:
		return "migration"
	case UnitFunction:
		return "function"
	default:
		return "unknown"
	}
}

func parseUnitKind(s string) (UnitKind, bool) {
	switch s {
	case "migration":
		return UnitMigration, true
	case "function":
		return UnitFunction, true
	default:
		return UnitMigration, false
	}
}

// Operation is what a Run did
type Operation int

const (
	OpUp Operation = iota
	OpDown
	OpTest
)

// String returns a string representation of Operation
func (o Operation) String() string {
	switch o {
	case OpUp:
		return "up"
	case OpDown:
		return "down"
	case OpTest:
		return "test"
	default:
		return "unknown"
	}
}

// Script is the SQL run by one direction of a migration unit
type Script interface {
	SQL() string
}

// SQLScript is raw migration text
type SQLScript string

// SQL implements Script
func (s SQLScript) SQL() string { return string(s) }

// FunctionScript creates a function, or drops it when Drop is set
type FunctionScript struct {
	Function *parser.FunctionDefinition
	Drop     bool
}

// SQL implements Script
func (s FunctionScript) SQL() string {
	if s.Drop {
		return s.Function.DropSQL()
	}
	return s.Function.RawScript
}

// Migration is a unit the runner applies and reverts. ExecutedAt is nil until
// the unit has been applied.
type Migration struct {
	Name       string
	Kind       UnitKind
	Up         Script
	Down       Script
	Function   *parser.FunctionDefinition // Set for function units
	ExecutedAt *time.Time
}

// DoExecute reports whether the unit still has to be applied
func (m *Migration) DoExecute() bool {
	return m.ExecutedAt == nil
}

// NewSQLMigration creates a unit from a registered up/down pair
func NewSQLMigration(m *registry.Migration) *Migration {
	return &Migration{
		Name: m.Name,
		Kind: UnitMigration,
		Up:   SQLScript(m.Up.Script),
		Down: SQLScript(m.Down.Script),
	}
}

// NewFunctionMigration creates a unit that installs a function and drops it
// by its input signature
func NewFunctionMigration(f *parser.FunctionDefinition) *Migration {
	return &Migration{
		Name:     f.QualifiedName(),
		Kind:     UnitFunction,
		Up:       FunctionScript{Function: f},
		Down:     FunctionScript{Function: f, Drop: true},
		Function: f,
	}
}

// Record is the persisted state of an applied unit
type Record struct {
	Kind       UnitKind
	Name       string
	UpScript   string
	DownScript string
	ExecutedAt *time.Time
}

// recordOf snapshots a unit for the store
func recordOf(m *Migration, executedAt time.Time) *Record {
	return &Record{
		Kind:       m.Kind,
		Name:       m.Name,
		UpScript:   m.Up.SQL(),
		DownScript: m.Down.SQL(),
		ExecutedAt: &executedAt,
	}
}

// Run represents a single runner operation over one or more units
type Run struct {
	Units     []*Migration
	Operation Operation
	StartTime time.Time
	EndTime   time.Time
	Status    Status
	Error     error
}

// Name returns the names of the units in the run
func (r *Run) Name() string {
	names := make([]string, len(r.Units))
	for i, m := range r.Units {
		names[i] = m.Name
	}
	return strings.Join(names, ", ")
}

// Duration returns the run duration
func (r *Run) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// Summary summarizes a batch of runs
type Summary struct {
	Total         int
	Succeeded     int
	Failed        int
	Canceled      int
	TotalDuration time.Duration
}

// Summarize creates a summary of runs
func Summarize(runs []*Run) *Summary {
	s := &Summary{Total: len(runs)}
	for _, run := range runs {
		s.TotalDuration += run.Duration()
		switch run.Status {
		case StatusOK:
			s.Succeeded++
		case StatusCanceled:
			s.Canceled++
		default:
			s.Failed++
		}
	}
	return s
}

// AllSucceeded returns true if no run failed or was canceled
func (s *Summary) AllSucceeded() bool {
	return s.Failed == 0 && s.Canceled == 0
}

// ExitCode returns the process exit code for the batch
func (s *Summary) ExitCode() int {
	if s.AllSucceeded() {
		return 0
	}
	return 1
}

// State is the declared vs recorded state of a unit
type State int

const (
	StateApplied State = iota
	StatePending
	StateChanged  // Applied, but the declared up script differs from the recorded one
	StateOrphaned // Recorded, but no longer declared
)

// String returns a string representation of State
func (s State) String() string {
	switch s {
	case StateApplied:
		return "applied"
	case StatePending:
		return "pending"
	case StateChanged:
		return "changed"
	case StateOrphaned:
		return "orphaned"
	default:
		return "unknown"
	}
}

// StatusEntry is one line of Plan.Status
type StatusEntry struct {
	Name       string
	Kind       UnitKind
	State      State
	ExecutedAt *time.Time
}
