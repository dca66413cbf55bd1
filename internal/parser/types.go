package parser

import (
	"fmt"
	"strings"
)

// Kind identifies which resource a script was classified as
type Kind int

const (
	KindMigration Kind = iota
	KindFunction
	KindQuery
)

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindMigration:
		return "migration"
	case KindFunction:
		return "function"
	case KindQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Resource is any definition parsed from a script
type Resource interface {
	ResourceKind() Kind
	ResourceName() string
	Source() string
}

// Direction is the calling convention of a function parameter
type Direction int

const (
	In Direction = iota
	Out
	InOut
	Variadic
)

// String returns a string representation of Direction
func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case InOut:
		return "inout"
	case Variadic:
		return "variadic"
	default:
		return "unknown"
	}
}

// IsInput reports whether arguments are passed through this direction
func (d Direction) IsInput() bool {
	return d != Out
}

// ParameterType is a type name with optional numeric modifiers, e.g. numeric(10,3)
type ParameterType struct {
	Name      string
	Precision *int
	Scale     *int
}

// String renders the type as SQL, keeping any time zone qualifier and array
// suffix after the modifiers
func (t ParameterType) String() string {
	if t.Precision == nil {
		return t.Name
	}
	base, array := t.Name, ""
	if i := strings.Index(t.Name, "["); i >= 0 {
		base, array = t.Name[:i], t.Name[i:]
	}
	// The modifier precedes a time zone qualifier: timestamp(3) with time zone
	zone := ""
	lower := strings.ToLower(base)
	for _, q := range []string{" with time zone", " without time zone"} {
		if strings.HasSuffix(lower, q) {
			base, zone = base[:len(base)-len(q)], base[len(base)-len(q):]
			break
		}
	}
	if t.Scale == nil {
		return fmt.Sprintf("%s(%d)%s%s", base, *t.Precision, zone, array)
	}
	return fmt.Sprintf("%s(%d,%d)%s%s", base, *t.Precision, *t.Scale, zone, array)
}

// Equal compares type names case-insensitively together with their modifiers
func (t ParameterType) Equal(o ParameterType) bool {
	return strings.EqualFold(t.Name, o.Name) && equalInt(t.Precision, o.Precision) && equalInt(t.Scale, o.Scale)
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Parameter is one entry of a function parameter list
type Parameter struct {
	Name      string // Empty for unnamed parameters
	Type      ParameterType
	Direction Direction
	Default   *string // Raw SQL expression text, never evaluated
}

// RoutineKind distinguishes functions from procedures
type RoutineKind int

const (
	RoutineFunction RoutineKind = iota
	RoutineProcedure
)

// String returns a string representation of RoutineKind
func (k RoutineKind) String() string {
	if k == RoutineProcedure {
		return "procedure"
	}
	return "function"
}

// ReturnKind classifies a RETURNS clause
type ReturnKind int

const (
	ReturnVoid ReturnKind = iota
	ReturnPrimitive
	ReturnPrimitiveList
	ReturnTable
	ReturnAny
	ReturnUnknown
)

// String returns a string representation of ReturnKind
func (k ReturnKind) String() string {
	switch k {
	case ReturnVoid:
		return "void"
	case ReturnPrimitive:
		return "primitive"
	case ReturnPrimitiveList:
		return "primitive list"
	case ReturnTable:
		return "table"
	case ReturnAny:
		return "any"
	default:
		return "unknown"
	}
}

// Column is one output column of a RETURNS TABLE clause
type Column struct {
	Name string
	Type ParameterType
}

// Returns describes what a function returns. SetOf is orthogonal to Kind.
type Returns struct {
	Kind    ReturnKind
	Name    string   // Type name for Primitive and PrimitiveList
	Columns []Column // Table columns
	SetOf   bool
	Raw     string // Clause text as written, empty when absent
}

// FunctionDefinition is a parsed CREATE FUNCTION or CREATE PROCEDURE signature
type FunctionDefinition struct {
	Kind       RoutineKind
	Schema     string
	Name       string
	RawName    string // Name exactly as written, quoting included
	Parameters []Parameter
	Returns    Returns
	RawScript  string
	SourcePath string
}

func (f *FunctionDefinition) ResourceKind() Kind   { return KindFunction }
func (f *FunctionDefinition) ResourceName() string { return f.QualifiedName() }
func (f *FunctionDefinition) Source() string       { return f.SourcePath }

// QualifiedName returns schema.name, or just the name when unqualified
func (f *FunctionDefinition) QualifiedName() string {
	if f.Schema == "" {
		return f.Name
	}
	return f.Schema + "." + f.Name
}

// InputParameters returns the parameters that take arguments, in declaration order
func (f *FunctionDefinition) InputParameters() []Parameter {
	var in []Parameter
	for _, p := range f.Parameters {
		if p.Direction.IsInput() {
			in = append(in, p)
		}
	}
	return in
}

// SameDefinition reports whether both functions share a callable signature:
// the same name and the same ordered (name, type) pairs of input parameters.
func (f *FunctionDefinition) SameDefinition(o *FunctionDefinition) bool {
	if f.QualifiedName() != o.QualifiedName() {
		return false
	}
	a, b := f.InputParameters(), o.InputParameters()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !a[i].Type.Equal(b[i].Type) {
			return false
		}
	}
	return true
}

// Differs reports whether the raw scripts differ byte for byte
func (f *FunctionDefinition) Differs(o *FunctionDefinition) bool {
	return f.RawScript != o.RawScript
}

// DropSQL returns the statement removing this routine by its input signature
func (f *FunctionDefinition) DropSQL() string {
	types := make([]string, 0, len(f.Parameters))
	for _, p := range f.InputParameters() {
		if p.Direction == Variadic {
			types = append(types, "VARIADIC "+p.Type.String())
			continue
		}
		types = append(types, p.Type.String())
	}
	return fmt.Sprintf("DROP %s IF EXISTS %s(%s)", strings.ToUpper(f.Kind.String()), f.RawName, strings.Join(types, ", "))
}

// CallSQL returns a statement invoking the routine with positional placeholders
// ($1, $2, ...) bound to its input parameters. With named set, arguments use
// PostgreSQL named notation (name => $1) wherever the parameter has a name.
func (f *FunctionDefinition) CallSQL(named bool) string {
	var args []string
	n := 0
	for _, p := range f.Parameters {
		var arg string
		switch {
		case p.Direction.IsInput():
			n++
			arg = fmt.Sprintf("$%d", n)
		case f.Kind == RoutineProcedure:
			// procedures take a placeholder for every OUT argument
			arg = "NULL"
		default:
			continue
		}
		if named && p.Name != "" {
			arg = p.Name + " => " + arg
		}
		if p.Direction == Variadic {
			arg = "VARIADIC " + arg
		}
		args = append(args, arg)
	}
	if f.Kind == RoutineProcedure {
		return fmt.Sprintf("CALL %s(%s)", f.RawName, strings.Join(args, ", "))
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", f.RawName, strings.Join(args, ", "))
}

// QueryDefinition is a named SQL script
type QueryDefinition struct {
	Name       string
	Script     string
	SourcePath string
}

func (q *QueryDefinition) ResourceKind() Kind   { return KindQuery }
func (q *QueryDefinition) ResourceName() string { return q.Name }
func (q *QueryDefinition) Source() string       { return q.SourcePath }

// MigrationDirection is the half of a reversible migration a script implements
type MigrationDirection int

const (
	Up MigrationDirection = iota
	Down
)

// String returns a string representation of MigrationDirection
func (d MigrationDirection) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// MigrationDefinition is one half of an up/down migration pair
type MigrationDefinition struct {
	Name       string
	Direction  MigrationDirection
	Script     string
	SourcePath string
}

func (m *MigrationDefinition) ResourceKind() Kind   { return KindMigration }
func (m *MigrationDefinition) ResourceName() string { return m.Name }
func (m *MigrationDefinition) Source() string       { return m.SourcePath }
