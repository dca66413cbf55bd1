package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cybertec-postgresql/pgscript/internal/parser"
	"github.com/cybertec-postgresql/pgscript/internal/registry"
	"github.com/cybertec-postgresql/pgscript/internal/runner"
)

// TextFormatter writes aligned, human readable tables
type TextFormatter struct{}

// NewTextFormatter creates a new text formatter
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{}
}

// Definitions writes one line per function, query and migration
func (f *TextFormatter) Definitions(w io.Writer, reg *registry.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, fn := range reg.Functions() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", fn.Kind, Signature(fn), fn.SourcePath)
	}
	for _, q := range reg.Queries() {
		fmt.Fprintf(tw, "query\t%s\t%s\n", q.Name, q.SourcePath)
	}
	for _, m := range reg.Migrations() {
		fmt.Fprintf(tw, "migration\t%s\t%s, %s\n", m.Name, m.Up.SourcePath, m.Down.SourcePath)
	}
	return tw.Flush()
}

// Runs writes the outcome of each run followed by a summary line
func (f *TextFormatter) Runs(w io.Writer, runs []*runner.Run, elapsed time.Duration) error {
	var b strings.Builder
	for _, run := range runs {
		fmt.Fprintf(&b, "%-5s %-13s %s (%v)\n", run.Operation, run.Status, run.Name(), run.Duration().Round(time.Millisecond))
		if run.Error != nil {
			fmt.Fprintf(&b, "      %v\n", run.Error)
		}
	}

	s := runner.Summarize(runs)
	fmt.Fprintf(&b, "\nRuns: %d ok, %d failed, %d canceled, %d total\n", s.Succeeded, s.Failed, s.Canceled, s.Total)
	fmt.Fprintf(&b, "Time: %v\n", elapsed.Round(time.Millisecond))

	_, err := io.WriteString(w, b.String())
	return err
}

// Status writes a KIND/NAME/STATE/EXECUTED AT table
func (f *TextFormatter) Status(w io.Writer, entries []runner.StatusEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tSTATE\tEXECUTED AT")
	for _, e := range entries {
		executed := "-"
		if e.ExecutedAt != nil {
			executed = e.ExecutedAt.Local().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Kind, e.Name, e.State, executed)
	}
	return tw.Flush()
}

// Name returns the name of this formatter
func (f *TextFormatter) Name() string {
	return string(FormatText)
}

// Signature renders a function as name(params) -> returns
func Signature(f *parser.FunctionDefinition) string {
	params := make([]string, 0, len(f.Parameters))
	for _, p := range f.Parameters {
		var parts []string
		if p.Direction != parser.In {
			parts = append(parts, p.Direction.String())
		}
		if p.Name != "" {
			parts = append(parts, p.Name)
		}
		parts = append(parts, p.Type.String())
		if p.Default != nil {
			parts = append(parts, "= "+*p.Default)
		}
		params = append(params, strings.Join(parts, " "))
	}

	sig := fmt.Sprintf("%s(%s)", f.QualifiedName(), strings.Join(params, ", "))
	if f.Returns.Raw == "" {
		return sig
	}
	return sig + " -> " + describeReturns(f.Returns)
}

func describeReturns(r parser.Returns) string {
	var s string
	switch r.Kind {
	case parser.ReturnVoid:
		s = "void"
	case parser.ReturnPrimitive:
		s = r.Name
	case parser.ReturnPrimitiveList:
		s = r.Name + "[]"
	case parser.ReturnTable:
		cols := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			cols[i] = c.Name + " " + c.Type.String()
		}
		return "table(" + strings.Join(cols, ", ") + ")"
	default:
		return r.Raw
	}
	if r.SetOf {
		return "setof " + s
	}
	return s
}
