package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cybertec-postgresql/pgscript/internal/parser"
	"github.com/cybertec-postgresql/pgscript/internal/registry"
	"github.com/cybertec-postgresql/pgscript/internal/runner"
)

// JSONFormatter writes indented JSON documents for scripting
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

type jsonParameter struct {
	Name      string  `json:"name,omitempty"`
	Type      string  `json:"type"`
	Direction string  `json:"direction"`
	Default   *string `json:"default,omitempty"`
}

type jsonFunction struct {
	Kind       string          `json:"kind"`
	Name       string          `json:"name"`
	Signature  string          `json:"signature"`
	Parameters []jsonParameter `json:"parameters"`
	Returns    string          `json:"returns,omitempty"`
	ReturnKind string          `json:"return_kind"`
	SetOf      bool            `json:"setof,omitempty"`
	Source     string          `json:"source"`
}

type jsonQuery struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type jsonMigration struct {
	Name string `json:"name"`
	Up   string `json:"up"`
	Down string `json:"down"`
}

type jsonDefinitions struct {
	Root       string          `json:"root"`
	Functions  []jsonFunction  `json:"functions"`
	Queries    []jsonQuery     `json:"queries"`
	Migrations []jsonMigration `json:"migrations"`
}

type jsonRun struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	Units      []string  `json:"units"`
	StartTime  time.Time `json:"start_time"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

type jsonSummary struct {
	Total      int   `json:"total"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	Canceled   int   `json:"canceled"`
	DurationMS int64 `json:"duration_ms"`
	ElapsedMS  int64 `json:"elapsed_ms"`
}

type jsonRuns struct {
	Runs    []jsonRun   `json:"runs"`
	Summary jsonSummary `json:"summary"`
}

type jsonStatus struct {
	Kind       string     `json:"kind"`
	Name       string     `json:"name"`
	State      string     `json:"state"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

// Definitions writes the loaded tree as a single JSON object
func (f *JSONFormatter) Definitions(w io.Writer, reg *registry.Registry) error {
	doc := jsonDefinitions{
		Root:       reg.Root(),
		Functions:  []jsonFunction{},
		Queries:    []jsonQuery{},
		Migrations: []jsonMigration{},
	}
	for _, fn := range reg.Functions() {
		doc.Functions = append(doc.Functions, functionJSON(fn))
	}
	for _, q := range reg.Queries() {
		doc.Queries = append(doc.Queries, jsonQuery{Name: q.Name, Source: q.SourcePath})
	}
	for _, m := range reg.Migrations() {
		doc.Migrations = append(doc.Migrations, jsonMigration{Name: m.Name, Up: m.Up.SourcePath, Down: m.Down.SourcePath})
	}
	return writeJSON(w, doc)
}

func functionJSON(fn *parser.FunctionDefinition) jsonFunction {
	out := jsonFunction{
		Kind:       fn.Kind.String(),
		Name:       fn.QualifiedName(),
		Signature:  Signature(fn),
		Parameters: make([]jsonParameter, 0, len(fn.Parameters)),
		ReturnKind: fn.Returns.Kind.String(),
		SetOf:      fn.Returns.SetOf,
		Source:     fn.SourcePath,
	}
	if fn.Returns.Raw != "" {
		out.Returns = describeReturns(fn.Returns)
	}
	for _, p := range fn.Parameters {
		out.Parameters = append(out.Parameters, jsonParameter{
			Name:      p.Name,
			Type:      p.Type.String(),
			Direction: p.Direction.String(),
			Default:   p.Default,
		})
	}
	return out
}

// Runs writes every run and the summary as a single JSON object
func (f *JSONFormatter) Runs(w io.Writer, runs []*runner.Run, elapsed time.Duration) error {
	doc := jsonRuns{Runs: make([]jsonRun, 0, len(runs))}
	for _, run := range runs {
		r := jsonRun{
			Operation:  run.Operation.String(),
			Status:     run.Status.String(),
			Units:      make([]string, 0, len(run.Units)),
			StartTime:  run.StartTime,
			DurationMS: run.Duration().Milliseconds(),
		}
		for _, u := range run.Units {
			r.Units = append(r.Units, u.Name)
		}
		if run.Error != nil {
			r.Error = run.Error.Error()
		}
		doc.Runs = append(doc.Runs, r)
	}

	s := runner.Summarize(runs)
	doc.Summary = jsonSummary{
		Total:      s.Total,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Canceled:   s.Canceled,
		DurationMS: s.TotalDuration.Milliseconds(),
		ElapsedMS:  elapsed.Milliseconds(),
	}
	return writeJSON(w, doc)
}

// Status writes the unit states as a JSON array
func (f *JSONFormatter) Status(w io.Writer, entries []runner.StatusEntry) error {
	out := make([]jsonStatus, 0, len(entries))
	for _, e := range entries {
		out = append(out, jsonStatus{
			Kind:       e.Kind.String(),
			Name:       e.Name,
			State:      e.State.String(),
			ExecutedAt: e.ExecutedAt,
		})
	}
	return writeJSON(w, out)
}

// Name returns the name of this formatter
func (f *JSONFormatter) Name() string {
	return string(FormatJSON)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}
