package runner

import (
	"context"
	"time"

	"github.com/cybertec-postgresql/pgscript/internal/logger"
	"github.com/cybertec-postgresql/pgscript/internal/parser"
	"github.com/cybertec-postgresql/pgscript/internal/registry"
)

type recordKey struct {
	kind UnitKind
	name string
}

// Plan sequences the units of a registry: function units in source order,
// then migrations by name. Functions are installed before any migration runs.
type Plan struct {
	runner  *Runner
	units   []*Migration
	records map[recordKey]*Record
	synced  []*Record
}

// NewPlan builds a plan from a loaded registry
func NewPlan(r *Runner, reg *registry.Registry) *Plan {
	p := &Plan{runner: r}
	for _, f := range reg.Functions() {
		p.units = append(p.units, NewFunctionMigration(f))
	}
	for _, m := range reg.Migrations() {
		p.units = append(p.units, NewSQLMigration(m))
	}
	return p
}

// Units returns the planned units in execution order
func (p *Plan) Units() []*Migration {
	return p.units
}

// Sync creates the record table if needed and loads the recorded state into
// the units
func (p *Plan) Sync(ctx context.Context) error {
	st := p.runner.store
	if err := st.Init(ctx, p.runner.db); err != nil {
		return err
	}
	records, err := st.List(ctx, p.runner.db)
	if err != nil {
		return err
	}

	p.synced = records
	p.records = make(map[recordKey]*Record, len(records))
	for _, rec := range records {
		p.records[recordKey{rec.Kind, rec.Name}] = rec
	}
	for _, m := range p.units {
		m.ExecutedAt = nil
		if rec, ok := p.records[recordKey{m.Kind, m.Name}]; ok {
			m.ExecutedAt = rec.ExecutedAt
		}
	}
	return nil
}

// UpAll installs new and changed functions, then applies pending migrations in
// order. It stops at the first failure and returns the runs made so far.
func (p *Plan) UpAll(ctx context.Context) ([]*Run, error) {
	if err := p.Sync(ctx); err != nil {
		return nil, err
	}

	var runs []*Run
	for _, m := range p.units {
		var run *Run
		switch {
		case m.Kind == UnitFunction:
			run = p.upFunction(ctx, m)
		case m.DoExecute():
			run = p.do(OpUp, m, func() (Status, error) { return p.runner.Up(ctx, m) })
		default:
			if p.state(m) == StateChanged {
				logger.Warn("Migration %s changed after it was applied, not re-applying it", m.Name)
			}
		}
		if run == nil {
			continue
		}
		runs = append(runs, run)
		if run.Error != nil {
			return runs, run.Error
		}
	}
	if len(runs) == 0 {
		logger.Info("Nothing to apply")
	}
	return runs, nil
}

// upFunction applies a function unit that is new or whose script changed. A
// changed callable signature drops the recorded version first.
func (p *Plan) upFunction(ctx context.Context, m *Migration) *Run {
	rec := p.records[recordKey{m.Kind, m.Name}]
	switch {
	case rec == nil:
		return p.do(OpUp, m, func() (Status, error) { return p.runner.Up(ctx, m) })
	case rec.UpScript == m.Up.SQL():
		return nil
	}

	old, err := parser.ParseFunction(rec.UpScript, "")
	if err == nil && old.SameDefinition(m.Function) {
		logger.Info("Replacing function %s", m.Name)
		return p.do(OpUp, m, func() (Status, error) { return p.runner.Up(ctx, m) })
	}

	logger.Info("Function %s changed its signature, dropping the recorded version first", m.Name)
	prev := recordedUnit(rec)
	return p.do(OpUp, m, func() (Status, error) { return p.runner.Replace(ctx, prev, m) })
}

// DownAll reverts applied migrations in reverse order. Steps limits the number
// of reverted migrations, zero or less reverts all of them. Function units are
// left installed.
func (p *Plan) DownAll(ctx context.Context, steps int) ([]*Run, error) {
	if err := p.Sync(ctx); err != nil {
		return nil, err
	}

	var runs []*Run
	for i := len(p.units) - 1; i >= 0; i-- {
		if steps > 0 && len(runs) == steps {
			break
		}
		m := p.units[i]
		if m.Kind != UnitMigration || m.DoExecute() {
			continue
		}
		run := p.do(OpDown, m, func() (Status, error) { return p.runner.Down(ctx, m) })
		runs = append(runs, run)
		if run.Error != nil {
			return runs, run.Error
		}
	}
	if len(runs) == 0 {
		logger.Info("Nothing to revert")
	}
	return runs, nil
}

// TestAll dry-runs every unit UpAll would apply as one sequence that is rolled
// back at the end. It returns nil when there is nothing to test.
func (p *Plan) TestAll(ctx context.Context) (*Run, error) {
	if err := p.Sync(ctx); err != nil {
		return nil, err
	}

	var units []*Migration
	for _, m := range p.units {
		switch p.state(m) {
		case StatePending:
			units = append(units, m)
		case StateChanged:
			if m.Kind == UnitFunction {
				units = append(units, m)
			}
		}
	}
	if len(units) == 0 {
		logger.Info("Nothing to test")
		return nil, nil
	}

	run := &Run{Units: units, Operation: OpTest, StartTime: time.Now()}
	logger.Info("Testing %d units", len(units))
	run.Status, run.Error = p.runner.TestSequence(ctx, units)
	run.EndTime = time.Now()
	if run.Error != nil {
		return run, run.Error
	}
	logger.Info("Test of %s passed in %v", run.Name(), run.Duration())
	return run, nil
}

// Status compares the declared units with the recorded ones. Declared units
// come first in plan order, records without a declared unit follow.
func (p *Plan) Status(ctx context.Context) ([]StatusEntry, error) {
	if err := p.Sync(ctx); err != nil {
		return nil, err
	}

	entries := make([]StatusEntry, 0, len(p.units))
	declared := make(map[recordKey]bool, len(p.units))
	for _, m := range p.units {
		declared[recordKey{m.Kind, m.Name}] = true
		entries = append(entries, StatusEntry{
			Name:       m.Name,
			Kind:       m.Kind,
			State:      p.state(m),
			ExecutedAt: m.ExecutedAt,
		})
	}
	for _, rec := range p.synced {
		if declared[recordKey{rec.Kind, rec.Name}] {
			continue
		}
		entries = append(entries, StatusEntry{
			Name:       rec.Name,
			Kind:       rec.Kind,
			State:      StateOrphaned,
			ExecutedAt: rec.ExecutedAt,
		})
	}
	return entries, nil
}

// state requires a prior Sync
func (p *Plan) state(m *Migration) State {
	rec, ok := p.records[recordKey{m.Kind, m.Name}]
	switch {
	case !ok || rec.ExecutedAt == nil:
		return StatePending
	case rec.UpScript != m.Up.SQL():
		return StateChanged
	default:
		return StateApplied
	}
}

// do runs op on a unit and logs the outcome
func (p *Plan) do(op Operation, m *Migration, fn func() (Status, error)) *Run {
	run := &Run{Units: []*Migration{m}, Operation: op, StartTime: time.Now()}
	logger.Info("Running %s %s %s", op, m.Kind, m.Name)

	run.Status, run.Error = fn()
	run.EndTime = time.Now()
	if run.Error != nil {
		logger.Error("%s %s %s: %s", op, m.Kind, m.Name, run.Status)
		return run
	}
	logger.Debug("%s %s %s done in %v", op, m.Kind, m.Name, run.Duration())
	return run
}

// recordedUnit rebuilds a unit from its record, so the version that was
// actually applied can be reverted
func recordedUnit(rec *Record) *Migration {
	return &Migration{
		Name:       rec.Name,
		Kind:       rec.Kind,
		Up:         SQLScript(rec.UpScript),
		Down:       SQLScript(rec.DownScript),
		ExecutedAt: rec.ExecutedAt,
	}
}
