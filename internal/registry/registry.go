// Package registry loads a script tree into named, read-only definitions.
//
// Loading is all or nothing: a migration without its down script, a script
// with unbalanced quoting or a duplicate name rejects the whole tree before
// anything is registered.
package registry

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"

	"github.com/cybertec-postgresql/pgscript/internal/discovery"
	"github.com/cybertec-postgresql/pgscript/internal/logger"
	"github.com/cybertec-postgresql/pgscript/internal/parser"
)

// Options controls Load
type Options struct {
	Workers    int                // Parallel parse workers, at least 1
	Classifier *parser.Classifier // Defaults to Migration, Function, Query
}

// Migration is a registered up/down pair
type Migration struct {
	Name string
	Up   *parser.MigrationDefinition
	Down *parser.MigrationDefinition
}

// Registry holds the definitions of one script tree
type Registry struct {
	root       string
	functions  []*parser.FunctionDefinition
	queries    []*parser.QueryDefinition
	migrations []*Migration
	resources  []parser.Resource

	functionsByName  map[string]*parser.FunctionDefinition
	queriesByName    map[string]*parser.QueryDefinition
	migrationsByName map[string]*Migration
}

// Load discovers, pairs and classifies every script under root
func Load(ctx context.Context, root string, opts Options) (*Registry, error) {
	layout, err := discovery.DiscoverLayout(root)
	if err != nil {
		return nil, err
	}
	for _, f := range layout.OrphanDowns {
		logger.Warn("Ignoring %s: no matching %s script", f.RelativePath, discovery.UpSuffix)
	}

	// Scripts first so functions are known before any migration
	files := slices.Clone(layout.Scripts)
	for _, m := range layout.Migrations {
		files = append(files, m.Up, m.Down)
	}

	pool := NewWorkerPool(opts.Classifier, opts.Workers)
	results, err := pool.ParseAll(ctx, files)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		root:             root,
		functionsByName:  make(map[string]*parser.FunctionDefinition),
		queriesByName:    make(map[string]*parser.QueryDefinition),
		migrationsByName: make(map[string]*Migration),
	}

	halves := make(map[string]*Migration)
	for i, c := range results {
		if err := reg.register(c.Resource, halves); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", files[i].RelativePath, err)
		}
	}

	for _, pair := range layout.Migrations {
		m := halves[migrationKey(filepath.ToSlash(pair.Up.RelativePath), pair.Name)]
		if m == nil || m.Up == nil || m.Down == nil {
			return nil, fmt.Errorf("migration %s was not classified as an up/down pair", pair.Up.RelativePath)
		}
		reg.migrations = append(reg.migrations, m)
	}
	for _, m := range reg.migrations {
		if _, dup := reg.migrationsByName[m.Name]; dup {
			return nil, fmt.Errorf("duplicate migration %q (%s)", m.Name, m.Up.SourcePath)
		}
		reg.migrationsByName[m.Name] = m
	}

	logger.Debug("Loaded %d functions, %d queries and %d migrations from %s",
		len(reg.functions), len(reg.queries), len(reg.migrations), root)
	return reg, nil
}

func (r *Registry) register(res parser.Resource, halves map[string]*Migration) error {
	r.resources = append(r.resources, res)

	switch def := res.(type) {
	case *parser.FunctionDefinition:
		name := def.QualifiedName()
		if prev, dup := r.functionsByName[name]; dup {
			return fmt.Errorf("duplicate function %q, already defined in %s", name, prev.SourcePath)
		}
		r.functionsByName[name] = def
		r.functions = append(r.functions, def)

	case *parser.QueryDefinition:
		if prev, dup := r.queriesByName[def.Name]; dup {
			return fmt.Errorf("duplicate query %q, already defined in %s", def.Name, prev.SourcePath)
		}
		r.queriesByName[def.Name] = def
		r.queries = append(r.queries, def)

	case *parser.MigrationDefinition:
		key := migrationKey(def.SourcePath, def.Name)
		m, ok := halves[key]
		if !ok {
			m = &Migration{Name: def.Name}
			halves[key] = m
		}
		if def.Direction == parser.Up {
			m.Up = def
		} else {
			m.Down = def
		}

	default:
		return fmt.Errorf("unsupported resource %T", res)
	}
	return nil
}

// migrationKey identifies a pair by directory and name, as both halves are siblings
func migrationKey(sourcePath, name string) string {
	return path.Join(path.Dir(sourcePath), name)
}

// Root returns the directory the registry was loaded from
func (r *Registry) Root() string {
	return r.root
}

// Functions returns all functions in source path order
func (r *Registry) Functions() []*parser.FunctionDefinition {
	return slices.Clone(r.functions)
}

// Queries returns all queries in source path order
func (r *Registry) Queries() []*parser.QueryDefinition {
	return slices.Clone(r.queries)
}

// Migrations returns all migration pairs sorted by name
func (r *Registry) Migrations() []*Migration {
	return slices.Clone(r.migrations)
}

// Resources returns every definition in load order
func (r *Registry) Resources() []parser.Resource {
	return slices.Clone(r.resources)
}

// Function looks up a function by its (schema qualified) name
func (r *Registry) Function(name string) (*parser.FunctionDefinition, bool) {
	f, ok := r.functionsByName[name]
	return f, ok
}

// Query looks up a query by name
func (r *Registry) Query(name string) (*parser.QueryDefinition, bool) {
	q, ok := r.queriesByName[name]
	return q, ok
}

// Migration looks up a migration pair by name
func (r *Registry) Migration(name string) (*Migration, bool) {
	m, ok := r.migrationsByName[name]
	return m, ok
}

// Group returns the definitions whose source lives directly in dir, a slash
// separated path relative to the root
func (r *Registry) Group(dir string) []parser.Resource {
	dir = path.Clean(dir)
	var group []parser.Resource
	for _, res := range r.resources {
		if path.Dir(res.Source()) == dir {
			group = append(group, res)
		}
	}
	return group
}
