package parser

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cybertec-postgresql/pgscript/internal/discovery"
	"github.com/cybertec-postgresql/pgscript/internal/errors"
)

const createFunctionSQL = "create function f() returns int as $$ select 1 $$ language sql;"

func TestClassify_Precedence(t *testing.T) {
	tests := []struct {
		name       string
		script     string
		sourcePath string
		wantKind   Kind
		wantName   string
	}{
		{"up migration with function content", createFunctionSQL, "migrations/x.up.sql", KindMigration, "x"},
		{"down migration", "drop table t;", "migrations/x.down.sql", KindMigration, "x"},
		{"function", createFunctionSQL, "functions/f.sql", KindFunction, "f"},
		{"query from file name", "select * from users;", "queries/list_users.sql", KindQuery, "list_users"},
		{"query from name comment", "-- name: active_users\nselect * from users where active;", "queries/q.sql", KindQuery, "active_users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Classify(tt.script, tt.sourcePath)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if res.ResourceKind() != tt.wantKind {
				t.Errorf("ResourceKind() = %s, want %s", res.ResourceKind(), tt.wantKind)
			}
			if res.ResourceName() != tt.wantName {
				t.Errorf("ResourceName() = %q, want %q", res.ResourceName(), tt.wantName)
			}
			if res.Source() != tt.sourcePath {
				t.Errorf("Source() = %q, want %q", res.Source(), tt.sourcePath)
			}
		})
	}
}

func TestClassify_MigrationDirection(t *testing.T) {
	res, err := Classify(createFunctionSQL, "migrations/x.up.sql")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	m, ok := res.(*MigrationDefinition)
	if !ok {
		t.Fatalf("Classify() = %T, want *MigrationDefinition", res)
	}
	if m.Direction != Up {
		t.Errorf("Direction = %s, want up", m.Direction)
	}
	if m.Script != createFunctionSQL {
		t.Errorf("Script = %q, want original text", m.Script)
	}
}

func TestClassifier_Attempts(t *testing.T) {
	c := NewClassifier()

	result, err := c.Classify("create function f(a int returns int", "functions/broken.sql")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Resource.ResourceKind() != KindQuery {
		t.Errorf("ResourceKind() = %s, want query", result.Resource.ResourceKind())
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(result.Attempts))
	}
	if !stderrors.Is(result.Attempts[0], errors.MigrationNotFound) {
		t.Errorf("attempt[0] = %v, want migration not found", result.Attempts[0])
	}
	if result.Unbalanced() == nil {
		t.Error("Unbalanced() = nil, want the function attempt")
	}
	if !stderrors.Is(result.Malformed(), errors.ParameterListMalformed) {
		t.Errorf("Malformed() = %v, want parameter list malformed", result.Malformed())
	}

	clean, err := c.Classify("select 1", "q.sql")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if clean.Malformed() != nil || clean.Unbalanced() != nil {
		t.Errorf("plain query reported problems: %v", clean.Attempts)
	}
}

func TestClassifier_NoResource(t *testing.T) {
	c := NewClassifier(MigrationParser, FunctionParser)

	result, err := c.Classify("select 1", "queries/a.sql")
	if err == nil {
		t.Fatal("Classify() expected error, got nil")
	}
	if !stderrors.Is(err, errors.ErrNoResource) {
		t.Errorf("Classify() error = %v, want ErrNoResource", err)
	}
	if result == nil || len(result.Attempts) != 2 {
		t.Errorf("Classify() attempts = %v, want 2", result)
	}
}

func TestQueryName(t *testing.T) {
	tests := []struct {
		name       string
		script     string
		sourcePath string
		want       string
	}{
		{"colon", "-- name: by_id\nselect 1", "a.sql", "by_id"},
		{"no colon", "--name by_email\nselect 1", "a.sql", "by_email"},
		{"spaced colon upper case", "select 1 -- Name : Trailing", "a.sql", "Trailing"},
		{"unrelated comment", "-- named things\nselect 1", "dir/report.sql", "report"},
		{"upper case extension", "select 1", "dir/Report.SQL", "Report"},
		{"no extension", "select 1", "dir/raw", "raw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QueryName(tt.script, tt.sourcePath); got != tt.want {
				t.Errorf("QueryName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrationBaseName(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantDir MigrationDirection
		wantOK  bool
	}{
		{"migrations/001_init.up.sql", "001_init", Up, true},
		{"001_init.DOWN.SQL", "001_init", Down, true},
		{".up.sql", "", Up, false},
		{"x.sql", "", Up, false},
		{"x.up.sql.bak", "", Up, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, dir, ok := MigrationBaseName(tt.path)
			if got != tt.want || dir != tt.wantDir || ok != tt.wantOK {
				t.Errorf("MigrationBaseName() = (%q, %s, %v), want (%q, %s, %v)", got, dir, ok, tt.want, tt.wantDir, tt.wantOK)
			}
		})
	}

	_, err := ParseMigration("select 1", "x.sql")
	if !stderrors.Is(err, errors.MigrationNotFound) {
		t.Errorf("ParseMigration() error = %v, want migration not found", err)
	}
}

func TestParse_File(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "fns", "f.sql")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(createFunctionSQL), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	result, err := Parse(&discovery.DiscoveredFile{Path: path, RelativePath: filepath.Join("fns", "f.sql")}, nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Resource.ResourceKind() != KindFunction {
		t.Errorf("ResourceKind() = %s, want function", result.Resource.ResourceKind())
	}
	if result.Resource.Source() != "fns/f.sql" {
		t.Errorf("Source() = %q, want %q", result.Resource.Source(), "fns/f.sql")
	}

	if _, err := ParseFile(filepath.Join(tmpDir, "missing.sql")); err == nil {
		t.Error("ParseFile() expected error for missing file, got nil")
	}
}
