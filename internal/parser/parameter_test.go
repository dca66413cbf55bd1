package parser

import (
	stderrors "errors"
	"testing"

	"github.com/cybertec-postgresql/pgscript/internal/errors"
)

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func TestParseParameter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Parameter
	}{
		{
			name: "plain",
			text: "one text",
			want: Parameter{Name: "one", Type: ParameterType{Name: "text"}, Direction: In},
		},
		{
			name: "default with equals",
			text: "x int = 5",
			want: Parameter{Name: "x", Type: ParameterType{Name: "int"}, Direction: In, Default: strPtr("5")},
		},
		{
			name: "default keyword",
			text: "x int default 5",
			want: Parameter{Name: "x", Type: ParameterType{Name: "int"}, Direction: In, Default: strPtr("5")},
		},
		{
			name: "default keyword uppercase",
			text: "x int DEFAULT 5",
			want: Parameter{Name: "x", Type: ParameterType{Name: "int"}, Direction: In, Default: strPtr("5")},
		},
		{
			name: "precision and scale",
			text: "num numeric(10, 3)",
			want: Parameter{Name: "num", Type: ParameterType{Name: "numeric", Precision: intPtr(10), Scale: intPtr(3)}, Direction: In},
		},
		{
			name: "precision only",
			text: "code varchar(255)",
			want: Parameter{Name: "code", Type: ParameterType{Name: "varchar", Precision: intPtr(255)}, Direction: In},
		},
		{
			name: "array with modifiers",
			text: "amounts numeric(10,2)[]",
			want: Parameter{Name: "amounts", Type: ParameterType{Name: "numeric[]", Precision: intPtr(10), Scale: intPtr(2)}, Direction: In},
		},
		{
			name: "array default with commas",
			text: "ids int[] = array[1, 2]",
			want: Parameter{Name: "ids", Type: ParameterType{Name: "int[]"}, Direction: In, Default: strPtr("array[1, 2]")},
		},
		{
			name: "string default containing keyword",
			text: "label text default 'x default y'",
			want: Parameter{Name: "label", Type: ParameterType{Name: "text"}, Direction: In, Default: strPtr("'x default y'")},
		},
		{
			name: "precision before time zone",
			text: "ts timestamp(3) with time zone default now()",
			want: Parameter{Name: "ts", Type: ParameterType{Name: "timestamp with time zone", Precision: intPtr(3)}, Direction: In, Default: strPtr("now()")},
		},
		{
			name: "precision before time zone array",
			text: "ts time(0) WITHOUT TIME ZONE[]",
			want: Parameter{Name: "ts", Type: ParameterType{Name: "time WITHOUT TIME ZONE[]", Precision: intPtr(0)}, Direction: In},
		},
		{
			name: "escape string default",
			text: `msg text default E'it\'s'`,
			want: Parameter{Name: "msg", Type: ParameterType{Name: "text"}, Direction: In, Default: strPtr(`E'it\'s'`)},
		},
		{
			name: "dollar quoted default",
			text: "msg text = $$it's$$",
			want: Parameter{Name: "msg", Type: ParameterType{Name: "text"}, Direction: In, Default: strPtr("$$it's$$")},
		},
		{
			name: "function call default",
			text: "ts timestamptz default now()",
			want: Parameter{Name: "ts", Type: ParameterType{Name: "timestamptz"}, Direction: In, Default: strPtr("now()")},
		},
		{
			name: "multi word type",
			text: "at timestamp with time zone",
			want: Parameter{Name: "at", Type: ParameterType{Name: "timestamp with time zone"}, Direction: In},
		},
		{
			name: "in direction",
			text: "IN a int",
			want: Parameter{Name: "a", Type: ParameterType{Name: "int"}, Direction: In},
		},
		{
			name: "out direction",
			text: "out total bigint",
			want: Parameter{Name: "total", Type: ParameterType{Name: "bigint"}, Direction: Out},
		},
		{
			name: "inout direction",
			text: "InOut counter int",
			want: Parameter{Name: "counter", Type: ParameterType{Name: "int"}, Direction: InOut},
		},
		{
			name: "variadic direction",
			text: "variadic rest text[]",
			want: Parameter{Name: "rest", Type: ParameterType{Name: "text[]"}, Direction: Variadic},
		},
		{
			name: "name starting with direction keyword",
			text: "input text",
			want: Parameter{Name: "input", Type: ParameterType{Name: "text"}, Direction: In},
		},
		{
			name: "quoted name",
			text: `"Weird ""name""" text`,
			want: Parameter{Name: `Weird "name"`, Type: ParameterType{Name: "text"}, Direction: In},
		},
		{
			name: "unnamed",
			text: "int",
			want: Parameter{Type: ParameterType{Name: "int"}, Direction: In},
		},
		{
			name: "unnamed with default",
			text: "int default 1",
			want: Parameter{Type: ParameterType{Name: "int"}, Direction: In, Default: strPtr("1")},
		},
		{
			name: "multiline",
			text: "\n    p_limit\n    int\n    default\n    10\n",
			want: Parameter{Name: "p_limit", Type: ParameterType{Name: "int"}, Direction: In, Default: strPtr("10")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParameter(tt.text)
			if err != nil {
				t.Fatalf("ParseParameter() error = %v", err)
			}
			assertParameter(t, got, tt.want)
		})
	}
}

func TestParseParameter_EquivalentDefaults(t *testing.T) {
	a, err := ParseParameter("x int = 5")
	if err != nil {
		t.Fatalf("ParseParameter() error = %v", err)
	}
	b, err := ParseParameter("x int default 5")
	if err != nil {
		t.Fatalf("ParseParameter() error = %v", err)
	}
	if a.Default == nil || b.Default == nil || *a.Default != *b.Default {
		t.Errorf("defaults differ: %v vs %v", a.Default, b.Default)
	}
}

func TestParseParameter_Errors(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		kind       errors.Kind
		unbalanced bool
	}{
		{"empty", "   ", errors.ParameterNameMalformed, false},
		{"unterminated quoted name", `"unterminated int`, errors.ParameterNameMalformed, true},
		{"unterminated type", "a numeric(10", errors.ParameterTypeMalformed, true},
		{"quote in type", "a 'text", errors.ParameterTypeMalformed, true},
		{"default keyword without value", "x int default", errors.ParameterDefaultMalformed, false},
		{"equals without value", "x int =", errors.ParameterDefaultMalformed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParameter(tt.text)
			if err == nil {
				t.Fatal("ParseParameter() expected error, got nil")
			}
			if !stderrors.Is(err, tt.kind) {
				t.Errorf("ParseParameter() error = %v, want kind %s", err, tt.kind)
			}
			if got := errors.IsUnbalanced(err); got != tt.unbalanced {
				t.Errorf("IsUnbalanced() = %v, want %v", got, tt.unbalanced)
			}
		})
	}
}

func TestParameterType_String(t *testing.T) {
	tests := []struct {
		typ  ParameterType
		want string
	}{
		{ParameterType{Name: "text"}, "text"},
		{ParameterType{Name: "varchar", Precision: intPtr(20)}, "varchar(20)"},
		{ParameterType{Name: "numeric", Precision: intPtr(10), Scale: intPtr(3)}, "numeric(10,3)"},
		{ParameterType{Name: "numeric[]", Precision: intPtr(10), Scale: intPtr(2)}, "numeric(10,2)[]"},
		{ParameterType{Name: "timestamp with time zone", Precision: intPtr(3)}, "timestamp(3) with time zone"},
		{ParameterType{Name: "time without time zone[]", Precision: intPtr(0)}, "time(0) without time zone[]"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func assertParameter(t *testing.T, got, want Parameter) {
	t.Helper()
	if got.Name != want.Name {
		t.Errorf("Name = %q, want %q", got.Name, want.Name)
	}
	if got.Direction != want.Direction {
		t.Errorf("Direction = %s, want %s", got.Direction, want.Direction)
	}
	if got.Type.Name != want.Type.Name {
		t.Errorf("Type.Name = %q, want %q", got.Type.Name, want.Type.Name)
	}
	if !equalInt(got.Type.Precision, want.Type.Precision) {
		t.Errorf("Type.Precision = %v, want %v", deref(got.Type.Precision), deref(want.Type.Precision))
	}
	if !equalInt(got.Type.Scale, want.Type.Scale) {
		t.Errorf("Type.Scale = %v, want %v", deref(got.Type.Scale), deref(want.Type.Scale))
	}
	switch {
	case got.Default == nil && want.Default == nil:
	case got.Default == nil || want.Default == nil:
		t.Errorf("Default = %v, want %v", got.Default, want.Default)
	case *got.Default != *want.Default:
		t.Errorf("Default = %q, want %q", *got.Default, *want.Default)
	}
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
