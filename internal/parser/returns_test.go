package parser

import "testing"

func TestClassifyReturns(t *testing.T) {
	tests := []struct {
		raw       string
		wantKind  ReturnKind
		wantName  string
		wantSetOf bool
		wantCols  int
	}{
		{raw: "int", wantKind: ReturnPrimitive, wantName: "int"},
		{raw: "numeric(10, 2)", wantKind: ReturnPrimitive, wantName: "numeric"},
		{raw: "timestamp with time zone", wantKind: ReturnPrimitive, wantName: "timestamp with time zone"},
		{raw: "app.item", wantKind: ReturnPrimitive, wantName: "app.item"},
		{raw: "setof text", wantKind: ReturnPrimitive, wantName: "text", wantSetOf: true},
		{raw: "text[]", wantKind: ReturnPrimitiveList, wantName: "text"},
		{raw: "SETOF int[]", wantKind: ReturnPrimitiveList, wantName: "int", wantSetOf: true},
		{raw: "void", wantKind: ReturnVoid},
		{raw: "VOID", wantKind: ReturnVoid},
		{raw: "record", wantKind: ReturnAny},
		{raw: "setof record", wantKind: ReturnAny, wantSetOf: true},
		{raw: "anyelement", wantKind: ReturnAny},
		{raw: "trigger", wantKind: ReturnAny},
		{raw: "table (id int, name text)", wantKind: ReturnTable, wantSetOf: true, wantCols: 2},
		{raw: "TABLE(total numeric(10,2))", wantKind: ReturnTable, wantSetOf: true, wantCols: 1},
		{raw: "1 + 2", wantKind: ReturnUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ClassifyReturns(tt.raw)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if got.SetOf != tt.wantSetOf {
				t.Errorf("SetOf = %v, want %v", got.SetOf, tt.wantSetOf)
			}
			if len(got.Columns) != tt.wantCols {
				t.Errorf("got %d columns, want %d", len(got.Columns), tt.wantCols)
			}
			if got.Raw != tt.raw {
				t.Errorf("Raw = %q, want %q", got.Raw, tt.raw)
			}
		})
	}
}

func TestParseFunction_Returns(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		wantKind ReturnKind
		wantRaw  string
	}{
		{
			name:     "absent",
			script:   "create procedure p() language sql as $$ select 1 $$",
			wantKind: ReturnVoid,
		},
		{
			name:     "stops at language",
			script:   "create function f() returns bigint\n  language plpgsql\nas $$ begin return 1; end $$",
			wantKind: ReturnPrimitive,
			wantRaw:  "bigint",
		},
		{
			name:     "table with option keywords in column names",
			script:   "create function f() returns table(security_level int, cost_total numeric) stable as $$ select 1, 2 $$ language sql",
			wantKind: ReturnTable,
			wantRaw:  "table(security_level int, cost_total numeric)",
		},
		{
			name:     "setof composite",
			script:   "create function f() returns setof app.item immutable strict as $$ select * from app.item $$ language sql",
			wantKind: ReturnPrimitive,
			wantRaw:  "setof app.item",
		},
		{
			name:     "sql standard body",
			script:   "create function f(a int) returns int return a + 1;",
			wantKind: ReturnPrimitive,
			wantRaw:  "int",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := mustParseFunction(t, tt.script)
			if fn.Returns.Kind != tt.wantKind {
				t.Errorf("Returns.Kind = %s, want %s", fn.Returns.Kind, tt.wantKind)
			}
			if fn.Returns.Raw != tt.wantRaw {
				t.Errorf("Returns.Raw = %q, want %q", fn.Returns.Raw, tt.wantRaw)
			}
		})
	}
}

func TestParseFunction_ReturnsTableColumns(t *testing.T) {
	fn := mustParseFunction(t, "create function f() returns table (id bigint, amount numeric(12, 2)) as $$ select 1, 2 $$ language sql")
	cols := fn.Returns.Columns
	if len(cols) != 2 {
		t.Fatalf("got %d columns, want 2", len(cols))
	}
	if cols[0].Name != "id" || cols[0].Type.Name != "bigint" {
		t.Errorf("column[0] = %+v, want id bigint", cols[0])
	}
	if cols[1].Name != "amount" || cols[1].Type.Name != "numeric" || deref(cols[1].Type.Scale) != 2 {
		t.Errorf("column[1] = %+v, want amount numeric(12,2)", cols[1])
	}
}
