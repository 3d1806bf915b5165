package filter

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func eval(t *testing.T, expr string) lua.LValue {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	RegisterTransforms(L)
	if err := L.DoString("result = " + expr); err != nil {
		t.Fatalf("eval %s: %v", expr, err)
	}
	return L.GetGlobal("result")
}

func TestStringTransforms(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{`trim("  hello  ")`, "hello"},
		{`pbfstream.transforms.lower("MiXeD")`, "mixed"},
		{`pbfstream.transforms.clean_spaces("  a   b\tc ")`, "a b c"},
		{`pbfstream.transforms.truncate("Straße", 5)`, "Straß"},
		{`pbfstream.transforms.truncate("abc", 10)`, "abc"},
		{`pbfstream.transforms.get_name({int_name="Int", ["name:en"]="En"})`, "Int"},
		{`pbfstream.transforms.tags_to_json({a="1"})`, `{"a":"1"}`},
	}
	for _, tt := range tests {
		if got := eval(t, tt.expr).String(); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		expr string
		want int64
	}{
		{`parse_int("123")`, 123},
		{`parse_int("  -4 ")`, -4},
		{`parse_int("3.9")`, 3},
		{`parse_int("abc")`, 0},
		{`pbfstream.transforms.parse_int("abc", 42)`, 42},
	}
	for _, tt := range tests {
		got, ok := eval(t, tt.expr).(lua.LNumber)
		if !ok || int64(got) != tt.want {
			t.Errorf("%s = %v, want %d", tt.expr, got, tt.want)
		}
	}
}

func TestParseBool(t *testing.T) {
	for input, want := range map[string]bool{
		"yes": true, "1": true, "designated": true,
		"no": false, "off": false, "": false, " FALSE ": false,
	} {
		if got := eval(t, `parse_bool("`+input+`")`); got != lua.LBool(want) {
			t.Errorf("parse_bool(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestTagSetHelpers(t *testing.T) {
	if got := eval(t, `has_any({highway="x"}, {"railway", "highway"})`); got != lua.LTrue {
		t.Errorf("has_any = %v, want true", got)
	}
	if got := eval(t, `has_any({building="x"}, {"railway"})`); got != lua.LFalse {
		t.Errorf("has_any = %v, want false", got)
	}

	kept, ok := eval(t, `pbfstream.transforms.filter_tags({name="n", ref="r", note="x"}, {"name", "ref", "missing"})`).(*lua.LTable)
	if !ok {
		t.Fatal("filter_tags did not return a table")
	}
	count := 0
	kept.ForEach(func(_, _ lua.LValue) { count++ })
	if count != 2 || kept.RawGetString("note") != lua.LNil {
		t.Errorf("filter_tags kept %d tags", count)
	}
}
