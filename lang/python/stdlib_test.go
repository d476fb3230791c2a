package python

import (
	"testing"

	"github.com/chazu/jiki/vm"
)

func list(vals ...any) vm.Value {
	v, err := vm.FromNative(vals)
	if err != nil {
		panic(err)
	}
	return v
}

func TestStdlibBuiltins(t *testing.T) {
	tests := []struct {
		expr string
		want vm.Value
	}{
		{"len('héllo')", vm.Number(5)},
		{"len([1, 2])", vm.Number(2)},
		{"len({'a': 1})", vm.Number(1)},
		{"range(3)", list(0.0, 1.0, 2.0)},
		{"range(2, 5)", list(2.0, 3.0, 4.0)},
		{"range(5, 0, -2)", list(5.0, 3.0, 1.0)},
		{"range(0)", list()},
		{"str(12)", vm.String("12")},
		{"str([1, 'a'])", vm.String("[1, 'a']")},
		{"str(None)", vm.String("None")},
		{"abs(-3)", vm.Number(3)},
		{"min(3, 1, 2)", vm.Number(1)},
		{"max([4, 9, 2])", vm.Number(9)},
		{"max('abc')", vm.String("c")},
	}

	for _, tc := range tests {
		if got := result(t, tc.expr, defaults()); !vm.DeepEqual(got, tc.want) {
			t.Errorf("%s = %s, want %s", tc.expr, Repr(got), Repr(tc.want))
		}
	}

	expectError(t, "x = min([])", defaults(), vm.ValueError)
	expectError(t, "x = max(1, 'a')", defaults(), vm.TypeError)
	expectError(t, "x = abs('a')", defaults(), vm.TypeError)
	expectError(t, "x = len()", defaults(), vm.InvalidNumberOfArguments)
}

func TestStdlibPrint(t *testing.T) {
	res := run(t, "print('a', 1, True, None, [1.5])\nprint()", defaults())
	if !res.Success {
		t.Fatalf("run failed: %v", res.LastFrame().Error)
	}
	want := []string{"a 1 True None [1.5]", ""}
	if len(res.LogLines) != len(want) {
		t.Fatalf("log lines = %+v", res.LogLines)
	}
	for i, w := range want {
		if res.LogLines[i].Output != w {
			t.Errorf("line[%d] = %q, want %q", i, res.LogLines[i].Output, w)
		}
	}
}

func TestStdlibStr(t *testing.T) {
	tests := []struct {
		expr string
		want vm.Value
	}{
		{"'Hello'.upper()", vm.String("HELLO")},
		{"'Hello'.lower()", vm.String("hello")},
		{"'  pad \\n'.strip()", vm.String("pad")},
		{"'xxhixx'.strip('x')", vm.String("hi")},
		{"'banana'.startswith('ban')", vm.Boolean(true)},
		{"'banana'.endswith('na', 0, 4)", vm.Boolean(true)},
		{"'banana'.find('na')", vm.Number(2)},
		{"'banana'.find('na', 3)", vm.Number(4)},
		{"'banana'.find('x')", vm.Number(-1)},
		{"'banana'.count('a')", vm.Number(3)},
		{"'aaa'.replace('a', 'b', 2)", vm.String("bba")},
		{"'a b  c'.split()", list("a", "b", "c")},
		{"'a,b,,c'.split(',')", list("a", "b", "", "c")},
		{"'a b c'.split(None, 1)", list("a", "b c")},
		{"'a-b-c'.split('-', 1)", list("a", "b-c")},
		{"', '.join(['a', 'b'])", vm.String("a, b")},
	}

	for _, tc := range tests {
		if got := result(t, tc.expr, defaults()); !vm.DeepEqual(got, tc.want) {
			t.Errorf("%s = %s, want %s", tc.expr, Repr(got), Repr(tc.want))
		}
	}

	expectError(t, "x = 'a'.split('')", defaults(), vm.ValueError)
	expectError(t, "x = '-'.join([1])", defaults(), vm.TypeError)
	expectError(t, "x = 'a'.find(1)", defaults(), vm.TypeError)
}

func TestStdlibList(t *testing.T) {
	tests := []struct {
		source string
		want   vm.Value
	}{
		{"xs = [1]\nxs.append(2)\nr = xs", list(1.0, 2.0)},
		{"xs = [1, 2, 3]\nr = xs.pop()", vm.Number(3)},
		{"xs = [1, 2, 3]\nxs.pop(0)\nr = xs", list(2.0, 3.0)},
		{"xs = [1, 2, 3]\nr = xs.pop(-2)", vm.Number(2)},
		{"r = ['a', 'b'].index('b')", vm.Number(1)},
		{"r = [1, 2, 1].count(1)", vm.Number(2)},
		{"xs = [1, 3]\nxs.insert(1, 2)\nr = xs", list(1.0, 2.0, 3.0)},
		{"xs = [1]\nxs.insert(10, 2)\nr = xs", list(1.0, 2.0)},
		{"xs = [1]\nxs.insert(-5, 0)\nr = xs", list(0.0, 1.0)},
	}

	for _, tc := range tests {
		res := run(t, tc.source, defaults())
		if !res.Success {
			t.Errorf("%q: %v", tc.source, res.LastFrame().Error)
			continue
		}
		if got := res.LastFrame().Variables["r"]; !vm.DeepEqual(got, tc.want) {
			t.Errorf("%q: r = %s, want %s", tc.source, Repr(got), Repr(tc.want))
		}
	}

	err := expectError(t, "x = [1].index(5)", defaults(), vm.ValueError)
	if err.Message != "5 is not in list" {
		t.Errorf("message = %q", err.Message)
	}
	expectError(t, "x = [1].pop(3)", defaults(), vm.IndexError)
	expectError(t, "x = [1].sort()", defaults(), vm.MethodNotYetImplemented)
}

func TestStdlibDict(t *testing.T) {
	tests := []struct {
		expr string
		want vm.Value
	}{
		{"{'a': 1}.get('a')", vm.Number(1)},
		{"{'a': 1}.get('b')", vm.Null{}},
		{"{'a': 1}.get('b', 0)", vm.Number(0)},
		{"{'b': 1, 'a': 2}.keys()", list("b", "a")},
		{"{'b': 1, 'a': 2}.values()", list(1.0, 2.0)},
	}

	for _, tc := range tests {
		if got := result(t, tc.expr, defaults()); !vm.DeepEqual(got, tc.want) {
			t.Errorf("%s = %s, want %s", tc.expr, Repr(got), Repr(tc.want))
		}
	}
	expectError(t, "x = {}.items()", defaults(), vm.MethodNotYetImplemented)
}

func TestStdlibMembers(t *testing.T) {
	members := StdlibMembers()
	for _, lib := range []string{"builtins", "str", "list", "dict"} {
		if len(members[lib]) == 0 {
			t.Errorf("library %s lists no members", lib)
		}
	}
	if got := members["dict"]; len(got) != 3 || got[0] != "get" {
		t.Errorf("dict members = %v", got)
	}
}

func TestRepr(t *testing.T) {
	tests := []struct {
		value vm.Value
		want  string
	}{
		{vm.Number(3), "3"},
		{vm.Number(2.5), "2.5"},
		{vm.String("it's"), `"it's"`},
		{vm.String("a\nb"), `'a\nb'`},
		{vm.Boolean(false), "False"},
		{vm.Null{}, "None"},
		{list("a", 1.0), "['a', 1]"},
	}

	for _, tc := range tests {
		if got := Repr(tc.value); got != tc.want {
			t.Errorf("Repr(%v) = %s, want %s", tc.value, got, tc.want)
		}
	}
}
