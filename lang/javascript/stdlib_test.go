package javascript

import (
	"math"
	"testing"

	"github.com/chazu/jiki/vm"
)

// evalExpr runs "let r = <expr>;" and returns r.
func evalExpr(t *testing.T, expr string) vm.Value {
	t.Helper()
	res := run(t, "let r = "+expr+";", defaults())
	if !res.Success {
		t.Fatalf("%s: %v", expr, res.LastFrame().Error)
	}
	return res.LastFrame().Result
}

type stdlibCase struct {
	expr string
	want vm.Value
}

func checkStdlib(t *testing.T, tests []stdlibCase) {
	t.Helper()
	for _, tc := range tests {
		if got := evalExpr(t, tc.expr); !vm.DeepEqual(got, tc.want) {
			t.Errorf("%s = %s, want %s", tc.expr, Inspect(got), Inspect(tc.want))
		}
	}
}

func list(vals ...vm.Value) *vm.List { return vm.NewList(vals...) }

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

func TestStringSearch(t *testing.T) {
	checkStdlib(t, []stdlibCase{
		{`"hello".indexOf("l")`, vm.Number(2)},
		{`"hello".indexOf("")`, vm.Number(0)},
		{`"hello".indexOf("", 10)`, vm.Number(5)},
		{`"hello".indexOf("l", -5)`, vm.Number(2)},
		{`"hello".indexOf("z")`, vm.Number(-1)},
		{`"hello".lastIndexOf("l")`, vm.Number(3)},
		{`"hello".lastIndexOf("l", 2)`, vm.Number(2)},
		{`"hello".lastIndexOf("")`, vm.Number(5)},
		{`"hi".lastIndexOf("high")`, vm.Number(-1)},
		{`"hello".includes("ell")`, vm.Boolean(true)},
		{`"hello".includes("h", 1)`, vm.Boolean(false)},
		{`"hello".startsWith("he")`, vm.Boolean(true)},
		{`"hello".startsWith("l", 2)`, vm.Boolean(true)},
		{`"hello".endsWith("lo")`, vm.Boolean(true)},
		{`"hello".endsWith("l", 4)`, vm.Boolean(true)},
		{`"hello".endsWith("hello!")`, vm.Boolean(false)},
	})
}

func TestStringSlicing(t *testing.T) {
	checkStdlib(t, []stdlibCase{
		{`"hello".slice(1, 3)`, vm.String("el")},
		{`"hello".slice(-3)`, vm.String("llo")},
		{`"hello".slice(3, 1)`, vm.String("")},
		{`"hello".slice(0, 100)`, vm.String("hello")},
		{`"hello".at(-1)`, vm.String("o")},
		{`"hello".at(9)`, vm.Undefined{}},
		{`"hello".charAt(1)`, vm.String("e")},
		{`"hello".charAt(9)`, vm.String("")},
		{`"hello"[4]`, vm.String("o")},
		{`"😀".length`, vm.Number(2)},
		{`"a,b,c".split(",")`, list(vm.String("a"), vm.String("b"), vm.String("c"))},
		{`"a,b,c".split(",", 2)`, list(vm.String("a"), vm.String("b"))},
		{`"abc".split("")`, list(vm.String("a"), vm.String("b"), vm.String("c"))},
		{`"abc".split()`, list(vm.String("abc"))},
		{`"".split(",")`, list(vm.String(""))},
	})
}

func TestStringTransforms(t *testing.T) {
	checkStdlib(t, []stdlibCase{
		{`"ß".toUpperCase()`, vm.String("SS")},
		{`"ÀB".toLowerCase()`, vm.String("àb")},
		{`"  pad \n".trim()`, vm.String("pad")},
		{`"ab".repeat(3)`, vm.String("ababab")},
		{`"ab".repeat(0)`, vm.String("")},
		{`"a".concat("b", 1, true)`, vm.String("ab1true")},
	})

	err := expectError(t, `let r = "ab".repeat(-1);`, defaults(), vm.TypeError)
	if err.Message != "Invalid count value: -1" {
		t.Errorf("message = %q", err.Message)
	}
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

func TestArrayMethods(t *testing.T) {
	checkStdlib(t, []stdlibCase{
		{"[1, 2, 3].length", vm.Number(3)},
		{"[1, 2, 3].at(-1)", vm.Number(3)},
		{"[1, 2, 3].indexOf(2)", vm.Number(1)},
		{`[1, 2, 3].indexOf("2")`, vm.Number(-1)},
		{"[1, 2, 3].includes(3)", vm.Boolean(true)},
		{"[1, 2, 3].includes(1, 1)", vm.Boolean(false)},
		{"[1, 2, 3].join()", vm.String("1,2,3")},
		{`[1, null, 3].join("-")`, vm.String("1--3")},
		{"[1, 2, 3].slice(1)", list(vm.Number(2), vm.Number(3))},
		{"[1, 2, 3].slice(-2, -1)", list(vm.Number(2))},
		{"[1, 2, 3].reverse()", list(vm.Number(3), vm.Number(2), vm.Number(1))},
		{"[].pop()", vm.Undefined{}},
	})
}

func TestArrayMutation(t *testing.T) {
	source := `let xs = [2];
let n = xs.push(3, 4);
let first = xs.shift();
let m = xs.unshift(0);
let last = xs.pop();
let copy = xs.slice();
copy.push(9);`
	res := run(t, source, defaults())
	if !res.Success {
		t.Fatalf("run failed: %v", res.LastFrame().Error)
	}
	vars := res.LastFrame().Variables
	checks := []struct {
		name string
		want vm.Value
	}{
		{"n", vm.Number(3)},
		{"first", vm.Number(2)},
		{"m", vm.Number(3)},
		{"last", vm.Number(4)},
		{"xs", list(vm.Number(0), vm.Number(3))},
		{"copy", list(vm.Number(0), vm.Number(3), vm.Number(9))},
	}
	for _, c := range checks {
		if got := vars[c.name]; !vm.DeepEqual(got, c.want) {
			t.Errorf("%s = %s, want %s", c.name, Inspect(got), Inspect(c.want))
		}
	}
}

// ---------------------------------------------------------------------------
// Math
// ---------------------------------------------------------------------------

func TestMath(t *testing.T) {
	checkStdlib(t, []stdlibCase{
		{"Math.abs(-3)", vm.Number(3)},
		{"Math.round(2.5)", vm.Number(3)},
		{"Math.round(-2.5)", vm.Number(-2)},
		{"Math.floor(-1.5)", vm.Number(-2)},
		{"Math.ceil(1.2)", vm.Number(2)},
		{"Math.trunc(-1.7)", vm.Number(-1)},
		{"Math.sign(-4)", vm.Number(-1)},
		{"Math.max(1, 5, 3)", vm.Number(5)},
		{"Math.min()", vm.Number(math.Inf(1))},
		{"Math.pow(2, 10)", vm.Number(1024)},
		{"Math.sqrt(16)", vm.Number(4)},
	})

	if got := evalExpr(t, "Math.max(1, undefined)"); !math.IsNaN(float64(got.(vm.Number))) {
		t.Errorf("Math.max(1, undefined) = %v, want NaN", got)
	}
	expectError(t, "let r = Math.random();", defaults(), vm.MethodNotYetImplemented)
}

func TestStdlibMembers(t *testing.T) {
	members := StdlibMembers()
	for _, lib := range []string{"string", "array", "Math", "console"} {
		if len(members[lib]) == 0 {
			t.Errorf("library %s has no members", lib)
		}
	}
	found := false
	for _, name := range members["array"] {
		if name == "push" {
			found = true
		}
	}
	if !found {
		t.Error("array members do not include push")
	}
}
