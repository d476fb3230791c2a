package python

import (
	"errors"
	"reflect"
	"testing"

	"github.com/chazu/jiki/vm"
)

// lenient turns on truthiness and type coercion.
func lenient() *vm.Policy {
	p := vm.DefaultPolicy()
	p.AllowTruthiness = true
	p.AllowTypeCoercion = true
	return &p
}

func run(t *testing.T, source string, policy *vm.Policy) *vm.InterpretResult {
	t.Helper()
	res := Interpret(source, &vm.Options{Policy: policy})
	if res.Error != nil {
		t.Fatalf("Interpret(%q): syntax error %v", source, res.Error)
	}
	return res
}

func runtimeError(t *testing.T, res *vm.InterpretResult) *vm.RuntimeError {
	t.Helper()
	last := res.LastFrame()
	if last == nil || last.Status != vm.StatusError {
		t.Fatalf("run succeeded with %d frames, want an error", len(res.Frames))
	}
	if res.Success {
		t.Error("Success = true alongside an ERROR frame")
	}
	return last.Error
}

func expectError(t *testing.T, source string, policy *vm.Policy, want vm.ErrorType) *vm.RuntimeError {
	t.Helper()
	err := runtimeError(t, run(t, source, policy))
	if err.Type != want {
		t.Fatalf("Interpret(%q) = %s (%s), want %s", source, err.Type, err.Message, want)
	}
	return err
}

// result runs "r = expr" and returns the assigned value.
func result(t *testing.T, expr string, policy *vm.Policy) vm.Value {
	t.Helper()
	res := run(t, "r = "+expr, policy)
	if !res.Success || len(res.Frames) != 1 {
		t.Fatalf("%s: success = %v, frames = %d", expr, res.Success, len(res.Frames))
	}
	return res.Frames[0].Result
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func TestExecutorArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want vm.Value
	}{
		{"7 // 2", vm.Number(3)},
		{"-7 // 2", vm.Number(-4)},
		{"-7 % 3", vm.Number(2)},
		{"7 % -3", vm.Number(-2)},
		{"2 ** 10", vm.Number(1024)},
		{"-2 ** 2", vm.Number(-4)},
		{"10 / 4", vm.Number(2.5)},
		{"(1 + 2) * 3", vm.Number(9)},
		{"'ab' * 2", vm.String("abab")},
		{"3 * 'x'", vm.String("xxx")},
		{"[1] + [2]", vm.NewList(vm.Number(1), vm.Number(2))},
		{"[0] * 3", vm.NewList(vm.Number(0), vm.Number(0), vm.Number(0))},
		{"1 < 2 < 3", vm.Boolean(true)},
		{"3 > 2 > 2", vm.Boolean(false)},
		{"'b' > 'a'", vm.Boolean(true)},
		{"'at' in 'cat'", vm.Boolean(true)},
		{"2 not in [1, 2]", vm.Boolean(false)},
		{"'k' in {'k': 1}", vm.Boolean(true)},
		{"True == 1", vm.Boolean(true)},
		{"[1, [2]] == [1, [2]]", vm.Boolean(true)},
		{"None == None", vm.Boolean(true)},
		{"True and False", vm.Boolean(false)},
		{"False or True", vm.Boolean(true)},
		{"not True", vm.Boolean(false)},
		{"f'{1 + 1} items'", vm.String("2 items")},
		{"f'{None}, {True}, {2.5}'", vm.String("None, True, 2.5")},
		{"'abc'[-1]", vm.String("c")},
		{"[1, 2, 3][1:]", vm.NewList(vm.Number(2), vm.Number(3))},
		{"'hello'[1:3]", vm.String("el")},
		{"'hello'[-3:]", vm.String("llo")},
		{"{'a': 1}['a']", vm.Number(1)},
	}

	for _, tc := range tests {
		if got := result(t, tc.expr, defaults()); !vm.DeepEqual(got, tc.want) {
			t.Errorf("%s = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestExecutorTypeCoercion(t *testing.T) {
	tests := []struct {
		expr    string
		message string
	}{
		{"1 + 'a'", "unsupported operand type(s) for +: 'int' and 'str'"},
		{"'a' + 1", "can only concatenate str (not \"int\") to str"},
		{"[1] + 'a'", "can only concatenate list (not \"str\") to list"},
		{"'a' - 'b'", "unsupported operand type(s) for -: 'str' and 'str'"},
		{"1 < 'a'", "'<' not supported between instances of 'int' and 'str'"},
		{"'a' * 1.5", "can't multiply sequence by non-int of type 'float'"},
	}

	for _, tc := range tests {
		if tc.expr != "'a' * 1.5" {
			expectError(t, "r = "+tc.expr, defaults(), vm.TypeCoercionNotAllowed)
		}
		err := expectError(t, "r = "+tc.expr, lenient(), vm.TypeError)
		if err.Message != tc.message {
			t.Errorf("%s: message = %q, want %q", tc.expr, err.Message, tc.message)
		}
	}

	// Booleans only count as numbers when coercion is on.
	expectError(t, "r = True + 1", defaults(), vm.TypeCoercionNotAllowed)
	expectError(t, "r = -True", defaults(), vm.OperandMustBeNumber)
	if got := result(t, "True + 1", lenient()); !vm.DeepEqual(got, vm.Number(2)) {
		t.Errorf("True + 1 = %v, want 2", got)
	}
	expectError(t, "r = -'a'", lenient(), vm.TypeError)
}

func TestExecutorTruthinessGate(t *testing.T) {
	tests := []struct {
		source string
		typ    string
	}{
		{"if 0:\n    x = 1", "int"},
		{"if '':\n    x = 1", "str"},
		{"while []:\n    x = 1", "list"},
		{"if None:\n    x = 1", "NoneType"},
		{"r = not 1", "int"},
		{"r = True and 1", "int"},
		{"r = 1 or True", "int"},
	}

	for _, tc := range tests {
		err := expectError(t, tc.source, defaults(), vm.TruthinessDisabled)
		if err.Context["value"] != tc.typ {
			t.Errorf("%q: value = %v, want %s", tc.source, err.Context["value"], tc.typ)
		}
	}

	logical := []struct {
		expr string
		want vm.Value
	}{
		{"0 or 'x'", vm.String("x")},
		{"[] and 1", vm.NewList()},
		{"1 and 2", vm.Number(2)},
		{"not ''", vm.Boolean(true)},
	}
	for _, tc := range logical {
		if got := result(t, tc.expr, lenient()); !vm.DeepEqual(got, tc.want) {
			t.Errorf("%s = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestExecutorRuntimeErrors(t *testing.T) {
	tests := []struct {
		source  string
		want    vm.ErrorType
		message string
	}{
		{"x = 1 / 0", vm.ZeroDivisionError, "division by zero"},
		{"x = 5 % 0", vm.ZeroDivisionError, "division by zero"},
		{"x = 5 // 0", vm.ZeroDivisionError, "division by zero"},
		{"xs = [1]\ny = xs[3]", vm.IndexError, "list index out of range"},
		{"xs = [1]\nxs[-2] = 0", vm.IndexError, "list assignment index out of range"},
		{"y = 'ab'[2]", vm.IndexError, "string index out of range"},
		{"d = {'a': 1}\ny = d['b']", vm.KeyError, "'b'"},
		{"y = z", vm.VariableNotDeclared, ""},
		{"foo()", vm.FunctionNotFound, ""},
		{"x = 1\nx()", vm.NotCallable, ""},
		{"def f(a):\n    return a\nf()", vm.InvalidNumberOfArguments, ""},
		{"x = 'abc'.shout()", vm.AttributeError, "'str' object has no attribute 'shout'"},
		{"x = 5\ny = x.upper()", vm.AttributeError, "'int' object has no attribute 'upper'"},
		{"for c in 5:\n    c", vm.ForOfLoopTargetNotIterable, ""},
		{"break", vm.BreakOutsideLoop, ""},
		{"return 1", vm.ReturnOutsideFunction, ""},
		{"s = 'abc'\ns[0] = 'x'", vm.TypeError, "'str' object does not support item assignment"},
		{"d = {1: 'a'}", vm.TypeError, "dictionary keys must be strings, not int"},
		{"x = len(1)", vm.TypeError, "object of type 'int' has no len()"},
		{"x = 5[0]", vm.TypeError, "'int' object is not subscriptable"},
		{"x = 1.5 in 'abc'", vm.TypeError, "'in <string>' requires string as left operand, not float"},
		{"x = [1][0.5]", vm.TypeError, "list indices must be integers, not float"},
		{"xs = []\nxs.pop()", vm.IndexError, "pop index out of range"},
		{"x = range(0, 5, 0)", vm.ValueError, "range() arg 3 must not be zero"},
		{"x = int('3')", vm.MethodNotYetImplemented, ""},
		{"x = 'a'.title()", vm.MethodNotYetImplemented, ""},
		{"x = -'a'", vm.OperandMustBeNumber, ""},
	}

	for _, tc := range tests {
		err := expectError(t, tc.source, defaults(), tc.want)
		if tc.message != "" && err.Message != tc.message {
			t.Errorf("%q: message = %q, want %q", tc.source, err.Message, tc.message)
		}
	}
}

func TestExecutorErrorLocation(t *testing.T) {
	res := run(t, "x = 1\ny = [1, 2]\nz = y[5]", defaults())
	if len(res.Frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(res.Frames))
	}
	last := res.LastFrame()
	if last.Line != 3 || last.Code != "5" {
		t.Errorf("error at line %d code %q, want line 3 code \"5\"", last.Line, last.Code)
	}
	if got := last.Variables["y"]; !vm.DeepEqual(got, vm.NewList(vm.Number(1), vm.Number(2))) {
		t.Errorf("variables at fault: y = %v", got)
	}
	if last.Description() != "list index out of range" {
		t.Errorf("description = %q", last.Description())
	}
}

// ---------------------------------------------------------------------------
// Scoping and functions
// ---------------------------------------------------------------------------

func TestExecutorScoping(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   vm.Value
	}{
		{"loop variable outlives the loop", "for i in range(3):\n    total = i\nr = i", vm.Number(2)},
		{"block assignment is visible after", "if True:\n    y = 4\nr = y", vm.Number(4)},
		{"locals do not leak", "x = 1\ndef f():\n    x = 2\n    return x\ny = f()\nr = x", vm.Number(1)},
		{"functions read globals", "n = 3\ndef f():\n    return n\nr = f()", vm.Number(3)},
		{"recursion", "def fact(n):\n    if n <= 1:\n        return 1\n    return n * fact(n - 1)\nr = fact(5)", vm.Number(120)},
		{"builtins can be shadowed", "len = 5\nr = len", vm.Number(5)},
		{"lists are shared", "a = [1]\nb = a\nb.append(2)\nr = a", vm.NewList(vm.Number(1), vm.Number(2))},
		{"chained assignment", "a = b = 7\nr = a + b", vm.Number(14)},
		{"augmented subscript", "d = {'n': 1}\nd['n'] += 4\nr = d['n']", vm.Number(5)},
	}

	for _, tc := range tests {
		res := run(t, tc.source, defaults())
		if !res.Success {
			t.Errorf("%s: %v", tc.name, res.LastFrame().Error)
			continue
		}
		last := res.LastFrame()
		if got := last.Variables["r"]; !vm.DeepEqual(got, tc.want) {
			t.Errorf("%s: r = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestExecutorCallBeforeDef(t *testing.T) {
	expectError(t, "r = f()\ndef f():\n    return 1", defaults(), vm.FunctionNotFound)
}

func TestExecutorSnapshotsAreCopies(t *testing.T) {
	res := run(t, "xs = [1]\nxs.append(2)", defaults())
	first := res.Frames[0].Variables["xs"].(*vm.List)
	if first.Len() != 1 {
		t.Errorf("first frame sees %d elements, want 1", first.Len())
	}
	if _, ok := res.Frames[0].Variables["print"]; ok {
		t.Error("builtins leaked into the snapshot")
	}
}

// ---------------------------------------------------------------------------
// Frames
// ---------------------------------------------------------------------------

func TestExecutorFrames(t *testing.T) {
	res := run(t, "x = 1\nif x == 1:\n    x += 2\nprint(x)", defaults())
	if !res.Success {
		t.Fatalf("run failed: %v", res.LastFrame().Error)
	}
	tests := []struct {
		line int
		kind vm.NodeKind
		desc string
	}{
		{1, vm.AssignmentStatement, "Set x to 1."},
		{2, vm.IfStatement, "The condition x == 1 was True."},
		{3, vm.AssignmentStatement, "Set x to 3."},
		{4, vm.ExpressionStatement, "Evaluated print(x)."},
	}
	if len(res.Frames) != len(tests) {
		t.Fatalf("frames = %d, want %d", len(res.Frames), len(tests))
	}
	for i, tc := range tests {
		f := res.Frames[i]
		if f.Line != tc.line || f.Kind != tc.kind {
			t.Errorf("frame[%d] = line %d %s, want line %d %s", i, f.Line, f.Kind, tc.line, tc.kind)
		}
		if got := f.Description(); got != tc.desc {
			t.Errorf("frame[%d] description = %q, want %q", i, got, tc.desc)
		}
		if f.Time != int64(i)*vm.TimePerFrame {
			t.Errorf("frame[%d] time = %d", i, f.Time)
		}
	}
	if len(res.LogLines) != 1 || res.LogLines[0].Output != "3" {
		t.Errorf("log lines = %+v", res.LogLines)
	}
}

func TestExecutorLoopFrames(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kinds  []vm.NodeKind
	}{
		{
			"for",
			"for x in [1, 2]:\n    y = x",
			[]vm.NodeKind{vm.ForInStatement, vm.AssignmentStatement, vm.ForInStatement, vm.AssignmentStatement},
		},
		{
			"while",
			"n = 0\nwhile n < 2:\n    n += 1",
			[]vm.NodeKind{vm.AssignmentStatement, vm.WhileStatement, vm.AssignmentStatement,
				vm.WhileStatement, vm.AssignmentStatement, vm.WhileStatement},
		},
		{
			"break",
			"for x in [1, 2, 3]:\n    if x == 2:\n        break",
			[]vm.NodeKind{vm.ForInStatement, vm.IfStatement, vm.ForInStatement, vm.IfStatement, vm.BreakStatement},
		},
		{
			"continue",
			"for c in 'ab':\n    continue\n    y = c",
			[]vm.NodeKind{vm.ForInStatement, vm.ContinueStatement, vm.ForInStatement, vm.ContinueStatement},
		},
		{
			"dict keys",
			"for k in {'a': 1, 'b': 2}:\n    k",
			[]vm.NodeKind{vm.ForInStatement, vm.ExpressionStatement, vm.ForInStatement, vm.ExpressionStatement},
		},
		{
			"function body",
			"def f(a):\n    return a * 2\nr = f(2)",
			[]vm.NodeKind{vm.ReturnStatement, vm.AssignmentStatement},
		},
	}

	for _, tc := range tests {
		res := run(t, tc.source, defaults())
		if !res.Success {
			t.Errorf("%s: %v", tc.name, res.LastFrame().Error)
			continue
		}
		var kinds []vm.NodeKind
		for _, f := range res.Frames {
			kinds = append(kinds, f.Kind)
		}
		if !reflect.DeepEqual(kinds, tc.kinds) {
			t.Errorf("%s: kinds = %v, want %v", tc.name, kinds, tc.kinds)
		}
	}

	res := run(t, "for x in [1, 2]:\n    y = x", defaults())
	if got := res.Frames[2].Description(); got != "This iteration sets x to 2." {
		t.Errorf("iteration description = %q", got)
	}
}

func TestExecutorLiveListIteration(t *testing.T) {
	res := run(t, "xs = [1]\nfor x in xs:\n    if x < 3:\n        xs.append(x + 1)\nr = xs", defaults())
	want := vm.NewList(vm.Number(1), vm.Number(2), vm.Number(3))
	if got := res.LastFrame().Variables["r"]; !vm.DeepEqual(got, want) {
		t.Errorf("r = %v, want %v", got, want)
	}
}

// ---------------------------------------------------------------------------
// Limits and policy
// ---------------------------------------------------------------------------

func TestExecutorLimits(t *testing.T) {
	p := defaults()
	p.MaxTotalLoopIterations = 10
	err := expectError(t, "while True:\n    x = 1", p, vm.MaxIterationsReached)
	if err.Context["max"] != 10 {
		t.Errorf("max = %v, want 10", err.Context["max"])
	}
	expectError(t, "for i in range(6):\n    for j in range(6):\n        x = j", p, vm.MaxIterationsReached)

	p = defaults()
	p.MaxCallDepth = 5
	expectError(t, "def f():\n    return f()\nf()", p, vm.MaxCallDepthExceeded)
}

func TestExecutorStdlibWhitelist(t *testing.T) {
	p := defaults()
	p.AllowedStdlib = map[string][]string{
		"str":      {"upper"},
		"builtins": {"print"},
	}
	if res := run(t, "x = 'a'.upper()\nprint(x)\nxs = [1]\nxs.append(2)", p); !res.Success {
		t.Errorf("allowed members failed: %v", res.LastFrame().Error)
	}
	err := expectError(t, "x = 'a'.lower()", p, vm.MethodNotYetAvailable)
	if err.Context["name"] != "str.lower" {
		t.Errorf("name = %v, want str.lower", err.Context["name"])
	}
	expectError(t, "x = len('a')", p, vm.MethodNotYetAvailable)
}

func TestInterpretNodeWhitelist(t *testing.T) {
	p := defaults()
	p.AllowedNodes = []vm.NodeKind{vm.AssignmentStatement, vm.IdentifierExpression, vm.LiteralExpression}
	res := Interpret("x = [1]", &vm.Options{Policy: p})
	if res.Error == nil || res.Error.Type != vm.ListExpression.NotAllowedType() {
		t.Errorf("error = %v, want %s", res.Error, vm.ListExpression.NotAllowedType())
	}
}

// ---------------------------------------------------------------------------
// Externals and EvaluateFunction
// ---------------------------------------------------------------------------

func externals(t *testing.T) *vm.Externals {
	t.Helper()
	x, err := vm.NewExternals(
		&vm.ExternalFunction{
			Name:  "double",
			Arity: 1,
			Func: func(ctx *vm.ExecutionContext, args []vm.Value) (vm.Value, error) {
				n, ok := args[0].(vm.Number)
				if !ok {
					return nil, errors.New("not a number")
				}
				return n * 2, nil
			},
			Description: "Doubled ${arg1} to get ${return}.",
		},
		&vm.ExternalFunction{
			Name:  "finish",
			Arity: 0,
			Func: func(ctx *vm.ExecutionContext, _ []vm.Value) (vm.Value, error) {
				ctx.FinishExercise()
				ctx.State["finished"] = true
				return nil, nil
			},
		},
	)
	if err != nil {
		t.Fatalf("NewExternals: %v", err)
	}
	return x
}

func TestExecutorExternals(t *testing.T) {
	state := map[string]any{}
	res := Interpret("double(3)\nfinish()\nx = double('a')", &vm.Options{Externals: externals(t), State: state})
	if len(res.Frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(res.Frames))
	}
	if got := res.Frames[0].Description(); got != "Doubled 3 to get 6." {
		t.Errorf("description = %q", got)
	}
	if state["finished"] != true {
		t.Error("external did not see the shared state")
	}
	if err := res.LastFrame().Error; err == nil || err.Type != vm.FunctionExecutionError {
		t.Errorf("error = %v, want FunctionExecutionError", err)
	}
}

func TestEvaluateFunction(t *testing.T) {
	src := "log = []\ndef add(a, b):\n    print(a)\n    return a + b"
	res := EvaluateFunction(src, nil, "add", 1, 2)
	if !res.Success {
		t.Fatalf("EvaluateFunction failed: %v", res.Frames)
	}
	if res.Value != float64(3) {
		t.Errorf("value = %v, want 3", res.Value)
	}
	if len(res.Frames) != 2 || res.Frames[1].Kind != vm.ReturnStatement {
		t.Errorf("frames = %d, want the call's 2", len(res.Frames))
	}
	if res.Frames[0].Time != vm.TimePerFrame {
		t.Errorf("first call frame time = %d, want the clock to carry on", res.Frames[0].Time)
	}
	if len(res.LogLines) != 1 || res.LogLines[0].Output != "1" {
		t.Errorf("log lines = %+v", res.LogLines)
	}

	lists := EvaluateFunction("def first(xs):\n    return xs[0]", nil, "first", []any{"a", "b"})
	if lists.Value != "a" {
		t.Errorf("first = %v, want a", lists.Value)
	}

	missing := EvaluateFunction("x = 1\ny = 2", nil, "nope")
	if missing.Success || len(missing.Frames) != 1 || missing.Frames[0].Error.Type != vm.FunctionNotFound {
		t.Fatalf("missing function: success = %v, frames = %d", missing.Success, len(missing.Frames))
	}
	if line := missing.Frames[0].Line; line != 2 {
		t.Errorf("missing function reported at line %d, want 2", line)
	}

	broken := EvaluateFunction("x = 1 / 0\ndef f():\n    return 1", nil, "f")
	if broken.Success || len(broken.Frames) != 1 {
		t.Errorf("setup fault: success = %v, frames = %d", broken.Success, len(broken.Frames))
	}
}

// ---------------------------------------------------------------------------
// Self-referencing values
// ---------------------------------------------------------------------------

func TestExecutorSelfReference(t *testing.T) {
	tests := []struct {
		name   string
		source string
		log    []string
	}{
		{"list", "a = [1]\na.append(a)\nprint(a)\nprint(a == a)", []string{"[1, [...]]", "True"}},
		{"dict", "d = {}\nd[\"k\"] = d\nprint(d)", []string{"{'k': {...}}"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := run(t, tc.source, defaults())
			if !res.Success {
				t.Fatalf("run failed: %v", res.LastFrame().Error)
			}
			if len(res.LogLines) != len(tc.log) {
				t.Fatalf("log lines = %v, want %v", res.LogLines, tc.log)
			}
			for i, w := range tc.log {
				if res.LogLines[i].Output != w {
					t.Errorf("line[%d] = %q, want %q", i, res.LogLines[i].Output, w)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

func TestExecutorEqualityIgnoresStrictGate(t *testing.T) {
	p := defaults()
	p.EnforceStrictEquality = true

	tests := []struct {
		expr string
		want vm.Value
	}{
		{"1 == 1", vm.Boolean(true)},
		{"1 == '1'", vm.Boolean(false)},
		{"1 != '1'", vm.Boolean(true)},
		{"[1, 2] == [1, 2]", vm.Boolean(true)},
		{"None == 0", vm.Boolean(false)},
	}

	for _, tc := range tests {
		if got := result(t, tc.expr, p); !vm.DeepEqual(got, tc.want) {
			t.Errorf("%s = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestExecutorTypeNamesTakeArticles(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"for x in 5:\n    y = x", "Cannot loop over an int."},
		{"for x in 1.5:\n    y = x", "Cannot loop over a float."},
	}

	for _, tc := range tests {
		err := expectError(t, tc.source, defaults(), vm.ForOfLoopTargetNotIterable)
		if err.Message != tc.want {
			t.Errorf("%q: message = %q, want %q", tc.source, err.Message, tc.want)
		}
	}
}
