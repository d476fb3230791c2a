package javascript

import (
	"errors"
	"reflect"
	"testing"

	"github.com/chazu/jiki/vm"
)

// lenient turns off every teaching restriction.
func lenient() *vm.Policy {
	p := vm.DefaultPolicy()
	p.AllowTruthiness = true
	p.EnforceStrictEquality = false
	p.AllowTypeCoercion = true
	p.AllowShadowing = true
	p.RequireVariableInstantiation = false
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

// runtimeError returns the error of the terminal frame, failing the test
// when the run succeeded.
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

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func TestExecutorArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want vm.Value
	}{
		{"-5 * 2", vm.Number(-10)},
		{"2 * 3 ** 2", vm.Number(18)},
		{"2 ** 3 ** 2", vm.Number(512)},
		{"7 % 3", vm.Number(1)},
		{"-7 % 3", vm.Number(-1)},
		{"(1 + 2) * 3", vm.Number(9)},
		{"10 / 4", vm.Number(2.5)},
		{"false || true && true", vm.Boolean(true)},
		{"!false", vm.Boolean(true)},
		{`"a" + "b"`, vm.String("ab")},
		{`"b" > "a"`, vm.Boolean(true)},
		{"3 >= 3", vm.Boolean(true)},
		{"1 === 1", vm.Boolean(true)},
		{`1 !== "1"`, vm.Boolean(true)},
		{`"a" in {a: 1}`, vm.Boolean(true)},
		{"5 in [1, 2]", vm.Boolean(false)},
	}

	for _, tc := range tests {
		res := run(t, "let r = "+tc.expr+";", defaults())
		if !res.Success || len(res.Frames) != 1 {
			t.Errorf("%s: success = %v, frames = %d", tc.expr, res.Success, len(res.Frames))
			continue
		}
		if got := res.Frames[0].Result; !vm.DeepEqual(got, tc.want) {
			t.Errorf("%s = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestExecutorTruthinessGate(t *testing.T) {
	tests := []struct {
		value string
		typ   string
	}{
		{"0", "number"},
		{`""`, "string"},
		{`"x"`, "string"},
		{"42", "number"},
		{"null", "null"},
		{"undefined", "undefined"},
	}

	for _, tc := range tests {
		source := "if (" + tc.value + ") {\n}"
		res := run(t, source, defaults())
		if len(res.Frames) != 1 {
			t.Errorf("%s: %d frames, want 1", source, len(res.Frames))
			continue
		}
		err := runtimeError(t, res)
		if err.Type != vm.TruthinessDisabled {
			t.Errorf("%s: error = %s, want TruthinessDisabled", source, err.Type)
		}
		if err.Context["value"] != tc.typ {
			t.Errorf("%s: value = %v, want %s", source, err.Context["value"], tc.typ)
		}
	}

	// Booleans pass the gate.
	if res := run(t, "if (1 < 2) {\n}", defaults()); !res.Success {
		t.Error("boolean condition rejected")
	}
}

func TestExecutorLogicalOperandsLenient(t *testing.T) {
	tests := []struct {
		expr string
		want vm.Value
	}{
		{`0 || "x"`, vm.String("x")},
		{`"" && 5`, vm.String("")},
		{"3 && 4", vm.Number(4)},
		{"null || undefined", vm.Undefined{}},
		{`"a" || 1`, vm.String("a")},
	}

	for _, tc := range tests {
		res := run(t, "let r = "+tc.expr+";", lenient())
		if !res.Success {
			t.Errorf("%s: %v", tc.expr, res.LastFrame().Error)
			continue
		}
		if got := res.Frames[0].Result; !vm.DeepEqual(got, tc.want) {
			t.Errorf("%s = %v, want %v", tc.expr, got, tc.want)
		}
	}

	// With truthiness off the right operand is checked too.
	expectError(t, "let r = true && 1;", defaults(), vm.TruthinessDisabled)
}

func TestExecutorStrictEquality(t *testing.T) {
	res := run(t, `let r = 5 == "5";`, defaults())
	if len(res.Frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(res.Frames))
	}
	err := runtimeError(t, res)
	if err.Type != vm.StrictEqualityRequired {
		t.Fatalf("error = %s, want StrictEqualityRequired", err.Type)
	}
	if err.Context["suggestion"] != "===" {
		t.Errorf("suggestion = %v, want ===", err.Context["suggestion"])
	}
	expectError(t, "let r = 1 != 2;", defaults(), vm.StrictEqualityRequired)
}

func TestExecutorLooseCoercions(t *testing.T) {
	tests := []struct {
		expr string
		want vm.Value
	}{
		{`5 == "5"`, vm.Boolean(true)},
		{"null == undefined", vm.Boolean(true)},
		{"0 == false", vm.Boolean(true)},
		{`"" == 0`, vm.Boolean(true)},
		{"null == 0", vm.Boolean(false)},
		{`"1,2" == [1, 2]`, vm.Boolean(true)},
		{`1 + "2"`, vm.String("12")},
		{`"6" * "7"`, vm.Number(42)},
		{"true + 1", vm.Number(2)},
		{`[1, 2] + ""`, vm.String("1,2")},
		{`"10" < 9`, vm.Boolean(false)},
		{`"0x10" - 0`, vm.Number(16)},
	}

	for _, tc := range tests {
		res := run(t, "let r = "+tc.expr+";", lenient())
		if !res.Success {
			t.Errorf("%s: %v", tc.expr, res.LastFrame().Error)
			continue
		}
		if got := res.Frames[0].Result; !vm.DeepEqual(got, tc.want) {
			t.Errorf("%s = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestExecutorCoercionDisabled(t *testing.T) {
	tests := []struct {
		expr string
		want vm.ErrorType
	}{
		{`1 + "2"`, vm.TypeCoercionNotAllowed},
		{`"6" * 7`, vm.TypeCoercionNotAllowed},
		{`1 < "2"`, vm.ComparisonRequiresNumber},
		{`-"3"`, vm.OperandMustBeNumber},
		{`"a" in "abc"`, vm.InOperatorRequiresObject},
	}

	for _, tc := range tests {
		expectError(t, "let r = "+tc.expr+";", defaults(), tc.want)
	}
}

// ---------------------------------------------------------------------------
// Variables and scope
// ---------------------------------------------------------------------------

func TestExecutorVariables(t *testing.T) {
	res := run(t, "let a = 1;\nlet b = a + 1;\na = 3;\nb++;", defaults())
	if !res.Success || len(res.Frames) != 4 {
		t.Fatalf("success = %v, frames = %d", res.Success, len(res.Frames))
	}
	last := res.Frames[3]
	if !vm.DeepEqual(last.Variables["a"], vm.Number(3)) || !vm.DeepEqual(last.Variables["b"], vm.Number(3)) {
		t.Errorf("variables = %v", last.Variables)
	}
	if last.Name != "b" {
		t.Errorf("update frame name = %q, want b", last.Name)
	}
	if got := res.Frames[0].Description(); got != "Created a variable called a and set it to 1." {
		t.Errorf("description = %q", got)
	}
}

func TestExecutorExpressionDescriptions(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"let a = [1];\na.push(2);", "Evaluated a.push(2)."},
		{"let n = 1;\nn + 1;  ", "Evaluated n + 1."},
	}

	for _, tc := range tests {
		res := run(t, tc.source, defaults())
		if !res.Success || len(res.Frames) != 2 {
			t.Fatalf("%q: success = %v, frames = %d", tc.source, res.Success, len(res.Frames))
		}
		if got := res.Frames[1].Description(); got != tc.want {
			t.Errorf("%q: description = %q, want %q", tc.source, got, tc.want)
		}
	}
}

func TestExecutorScopeErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   vm.ErrorType
	}{
		{"undeclared read", "let a = b;", vm.VariableNotDeclared},
		{"undeclared write", "b = 1;", vm.VariableNotDeclared},
		{"redeclared", "let a = 1;\nlet a = 2;", vm.VariableAlreadyDeclared},
		{"constant", "const a = 1;\na = 2;", vm.AssignmentToConstant},
		{"shadowing", "let x = 1;\nif (true) {\n  let x = 2;\n}", vm.ShadowingDisabled},
		{"template", "let s = `hi ${name}`;", vm.VariableNotDeclared},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, tc.source, defaults(), tc.want)
		})
	}

	if res := run(t, "let x = 1;\nif (true) {\n  let x = 2;\n}", lenient()); !res.Success {
		t.Errorf("shadowing allowed: %v", res.LastFrame().Error)
	}
}

func TestExecutorTemplateErrorLocation(t *testing.T) {
	err := expectError(t, "let s = `hi ${name}`;", defaults(), vm.VariableNotDeclared)
	if err.Location.Start.Line != 1 || err.Location.Start.Column != 15 {
		t.Errorf("location = %d:%d, want 1:15", err.Location.Start.Line, err.Location.Start.Column)
	}
}

func TestExecutorBlockScopeEnds(t *testing.T) {
	res := run(t, "for (let i = 0; i < 2; i++) {\n  let sq = i * i;\n}\nlet done = true;", defaults())
	if !res.Success {
		t.Fatalf("run failed: %v", res.LastFrame().Error)
	}
	last := res.LastFrame()
	if _, ok := last.Variables["i"]; ok {
		t.Error("loop counter still visible after the loop")
	}
	if _, ok := last.Variables["sq"]; ok {
		t.Error("block variable still visible after the loop")
	}
}

// ---------------------------------------------------------------------------
// Halting
// ---------------------------------------------------------------------------

func TestExecutorHaltsOnError(t *testing.T) {
	res := run(t, "let a = 1;\nlet b = c;\nlet d = 2;", defaults())
	if len(res.Frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(res.Frames))
	}
	for i, f := range res.Frames[:1] {
		if f.Status != vm.StatusSuccess {
			t.Errorf("frame[%d] status = %s, want SUCCESS", i, f.Status)
		}
	}
	last := res.LastFrame()
	if last.Error.Type != vm.VariableNotDeclared || last.Line != 2 {
		t.Errorf("last frame = %s at line %d", last.Error.Type, last.Line)
	}
	if !vm.DeepEqual(last.Variables["a"], vm.Number(1)) {
		t.Errorf("error frame variables = %v, want a = 1", last.Variables)
	}
	if last.Description() != last.Error.Message {
		t.Errorf("error description = %q, want %q", last.Description(), last.Error.Message)
	}
}

func TestExecutorFrameTimes(t *testing.T) {
	res := run(t, "let a = 1;\nlet b = 2;\na = 3;\nlet c = d;", defaults())
	for i := 1; i < len(res.Frames); i++ {
		if res.Frames[i].Time <= res.Frames[i-1].Time {
			t.Errorf("frame[%d].Time = %d, not after %d", i, res.Frames[i].Time, res.Frames[i-1].Time)
		}
	}
	if res.Frames[0].Time != 0 {
		t.Errorf("first frame time = %d, want 0", res.Frames[0].Time)
	}
}

func TestExecutorControlFlowErrors(t *testing.T) {
	tests := []struct {
		source string
		want   vm.ErrorType
	}{
		{"break;", vm.BreakOutsideLoop},
		{"continue;", vm.ContinueOutsideLoop},
		{"return 1;", vm.ReturnOutsideFunction},
		{"repeat (-1) {\n}", vm.RepeatCountMustBeNonNegative},
		{`repeat ("3") {` + "\n}", vm.RepeatCountMustBeNumber},
		{"repeat (100000) {\n}", vm.RepeatCountTooHigh},
		{"for (let x of 5) {\n}", vm.ForOfLoopTargetNotIterable},
		{"for (let k in 5) {\n}", vm.ForInLoopTargetNotObject},
	}

	for _, tc := range tests {
		expectError(t, tc.source, defaults(), tc.want)
	}
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

func TestExecutorForOf(t *testing.T) {
	tests := []struct {
		iterable string
		frames   int
	}{
		{"[1, 2, 3]", 3},
		{"[]", 0},
		{`"héllo"`, 5},
	}

	for _, tc := range tests {
		res := run(t, "for (let x of "+tc.iterable+") {\n}", defaults())
		if !res.Success || len(res.Frames) != tc.frames {
			t.Errorf("for of %s: success = %v, frames = %d, want %d", tc.iterable, res.Success, len(res.Frames), tc.frames)
		}
	}

	notIterable := []struct {
		value string
		typ   string
		msg   string
	}{
		{"5", "number", "Cannot loop over a number."},
		{"true", "boolean", "Cannot loop over a boolean."},
		{"null", "null", "Cannot loop over a null."},
		{"undefined", "undefined", "Cannot loop over an undefined."},
		{"{a: 1}", "object", "Cannot loop over an object."},
	}
	for _, tc := range notIterable {
		err := expectError(t, "for (let x of "+tc.value+") {\n}", defaults(), vm.ForOfLoopTargetNotIterable)
		if err.Context["type"] != tc.typ {
			t.Errorf("for of %s: type = %v, want %s", tc.value, err.Context["type"], tc.typ)
		}
		if err.Message != tc.msg {
			t.Errorf("for of %s: message = %q, want %q", tc.value, err.Message, tc.msg)
		}
	}
}

func TestExecutorForIn(t *testing.T) {
	res := run(t, "let keys = [];\nfor (let k in {b: 1, a: 2}) {\n  keys.push(k);\n}", defaults())
	if !res.Success {
		t.Fatalf("run failed: %v", res.LastFrame().Error)
	}
	got := vm.ToNative(res.LastFrame().Variables["keys"])
	want := []any{"b", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

func TestExecutorLoopControl(t *testing.T) {
	source := `let total = 0;
for (let i = 0; i < 10; i++) {
  if (i === 2) {
    continue;
  }
  if (i === 4) {
    break;
  }
  total += i;
}`
	res := run(t, source, defaults())
	if !res.Success {
		t.Fatalf("run failed: %v", res.LastFrame().Error)
	}
	if got := res.LastFrame().Variables["total"]; !vm.DeepEqual(got, vm.Number(4)) {
		t.Errorf("total = %v, want 4", got)
	}
}

func TestExecutorRepeat(t *testing.T) {
	res := run(t, "repeat (3) {\n}", defaults())
	if len(res.Frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(res.Frames))
	}
	for i, f := range res.Frames {
		if !vm.DeepEqual(f.Result, vm.Number(i+1)) {
			t.Errorf("frame[%d] result = %v, want %d", i, f.Result, i+1)
		}
	}
}

func TestExecutorLoopLimitShared(t *testing.T) {
	p := defaults()
	p.MaxTotalLoopIterations = 5

	err := expectError(t, "let i = 0;\nwhile (true) {\n  i++;\n}", p, vm.MaxIterationsReached)
	if err.Context["max"] != 5 {
		t.Errorf("max = %v, want 5", err.Context["max"])
	}

	// Two loops of three iterations exceed a shared cap of five.
	err = expectError(t, "for (let i = 0; i < 3; i++) {\n}\nfor (let j = 0; j < 3; j++) {\n}", p, vm.MaxIterationsReached)
	if err.Location.Start.Line != 3 {
		t.Errorf("limit hit on line %d, want 3", err.Location.Start.Line)
	}
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

func TestExecutorNestedWrites(t *testing.T) {
	res := run(t, "let d = {a: {b: [1, 2]}};\nd.a.b[0] = 9;\nd.a.b[2] = 3;", defaults())
	if !res.Success || len(res.Frames) != 3 {
		t.Fatalf("success = %v, frames = %d", res.Success, len(res.Frames))
	}
	first := vm.ToNative(res.Frames[0].Variables["d"])
	wantFirst := map[string]any{"a": map[string]any{"b": []any{1.0, 2.0}}}
	if !reflect.DeepEqual(first, wantFirst) {
		t.Errorf("first snapshot = %v, want %v", first, wantFirst)
	}
	last := vm.ToNative(res.Frames[2].Variables["d"])
	wantLast := map[string]any{"a": map[string]any{"b": []any{9.0, 2.0, 3.0}}}
	if !reflect.DeepEqual(last, wantLast) {
		t.Errorf("last snapshot = %v, want %v", last, wantLast)
	}
}

func TestExecutorPropertyErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   vm.ErrorType
	}{
		{"write to string", `let s = "abc";` + "\ns.x = 1;", vm.TypeError},
		{"index string", `let s = "abc";` + "\ns[0] = \"z\";", vm.TypeError},
		{"read null", "let n = null;\nlet x = n.a;", vm.TypeError},
		{"computed stdlib", "let xs = [1];\nlet f = xs[\"push\"];", vm.TypeError},
		{"computed namespace", "let f = Math[\"abs\"];", vm.TypeError},
		{"missing key", "let d = {a: 1};\nlet x = d.b;", vm.PropertyNotFound},
		{"out of range", "let xs = [1];\nlet x = xs[1];", vm.IndexOutOfRange},
		{"negative index", "let xs = [1];\nlet x = xs[-1];", vm.IndexOutOfRange},
		{"gap write", "let xs = [1];\nxs[3] = 2;", vm.IndexOutOfRange},
		{"fractional index", "let xs = [1];\nlet x = xs[0.5];", vm.TypeError},
		{"unknown method", "let xs = [1];\nxs.frobnicate();", vm.PropertyNotFound},
		{"pending method", "let xs = [1];\nxs.sort();", vm.MethodNotYetImplemented},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, tc.source, defaults(), tc.want)
		})
	}
}

func TestExecutorIndexOutOfRangeReportsLength(t *testing.T) {
	tests := []struct {
		source  string
		length  int
		message string
	}{
		{"let arr = [1, 2];\narr[5] = 1;", 2, "Index 5 is outside the list of length 2."},
		{"let arr = [1, 2];\nlet x = arr[2];", 2, "Index 2 is outside the list of length 2."},
		{"let arr = [];\narr[1] = 1;", 0, "Index 1 is outside the list of length 0."},
	}

	for _, tc := range tests {
		err := expectError(t, tc.source, defaults(), vm.IndexOutOfRange)
		if n, _ := err.Context["length"].(int); n != tc.length {
			t.Errorf("%q: length = %v, want %d", tc.source, err.Context["length"], tc.length)
		}
		if err.Message != tc.message {
			t.Errorf("%q: message = %q, want %q", tc.source, err.Message, tc.message)
		}
	}

	res := run(t, "let arr = [1, 2];\narr[2] = 3;", defaults())
	if !res.Success {
		t.Fatalf("append write failed: %v", res.LastFrame().Error)
	}
	if got := res.LastFrame().Variables["arr"]; !vm.DeepEqual(got, vm.NewList(vm.Number(1), vm.Number(2), vm.Number(3))) {
		t.Errorf("arr = %v, want [1, 2, 3]", got)
	}
}

func TestExecutorStdlibGating(t *testing.T) {
	p := defaults()
	p.AllowedStdlib = map[string][]string{"array": {"push"}}

	if res := run(t, "let xs = [];\nxs.push(1);", p); !res.Success {
		t.Errorf("allowed method failed: %v", res.LastFrame().Error)
	}
	err := expectError(t, "let xs = [1];\nlet n = xs.pop();", p, vm.MethodNotYetAvailable)
	if err.Context["name"] != "pop" {
		t.Errorf("name = %v, want pop", err.Context["name"])
	}
	// Types without an entry stay open.
	if res := run(t, `let s = "a".toUpperCase();`, p); !res.Success {
		t.Errorf("string method gated: %v", res.LastFrame().Error)
	}
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

func TestExecutorFunctions(t *testing.T) {
	source := `function fact(n) {
  if (n <= 1) {
    return 1;
  }
  return n * fact(n - 1);
}
let r = fact(5);`
	res := run(t, source, defaults())
	if !res.Success {
		t.Fatalf("run failed: %v", res.LastFrame().Error)
	}
	if got := res.LastFrame().Result; !vm.DeepEqual(got, vm.Number(120)) {
		t.Errorf("fact(5) = %v, want 120", got)
	}
}

func TestExecutorCallErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   vm.ErrorType
	}{
		{"unknown function", "nope();", vm.FunctionNotFound},
		{"not callable", "let a = 1;\na();", vm.NotCallable},
		{"too few args", "function f(a) {\n  return a;\n}\nf();", vm.InvalidNumberOfArguments},
		{"native arity", "let m = Math.abs();", vm.InvalidNumberOfArguments},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, tc.source, defaults(), tc.want)
		})
	}
}

func TestExecutorCallDepth(t *testing.T) {
	p := defaults()
	p.MaxCallDepth = 10
	err := expectError(t, "function f(n) {\n  return f(n + 1);\n}\nf(0);", p, vm.MaxCallDepthExceeded)
	if err.Context["max"] != 10 {
		t.Errorf("max = %v, want 10", err.Context["max"])
	}
}

// ---------------------------------------------------------------------------
// Externals and logging
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
				ctx.State["calls"] = ctx.State["calls"].(int) + 1
				return n * 2, nil
			},
			Description: "Doubled ${arg1} to get ${return}.",
		},
		&vm.ExternalFunction{
			Name:  "crash",
			Arity: 0,
			Func: func(*vm.ExecutionContext, []vm.Value) (vm.Value, error) {
				return nil, vm.NewLogicError("You walked into a wall.")
			},
		},
	)
	if err != nil {
		t.Fatalf("NewExternals: %v", err)
	}
	return x
}

func TestExecutorExternals(t *testing.T) {
	state := map[string]any{"calls": 0}
	res := Interpret("double(3);\nlet x = double(4);", &vm.Options{Externals: externals(t), State: state})
	if !res.Success || len(res.Frames) != 2 {
		t.Fatalf("success = %v, frames = %d", res.Success, len(res.Frames))
	}
	first := res.Frames[0]
	if len(first.Calls) != 1 || first.Calls[0].Function != "double" {
		t.Fatalf("calls = %+v", first.Calls)
	}
	if got := first.Description(); got != "Doubled 3 to get 6." {
		t.Errorf("description = %q", got)
	}
	if state["calls"] != 2 {
		t.Errorf("state calls = %v, want 2", state["calls"])
	}

	tests := []struct {
		source string
		want   vm.ErrorType
	}{
		{"double();", vm.InvalidNumberOfArguments},
		{`double("a");`, vm.FunctionExecutionError},
		{"crash();", vm.LogicErrorInExecution},
	}
	for _, tc := range tests {
		res := Interpret(tc.source, &vm.Options{Externals: externals(t), State: map[string]any{"calls": 0}})
		err := runtimeError(t, res)
		if err.Type != tc.want {
			t.Errorf("%s: error = %s, want %s", tc.source, err.Type, tc.want)
		}
	}

	res = Interpret("crash();", &vm.Options{Externals: externals(t)})
	if msg := res.LastFrame().Error.Message; msg != "You walked into a wall." {
		t.Errorf("logic error message = %q", msg)
	}
}

func TestExecutorConsoleLog(t *testing.T) {
	res := run(t, "console.log(\"hi\", 1);\nconsole.log([1, \"a\"]);", defaults())
	if !res.Success {
		t.Fatalf("run failed: %v", res.LastFrame().Error)
	}
	want := []string{`hi 1`, `[1, "a"]`}
	if len(res.LogLines) != len(want) {
		t.Fatalf("log lines = %v", res.LogLines)
	}
	for i, w := range want {
		if res.LogLines[i].Output != w {
			t.Errorf("line[%d] = %q, want %q", i, res.LogLines[i].Output, w)
		}
	}
	if res.LogLines[1].Time <= res.LogLines[0].Time {
		t.Error("log times do not advance with the frames")
	}
}

// ---------------------------------------------------------------------------
// EvaluateFunction
// ---------------------------------------------------------------------------

func TestEvaluateFunction(t *testing.T) {
	source := "function add(a, b) {\n  return a + b;\n}"
	res := EvaluateFunction(source, nil, "add", 5, 3)
	if !res.Success {
		t.Fatalf("add failed: %v", res.Frames)
	}
	if res.Value != 8.0 {
		t.Errorf("add(5, 3) = %v, want 8", res.Value)
	}
	if len(res.Frames) != 1 || res.Frames[0].Kind != vm.ReturnStatement {
		t.Errorf("frames = %d, want one return frame", len(res.Frames))
	}
}

func TestEvaluateFunctionRoundTrip(t *testing.T) {
	arg := map[string]any{
		"a": []any{1.0, "b", map[string]any{"c": true}},
		"d": nil,
	}
	res := EvaluateFunction("function id(x) {\n  return x;\n}", nil, "id", arg)
	if !res.Success {
		t.Fatalf("id failed: %v", res.Frames)
	}
	if !reflect.DeepEqual(res.Value, arg) {
		t.Errorf("id(x) = %#v, want %#v", res.Value, arg)
	}
}

func TestEvaluateFunctionErrors(t *testing.T) {
	res := EvaluateFunction("let a = 1;", nil, "missing")
	if res.Success || res.Value != nil {
		t.Fatalf("missing function: success = %v, value = %v", res.Success, res.Value)
	}
	if len(res.Frames) != 1 || res.Frames[0].Error.Type != vm.FunctionNotFound {
		t.Fatalf("frames = %v, want one FunctionNotFound frame", res.Frames)
	}
	if f := res.Frames[0]; f.Line != 1 || f.Error.Location.Start.Line != 1 {
		t.Errorf("missing function reported at line %d (%v), want 1", f.Line, f.Error.Location)
	}

	res = EvaluateFunction("let a = 1;\nlet b = 2;\n\n", nil, "missing")
	var f *vm.Frame
	if n := len(res.Frames); n > 0 {
		f = res.Frames[n-1]
	}
	if f == nil || f.Line != 2 {
		t.Errorf("missing function after two lines: frame = %+v, want line 2", f)
	}

	res = EvaluateFunction("let a = b;\nfunction f() {\n  return 1;\n}", nil, "f")
	if res.Success || res.Frames[0].Error.Type != vm.VariableNotDeclared {
		t.Error("setup fault not reported")
	}

	res = EvaluateFunction("function f() {\n  return 1;\n}", nil, "f", make(chan int))
	if res.Success || res.Frames[0].Error.Type != vm.TypeError {
		t.Error("unconvertible argument accepted")
	}

	res = EvaluateFunction("function f( {", nil, "f")
	if res.Error == nil || len(res.Frames) != 0 {
		t.Error("syntax error not reported")
	}
}

func TestEvaluateFunctionIgnoresNodeWhitelist(t *testing.T) {
	p := defaults()
	p.AllowedNodes = []vm.NodeKind{
		vm.FunctionDeclaration, vm.BlockStatement, vm.ReturnStatement,
		vm.BinaryExpression, vm.IdentifierExpression,
	}
	res := EvaluateFunction("function add(a, b) {\n  return a + b;\n}", &vm.Options{Policy: p}, "add", 2, 3)
	if !res.Success || res.Value != 5.0 {
		t.Errorf("add under whitelist: success = %v, value = %v", res.Success, res.Value)
	}
}

func TestEvaluateFunctionClockContinues(t *testing.T) {
	res := EvaluateFunction("let base = 10;\nfunction f() {\n  return base;\n}", nil, "f")
	if !res.Success || res.Value != 10.0 {
		t.Fatalf("f() = %v", res.Value)
	}
	if res.Frames[0].Time != vm.TimePerFrame {
		t.Errorf("first call frame time = %d, want %d", res.Frames[0].Time, vm.TimePerFrame)
	}
}

// ---------------------------------------------------------------------------
// Self-referencing values
// ---------------------------------------------------------------------------

func TestExecutorSelfReference(t *testing.T) {
	tests := []struct {
		name   string
		source string
		log    string
	}{
		{"array", "let a = [1];\na.push(a);\nconsole.log(a);", "[1, [Circular]]"},
		{"object", "let o = {};\no.self = o;\nconsole.log(o);", "{ self: [Circular] }"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := run(t, tc.source, defaults())
			if !res.Success {
				t.Fatalf("run failed: %v", res.LastFrame().Error)
			}
			if len(res.LogLines) != 1 || res.LogLines[0].Output != tc.log {
				t.Errorf("log lines = %v, want [%s]", res.LogLines, tc.log)
			}
		})
	}

	res := run(t, "let a = [1];\na.push(a);", defaults())
	snap, ok := res.LastFrame().Variables["a"].(*vm.List)
	if !ok {
		t.Fatalf("a = %T, want *vm.List", res.LastFrame().Variables["a"])
	}
	if snap.Elements[1] != vm.Value(snap) {
		t.Error("snapshot lost the self reference")
	}
}
