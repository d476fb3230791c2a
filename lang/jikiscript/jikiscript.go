// Package jikiscript implements JikiScript, the English-keyword teaching
// dialect. Statements end at a newline, blocks run from do to end, list
// indexes start at 1 and only booleans may appear in conditions unless the
// policy allows truthiness.
package jikiscript

import (
	"github.com/chazu/jiki/vm"
)

// Compile parses source and reports the first syntax error.
func Compile(source string, opts *vm.Options) *vm.CompileResult {
	if _, err := Parse(source, opts.EffectivePolicy()); err != nil {
		return &vm.CompileResult{Error: err}
	}
	return &vm.CompileResult{Success: true}
}

// Interpret compiles and runs source.
func Interpret(source string, opts *vm.Options) *vm.InterpretResult {
	policy := opts.EffectivePolicy()
	prog, err := Parse(source, policy)
	if err != nil {
		return &vm.InterpretResult{Frames: []*vm.Frame{}, Error: err}
	}
	ex := NewExecutor(prog, policy, opts, 0)
	ex.Run()
	frames := ex.Frames()
	return &vm.InterpretResult{
		Frames:   frames,
		Success:  vm.FramesSucceeded(frames),
		LogLines: ex.LogLines(),
	}
}

// EvaluateFunction runs the top level silently, then calls name. Only the
// call's frames are kept.
func EvaluateFunction(source string, opts *vm.Options, name string, args ...any) *vm.EvaluateResult {
	policy := opts.EffectivePolicy()
	prog, err := Parse(source, policy)
	if err != nil {
		return &vm.EvaluateResult{Frames: []*vm.Frame{}, Error: err}
	}
	ex := NewExecutor(prog, policy, opts, 0)
	ex.Run()
	if ex.rec.Halted() {
		return evaluateResult(ex, nil)
	}
	ex.rec.Discard()
	ex.logLines = nil
	ex.stmt = nil

	at := vm.EndOfSource(source)
	if fn, ok := ex.functions[name]; ok {
		at = fn.Decl.(*FunctionDecl).SpanVal
	}
	call := &CallExpr{SpanVal: at, Callee: &IdentifierExpr{SpanVal: at, Name: name}, Synthetic: true}

	var result vm.Value
	ex.guard(func() {
		for _, a := range args {
			v, err := vm.FromNative(a)
			if err != nil {
				panic(ex.raise(withLocation(typeError("%s", err.Error()), at)))
			}
			call.Args = append(call.Args, &LiteralExpr{SpanVal: at, Value: v})
		}
		result = ex.eval(call)
	})
	return evaluateResult(ex, result)
}

// evaluateResult reports a function that returned nothing as a nil Value.
func evaluateResult(ex *Executor, v vm.Value) *vm.EvaluateResult {
	frames := ex.Frames()
	res := &vm.EvaluateResult{
		Frames:   frames,
		Success:  vm.FramesSucceeded(frames),
		LogLines: ex.LogLines(),
	}
	if _, void := v.(vm.Undefined); void {
		return res
	}
	if v != nil && res.Success {
		res.Value = vm.ToNative(v)
	}
	return res
}
