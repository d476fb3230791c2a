// Package javascript implements the JavaScript-like dialect: a lexer, a
// recursive-descent parser with teaching-dialect checks, and a tree-walking
// executor that records a frame for every evaluation point.
package javascript

import (
	"github.com/chazu/jiki/vm"
)

// Compile parses source and reports the first syntax error. Nothing runs.
func Compile(source string, opts *vm.Options) *vm.CompileResult {
	if _, err := Parse(source, opts.EffectivePolicy()); err != nil {
		return &vm.CompileResult{Error: err}
	}
	return &vm.CompileResult{Success: true}
}

// Interpret compiles and runs source. Runtime faults end the trace with an
// ERROR frame; Error is only set for syntax errors.
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

// EvaluateFunction runs source's top level silently to define its
// functions, then calls name with args converted by vm.FromNative. Only the
// frames of the call are returned; the clock carries on from the setup run.
// If the setup run faults, its frames are returned instead.
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

	call := &CallExpr{SpanVal: vm.EndOfSource(source), Callee: &IdentifierExpr{Name: name}, Synthetic: true}
	if v, ok := ex.global.Lookup(name); ok {
		if fn, isFn := v.(*vm.Function); isFn {
			if decl, isUser := fn.Decl.(*FunctionDecl); isUser {
				call.SpanVal = decl.SpanVal
			}
		}
	}
	call.Callee.(*IdentifierExpr).SpanVal = call.SpanVal

	var result vm.Value
	ex.guard(func() {
		for _, a := range args {
			v, err := vm.FromNative(a)
			if err != nil {
				panic(ex.raise(withLocation(typeError("%s", err.Error()), call.SpanVal)))
			}
			call.Args = append(call.Args, &LiteralExpr{SpanVal: call.SpanVal, Value: v})
		}
		result = ex.eval(call)
	})
	return evaluateResult(ex, result)
}

func evaluateResult(ex *Executor, v vm.Value) *vm.EvaluateResult {
	frames := ex.Frames()
	res := &vm.EvaluateResult{
		Frames:   frames,
		Success:  vm.FramesSucceeded(frames),
		LogLines: ex.LogLines(),
	}
	if v != nil && res.Success {
		res.Value = vm.ToNative(v)
	}
	return res
}
