// Package python implements the Python-like dialect. The lexer turns
// indentation into INDENT and DEDENT tokens; the parser and executor follow
// the same shape as the other dialects, recording a frame at every
// evaluation point.
package python

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
// call's frames are kept. A fault during setup returns the setup frames.
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
	if v, ok := ex.global.Lookup(name); ok {
		if fn, isFn := v.(*vm.Function); isFn {
			if decl, isUser := fn.Decl.(*FunctionDecl); isUser {
				at = decl.SpanVal
			}
		}
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
