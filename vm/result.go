package vm

import "fmt"

// Options configure one Compile, Interpret or EvaluateFunction call.
type Options struct {
	// Policy defaults to DefaultPolicy when nil.
	Policy    *Policy
	Externals *Externals
	// State is exposed to external functions through ExecutionContext.
	State map[string]any
}

// EffectivePolicy returns a private copy of the policy for this run.
func (o *Options) EffectivePolicy() *Policy {
	if o == nil || o.Policy == nil {
		p := DefaultPolicy()
		return &p
	}
	p := *o.Policy
	return &p
}

// LogLine is one line written by the program's log/print facility.
type LogLine struct {
	Time   int64
	Output string
}

type CompileResult struct {
	Success bool
	Error   *SyntaxError
}

type InterpretResult struct {
	Frames   []*Frame
	Error    *SyntaxError
	Success  bool
	LogLines []LogLine
}

type EvaluateResult struct {
	// Value is the function's return value converted with ToNative.
	Value    any
	Frames   []*Frame
	Error    *SyntaxError
	Success  bool
	LogLines []LogLine
}

// LastFrame returns the final frame, or nil for an empty trace.
func (r *InterpretResult) LastFrame() *Frame {
	if len(r.Frames) == 0 {
		return nil
	}
	return r.Frames[len(r.Frames)-1]
}

// FramesSucceeded reports whether no frame carries an error.
func FramesSucceeded(frames []*Frame) bool {
	for _, f := range frames {
		if f.Status == StatusError {
			return false
		}
	}
	return true
}

// InternalFault converts a recovered panic into a runtime error.
func InternalFault(r any, loc Span) *RuntimeError {
	return NewRuntimeError(InternalError, loc, map[string]any{"message": fmt.Sprint(r)})
}
