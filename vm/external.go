package vm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ExternalFunction is a host-provided callable exposed to interpreted code.
// Description may reference ${return} and ${arg1}..${argN}.
type ExternalFunction struct {
	Name        string
	Arity       int
	Func        func(ctx *ExecutionContext, args []Value) (Value, error)
	Description string
}

// ExecutionContext is handed to external functions. It is valid only for
// the duration of the call.
type ExecutionContext struct {
	// State is shared by every external call of one run, letting an
	// exercise accumulate what the student's program did.
	State map[string]any

	log      func(string)
	clock    func() int64
	finished bool
}

func NewExecutionContext(state map[string]any, log func(string), clock func() int64) *ExecutionContext {
	if state == nil {
		state = make(map[string]any)
	}
	return &ExecutionContext{State: state, log: log, clock: clock}
}

// Log appends a line to the run's log output.
func (c *ExecutionContext) Log(s string) {
	if c.log != nil {
		c.log(s)
	}
}

// Time returns the current frame clock.
func (c *ExecutionContext) Time() int64 {
	if c.clock == nil {
		return 0
	}
	return c.clock()
}

// FinishExercise ends a game loop at the end of its current iteration.
func (c *ExecutionContext) FinishExercise() { c.finished = true }

func (c *ExecutionContext) Finished() bool { return c.finished }

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Externals is an immutable name->descriptor registry.
type Externals struct {
	byName map[string]*ExternalFunction
	order  []string
}

// NewExternals validates and indexes fns. Registration mistakes are the
// host's responsibility and come back as plain errors.
func NewExternals(fns ...*ExternalFunction) (*Externals, error) {
	x := &Externals{byName: make(map[string]*ExternalFunction, len(fns))}
	for _, fn := range fns {
		switch {
		case fn == nil:
			return nil, errors.New("external function is nil")
		case fn.Name == "":
			return nil, errors.New("external function has no name")
		case fn.Func == nil:
			return nil, fmt.Errorf("external function %s has no implementation", fn.Name)
		case fn.Arity < 0:
			return nil, fmt.Errorf("external function %s has negative arity %d", fn.Name, fn.Arity)
		}
		if _, dup := x.byName[fn.Name]; dup {
			return nil, fmt.Errorf("external function %s registered twice", fn.Name)
		}
		x.byName[fn.Name] = fn
		x.order = append(x.order, fn.Name)
	}
	return x, nil
}

// Lookup is safe on a nil registry.
func (x *Externals) Lookup(name string) (*ExternalFunction, bool) {
	if x == nil {
		return nil, false
	}
	fn, ok := x.byName[name]
	return fn, ok
}

// All returns the descriptors in registration order.
func (x *Externals) All() []*ExternalFunction {
	if x == nil {
		return nil
	}
	out := make([]*ExternalFunction, len(x.order))
	for i, name := range x.order {
		out[i] = x.byName[name]
	}
	return out
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// Invoke calls fn and maps its outcome onto the runtime error taxonomy. A nil
// result becomes empty, the dialect's "no value" value.
func (fn *ExternalFunction) Invoke(ctx *ExecutionContext, args []Value, loc Span, empty Value) (result Value, rerr *RuntimeError) {
	if len(args) != fn.Arity {
		return nil, NewRuntimeError(InvalidNumberOfArguments, loc, map[string]any{
			"name": fn.Name, "expected": fn.Arity, "actual": len(args),
		})
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			rerr = NewRuntimeError(FunctionExecutionError, loc, map[string]any{
				"name": fn.Name, "message": fmt.Sprint(r),
			})
		}
	}()

	in := make([]Value, len(args))
	for i, a := range args {
		in[i] = a.Clone()
	}
	v, err := fn.Func(ctx, in)
	if err != nil {
		var logic *LogicError
		if errors.As(err, &logic) {
			return nil, NewRuntimeError(LogicErrorInExecution, loc, map[string]any{"message": logic.Message})
		}
		return nil, NewRuntimeError(FunctionExecutionError, loc, map[string]any{
			"name": fn.Name, "message": err.Error(),
		})
	}
	if v == nil {
		return empty, nil
	}
	if !IsRuntimeValue(v) {
		return nil, NewRuntimeError(NonJikiObjectDetectedInExecution, loc, map[string]any{"name": fn.Name})
	}
	return v, nil
}

// IsRuntimeValue reports whether v, and everything it contains, is one of
// the runtime value types.
func IsRuntimeValue(v Value) bool {
	switch t := v.(type) {
	case Number, String, Boolean, Null, Undefined, *Function:
		return true
	case *List:
		for _, e := range t.Elements {
			if e == nil || !IsRuntimeValue(e) {
				return false
			}
		}
		return true
	case *Dict:
		for _, k := range t.keys {
			if e := t.values[k]; e == nil || !IsRuntimeValue(e) {
				return false
			}
		}
		return true
	}
	return false
}

// DescribeCall fills a description template with rendered arguments and
// return value. Placeholders are 1-based: ${arg1} is the first argument.
func DescribeCall(template string, args []Value, ret Value, render func(Value) string) string {
	if template == "" || !strings.Contains(template, "${") {
		return template
	}
	pairs := make([]string, 0, 2*len(args)+2)
	for i, a := range args {
		pairs = append(pairs, "${arg"+strconv.Itoa(i+1)+"}", render(a))
	}
	if ret != nil {
		pairs = append(pairs, "${return}", render(ret))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
