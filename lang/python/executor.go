package python

import (
	"fmt"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Executor
// ---------------------------------------------------------------------------

type signal int

const (
	signalNone signal = iota
	signalBreak
	signalContinue
	signalReturn
)

// halt unwinds the executor once the ERROR frame has been recorded.
type halt struct{}

// Executor walks one parsed program. Scoping follows Python: a def body
// gets one local scope and nothing else opens a scope, so loop variables
// outlive their loops.
type Executor struct {
	prog      *Program
	policy    *vm.Policy
	externals *vm.Externals
	global    *vm.Environment
	env       *vm.Environment
	rec       *vm.Recorder
	limits    *vm.Limits
	ctx       *vm.ExecutionContext
	logLines  []vm.LogLine

	calls       []vm.CallRecord
	stmt        Stmt
	loopDepth   int
	funcDepth   int
	returnValue vm.Value
}

func NewExecutor(prog *Program, policy *vm.Policy, opts *vm.Options, start int64) *Executor {
	e := &Executor{
		prog:   prog,
		policy: policy,
		global: vm.NewEnvironment(nil),
		rec:    vm.NewRecorder(start, describeFrame),
		limits: vm.NewLimits(policy),
	}
	var state map[string]any
	if opts != nil {
		e.externals = opts.Externals
		state = opts.State
	}
	e.env = e.global
	e.ctx = vm.NewExecutionContext(state, e.log, e.rec.Time)
	return e
}

func (e *Executor) log(s string) {
	e.logLines = append(e.logLines, vm.LogLine{Time: e.rec.Time(), Output: s})
}

func (e *Executor) Frames() []*vm.Frame { return e.rec.Frames() }

func (e *Executor) LogLines() []vm.LogLine { return e.logLines }

// Run executes the top level in order. A def binds its name when reached.
func (e *Executor) Run() {
	e.guard(func() {
		e.execBlock(e.prog.Body)
	})
}

func (e *Executor) guard(body func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(halt); ok {
			return
		}
		var loc vm.Span
		if e.stmt != nil {
			loc = e.stmt.Span()
		}
		e.recordFault(vm.InternalFault(r, loc))
	}()
	body()
}

// ---------------------------------------------------------------------------
// Recording
// ---------------------------------------------------------------------------

func (e *Executor) takeCalls() []vm.CallRecord {
	calls := e.calls
	e.calls = nil
	return calls
}

func (e *Executor) record(at vm.Span, kind vm.NodeKind, name string, result vm.Value) {
	e.rec.Record(vm.Step{
		Location:  at,
		Code:      at.Code(e.prog.Source),
		Kind:      kind,
		Name:      name,
		Result:    result,
		Variables: e.env.Snapshot(),
		Calls:     e.takeCalls(),
	})
}

func (e *Executor) recordFault(err *vm.RuntimeError) {
	var kind vm.NodeKind
	if e.stmt != nil {
		kind = e.stmt.Kind()
	}
	e.rec.Fail(vm.Step{
		Location:  err.Location,
		Code:      err.Location.Code(e.prog.Source),
		Kind:      kind,
		Variables: e.env.Snapshot(),
		Calls:     e.takeCalls(),
	}, err)
}

func (e *Executor) raise(err *vm.RuntimeError) halt {
	e.recordFault(err)
	return halt{}
}

func (e *Executor) fail(typ vm.ErrorType, at vm.Span, ctx map[string]any) halt {
	return e.raise(vm.NewRuntimeError(typ, at, ctx))
}

func withLocation(err *vm.RuntimeError, at vm.Span) *vm.RuntimeError {
	err.Location = at
	return err
}

func (e *Executor) checkAllowed(n Node) {
	if !e.policy.NodeAllowed(n.Kind()) {
		panic(e.fail(vm.NodeNotAllowed, n.Span(), map[string]any{"nodeType": string(n.Kind())}))
	}
}

func (e *Executor) tick(at vm.Span) {
	if err := e.limits.Tick(at); err != nil {
		panic(e.raise(err))
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (e *Executor) execBlock(body []Stmt) signal {
	for _, s := range body {
		if sig := e.execStmt(s); sig != signalNone {
			return sig
		}
	}
	return signalNone
}

func (e *Executor) execStmt(s Stmt) signal {
	e.stmt = s
	e.checkAllowed(s)
	switch n := s.(type) {
	case *ExpressionStmt:
		v := e.eval(n.Expr)
		e.stmt = n
		e.record(n.SpanVal, vm.ExpressionStatement, "", v)
	case *AssignmentStmt:
		e.execAssignment(n)
	case *IfStmt:
		if e.test(n, n.Condition) {
			return e.execBlock(n.Then)
		}
		return e.execBlock(n.Else)
	case *WhileStmt:
		for e.test(n, n.Condition) {
			e.tick(n.Condition.Span())
			if stop, sig := e.iterate(n.Body); stop {
				return sig
			}
		}
	case *ForInStmt:
		return e.execFor(n)
	case *FunctionDecl:
		e.env.Define(n.Name, &vm.Function{
			Name:  n.Name,
			Arity: vm.Exactly(len(n.Params)),
			Decl:  n,
			Env:   e.global,
		}, false)
	case *ReturnStmt:
		if e.funcDepth == 0 {
			panic(e.fail(vm.ReturnOutsideFunction, n.SpanVal, nil))
		}
		var v vm.Value = vm.Null{}
		if n.Value != nil {
			v = e.eval(n.Value)
		}
		e.stmt = n
		e.record(n.SpanVal, vm.ReturnStatement, "", v)
		e.returnValue = v
		return signalReturn
	case *BreakStmt:
		if e.loopDepth == 0 {
			panic(e.fail(vm.BreakOutsideLoop, n.SpanVal, nil))
		}
		e.record(n.SpanVal, vm.BreakStatement, "", nil)
		return signalBreak
	case *ContinueStmt:
		if e.loopDepth == 0 {
			panic(e.fail(vm.ContinueOutsideLoop, n.SpanVal, nil))
		}
		e.record(n.SpanVal, vm.ContinueStatement, "", nil)
		return signalContinue
	default:
		panic(fmt.Sprintf("unknown statement %T", s))
	}
	return signalNone
}

func (e *Executor) execAssignment(n *AssignmentStmt) {
	var v vm.Value
	if op, compound := compoundOps[n.Op]; compound {
		cur := e.eval(n.Targets[0])
		v = e.binary(n, op, cur, e.eval(n.Value))
	} else {
		v = e.eval(n.Value)
	}
	for _, target := range n.Targets {
		e.store(target, v)
	}
	e.stmt = n
	name := ""
	if id, ok := n.Targets[0].(*IdentifierExpr); ok {
		name = id.Name
	}
	e.record(n.SpanVal, vm.AssignmentStatement, name, v)
}

// store binds a name in the current scope or writes a subscript.
func (e *Executor) store(target Expr, v vm.Value) {
	switch t := target.(type) {
	case *IdentifierExpr:
		e.env.Define(t.Name, v, false)
	case *SubscriptExpr:
		e.checkAllowed(t)
		obj := e.eval(t.Object)
		key := e.eval(t.Index)
		e.writeSubscript(t, obj, key, v)
	default:
		panic(fmt.Sprintf("invalid assignment target %T", target))
	}
}

func (e *Executor) test(s Stmt, cond Expr) bool {
	e.stmt = s
	v := e.eval(cond)
	b := e.boolean(cond, v)
	e.stmt = s
	e.record(cond.Span(), s.Kind(), "", v)
	return b
}

// boolean applies the truthiness gate to a value in a boolean position.
func (e *Executor) boolean(at Expr, v vm.Value) bool {
	if b, ok := v.(vm.Boolean); ok {
		return bool(b)
	}
	if !e.policy.AllowTruthiness {
		panic(e.fail(vm.TruthinessDisabled, at.Span(), map[string]any{"value": typeName(v)}))
	}
	return truthy(v)
}

func (e *Executor) iterate(body []Stmt) (stop bool, sig signal) {
	e.loopDepth++
	sig = e.execBlock(body)
	e.loopDepth--
	switch sig {
	case signalBreak:
		return true, signalNone
	case signalReturn:
		return true, signalReturn
	}
	return false, signalNone
}

// execFor walks lists live, so appending inside the loop extends it.
// Strings iterate by code point and dicts over a snapshot of their keys.
func (e *Executor) execFor(n *ForInStmt) signal {
	e.stmt = n
	target := e.eval(n.Iterable)
	var next func(i int) (vm.Value, bool)
	switch t := target.(type) {
	case *vm.List:
		next = func(i int) (vm.Value, bool) {
			if i >= t.Len() {
				return nil, false
			}
			return t.Elements[i], true
		}
	case vm.String:
		chars := []rune(string(t))
		next = func(i int) (vm.Value, bool) {
			if i >= len(chars) {
				return nil, false
			}
			return vm.String(string(chars[i])), true
		}
	case *vm.Dict:
		keys := append([]string(nil), t.Keys()...)
		next = func(i int) (vm.Value, bool) {
			if i >= len(keys) {
				return nil, false
			}
			return vm.String(keys[i]), true
		}
	default:
		panic(e.fail(vm.ForOfLoopTargetNotIterable, n.Iterable.Span(), map[string]any{"type": typeName(target)}))
	}

	header := vm.Span{Start: n.SpanVal.Start, End: n.Iterable.Span().End}
	for i := 0; ; i++ {
		e.stmt = n
		v, ok := next(i)
		if !ok {
			return signalNone
		}
		e.tick(header)
		e.env.Define(n.Name, v, false)
		e.record(header, vm.ForInStatement, n.Name, v)
		if stop, sig := e.iterate(n.Body); stop {
			return sig
		}
	}
}
