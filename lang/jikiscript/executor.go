package jikiscript

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

// Executor walks one parsed program. Every do-block opens a scope, and a
// function body runs in a fresh scope that cannot see the caller's
// variables. Functions are declared before the first statement runs.
type Executor struct {
	prog      *Program
	policy    *vm.Policy
	externals *vm.Externals
	global    *vm.Environment
	env       *vm.Environment
	functions map[string]*vm.Function
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
		prog:      prog,
		policy:    policy,
		global:    vm.NewEnvironment(nil),
		functions: make(map[string]*vm.Function),
		rec:       vm.NewRecorder(start, describeFrame),
		limits:    vm.NewLimits(policy),
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

// Run declares every function, then executes the top level in order.
func (e *Executor) Run() {
	e.guard(func() {
		e.declareFunctions()
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

// declareFunctions binds each function name once. A name already taken by
// another function or an external function is an error.
func (e *Executor) declareFunctions() {
	for _, decl := range e.prog.Functions {
		e.stmt = decl
		_, external := e.externals.Lookup(decl.Name)
		if _, dup := e.functions[decl.Name]; dup || external {
			panic(e.fail(vm.VariableAlreadyDeclared, decl.SpanVal, map[string]any{"name": decl.Name}))
		}
		e.functions[decl.Name] = &vm.Function{
			Name:  decl.Name,
			Arity: vm.Exactly(len(decl.Params)),
			Decl:  decl,
		}
	}
	e.stmt = nil
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

// keywordSpan covers the keyword that opens a statement.
func keywordSpan(start vm.Position, word string) vm.Span {
	end := start
	end.Offset += len(word)
	end.Column += len(word)
	return vm.Span{Start: start, End: end}
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

// scoped runs body in a child scope of the current one.
func (e *Executor) scoped(body []Stmt) signal {
	prev := e.env
	e.env = vm.NewEnvironment(prev)
	sig := e.execBlock(body)
	e.env = prev
	return sig
}

func (e *Executor) execStmt(s Stmt) signal {
	e.stmt = s
	e.checkAllowed(s)
	switch n := s.(type) {
	case *ExpressionStmt:
		v := e.eval(n.Expr)
		if _, isCall := n.Expr.(*CallExpr); !isCall {
			panic(e.fail(vm.PointlessStatement, n.SpanVal, nil))
		}
		e.stmt = n
		e.record(n.SpanVal, vm.ExpressionStatement, "", v)
	case *SetVariableStmt:
		e.execSet(n)
	case *ChangeVariableStmt:
		e.execChange(n)
	case *ChangeElementStmt:
		obj := e.value(n.Object)
		key := e.value(n.Index)
		v := e.value(n.Value)
		e.writeElement(n, obj, key, v)
		e.stmt = n
		e.record(n.SpanVal, vm.ChangeElementStatement, rootName(n.Object), v)
	case *LogStmt:
		v := e.value(n.Value)
		e.log(Str(v))
		e.stmt = n
		e.record(n.SpanVal, vm.LogStatement, "", v)
	case *IfStmt:
		if e.test(n, n.Condition) {
			return e.scoped(n.Then)
		}
		return e.scoped(n.Else)
	case *RepeatStmt:
		return e.execRepeat(n)
	case *RepeatUntilGameOverStmt:
		return e.execRepeatUntilGameOver(n)
	case *ForeachStmt:
		return e.execForeach(n)
	case *BlockStmt:
		return e.scoped(n.Body)
	case *WhileStmt:
		for e.test(n, n.Condition) {
			e.tick(n.Condition.Span())
			if stop, sig := e.iterate(n.Body); stop {
				return sig
			}
		}
	case *FunctionDecl:
		// declared before the run started
	case *ReturnStmt:
		if e.funcDepth == 0 {
			panic(e.fail(vm.ReturnOutsideFunction, n.SpanVal, nil))
		}
		var v vm.Value = vm.Undefined{}
		if n.Value != nil {
			v = e.value(n.Value)
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

func rootName(x Expr) string {
	switch t := x.(type) {
	case *IdentifierExpr:
		return t.Name
	case *IndexExpr:
		return rootName(t.Object)
	}
	return ""
}

func (e *Executor) execSet(n *SetVariableStmt) {
	if e.isFunction(n.Name) {
		panic(e.fail(vm.VariableAlreadyDeclared, n.NameSpan, map[string]any{"name": n.Name}))
	}
	if _, exists := e.env.Lookup(n.Name); exists {
		panic(e.fail(vm.VariableAlreadyDeclared, n.NameSpan, map[string]any{"name": n.Name}))
	}
	v := e.value(n.Value)
	e.env.Define(n.Name, v, false)
	e.stmt = n
	e.record(n.SpanVal, vm.SetVariableStatement, n.Name, v)
}

func (e *Executor) execChange(n *ChangeVariableStmt) {
	if e.isFunction(n.Name) {
		panic(e.raise(withLocation(typeError("%s is a function and cannot be changed.", n.Name), n.NameSpan)))
	}
	if _, exists := e.env.Lookup(n.Name); !exists {
		panic(e.undeclared(n.Name, n.NameSpan))
	}
	v := e.value(n.Value)
	e.env.Assign(n.Name, v)
	e.stmt = n
	e.record(n.SpanVal, vm.ChangeVariableStatement, n.Name, v)
}

// undeclared reports a name missing from scope, noting when it exists
// outside the running function.
func (e *Executor) undeclared(name string, at vm.Span) halt {
	if e.funcDepth > 0 && e.global.Has(name) {
		return e.fail(vm.VariableNotAccessibleInFunctionScope, at, map[string]any{"name": name})
	}
	return e.fail(vm.VariableNotDeclared, at, map[string]any{"name": name})
}

func (e *Executor) test(s Stmt, cond Expr) bool {
	e.stmt = s
	v := e.value(cond)
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

// iterate runs one loop body in its own scope.
func (e *Executor) iterate(body []Stmt) (stop bool, sig signal) {
	e.loopDepth++
	sig = e.scoped(body)
	e.loopDepth--
	switch sig {
	case signalBreak:
		return true, signalNone
	case signalReturn:
		return true, signalReturn
	}
	return false, signalNone
}

// execRepeat records one frame per iteration, or a single frame when the
// count is zero.
func (e *Executor) execRepeat(n *RepeatStmt) signal {
	e.stmt = n
	v := e.value(n.Count)
	num, ok := v.(vm.Number)
	if !ok {
		panic(e.fail(vm.RepeatCountMustBeNumber, n.Count.Span(), map[string]any{"type": typeName(v)}))
	}
	if num < 0 {
		panic(e.fail(vm.RepeatCountMustBeNonNegative, n.Count.Span(), map[string]any{"count": vm.FormatNumber(float64(num))}))
	}
	if !num.IsInteger() {
		panic(e.raise(withLocation(typeError("repeat needs a whole number, but got %s.", vm.FormatNumber(float64(num))), n.Count.Span())))
	}
	if max := e.policy.LoopLimit(); int(num) > max {
		panic(e.fail(vm.RepeatCountTooHigh, n.Count.Span(), map[string]any{"count": int(num), "max": max}))
	}

	header := keywordSpan(n.SpanVal.Start, "repeat")
	count := int(num)
	if count == 0 {
		e.record(header, vm.RepeatStatement, "", vm.Number(0))
		return signalNone
	}
	for i := 1; i <= count; i++ {
		e.stmt = n
		e.tick(header)
		e.record(header, vm.RepeatStatement, "", vm.Number(i))
		if stop, sig := e.iterate(n.Body); stop {
			return sig
		}
	}
	return signalNone
}

// execRepeatUntilGameOver loops until an external function finishes the
// exercise. It records no frame of its own. Running past the loop limit
// without finishing is reported as an infinite loop.
func (e *Executor) execRepeatUntilGameOver(n *RepeatUntilGameOverStmt) signal {
	header := keywordSpan(n.SpanVal.Start, "repeat_until_game_over")
	limit := e.policy.LoopLimit()
	for i := 1; !e.ctx.Finished(); i++ {
		e.stmt = n
		if i > limit {
			panic(e.fail(vm.InfiniteLoopDetected, header, map[string]any{"max": limit}))
		}
		e.tick(header)
		if stop, sig := e.iterate(n.Body); stop {
			return sig
		}
	}
	return signalNone
}

// execForeach walks lists live, strings by code point and dictionaries
// over a snapshot of their keys. The element name lives only for its
// iteration.
func (e *Executor) execForeach(n *ForeachStmt) signal {
	e.stmt = n
	if _, exists := e.env.Lookup(n.Name); exists || e.isFunction(n.Name) {
		panic(e.fail(vm.VariableAlreadyDeclared, n.NameSpan, map[string]any{"name": n.Name}))
	}
	target := e.value(n.Iterable)
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
			if i == 0 {
				e.record(header, vm.ForeachStatement, n.Name, nil)
			}
			return signalNone
		}
		e.tick(header)

		prev := e.env
		e.env = vm.NewEnvironment(prev)
		e.env.Define(n.Name, v, false)
		e.record(header, vm.ForeachStatement, n.Name, v)
		e.loopDepth++
		sig := e.execBlock(n.Body)
		e.loopDepth--
		e.env = prev

		switch sig {
		case signalBreak:
			return signalNone
		case signalReturn:
			return signalReturn
		}
	}
}
