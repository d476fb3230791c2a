package jikiscript

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// value evaluates x where a value is required. A call that produced nothing
// cannot be used.
func (e *Executor) value(x Expr) vm.Value {
	v := e.eval(x)
	if _, void := v.(vm.Undefined); void {
		panic(e.fail(vm.ExpressionIsNull, x.Span(), nil))
	}
	return v
}

func (e *Executor) eval(x Expr) vm.Value {
	if c, ok := x.(*CallExpr); ok && c.Synthetic {
		return e.evalSyntheticCall(c)
	}
	e.checkAllowed(x)
	switch n := x.(type) {
	case *LiteralExpr:
		return n.Value
	case *IdentifierExpr:
		return e.lookup(n)
	case *GroupingExpr:
		return e.value(n.Inner)
	case *UnaryExpr:
		return e.evalUnary(n)
	case *BinaryExpr:
		left := e.value(n.Left)
		right := e.value(n.Right)
		return e.binary(n, left, right)
	case *LogicalExpr:
		return e.evalLogical(n)
	case *ListExpr:
		elems := make([]vm.Value, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = e.value(el)
		}
		return vm.NewList(elems...)
	case *DictExpr:
		d := vm.NewDict()
		for i, k := range n.Keys {
			d.Set(k, e.value(n.Values[i]))
		}
		return d
	case *IndexExpr:
		obj := e.value(n.Object)
		key := e.value(n.Index)
		return e.element(n, obj, key)
	case *CallExpr:
		return e.evalCall(n)
	}
	panic(fmt.Sprintf("unknown expression %T", x))
}

// lookup reads a variable. Function names are not values: using one
// without calling it is an error.
func (e *Executor) lookup(n *IdentifierExpr) vm.Value {
	if v, ok := e.env.Lookup(n.Name); ok {
		return v
	}
	if e.isFunction(n.Name) {
		panic(e.fail(vm.UnexpectedUncalledFunction, n.SpanVal, map[string]any{"name": n.Name}))
	}
	panic(e.undeclared(n.Name, n.SpanVal))
}

// isFunction reports whether name is a user, external or library function.
func (e *Executor) isFunction(name string) bool {
	if _, ok := e.functions[name]; ok {
		return true
	}
	if _, ok := e.externals.Lookup(name); ok {
		return true
	}
	_, known := stdlib[name]
	return known || pending[name]
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (e *Executor) evalUnary(n *UnaryExpr) vm.Value {
	v := e.value(n.Operand)
	if n.Op == TokenNot {
		return vm.Boolean(!e.boolean(n.Operand, v))
	}
	f, ok := v.(vm.Number)
	if !ok {
		panic(e.fail(vm.OperandMustBeNumber, n.Operand.Span(), map[string]any{"operator": n.Op.String(), "value": typeName(v)}))
	}
	return -f
}

func (e *Executor) binary(n *BinaryExpr, left, right vm.Value) vm.Value {
	switch n.Op {
	case TokenEqual:
		return vm.Boolean(e.equals(n, left, right))
	case TokenNotEqual:
		return vm.Boolean(!e.equals(n, left, right))
	case TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual:
		return vm.Boolean(e.compare(n, left, right))
	}

	a := e.number(n, n.Left, left)
	b := e.number(n, n.Right, right)
	switch n.Op {
	case TokenPlus:
		return vm.Number(roundDecimals(a + b))
	case TokenMinus:
		return vm.Number(roundDecimals(a - b))
	case TokenStar:
		return vm.Number(roundDecimals(a * b))
	}
	if b == 0 {
		panic(e.fail(vm.ZeroDivisionError, n.Right.Span(), nil))
	}
	switch n.Op {
	case TokenSlash:
		return vm.Number(roundDecimals(a / b))
	case TokenPercent:
		return vm.Number(math.Mod(a, b))
	}
	panic(fmt.Sprintf("unknown binary operator %s", n.Op))
}

func (e *Executor) number(n *BinaryExpr, at Expr, v vm.Value) float64 {
	f, ok := v.(vm.Number)
	if !ok {
		panic(e.fail(vm.OperandMustBeNumber, at.Span(), map[string]any{"operator": n.Op.String(), "value": typeName(v)}))
	}
	return float64(f)
}

// equals is strict: values of different types are never equal. Containers
// cannot be compared at all.
func (e *Executor) equals(n *BinaryExpr, left, right vm.Value) bool {
	_, llist := left.(*vm.List)
	_, rlist := right.(*vm.List)
	_, ldict := left.(*vm.Dict)
	_, rdict := right.(*vm.Dict)
	switch {
	case llist || rlist:
		panic(e.raise(withLocation(typeError("Lists cannot be compared."), n.SpanVal)))
	case ldict || rdict:
		panic(e.raise(withLocation(typeError("Dictionaries cannot be compared."), n.SpanVal)))
	}
	return vm.DeepEqual(left, right)
}

func (e *Executor) compare(n *BinaryExpr, left, right vm.Value) bool {
	a, lnum := left.(vm.Number)
	b, rnum := right.(vm.Number)
	if !lnum || !rnum {
		panic(e.fail(vm.ComparisonRequiresNumber, n.SpanVal, map[string]any{
			"operator": n.Op.String(), "left": typeName(left), "right": typeName(right),
		}))
	}
	switch n.Op {
	case TokenLess:
		return a < b
	case TokenLessEqual:
		return a <= b
	case TokenGreater:
		return a > b
	}
	return a >= b
}

// evalLogical short-circuits. Without truthiness both operands must be
// booleans.
func (e *Executor) evalLogical(n *LogicalExpr) vm.Value {
	left := e.value(n.Left)
	if (n.Op == TokenAnd) != e.boolean(n.Left, left) {
		return left
	}
	right := e.value(n.Right)
	if !e.policy.AllowTruthiness {
		e.boolean(n.Right, right)
	}
	return right
}

// ---------------------------------------------------------------------------
// Elements
// ---------------------------------------------------------------------------

// position checks a 1-based index against a container of the given length
// and returns it.
func (e *Executor) position(at Expr, key vm.Value, length int, dataType string) int {
	num, ok := key.(vm.Number)
	if !ok {
		panic(e.fail(vm.OperandMustBeNumber, at.Span(), map[string]any{"operator": "[]", "value": typeName(key)}))
	}
	if !num.IsInteger() {
		panic(e.raise(withLocation(typeError("Indexes must be whole numbers, but got %s.", vm.FormatNumber(float64(num))), at.Span())))
	}
	i := int(num)
	if i == 0 {
		panic(e.fail(vm.IndexIsZeroBased, at.Span(), nil))
	}
	if i < 0 || i > length {
		panic(e.fail(vm.IndexOutOfRange, at.Span(), map[string]any{"index": i, "length": length, "dataType": dataType}))
	}
	return i
}

func (e *Executor) dictKey(at Expr, key vm.Value) string {
	s, ok := key.(vm.String)
	if !ok {
		panic(e.raise(withLocation(typeError("Dictionary keys must be strings, but got %s.", vm.WithArticle(typeName(key))), at.Span())))
	}
	return string(s)
}

func (e *Executor) element(n *IndexExpr, obj, key vm.Value) vm.Value {
	switch o := obj.(type) {
	case *vm.List:
		return o.Elements[e.position(n.Index, key, o.Len(), "list")-1]
	case vm.String:
		chars := []rune(string(o))
		return vm.String(string(chars[e.position(n.Index, key, len(chars), "string")-1]))
	case *vm.Dict:
		v, found := o.Get(e.dictKey(n.Index, key))
		if !found {
			panic(e.fail(vm.PropertyNotFound, n.Index.Span(), map[string]any{"property": Repr(key)}))
		}
		return v
	}
	panic(e.raise(withLocation(typeError("Cannot index into %s.", vm.WithArticle(typeName(obj))), n.Object.Span())))
}

func (e *Executor) writeElement(n *ChangeElementStmt, obj, key, v vm.Value) {
	switch o := obj.(type) {
	case *vm.List:
		o.Elements[e.position(n.Index, key, o.Len(), "list")-1] = v
		return
	case *vm.Dict:
		o.Set(e.dictKey(n.Index, key), v)
		return
	}
	panic(e.raise(withLocation(typeError("Cannot change %s element by element.", vm.WithArticle(typeName(obj))), n.Object.Span())))
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// function resolves a call target: user functions first, then external
// functions, then the library.
func (e *Executor) function(id *IdentifierExpr) *vm.Function {
	if fn, ok := e.functions[id.Name]; ok {
		return fn
	}
	if ext, ok := e.externals.Lookup(id.Name); ok {
		return &vm.Function{Name: ext.Name, Arity: vm.Exactly(ext.Arity), External: ext}
	}
	if def, known := stdlib[id.Name]; known || pending[id.Name] {
		if !e.policy.StdlibAllowed(StdlibLibrary, id.Name) {
			panic(e.fail(vm.MethodNotYetAvailable, id.SpanVal, map[string]any{"name": id.Name}))
		}
		if !known {
			panic(e.fail(vm.MethodNotYetImplemented, id.SpanVal, map[string]any{"name": id.Name}))
		}
		return &vm.Function{Name: id.Name, Arity: def.arity, Native: def.call}
	}
	if v, ok := e.env.Lookup(id.Name); ok {
		panic(e.fail(vm.NotCallable, id.SpanVal, map[string]any{"type": typeName(v)}))
	}
	panic(e.fail(vm.FunctionNotFound, id.SpanVal, map[string]any{"name": id.Name}))
}

func (e *Executor) evalCall(n *CallExpr) vm.Value {
	e.checkAllowed(n.Callee)
	fn := e.function(n.Callee)
	args := make([]vm.Value, len(n.Args))
	for i, a := range n.Args {
		args[i] = e.value(a)
	}
	return e.call(n, fn, args)
}

func (e *Executor) evalSyntheticCall(n *CallExpr) vm.Value {
	fn, ok := e.functions[n.Callee.Name]
	if !ok {
		panic(e.fail(vm.FunctionNotFound, n.SpanVal, map[string]any{"name": n.Callee.Name}))
	}
	args := make([]vm.Value, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.(*LiteralExpr).Value
	}
	return e.call(n, fn, args)
}

func (e *Executor) call(at Node, fn *vm.Function, args []vm.Value) vm.Value {
	switch {
	case fn.External != nil:
		ret, err := fn.External.Invoke(e.ctx, args, at.Span(), vm.Undefined{})
		if err != nil {
			panic(e.raise(err))
		}
		e.calls = append(e.calls, vm.CallRecord{
			Function:    fn.Name,
			Args:        args,
			Return:      ret,
			Description: vm.DescribeCall(fn.External.Description, args, ret, Repr),
		})
		return ret
	case fn.Native != nil:
		if !fn.Arity.Accepts(len(args)) {
			panic(e.fail(vm.InvalidNumberOfArguments, at.Span(), map[string]any{
				"name": fn.Name, "expected": fn.Arity.String(), "actual": len(args),
			}))
		}
		ret, err := fn.Native(e.ctx, fn.Receiver, args)
		if err != nil {
			var rerr *vm.RuntimeError
			if errors.As(err, &rerr) {
				panic(e.raise(withLocation(rerr, at.Span())))
			}
			panic(e.fail(vm.FunctionExecutionError, at.Span(), map[string]any{"name": fn.Name, "message": err.Error()}))
		}
		if ret == nil {
			return vm.Undefined{}
		}
		return ret
	}
	decl, ok := fn.Decl.(*FunctionDecl)
	if !ok {
		panic(fmt.Sprintf("function %s has no declaration", fn.Name))
	}
	return e.invoke(at, fn, decl, args)
}

// invoke runs a function body in a scope of its own. Only the parameters
// are visible inside it.
func (e *Executor) invoke(at Node, fn *vm.Function, decl *FunctionDecl, args []vm.Value) vm.Value {
	if len(args) != len(decl.Params) {
		panic(e.fail(vm.InvalidNumberOfArguments, at.Span(), map[string]any{
			"name": fn.Name, "expected": len(decl.Params), "actual": len(args),
		}))
	}
	if err := e.limits.Enter(at.Span()); err != nil {
		panic(e.raise(err))
	}
	env := vm.NewEnvironment(nil)
	for i, p := range decl.Params {
		env.Define(p, args[i], false)
	}

	prevEnv, prevStmt, prevLoops, prevCalls := e.env, e.stmt, e.loopDepth, e.calls
	e.env, e.loopDepth, e.calls = env, 0, nil
	e.funcDepth++

	var result vm.Value = vm.Undefined{}
	if e.execBlock(decl.Body) == signalReturn {
		result = e.returnValue
	}

	e.funcDepth--
	e.env, e.stmt, e.loopDepth, e.calls = prevEnv, prevStmt, prevLoops, prevCalls
	e.limits.Leave()
	return result
}
