package javascript

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf16"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

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
		return e.eval(n.Inner)
	case *UnaryExpr:
		return e.evalUnary(n)
	case *BinaryExpr:
		return e.evalBinary(n)
	case *LogicalExpr:
		return e.evalLogical(n)
	case *AssignmentExpr:
		return e.evalAssignment(n)
	case *UpdateExpr:
		return e.evalUpdate(n)
	case *TemplateLiteralExpr:
		var sb strings.Builder
		for i, q := range n.Quasis {
			sb.WriteString(q)
			if i < len(n.Exprs) {
				sb.WriteString(ToString(e.eval(n.Exprs[i])))
			}
		}
		return vm.String(sb.String())
	case *ArrayExpr:
		elems := make([]vm.Value, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = e.eval(el)
		}
		return vm.NewList(elems...)
	case *DictionaryExpr:
		d := vm.NewDict()
		for i, k := range n.Keys {
			d.Set(k, e.eval(n.Values[i]))
		}
		return d
	case *MemberExpr:
		obj := e.eval(n.Object)
		return e.readMember(n, obj, e.propertyKey(n))
	case *CallExpr:
		return e.evalCall(n)
	}
	panic(fmt.Sprintf("unknown expression %T", x))
}

// resolve finds a name in scope, then among the built-in globals, then
// among the external functions.
func (e *Executor) resolve(name string) (vm.Value, bool) {
	if v, ok := e.env.Lookup(name); ok {
		return v, true
	}
	if ns, ok := e.builtins[name]; ok {
		return ns, true
	}
	if ext, ok := e.externals.Lookup(name); ok {
		return &vm.Function{Name: ext.Name, Arity: vm.Exactly(ext.Arity), External: ext}, true
	}
	return nil, false
}

func (e *Executor) lookup(n *IdentifierExpr) vm.Value {
	if v, ok := e.resolve(n.Name); ok {
		return v
	}
	panic(e.fail(vm.VariableNotDeclared, n.SpanVal, map[string]any{"name": n.Name}))
}

func (e *Executor) assign(n *IdentifierExpr, v vm.Value) {
	found, isConst := e.env.Assign(n.Name, v)
	switch {
	case !found:
		panic(e.fail(vm.VariableNotDeclared, n.SpanVal, map[string]any{"name": n.Name}))
	case isConst:
		panic(e.fail(vm.AssignmentToConstant, n.SpanVal, map[string]any{"name": n.Name}))
	}
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// number reads an operand that must be numeric.
func (e *Executor) number(at Node, op TokenType, v vm.Value) float64 {
	if n, ok := v.(vm.Number); ok {
		return float64(n)
	}
	if e.policy.AllowTypeCoercion {
		return toNumber(v)
	}
	panic(e.fail(vm.OperandMustBeNumber, at.Span(), map[string]any{"operator": op.String(), "value": typeName(v)}))
}

func (e *Executor) evalUnary(n *UnaryExpr) vm.Value {
	v := e.eval(n.Operand)
	switch n.Op {
	case TokenBang:
		return vm.Boolean(!e.boolean(n.Operand, v))
	case TokenMinus:
		return vm.Number(-e.number(n, n.Op, v))
	}
	return vm.Number(e.number(n, n.Op, v))
}

var strictSuggestions = map[TokenType]string{
	TokenEqual:    "===",
	TokenNotEqual: "!==",
}

func (e *Executor) evalBinary(n *BinaryExpr) vm.Value {
	if suggestion, loose := strictSuggestions[n.Op]; loose && e.policy.EnforceStrictEquality {
		panic(e.fail(vm.StrictEqualityRequired, n.SpanVal, map[string]any{
			"operator": n.Op.String(), "suggestion": suggestion,
		}))
	}
	left := e.eval(n.Left)
	right := e.eval(n.Right)
	return e.binary(n, n.Op, left, right)
}

func (e *Executor) binary(at Node, op TokenType, left, right vm.Value) vm.Value {
	switch op {
	case TokenStrictEqual:
		return vm.Boolean(strictEquals(left, right))
	case TokenStrictNotEq:
		return vm.Boolean(!strictEquals(left, right))
	case TokenEqual:
		return vm.Boolean(looseEquals(left, right))
	case TokenNotEqual:
		return vm.Boolean(!looseEquals(left, right))
	case TokenIn:
		return e.in(at, left, right)
	case TokenPlus:
		return e.add(at, left, right)
	case TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual:
		return vm.Boolean(e.compare(at, op, left, right))
	}

	a, b := e.arithmeticOperands(at, op, left, right)
	switch op {
	case TokenMinus:
		return vm.Number(a - b)
	case TokenStar:
		return vm.Number(a * b)
	case TokenSlash:
		return vm.Number(a / b)
	case TokenPercent:
		return vm.Number(math.Mod(a, b))
	case TokenStarStar:
		return vm.Number(jsPow(a, b))
	}
	panic(fmt.Sprintf("unknown binary operator %s", op))
}

func (e *Executor) coercionError(at Node, op TokenType, left, right vm.Value) halt {
	return e.fail(vm.TypeCoercionNotAllowed, at.Span(), map[string]any{
		"operator": op.String(), "left": typeName(left), "right": typeName(right),
	})
}

func (e *Executor) arithmeticOperands(at Node, op TokenType, left, right vm.Value) (float64, float64) {
	a, aok := left.(vm.Number)
	b, bok := right.(vm.Number)
	if aok && bok {
		return float64(a), float64(b)
	}
	if !e.policy.AllowTypeCoercion {
		panic(e.coercionError(at, op, left, right))
	}
	return toNumber(left), toNumber(right)
}

// toPrimitive flattens containers to their string form, as + and the
// relational operators see them.
func toPrimitive(v vm.Value) vm.Value {
	switch v.(type) {
	case *vm.List, *vm.Dict, *vm.Function, *namespace:
		return vm.String(ToString(v))
	}
	return v
}

func (e *Executor) add(at Node, left, right vm.Value) vm.Value {
	switch l := left.(type) {
	case vm.Number:
		if r, ok := right.(vm.Number); ok {
			return l + r
		}
	case vm.String:
		if r, ok := right.(vm.String); ok {
			return l + r
		}
	}
	if !e.policy.AllowTypeCoercion {
		panic(e.coercionError(at, TokenPlus, left, right))
	}
	lp, rp := toPrimitive(left), toPrimitive(right)
	_, ls := lp.(vm.String)
	_, rs := rp.(vm.String)
	if ls || rs {
		return vm.String(ToString(lp) + ToString(rp))
	}
	return vm.Number(toNumber(lp) + toNumber(rp))
}

func (e *Executor) compare(at Node, op TokenType, left, right vm.Value) bool {
	lp, rp := left, right
	if e.policy.AllowTypeCoercion {
		lp, rp = toPrimitive(left), toPrimitive(right)
	}
	ls, lstr := lp.(vm.String)
	rs, rstr := rp.(vm.String)
	if lstr && rstr {
		return compareNumbers(op, float64(compareUnits(string(ls), string(rs))), 0)
	}
	_, lnum := lp.(vm.Number)
	_, rnum := rp.(vm.Number)
	if (lnum && rnum) || e.policy.AllowTypeCoercion {
		return compareNumbers(op, toNumber(lp), toNumber(rp))
	}
	panic(e.fail(vm.ComparisonRequiresNumber, at.Span(), map[string]any{
		"operator": op.String(), "left": typeName(left), "right": typeName(right),
	}))
}

// compareNumbers is false whenever either side is NaN.
func compareNumbers(op TokenType, a, b float64) bool {
	switch op {
	case TokenLess:
		return a < b
	case TokenLessEqual:
		return a <= b
	case TokenGreater:
		return a > b
	}
	return a >= b
}

func (e *Executor) in(at Node, key, obj vm.Value) vm.Value {
	name := propertyName(key)
	switch o := obj.(type) {
	case *vm.Dict:
		return vm.Boolean(o.Has(name))
	case *vm.List:
		if name == "length" {
			return vm.Boolean(true)
		}
		n, ok := key.(vm.Number)
		f := float64(n)
		return vm.Boolean(ok && f == math.Trunc(f) && f >= 0 && f < float64(o.Len()))
	case *namespace:
		_, ok := o.lib.members[name]
		return vm.Boolean(ok)
	}
	panic(e.fail(vm.InOperatorRequiresObject, at.Span(), map[string]any{"type": typeName(obj)}))
}

func (e *Executor) evalLogical(n *LogicalExpr) vm.Value {
	left := e.eval(n.Left)
	// && stops on false, || on true; either way the left value decides.
	if (n.Op == TokenAnd) != e.boolean(n.Left, left) {
		return left
	}
	right := e.eval(n.Right)
	if !e.policy.AllowTruthiness {
		e.boolean(n.Right, right)
	}
	return right
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

var compoundOps = map[TokenType]TokenType{
	TokenPlusAssign:  TokenPlus,
	TokenMinusAssign: TokenMinus,
	TokenStarAssign:  TokenStar,
	TokenSlashAssign: TokenSlash,
}

func (e *Executor) evalAssignment(n *AssignmentExpr) vm.Value {
	switch t := n.Target.(type) {
	case *IdentifierExpr:
		var v vm.Value
		if op, compound := compoundOps[n.Op]; compound {
			cur := e.lookup(t)
			v = e.binary(n, op, cur, e.eval(n.Value))
		} else {
			v = e.eval(n.Value)
		}
		e.assign(t, v)
		return v
	case *MemberExpr:
		e.checkAllowed(t)
		obj := e.eval(t.Object)
		key := e.propertyKey(t)
		var v vm.Value
		if op, compound := compoundOps[n.Op]; compound {
			cur := e.readMember(t, obj, key)
			v = e.binary(n, op, cur, e.eval(n.Value))
		} else {
			v = e.eval(n.Value)
		}
		e.writeMember(t, obj, key, v)
		return v
	}
	panic(fmt.Sprintf("invalid assignment target %T", n.Target))
}

func (e *Executor) evalUpdate(n *UpdateExpr) vm.Value {
	delta := 1.0
	if n.Op == TokenMinusMinus {
		delta = -1
	}
	var old float64
	switch t := n.Target.(type) {
	case *IdentifierExpr:
		old = e.number(n, n.Op, e.lookup(t))
		e.assign(t, vm.Number(old+delta))
	case *MemberExpr:
		e.checkAllowed(t)
		obj := e.eval(t.Object)
		key := e.propertyKey(t)
		old = e.number(n, n.Op, e.readMember(t, obj, key))
		e.writeMember(t, obj, key, vm.Number(old+delta))
	default:
		panic(fmt.Sprintf("invalid update target %T", n.Target))
	}
	if n.Prefix {
		return vm.Number(old + delta)
	}
	return vm.Number(old)
}

// ---------------------------------------------------------------------------
// Member access
// ---------------------------------------------------------------------------

func (e *Executor) propertyKey(m *MemberExpr) vm.Value {
	if !m.Computed {
		return m.Property.(*LiteralExpr).Value
	}
	return e.eval(m.Property)
}

func propertyName(key vm.Value) string {
	if s, ok := key.(vm.String); ok {
		return string(s)
	}
	return ToString(key)
}

// elementIndex validates a numeric index into a sequence of length n. An
// appending write may also target index n.
func (e *Executor) elementIndex(m *MemberExpr, key vm.Number, n int, appending bool) int {
	f := float64(key)
	if f != math.Trunc(f) {
		panic(e.raise(withLocation(typeError("Indexes must be whole numbers, not %s.", vm.FormatNumber(f)), m.Property.Span())))
	}
	limit := float64(n)
	if appending {
		limit++
	}
	if f < 0 || f >= limit {
		panic(e.fail(vm.IndexOutOfRange, m.Property.Span(), map[string]any{"index": vm.FormatNumber(f), "length": n}))
	}
	return int(f)
}

func (e *Executor) readMember(m *MemberExpr, obj, key vm.Value) vm.Value {
	switch o := obj.(type) {
	case *namespace:
		return e.member(m, o.lib, o, o.name+".", propertyName(key))
	case vm.String:
		if idx, ok := key.(vm.Number); ok && m.Computed {
			u := units(o)
			i := e.elementIndex(m, idx, len(u), false)
			return vm.String(string(utf16.Decode(u[i : i+1])))
		}
		return e.member(m, stringLib, o, "", propertyName(key))
	case *vm.List:
		if idx, ok := key.(vm.Number); ok && m.Computed {
			return o.Elements[e.elementIndex(m, idx, o.Len(), false)]
		}
		return e.member(m, arrayLib, o, "", propertyName(key))
	case *vm.Dict:
		name := propertyName(key)
		if v, ok := o.Get(name); ok {
			return v
		}
		panic(e.fail(vm.PropertyNotFound, m.Property.Span(), map[string]any{"property": name}))
	case vm.Null, vm.Undefined:
		panic(e.raise(withLocation(typeError("Cannot read properties of %s (reading '%s')", typeName(obj), propertyName(key)), m.SpanVal)))
	}
	panic(e.fail(vm.PropertyNotFound, m.Property.Span(), map[string]any{"property": propertyName(key)}))
}

// member resolves a built-in member. Only dot access reaches the stdlib.
func (e *Executor) member(m *MemberExpr, lib *library, recv vm.Value, prefix, name string) vm.Value {
	def, known := lib.members[name]
	if m.Computed && (known || lib.pending[name] || prefix != "") {
		panic(e.raise(withLocation(typeError("Cannot use computed property access for stdlib members"), m.SpanVal)))
	}
	if !known && !lib.pending[name] {
		panic(e.fail(vm.PropertyNotFound, m.Property.Span(), map[string]any{"property": name}))
	}
	if !e.policy.StdlibAllowed(lib.name, name) {
		panic(e.fail(vm.MethodNotYetAvailable, m.Property.Span(), map[string]any{"name": prefix + name}))
	}
	if !known {
		panic(e.fail(vm.MethodNotYetImplemented, m.Property.Span(), map[string]any{"name": prefix + name}))
	}
	if def.get != nil {
		return def.get(recv)
	}
	return &vm.Function{Name: prefix + name, Arity: def.arity, Native: def.call, Receiver: recv}
}

func (e *Executor) writeMember(m *MemberExpr, obj, key vm.Value, v vm.Value) {
	switch o := obj.(type) {
	case *vm.Dict:
		o.Set(propertyName(key), v)
		return
	case *vm.List:
		idx, ok := key.(vm.Number)
		if !ok {
			break
		}
		// Writing one past the end appends.
		i := e.elementIndex(m, idx, o.Len(), true)
		if i == o.Len() {
			o.Elements = append(o.Elements, v)
		} else {
			o.Elements[i] = v
		}
		return
	}
	panic(e.raise(withLocation(typeError("Cannot set property %s of %s", propertyName(key), vm.WithArticle(typeName(obj))), m.SpanVal)))
}

func withLocation(err *vm.RuntimeError, at vm.Span) *vm.RuntimeError {
	err.Location = at
	return err
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (e *Executor) evalCall(n *CallExpr) vm.Value {
	var callee vm.Value
	if id, ok := n.Callee.(*IdentifierExpr); ok {
		e.checkAllowed(id)
		v, found := e.resolve(id.Name)
		if !found {
			panic(e.fail(vm.FunctionNotFound, id.SpanVal, map[string]any{"name": id.Name}))
		}
		callee = v
	} else {
		callee = e.eval(n.Callee)
	}
	fn, ok := callee.(*vm.Function)
	if !ok {
		panic(e.fail(vm.NotCallable, n.Callee.Span(), map[string]any{"type": typeName(callee)}))
	}
	args := make([]vm.Value, len(n.Args))
	for i, a := range n.Args {
		args[i] = e.eval(a)
	}
	return e.call(n, fn, args)
}

// evalSyntheticCall evaluates the call EvaluateFunction builds. Its callee
// and literal arguments are not student code, so no node checks apply.
func (e *Executor) evalSyntheticCall(n *CallExpr) vm.Value {
	id := n.Callee.(*IdentifierExpr)
	v, _ := e.global.Lookup(id.Name)
	fn, ok := v.(*vm.Function)
	if !ok {
		panic(e.fail(vm.FunctionNotFound, n.SpanVal, map[string]any{"name": id.Name}))
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
			Description: vm.DescribeCall(fn.External.Description, args, ret, Inspect),
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

// invoke runs a user function body in a fresh scope under the global one.
func (e *Executor) invoke(at Node, fn *vm.Function, decl *FunctionDecl, args []vm.Value) vm.Value {
	if len(args) != len(decl.Params) {
		panic(e.fail(vm.InvalidNumberOfArguments, at.Span(), map[string]any{
			"name": fn.Name, "expected": len(decl.Params), "actual": len(args),
		}))
	}
	if err := e.limits.Enter(at.Span()); err != nil {
		panic(e.raise(err))
	}
	env := vm.NewEnvironment(fn.Env)
	for i, p := range decl.Params {
		env.Define(p, args[i], false)
	}

	prevEnv, prevStmt, prevLoops, prevCalls := e.env, e.stmt, e.loopDepth, e.calls
	e.env, e.loopDepth, e.calls = env, 0, nil
	e.funcDepth++

	var result vm.Value = vm.Undefined{}
	for _, s := range decl.Body.Body {
		if e.execStmt(s) == signalReturn {
			result = e.returnValue
			break
		}
	}

	e.funcDepth--
	e.env, e.stmt, e.loopDepth, e.calls = prevEnv, prevStmt, prevLoops, prevCalls
	e.limits.Leave()
	return result
}
