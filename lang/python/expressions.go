package python

import (
	"errors"
	"fmt"
	"math"
	"strings"

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
		left := e.eval(n.Left)
		right := e.eval(n.Right)
		return e.binary(n, n.Op, left, right)
	case *CompareExpr:
		return e.evalCompare(n)
	case *LogicalExpr:
		return e.evalLogical(n)
	case *FStringExpr:
		var sb strings.Builder
		for i, text := range n.Texts {
			sb.WriteString(text)
			if i < len(n.Exprs) {
				sb.WriteString(Str(e.eval(n.Exprs[i])))
			}
		}
		return vm.String(sb.String())
	case *ListExpr:
		elems := make([]vm.Value, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = e.eval(el)
		}
		return vm.NewList(elems...)
	case *DictExpr:
		d := vm.NewDict()
		for i, k := range n.Keys {
			key := e.eval(k)
			s, ok := key.(vm.String)
			if !ok {
				panic(e.raise(withLocation(typeError("dictionary keys must be strings, not %s", typeName(key)), k.Span())))
			}
			d.Set(string(s), e.eval(n.Values[i]))
		}
		return d
	case *SubscriptExpr:
		return e.evalSubscript(n)
	case *AttributeExpr:
		return e.attribute(n, e.eval(n.Object))
	case *CallExpr:
		return e.evalCall(n)
	}
	panic(fmt.Sprintf("unknown expression %T", x))
}

// resolve finds a name in scope, then among the builtins, then among the
// external functions. Builtins can be shadowed, as in Python.
func (e *Executor) resolve(n *IdentifierExpr) (vm.Value, bool) {
	if v, ok := e.env.Lookup(n.Name); ok {
		return v, true
	}
	if def, known := builtinLib.members[n.Name]; known || builtinLib.pending[n.Name] {
		if !e.policy.StdlibAllowed(builtinLib.name, n.Name) {
			panic(e.fail(vm.MethodNotYetAvailable, n.SpanVal, map[string]any{"name": n.Name}))
		}
		if !known {
			panic(e.fail(vm.MethodNotYetImplemented, n.SpanVal, map[string]any{"name": n.Name}))
		}
		return &vm.Function{Name: n.Name, Arity: def.arity, Native: def.call}, true
	}
	if ext, ok := e.externals.Lookup(n.Name); ok {
		return &vm.Function{Name: ext.Name, Arity: vm.Exactly(ext.Arity), External: ext}, true
	}
	return nil, false
}

func (e *Executor) lookup(n *IdentifierExpr) vm.Value {
	if v, ok := e.resolve(n); ok {
		return v
	}
	panic(e.fail(vm.VariableNotDeclared, n.SpanVal, map[string]any{"name": n.Name}))
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

var compoundOps = map[TokenType]TokenType{
	TokenPlusAssign:  TokenPlus,
	TokenMinusAssign: TokenMinus,
	TokenStarAssign:  TokenStar,
	TokenSlashAssign: TokenSlash,
}

func (e *Executor) evalUnary(n *UnaryExpr) vm.Value {
	v := e.eval(n.Operand)
	if n.Op == TokenNot {
		return vm.Boolean(!e.boolean(n.Operand, v))
	}
	f, ok := v.(vm.Number)
	if !ok {
		b, isBool := numeric(v)
		if !e.policy.AllowTypeCoercion {
			panic(e.fail(vm.OperandMustBeNumber, n.SpanVal, map[string]any{"operator": n.Op.String(), "value": typeName(v)}))
		}
		if !isBool {
			panic(e.raise(withLocation(typeError("bad operand type for unary %s: '%s'", n.Op, typeName(v)), n.SpanVal)))
		}
		f = vm.Number(b)
	}
	if n.Op == TokenMinus {
		return -f
	}
	return f
}

func (e *Executor) binary(at Node, op TokenType, left, right vm.Value) vm.Value {
	ln, lnum := left.(vm.Number)
	rn, rnum := right.(vm.Number)
	if lnum && rnum {
		return e.arithmetic(at, op, float64(ln), float64(rn))
	}
	switch op {
	case TokenPlus:
		if v, ok := concat(left, right); ok {
			return v
		}
	case TokenStar:
		if v, ok, err := repeat(left, right); ok {
			if err != nil {
				panic(e.raise(withLocation(err, at.Span())))
			}
			return v
		}
	}
	if !e.policy.AllowTypeCoercion {
		panic(e.fail(vm.TypeCoercionNotAllowed, at.Span(), map[string]any{
			"operator": op.String(), "left": typeName(left), "right": typeName(right),
		}))
	}
	a, aok := numeric(left)
	b, bok := numeric(right)
	if aok && bok {
		return e.arithmetic(at, op, a, b)
	}
	panic(e.raise(withLocation(operandError(op, left, right), at.Span())))
}

func operandError(op TokenType, left, right vm.Value) *vm.RuntimeError {
	if op == TokenPlus {
		switch left.(type) {
		case vm.String:
			return typeError("can only concatenate str (not \"%s\") to str", typeName(right))
		case *vm.List:
			return typeError("can only concatenate list (not \"%s\") to list", typeName(right))
		}
	}
	return typeError("unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(left), typeName(right))
}

func concat(left, right vm.Value) (vm.Value, bool) {
	switch l := left.(type) {
	case vm.String:
		if r, ok := right.(vm.String); ok {
			return l + r, true
		}
	case *vm.List:
		if r, ok := right.(*vm.List); ok {
			out := make([]vm.Value, 0, l.Len()+r.Len())
			out = append(out, l.Elements...)
			return vm.NewList(append(out, r.Elements...)...), true
		}
	}
	return nil, false
}

// repeat implements sequence * int in either order.
func repeat(left, right vm.Value) (vm.Value, bool, *vm.RuntimeError) {
	seq, count := left, right
	if _, isNum := left.(vm.Number); isNum {
		seq, count = right, left
	}
	n, isNum := count.(vm.Number)
	switch s := seq.(type) {
	case vm.String:
		if !isNum {
			return nil, false, nil
		}
		if !n.IsInteger() {
			return nil, true, typeError("can't multiply sequence by non-int of type 'float'")
		}
		return vm.String(strings.Repeat(string(s), max(int(n), 0))), true, nil
	case *vm.List:
		if !isNum {
			return nil, false, nil
		}
		if !n.IsInteger() {
			return nil, true, typeError("can't multiply sequence by non-int of type 'float'")
		}
		var out []vm.Value
		for i := 0; i < int(n); i++ {
			out = append(out, s.Elements...)
		}
		return vm.NewList(out...), true, nil
	}
	return nil, false, nil
}

func (e *Executor) arithmetic(at Node, op TokenType, a, b float64) vm.Value {
	switch op {
	case TokenPlus:
		return vm.Number(a + b)
	case TokenMinus:
		return vm.Number(a - b)
	case TokenStar:
		return vm.Number(a * b)
	case TokenStarStar:
		if a == 0 && b < 0 {
			panic(e.fail(vm.ZeroDivisionError, at.Span(), nil))
		}
		return vm.Number(math.Pow(a, b))
	}
	if b == 0 {
		panic(e.fail(vm.ZeroDivisionError, at.Span(), nil))
	}
	switch op {
	case TokenSlash:
		return vm.Number(a / b)
	case TokenSlashSlash:
		return vm.Number(math.Floor(a / b))
	case TokenPercent:
		// The result takes the sign of the divisor.
		return vm.Number(a - b*math.Floor(a/b))
	}
	panic(fmt.Sprintf("unknown binary operator %s", op))
}

func (e *Executor) evalCompare(n *CompareExpr) vm.Value {
	left := e.eval(n.Operands[0])
	for i, op := range n.Ops {
		right := e.eval(n.Operands[i+1])
		if !e.compare(n, op, left, right) {
			return vm.Boolean(false)
		}
		left = right
	}
	return vm.Boolean(true)
}

func (e *Executor) compare(at Node, op TokenType, left, right vm.Value) bool {
	switch op {
	case TokenEqual:
		return equals(left, right)
	case TokenNotEqual:
		return !equals(left, right)
	case TokenIn:
		return e.contains(at, right, left)
	case TokenNotIn:
		return !e.contains(at, right, left)
	}
	_, lnum := left.(vm.Number)
	_, rnum := right.(vm.Number)
	_, lstr := left.(vm.String)
	_, rstr := right.(vm.String)
	if !(lnum && rnum) && !(lstr && rstr) && !e.policy.AllowTypeCoercion {
		panic(e.fail(vm.TypeCoercionNotAllowed, at.Span(), map[string]any{
			"operator": op.String(), "left": typeName(left), "right": typeName(right),
		}))
	}
	c, err := order(left, right)
	if err != nil {
		panic(e.raise(withLocation(typeError("'%s' not supported between instances of '%s' and '%s'", op, typeName(left), typeName(right)), at.Span())))
	}
	switch op {
	case TokenLess:
		return c < 0
	case TokenLessEqual:
		return c <= 0
	case TokenGreater:
		return c > 0
	}
	return c >= 0
}

func (e *Executor) contains(at Node, container, item vm.Value) bool {
	switch c := container.(type) {
	case *vm.List:
		for _, el := range c.Elements {
			if equals(el, item) {
				return true
			}
		}
		return false
	case vm.String:
		s, ok := item.(vm.String)
		if !ok {
			panic(e.raise(withLocation(typeError("'in <string>' requires string as left operand, not %s", typeName(item)), at.Span())))
		}
		return strings.Contains(string(c), string(s))
	case *vm.Dict:
		s, ok := item.(vm.String)
		return ok && c.Has(string(s))
	}
	panic(e.raise(withLocation(typeError("argument of type '%s' is not iterable", typeName(container)), at.Span())))
}

// evalLogical returns the operand that decided the result.
func (e *Executor) evalLogical(n *LogicalExpr) vm.Value {
	left := e.eval(n.Left)
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
// Subscripts and attributes
// ---------------------------------------------------------------------------

// index resolves a possibly negative index into a sequence of length n.
func (e *Executor) index(at Expr, key vm.Value, n int, seq string) int {
	i, err := toInt(key)
	if _, isBool := key.(vm.Boolean); err != nil || isBool {
		panic(e.raise(withLocation(typeError("%s indices must be integers, not %s", seq, typeName(key)), at.Span())))
	}
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		panic(e.fail(vm.IndexError, at.Span(), map[string]any{"type": seq}))
	}
	return i
}

func (e *Executor) evalSubscript(n *SubscriptExpr) vm.Value {
	obj := e.eval(n.Object)
	if n.Slice {
		return e.slice(n, obj)
	}
	key := e.eval(n.Index)
	switch o := obj.(type) {
	case *vm.List:
		return o.Elements[e.index(n.Index, key, o.Len(), "list")]
	case vm.String:
		chars := []rune(string(o))
		return vm.String(string(chars[e.index(n.Index, key, len(chars), "string")]))
	case *vm.Dict:
		if s, ok := key.(vm.String); ok {
			if v, found := o.Get(string(s)); found {
				return v
			}
		}
		panic(e.fail(vm.KeyError, n.Index.Span(), map[string]any{"key": Repr(key)}))
	}
	panic(e.raise(withLocation(typeError("'%s' object is not subscriptable", typeName(obj)), n.SpanVal)))
}

func (e *Executor) slice(n *SubscriptExpr, obj vm.Value) vm.Value {
	bound := func(x Expr, def int) int {
		if x == nil {
			return def
		}
		v := e.eval(x)
		if vm.IsNullish(v) {
			return def
		}
		i, err := toInt(v)
		if err != nil {
			panic(e.raise(withLocation(typeError("slice indices must be integers or None"), x.Span())))
		}
		return i
	}
	switch o := obj.(type) {
	case *vm.List:
		start, stop := sliceBounds(bound(n.Index, 0), bound(n.Upper, o.Len()), o.Len())
		return vm.NewList(append([]vm.Value(nil), o.Elements[start:stop]...)...)
	case vm.String:
		chars := []rune(string(o))
		start, stop := sliceBounds(bound(n.Index, 0), bound(n.Upper, len(chars)), len(chars))
		return vm.String(string(chars[start:stop]))
	}
	panic(e.raise(withLocation(typeError("'%s' object is not subscriptable", typeName(obj)), n.SpanVal)))
}

func (e *Executor) writeSubscript(n *SubscriptExpr, obj, key, v vm.Value) {
	switch o := obj.(type) {
	case *vm.List:
		o.Elements[e.index(n.Index, key, o.Len(), "list assignment")] = v
		return
	case *vm.Dict:
		s, ok := key.(vm.String)
		if !ok {
			panic(e.raise(withLocation(typeError("dictionary keys must be strings, not %s", typeName(key)), n.Index.Span())))
		}
		o.Set(string(s), v)
		return
	}
	panic(e.raise(withLocation(typeError("'%s' object does not support item assignment", typeName(obj)), n.SpanVal)))
}

func libraryFor(v vm.Value) *library {
	switch v.(type) {
	case vm.String:
		return strLib
	case *vm.List:
		return listLib
	case *vm.Dict:
		return dictLib
	}
	return nil
}

// attribute binds a method to its receiver.
func (e *Executor) attribute(n *AttributeExpr, obj vm.Value) vm.Value {
	lib := libraryFor(obj)
	missing := map[string]any{"type": typeName(obj), "attribute": n.Name}
	if lib == nil {
		panic(e.fail(vm.AttributeError, n.NameSpan, missing))
	}
	def, known := lib.members[n.Name]
	if !known && !lib.pending[n.Name] {
		panic(e.fail(vm.AttributeError, n.NameSpan, missing))
	}
	qualified := lib.name + "." + n.Name
	if !e.policy.StdlibAllowed(lib.name, n.Name) {
		panic(e.fail(vm.MethodNotYetAvailable, n.NameSpan, map[string]any{"name": qualified}))
	}
	if !known {
		panic(e.fail(vm.MethodNotYetImplemented, n.NameSpan, map[string]any{"name": qualified}))
	}
	return &vm.Function{Name: qualified, Arity: def.arity, Native: def.call, Receiver: obj}
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (e *Executor) evalCall(n *CallExpr) vm.Value {
	var callee vm.Value
	if id, ok := n.Callee.(*IdentifierExpr); ok {
		e.checkAllowed(id)
		v, found := e.resolve(id)
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
		ret, err := fn.External.Invoke(e.ctx, args, at.Span(), vm.Null{})
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
			return vm.Null{}
		}
		return ret
	}
	decl, ok := fn.Decl.(*FunctionDecl)
	if !ok {
		panic(fmt.Sprintf("function %s has no declaration", fn.Name))
	}
	return e.invoke(at, fn, decl, args)
}

// invoke runs a def body in a fresh local scope whose parent is the global
// scope.
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

	var result vm.Value = vm.Null{}
	if e.execBlock(decl.Body) == signalReturn {
		result = e.returnValue
	}

	e.funcDepth--
	e.env, e.stmt, e.loopDepth, e.calls = prevEnv, prevStmt, prevLoops, prevCalls
	e.limits.Leave()
	return result
}
