package python

import (
	"math"
	"strings"

	"github.com/chazu/jiki/vm"
)

// typeName names a value's type the way Python reports it.
func typeName(v vm.Value) string {
	switch t := v.(type) {
	case vm.Number:
		if t.IsInteger() {
			return "int"
		}
		return "float"
	case vm.String:
		return "str"
	case vm.Boolean:
		return "bool"
	case vm.Null, vm.Undefined:
		return "NoneType"
	case *vm.List:
		return "list"
	case *vm.Dict:
		return "dict"
	case *vm.Function:
		if t.Receiver != nil {
			return "builtin_function_or_method"
		}
		return "function"
	}
	return "object"
}

// truthy applies Python truthiness: False, None, zero and empty
// containers are false.
func truthy(v vm.Value) bool {
	switch t := v.(type) {
	case vm.Boolean:
		return bool(t)
	case vm.Number:
		return t != 0 && !math.IsNaN(float64(t))
	case vm.String:
		return t != ""
	case vm.Null, vm.Undefined:
		return false
	case *vm.List:
		return t.Len() > 0
	case *vm.Dict:
		return t.Len() > 0
	}
	return true
}

// numeric reads numbers and booleans as Python does in arithmetic.
func numeric(v vm.Value) (float64, bool) {
	switch t := v.(type) {
	case vm.Number:
		return float64(t), true
	case vm.Boolean:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// equals implements ==: numbers and booleans compare by value, containers
// compare element-wise. A container is equal to itself without looking
// inside, as in CPython.
func equals(a, b vm.Value) bool {
	return equal(a, b, make(map[[2]vm.Value]bool))
}

func equal(a, b vm.Value, comparing map[[2]vm.Value]bool) bool {
	if an, ok := numeric(a); ok {
		bn, ok := numeric(b)
		return ok && an == bn
	}
	switch av := a.(type) {
	case vm.String:
		bv, ok := b.(vm.String)
		return ok && av == bv
	case vm.Null, vm.Undefined:
		return vm.IsNullish(b)
	case *vm.List:
		bv, ok := b.(*vm.List)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		pair := [2]vm.Value{av, bv}
		if av == bv || comparing[pair] {
			return true
		}
		comparing[pair] = true
		for i := range av.Elements {
			if !equal(av.Elements[i], bv.Elements[i], comparing) {
				return false
			}
		}
		return true
	case *vm.Dict:
		bv, ok := b.(*vm.Dict)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		pair := [2]vm.Value{av, bv}
		if av == bv || comparing[pair] {
			return true
		}
		comparing[pair] = true
		for _, k := range av.Keys() {
			x, _ := av.Get(k)
			y, found := bv.Get(k)
			if !found || !equal(x, y, comparing) {
				return false
			}
		}
		return true
	case *vm.Function:
		bv, ok := b.(*vm.Function)
		return ok && av == bv
	}
	return false
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// Str converts a value the way str(v) does.
func Str(v vm.Value) string {
	if s, ok := v.(vm.String); ok {
		return string(s)
	}
	return Repr(v)
}

// Repr renders a value the way repr(v) does.
func Repr(v vm.Value) string {
	var sb strings.Builder
	repr(&sb, v, make(map[vm.Value]bool))
	return sb.String()
}

// open holds the containers being rendered on the current path; one met
// again prints as [...] or {...}.
func repr(sb *strings.Builder, v vm.Value, open map[vm.Value]bool) {
	switch t := v.(type) {
	case vm.String:
		sb.WriteString(quote(string(t)))
	case vm.Number:
		sb.WriteString(formatNumber(float64(t)))
	case vm.Boolean:
		if t {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case vm.Null, vm.Undefined:
		sb.WriteString("None")
	case *vm.List:
		if open[t] {
			sb.WriteString("[...]")
			return
		}
		open[t] = true
		defer delete(open, t)
		sb.WriteByte('[')
		for i, e := range t.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			repr(sb, e, open)
		}
		sb.WriteByte(']')
	case *vm.Dict:
		if open[t] {
			sb.WriteString("{...}")
			return
		}
		open[t] = true
		defer delete(open, t)
		sb.WriteByte('{')
		for i, k := range t.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quote(k))
			sb.WriteString(": ")
			e, _ := t.Get(k)
			repr(sb, e, open)
		}
		sb.WriteByte('}')
	case *vm.Function:
		if t.Receiver != nil {
			sb.WriteString("<built-in method " + t.Name + ">")
		} else {
			sb.WriteString("<function " + t.Name + ">")
		}
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return vm.FormatNumber(f)
}

// quote picks single quotes unless the text contains one and no double
// quote, as repr does.
func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var sb strings.Builder
	sb.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			sb.WriteString(`\\`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == rune(q):
			sb.WriteByte('\\')
			sb.WriteByte(q)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}

// printString renders print arguments: str of each, space separated.
func printString(args []vm.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Str(a)
	}
	return strings.Join(parts, " ")
}
