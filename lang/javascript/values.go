package javascript

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/jiki/vm"
)

// namespace is a built-in global object such as Math or console. It never
// lives in a scope, so it never shows up in variable snapshots.
type namespace struct {
	name string
	lib  *library
}

func (n *namespace) Kind() vm.Kind   { return vm.KindDict }
func (n *namespace) Clone() vm.Value { return n }

// typeName names a value's type in error messages.
func typeName(v vm.Value) string {
	switch v.(type) {
	case vm.Number:
		return "number"
	case vm.String:
		return "string"
	case vm.Boolean:
		return "boolean"
	case vm.Null:
		return "null"
	case vm.Undefined:
		return "undefined"
	case *vm.List:
		return "array"
	case *vm.Function:
		return "function"
	}
	return "object"
}

// truthy applies host truthiness.
func truthy(v vm.Value) bool {
	switch t := v.(type) {
	case vm.Boolean:
		return bool(t)
	case vm.Number:
		f := float64(t)
		return f != 0 && !math.IsNaN(f)
	case vm.String:
		return t != ""
	case vm.Null, vm.Undefined:
		return false
	}
	return true
}

// toNumber applies ToNumber.
func toNumber(v vm.Value) float64 {
	switch t := v.(type) {
	case vm.Number:
		return float64(t)
	case vm.Boolean:
		if t {
			return 1
		}
		return 0
	case vm.Null:
		return 0
	case vm.Undefined:
		return math.NaN()
	case vm.String:
		return stringToNumber(string(t))
	case *vm.List:
		return toNumber(vm.String(ToString(t)))
	}
	return math.NaN()
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return 0
	case s == "Infinity" || s == "+Infinity":
		return math.Inf(1)
	case s == "-Infinity":
		return math.Inf(-1)
	case len(s) > 2 && s[0] == '0' && strings.ContainsRune("xXoObB", rune(s[1])):
		n, err := strconv.ParseUint(s, 0, 64)
		if err != nil || strings.Contains(s, "_") {
			return math.NaN()
		}
		return float64(n)
	}
	for _, r := range s {
		if !isDigit(r) && !strings.ContainsRune("+-.eE", r) {
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return f
}

// strictEquals implements === .
func strictEquals(a, b vm.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case vm.Number:
		return float64(av) == float64(b.(vm.Number))
	case vm.String:
		return av == b.(vm.String)
	case vm.Boolean:
		return av == b.(vm.Boolean)
	case vm.Null, vm.Undefined:
		return true
	case *vm.List:
		return av == b.(*vm.List)
	case *vm.Dict:
		bd, ok := b.(*vm.Dict)
		return ok && av == bd
	case *vm.Function:
		return av == b.(*vm.Function)
	case *namespace:
		bn, ok := b.(*namespace)
		return ok && av == bn
	}
	return false
}

// looseEquals implements == with its coercions.
func looseEquals(a, b vm.Value) bool {
	if a.Kind() == b.Kind() {
		return strictEquals(a, b)
	}
	if vm.IsNullish(a) || vm.IsNullish(b) {
		return vm.IsNullish(a) && vm.IsNullish(b)
	}
	if _, ok := a.(vm.Boolean); ok {
		return looseEquals(vm.Number(toNumber(a)), b)
	}
	if _, ok := b.(vm.Boolean); ok {
		return looseEquals(a, vm.Number(toNumber(b)))
	}
	isPrim := func(v vm.Value) bool {
		switch v.(type) {
		case vm.Number, vm.String:
			return true
		}
		return false
	}
	if isPrim(a) && isPrim(b) {
		return toNumber(a) == toNumber(b)
	}
	if isPrim(a) && !isPrim(b) {
		return looseEquals(a, vm.String(ToString(b)))
	}
	if !isPrim(a) && isPrim(b) {
		return looseEquals(vm.String(ToString(a)), b)
	}
	return false
}

// sameValueZero is the comparison used by Array.prototype.includes.
func sameValueZero(a, b vm.Value) bool {
	an, aok := a.(vm.Number)
	bn, bok := b.(vm.Number)
	if aok && bok && math.IsNaN(float64(an)) && math.IsNaN(float64(bn)) {
		return true
	}
	return strictEquals(a, b)
}

// toIntegerOrInfinity truncates a numeric argument; NaN becomes 0.
func toIntegerOrInfinity(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Trunc(f)
}

func clamp(f float64, lo, hi int) int {
	switch {
	case f < float64(lo):
		return lo
	case f > float64(hi):
		return hi
	}
	return int(f)
}
