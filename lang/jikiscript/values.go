package jikiscript

import (
	"math"
	"strconv"
	"strings"

	"github.com/chazu/jiki/vm"
)

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
		return "nothing"
	case *vm.List:
		return "list"
	case *vm.Dict:
		return "dictionary"
	case *vm.Function:
		return "function"
	}
	return "object"
}

// truthy is only consulted when the policy allows truthiness: false, null,
// zero, the empty string and empty containers are false.
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

// roundDecimals keeps arithmetic results to five decimal places, so
// 0.1 + 0.2 is 0.3.
func roundDecimals(f float64) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return f
	}
	return math.Round(f*1e5) / 1e5
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// Str renders a value for log output: strings appear without quotes.
func Str(v vm.Value) string {
	if s, ok := v.(vm.String); ok {
		return string(s)
	}
	return Repr(v)
}

// Repr renders a value as it would be written in source.
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
		sb.WriteString(strconv.Quote(string(t)))
	case vm.Number:
		sb.WriteString(vm.FormatNumber(float64(t)))
	case vm.Boolean:
		sb.WriteString(strconv.FormatBool(bool(t)))
	case vm.Null:
		sb.WriteString("null")
	case vm.Undefined:
		sb.WriteString("nothing")
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
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			e, _ := t.Get(k)
			repr(sb, e, open)
		}
		sb.WriteByte('}')
	case *vm.Function:
		sb.WriteString("<function " + t.Name + ">")
	}
}
